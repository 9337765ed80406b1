package pcap

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// writeTestPcap builds a small capture file: UDP on the monitored port, UDP
// on another port, and a TCP packet.
func writeTestPcap(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write pcap header: %v", err)
	}

	type pkt struct {
		src, dst         net.IP
		srcPort, dstPort layers.UDPPort
		udp              bool
		payload          int
	}
	pkts := []pkt{
		{net.IP{192, 168, 1, 10}, net.IP{203, 0, 113, 7}, 4000, 4000, true, 100},
		{net.IP{203, 0, 113, 7}, net.IP{192, 168, 1, 10}, 4000, 4000, true, 300},
		{net.IP{192, 168, 1, 10}, net.IP{198, 51, 100, 9}, 53000, 53, true, 60}, // off-port UDP
		{net.IP{192, 168, 1, 10}, net.IP{198, 51, 100, 9}, 0, 0, false, 60},     // TCP
	}

	for _, p := range pkts {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			SrcIP:   p.src,
			DstIP:   p.dst,
			Version: 4,
			TTL:     64,
		}
		payload := make([]byte, p.payload)

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
		if p.udp {
			ip.Protocol = layers.IPProtocolUDP
			udp := &layers.UDP{SrcPort: p.srcPort, DstPort: p.dstPort}
			udp.SetNetworkLayerForChecksum(ip)
			if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
				t.Fatalf("serialize udp: %v", err)
			}
		} else {
			ip.Protocol = layers.IPProtocolTCP
			tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, SYN: true, Window: 14600}
			tcp.SetNetworkLayerForChecksum(ip)
			if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
				t.Fatalf("serialize tcp: %v", err)
			}
		}

		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := w.WritePacket(ci, buf.Bytes()); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

func TestReadPacketsPortFilter(t *testing.T) {
	path := writeTestPcap(t)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	// 1. Only the two packets on the monitored port survive.
	records, skipped, err := reader.ReadPackets(4000)
	if err != nil {
		t.Fatalf("read packets: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}

	// 2. Endpoints and sizes come from the decoded layers.
	if records[0].SrcIP != "192.168.1.10" || records[0].DstIP != "203.0.113.7" {
		t.Errorf("unexpected endpoints: %+v", records[0])
	}
	if records[1].Length <= records[0].Length {
		t.Errorf("larger payload should yield a larger frame: %d vs %d",
			records[1].Length, records[0].Length)
	}
}

func TestReadPacketsNoFilter(t *testing.T) {
	path := writeTestPcap(t)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	// Port 0 keeps all three UDP packets; the TCP packet is still skipped.
	records, skipped, err := reader.ReadPackets(0)
	if err != nil {
		t.Fatalf("read packets: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.pcap")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestNewReaderNotAPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pcap")
	if err := os.WriteFile(path, []byte("not a capture file"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewReader(path); err == nil {
		t.Fatal("expected an error for a malformed file")
	}
}
