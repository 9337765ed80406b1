// Package pcap reads packet capture files without libpcap, feeding the same
// aggregation pipeline the live capture tool does.
package pcap

import (
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"DHTSpectra/internal/capture"
)

// Reader reads packets from a pcap file.
type Reader struct {
	file   *os.File
	source *gopacket.PacketSource
}

// NewReader opens a pcap file for offline reading.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	return &Reader{
		file:   f,
		source: gopacket.NewPacketSource(r, r.LinkType()),
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadPackets drains the file and returns one record per UDP packet on the
// given port, plus the number of packets that were skipped because they did
// not decode to IP/UDP or did not match the port. port 0 keeps every UDP
// packet.
func (r *Reader) ReadPackets(port int) ([]capture.PacketRecord, int, error) {
	var records []capture.PacketRecord
	skipped := 0

	for packet := range r.source.Packets() {
		if errLayer := packet.ErrorLayer(); errLayer != nil {
			skipped++
			continue
		}

		netLayer := packet.NetworkLayer()
		udpLayer, _ := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if netLayer == nil || udpLayer == nil {
			skipped++
			continue
		}
		if port != 0 && int(udpLayer.SrcPort) != port && int(udpLayer.DstPort) != port {
			skipped++
			continue
		}

		src, dst := netLayer.NetworkFlow().Endpoints()
		length := uint64(packet.Metadata().Length)
		if length == 0 {
			length = uint64(len(packet.Data()))
		}
		records = append(records, capture.PacketRecord{
			SrcIP:  src.String(),
			DstIP:  dst.String(),
			Length: length,
		})
	}
	return records, skipped, nil
}
