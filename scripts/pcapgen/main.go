package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapgen writes a synthetic DHT-like capture: bidirectional UDP traffic
// between one local host and a pool of remote peers, for exercising ds-pcap
// and the aggregation pipeline.
func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	port := flag.Int("port", 4000, "UDP port the simulated DHT traffic uses")
	peers := flag.Int("peers", 20, "Number of distinct remote peers")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	localIP := net.IP{192, 168, 1, 10}
	remoteIPs := make([]net.IP, *peers)
	for i := range remoteIPs {
		remoteIPs[i] = net.IP{203, 0, byte(113 + i/256), byte(i % 256)}
	}

	log.Printf("Generating %d packets on UDP port %d across %d peers into %s...",
		*packetCount, *port, *peers, *outputFile)

	ts := time.Now()
	for i := 0; i < *packetCount; i++ {
		remote := remoteIPs[rng.Intn(len(remoteIPs))]
		outbound := rng.Intn(2) == 0
		payloadSize := rng.Intn(250) + 50 // typical DHT message sizes

		srcIP, dstIP := localIP, remote
		if !outbound {
			srcIP, dstIP = remote, localIP
		}

		ethLayer := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ipLayer := &layers.IPv4{
			SrcIP:    srcIP,
			DstIP:    dstIP,
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
		}
		udpLayer := &layers.UDP{
			SrcPort: layers.UDPPort(*port),
			DstPort: layers.UDPPort(*port),
		}
		udpLayer.SetNetworkLayerForChecksum(ipLayer)

		payload := make([]byte, payloadSize)
		rng.Read(payload)

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{
			ComputeChecksums: true,
			FixLengths:       true,
		}
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, udpLayer, gopacket.Payload(payload)); err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}

		ts = ts.Add(time.Duration(rng.Intn(100)) * time.Millisecond)
		ci := gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}

	log.Printf("Successfully generated %d packets into %s.", *packetCount, *outputFile)
}
