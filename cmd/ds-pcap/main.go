package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"DHTSpectra/internal/capture"
	"DHTSpectra/pkg/pcap"
)

// ds-pcap aggregates a capture file offline using the same pipeline as the
// live monitor and prints the resulting traffic window as JSON.
func main() {
	port := flag.Int("port", 4000, "UDP port of the monitored DHT traffic (0 keeps all UDP)")
	topK := flag.Int("top", 10, "Number of top talkers to report")
	localIP := flag.String("local", "", "Local IP for traffic direction classification")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ds-pcap [flags] <capture.pcap>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 1. Open the capture file
	reader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()
	log.Printf("Reading packets from '%s'...", pcapFilePath)

	// 2. Drain it through the port filter
	packets, skipped, err := reader.ReadPackets(*port)
	if err != nil {
		log.Fatalf("Failed to read packets: %v", err)
	}
	log.Printf("Read %d matching packets (%d skipped).", len(packets), skipped)

	// 3. Aggregate into a single window
	var localIPs []string
	if *localIP != "" {
		localIPs = []string{*localIP}
	}
	agg := capture.NewAggregator(*topK, localIPs)
	result := agg.Aggregate(time.Now(), 0, packets)
	result.SkippedLines = skipped

	// 4. Print the window as JSON
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Window); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}
