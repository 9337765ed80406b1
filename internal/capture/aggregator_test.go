package capture

import (
	"fmt"
	"testing"
	"time"
)

func TestAggregateTwoPeerWindow(t *testing.T) {
	// 1. Two peers talking to the local host, 500 + 1500 bytes
	agg := NewAggregator(10, []string{"10.0.0.9"})
	packets := []PacketRecord{
		{SrcIP: "10.0.0.1", DstIP: "10.0.0.9", Length: 500},
		{SrcIP: "10.0.0.2", DstIP: "10.0.0.9", Length: 1500},
	}

	end := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	result := agg.Aggregate(end, 5*time.Second, packets)
	w := result.Window

	// 2. Totals and peer count
	if w.UniquePeers != 2 {
		t.Errorf("Expected 2 unique peers, got %d", w.UniquePeers)
	}
	if w.TotalBytes != 2000 || w.TotalPackets != 2 {
		t.Errorf("Expected 2000 bytes / 2 packets, got %d / %d", w.TotalBytes, w.TotalPackets)
	}

	// 3. Top talkers ordered by bytes descending
	if len(w.TopTalkers) != 2 {
		t.Fatalf("Expected 2 top talkers, got %d", len(w.TopTalkers))
	}
	if w.TopTalkers[0].Addr != "10.0.0.2" || w.TopTalkers[0].Bytes != 1500 {
		t.Errorf("Expected 10.0.0.2/1500 first, got %+v", w.TopTalkers[0])
	}
	if w.TopTalkers[1].Addr != "10.0.0.1" || w.TopTalkers[1].Bytes != 500 {
		t.Errorf("Expected 10.0.0.1/500 second, got %+v", w.TopTalkers[1])
	}

	// 4. Both packets are inbound for the local address
	if w.InBytes != 2000 || w.InPackets != 2 || w.OutBytes != 0 {
		t.Errorf("Unexpected direction split: in=%d/%d out=%d", w.InBytes, w.InPackets, w.OutBytes)
	}
	if len(result.Remotes) != 2 {
		t.Errorf("Expected 2 remotes for the tracker, got %d", len(result.Remotes))
	}
}

func TestUniquePeersMatchesDistinctSources(t *testing.T) {
	agg := NewAggregator(10, nil)
	var packets []PacketRecord
	for i := 0; i < 7; i++ {
		addr := fmt.Sprintf("10.1.0.%d", i+1)
		// Two packets per source; distinct sources still count once
		packets = append(packets,
			PacketRecord{SrcIP: addr, DstIP: "10.0.0.9", Length: 100},
			PacketRecord{SrcIP: addr, DstIP: "10.0.0.9", Length: 100},
		)
	}
	result := agg.Aggregate(time.Now(), time.Second, packets)
	if result.Window.UniquePeers != 7 {
		t.Errorf("Expected 7 unique peers, got %d", result.Window.UniquePeers)
	}
}

func TestTopTalkersOrderingAndCap(t *testing.T) {
	// 1. Same byte count for two peers, tie broken by packets then address
	agg := NewAggregator(3, nil)
	packets := []PacketRecord{
		{SrcIP: "10.0.0.5", DstIP: "10.0.0.9", Length: 1000},
		{SrcIP: "10.0.0.3", DstIP: "10.0.0.9", Length: 500},
		{SrcIP: "10.0.0.3", DstIP: "10.0.0.9", Length: 500},
		{SrcIP: "10.0.0.4", DstIP: "10.0.0.9", Length: 1000},
		{SrcIP: "10.0.0.1", DstIP: "10.0.0.9", Length: 2000},
		{SrcIP: "10.0.0.2", DstIP: "10.0.0.9", Length: 50},
	}
	result := agg.Aggregate(time.Now(), time.Second, packets)
	talkers := result.Window.TopTalkers

	// 2. Capped at K=3
	if len(talkers) != 3 {
		t.Fatalf("Expected top talkers capped at 3, got %d", len(talkers))
	}
	if talkers[0].Addr != "10.0.0.1" {
		t.Errorf("Expected 10.0.0.1 first, got %s", talkers[0].Addr)
	}
	// 3. 10.0.0.3 has 1000 bytes over 2 packets, beating the 1-packet peers
	if talkers[1].Addr != "10.0.0.3" {
		t.Errorf("Expected 10.0.0.3 second (packets tie-break), got %s", talkers[1].Addr)
	}
	// 4. 10.0.0.4 and 10.0.0.5 tie on bytes and packets, address ascending wins
	if talkers[2].Addr != "10.0.0.4" {
		t.Errorf("Expected 10.0.0.4 third (address tie-break), got %s", talkers[2].Addr)
	}
}

func TestPeerChurnAcrossWindows(t *testing.T) {
	agg := NewAggregator(10, nil)

	first := agg.Aggregate(time.Now(), time.Second, []PacketRecord{
		{SrcIP: "10.0.0.1", DstIP: "10.0.0.9", Length: 100},
		{SrcIP: "10.0.0.2", DstIP: "10.0.0.9", Length: 100},
	})
	if first.Window.NewPeers != 2 || first.Window.ExpiredPeers != 0 {
		t.Errorf("First window churn: new=%d expired=%d", first.Window.NewPeers, first.Window.ExpiredPeers)
	}

	second := agg.Aggregate(time.Now(), time.Second, []PacketRecord{
		{SrcIP: "10.0.0.2", DstIP: "10.0.0.9", Length: 100},
		{SrcIP: "10.0.0.3", DstIP: "10.0.0.9", Length: 100},
	})
	if second.Window.NewPeers != 1 {
		t.Errorf("Expected 1 new peer, got %d", second.Window.NewPeers)
	}
	if second.Window.ExpiredPeers != 1 {
		t.Errorf("Expected 1 expired peer, got %d", second.Window.ExpiredPeers)
	}
}

func TestEmptyWindowIsZeroNotError(t *testing.T) {
	agg := NewAggregator(10, nil)
	result := agg.Aggregate(time.Now(), time.Second, nil)
	w := result.Window
	if w.UniquePeers != 0 || w.TotalBytes != 0 || w.TotalPackets != 0 {
		t.Errorf("Empty window should be all zero, got %+v", w)
	}
	if len(w.TopTalkers) != 0 {
		t.Errorf("Empty window should have no top talkers")
	}
}

func TestOutboundClassification(t *testing.T) {
	agg := NewAggregator(10, []string{"10.0.0.9"})
	result := agg.Aggregate(time.Now(), time.Second, []PacketRecord{
		{SrcIP: "10.0.0.9", DstIP: "10.0.0.7", Length: 300},
	})
	w := result.Window
	if w.OutBytes != 300 || w.OutPackets != 1 || w.InBytes != 0 {
		t.Errorf("Unexpected direction split: %+v", w)
	}
	pt, ok := result.Remotes["10.0.0.7"]
	if !ok || pt.OutBytes != 300 || pt.OutPackets != 1 {
		t.Errorf("Expected remote 10.0.0.7 with outbound traffic, got %+v", result.Remotes)
	}
}
