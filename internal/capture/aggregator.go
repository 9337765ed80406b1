package capture

import (
	"sort"
	"time"

	"DHTSpectra/internal/model"
)

type peerCounters struct {
	bytes   uint64
	packets uint64
}

// Aggregator reduces the packet records of one capture window to the
// per-window statistics and keeps the previous window's peer set for churn
// calculation. It is driven by a single goroutine.
type Aggregator struct {
	topK      int
	localIPs  map[string]struct{}
	prevPeers map[string]struct{}
}

// NewAggregator creates an aggregator. localIPs are the host's own addresses,
// used to classify packets as inbound or outbound.
func NewAggregator(topK int, localIPs []string) *Aggregator {
	locals := make(map[string]struct{}, len(localIPs))
	for _, ip := range localIPs {
		locals[ip] = struct{}{}
	}
	return &Aggregator{
		topK:      topK,
		localIPs:  locals,
		prevPeers: make(map[string]struct{}),
	}
}

// Aggregate builds the TrafficWindow for one window's packets. end is the
// window end timestamp, in UTC. A call with no packets is a legitimate
// all-zero window, not an error.
func (a *Aggregator) Aggregate(end time.Time, duration time.Duration, packets []PacketRecord) *model.CaptureResult {
	window := &model.TrafficWindow{
		Timestamp:   end.UTC(),
		DurationSec: int(duration.Seconds()),
	}

	perSource := make(map[string]*peerCounters)
	remotes := make(map[string]model.PeerTraffic)

	for _, pkt := range packets {
		window.TotalBytes += pkt.Length
		window.TotalPackets++

		// Direction classification against local addresses. Packets where
		// neither endpoint is local (bridged traffic on "any") still count
		// toward the per-source stats.
		if _, ok := a.localIPs[pkt.SrcIP]; ok {
			window.OutBytes += pkt.Length
			window.OutPackets++
			pt := remotes[pkt.DstIP]
			pt.OutBytes += pkt.Length
			pt.OutPackets++
			remotes[pkt.DstIP] = pt
		} else if _, ok := a.localIPs[pkt.DstIP]; ok {
			window.InBytes += pkt.Length
			window.InPackets++
			pt := remotes[pkt.SrcIP]
			pt.InBytes += pkt.Length
			pt.InPackets++
			remotes[pkt.SrcIP] = pt
		}

		counters := perSource[pkt.SrcIP]
		if counters == nil {
			counters = &peerCounters{}
			perSource[pkt.SrcIP] = counters
		}
		counters.bytes += pkt.Length
		counters.packets++
	}

	window.UniquePeers = len(perSource)

	// Peer churn vs the previous window.
	current := make(map[string]struct{}, len(perSource))
	for addr := range perSource {
		current[addr] = struct{}{}
		if _, seen := a.prevPeers[addr]; !seen {
			window.NewPeers++
		}
	}
	for addr := range a.prevPeers {
		if _, still := current[addr]; !still {
			window.ExpiredPeers++
		}
	}
	a.prevPeers = current

	window.TopTalkers = topTalkers(perSource, a.topK)

	return &model.CaptureResult{Window: window, Remotes: remotes}
}

// topTalkers returns the top k sources by byte count, ties broken by packet
// count descending then address ascending for determinism.
func topTalkers(perSource map[string]*peerCounters, k int) []model.TalkerStat {
	talkers := make([]model.TalkerStat, 0, len(perSource))
	for addr, c := range perSource {
		talkers = append(talkers, model.TalkerStat{Addr: addr, Bytes: c.bytes, Packets: c.packets})
	}
	sort.Slice(talkers, func(i, j int) bool {
		if talkers[i].Bytes != talkers[j].Bytes {
			return talkers[i].Bytes > talkers[j].Bytes
		}
		if talkers[i].Packets != talkers[j].Packets {
			return talkers[i].Packets > talkers[j].Packets
		}
		return talkers[i].Addr < talkers[j].Addr
	})
	if len(talkers) > k {
		talkers = talkers[:k]
	}
	return talkers
}
