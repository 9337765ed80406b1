package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

type peerStats struct {
	firstSeen  time.Time
	lastSeen   time.Time
	windows    int
	inBytes    uint64
	outBytes   uint64
	inPackets  uint64
	outPackets uint64
}

// Tracker accumulates per-remote-address directional traffic across capture
// windows and scores each peer on how much it behaves like a long-lived DHT
// node. Scores are heuristic hints, not strict truth. Raw addresses never
// leave the tracker: candidates carry hashed IDs only.
type Tracker struct {
	mu    sync.Mutex
	peers map[string]*peerStats

	minWindows  int
	minLifetime time.Duration
	minBytes    uint64
	minPackets  uint64
	minScore    float64
	limit       int
}

// New creates a tracker from the configured score thresholds.
func New(cfg config.TrackerConfig) (*Tracker, error) {
	minLifetime, err := time.ParseDuration(cfg.MinLifetime)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker min_lifetime: %w", err)
	}
	return &Tracker{
		peers:       make(map[string]*peerStats),
		minWindows:  cfg.MinWindows,
		minLifetime: minLifetime,
		minBytes:    cfg.MinBytes,
		minPackets:  cfg.MinPackets,
		minScore:    cfg.MinScore,
		limit:       cfg.Limit,
	}, nil
}

// Observe folds one window's per-remote directional traffic into the
// cumulative stats. Called once per capture window by the scheduler.
func (t *Tracker) Observe(now time.Time, remotes map[string]model.PeerTraffic) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for addr, traffic := range remotes {
		stats := t.peers[addr]
		if stats == nil {
			stats = &peerStats{firstSeen: now}
			t.peers[addr] = stats
		}
		stats.lastSeen = now
		stats.windows++
		stats.inBytes += traffic.InBytes
		stats.outBytes += traffic.OutBytes
		stats.inPackets += traffic.InPackets
		stats.outPackets += traffic.OutPackets
	}
}

// score computes the 0..1 node likelihood for one peer. Peers seen in fewer
// than two windows score zero.
func (t *Tracker) score(p *peerStats) float64 {
	if p.windows < 2 {
		return 0
	}

	lifetime := p.lastSeen.Sub(p.firstSeen)
	if lifetime < 0 {
		lifetime = 0
	}
	totalBytes := p.inBytes + p.outBytes
	totalPackets := p.inPackets + p.outPackets

	winScore := math.Min(float64(p.windows)/float64(t.minWindows), 1)
	lifeScore := math.Min(lifetime.Seconds()/t.minLifetime.Seconds(), 1)
	bytesScore := math.Min(float64(totalBytes)/float64(t.minBytes), 1)
	pktsScore := math.Min(float64(totalPackets)/float64(t.minPackets), 1)

	score := 0.30*winScore + 0.25*lifeScore + 0.25*bytesScore + 0.20*pktsScore

	// Below-minimum traffic is penalized rather than excluded outright.
	if totalBytes < t.minBytes || totalPackets < t.minPackets {
		score *= 0.3
	}

	// One-direction-only peers are almost certainly not our DHT partners.
	bidi := 0.0
	if p.inBytes > 0 && p.inPackets > 0 && p.outBytes > 0 && p.outPackets > 0 {
		bidi = 1.0
	}
	score *= 0.2 + 0.8*bidi

	return math.Max(0, math.Min(score, 1))
}

// hashAddr returns the stable non-reversible identifiers for an address: the
// short "node-xxxxxxxx" ID and the full SHA-256 hex digest.
func hashAddr(addr string) (string, string) {
	sum := sha256.Sum256([]byte(addr))
	full := hex.EncodeToString(sum[:])
	return "node-" + full[:8], full
}

// Candidates returns the highest-scoring peers at or above the configured
// minimum score, sorted by score descending and capped at the configured
// limit.
func (t *Tracker) Candidates() []model.NodeCandidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	type scored struct {
		score float64
		addr  string
		stats *peerStats
	}
	var hits []scored
	for addr, stats := range t.peers {
		if s := t.score(stats); s >= t.minScore {
			hits = append(hits, scored{score: s, addr: addr, stats: stats})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].addr < hits[j].addr
	})
	if len(hits) > t.limit {
		hits = hits[:t.limit]
	}

	candidates := make([]model.NodeCandidate, 0, len(hits))
	for _, h := range hits {
		id, fullHash := hashAddr(h.addr)
		candidates = append(candidates, model.NodeCandidate{
			ID:          id,
			IPHash:      fullHash,
			Score:       math.Round(h.score*1000) / 1000,
			LifetimeSec: int64(math.Round(h.stats.lastSeen.Sub(h.stats.firstSeen).Seconds())),
			WindowsSeen: h.stats.windows,
			InBytes:     h.stats.inBytes,
			OutBytes:    h.stats.outBytes,
			InPackets:   h.stats.inPackets,
			OutPackets:  h.stats.outPackets,
		})
	}
	return candidates
}
