package tracker

import (
	"strings"
	"testing"
	"time"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := New(config.TrackerConfig{
		MinWindows:  20,
		MinLifetime: "10m",
		MinBytes:    200_000,
		MinPackets:  500,
		MinScore:    0.2,
		Limit:       20,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tr
}

// observeSteadyPeer feeds windows of healthy bidirectional traffic for one
// address, spaced one minute apart.
func observeSteadyPeer(tr *Tracker, addr string, windows int) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < windows; i++ {
		tr.Observe(base.Add(time.Duration(i)*time.Minute), map[string]model.PeerTraffic{
			addr: {InBytes: 20_000, OutBytes: 20_000, InPackets: 50, OutPackets: 50},
		})
	}
}

func TestSingleWindowPeerScoresZero(t *testing.T) {
	tr := newTestTracker(t)
	tr.Observe(time.Now(), map[string]model.PeerTraffic{
		"10.0.0.1": {InBytes: 1 << 20, OutBytes: 1 << 20, InPackets: 1000, OutPackets: 1000},
	})
	if got := tr.Candidates(); len(got) != 0 {
		t.Errorf("Peer seen in one window must not be a candidate, got %d", len(got))
	}
}

func TestSteadyBidirectionalPeerBecomesCandidate(t *testing.T) {
	tr := newTestTracker(t)
	observeSteadyPeer(tr, "10.0.0.1", 25)

	candidates := tr.Candidates()
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.Score < 0.2 || c.Score > 1 {
		t.Errorf("Score out of expected range: %f", c.Score)
	}
	if c.WindowsSeen != 25 {
		t.Errorf("Expected 25 windows seen, got %d", c.WindowsSeen)
	}
	if c.LifetimeSec != 24*60 {
		t.Errorf("Expected 1440s lifetime, got %d", c.LifetimeSec)
	}
}

func TestCandidatesNeverExposeRawAddress(t *testing.T) {
	tr := newTestTracker(t)
	observeSteadyPeer(tr, "203.0.113.77", 25)

	candidates := tr.Candidates()
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if !strings.HasPrefix(c.ID, "node-") || len(c.ID) != len("node-")+8 {
		t.Errorf("Unexpected candidate ID format: %q", c.ID)
	}
	if len(c.IPHash) != 64 {
		t.Errorf("Expected full SHA-256 hex, got %d chars", len(c.IPHash))
	}
	if strings.Contains(c.ID, "203.0.113.77") || strings.Contains(c.IPHash, "203.0.113.77") {
		t.Errorf("Raw address leaked into candidate: %+v", c)
	}
	// Stable across calls
	again := tr.Candidates()
	if again[0].ID != c.ID || again[0].IPHash != c.IPHash {
		t.Errorf("Hashed IDs must be stable")
	}
}

func TestOneDirectionOnlyPeerIsPenalized(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		tr.Observe(base.Add(time.Duration(i)*time.Minute), map[string]model.PeerTraffic{
			"10.0.0.2": {InBytes: 20_000, InPackets: 50},
		})
	}
	// 0.2x multiplier keeps even a long-lived one-way peer below the cutoff.
	if got := tr.Candidates(); len(got) != 0 {
		t.Errorf("One-direction peer should not be a candidate, got %+v", got)
	}
}

func TestCandidatesSortedAndCapped(t *testing.T) {
	tr := newTestTracker(t)
	tr.limit = 2

	observeSteadyPeer(tr, "10.0.0.1", 25)
	observeSteadyPeer(tr, "10.0.0.2", 10)
	observeSteadyPeer(tr, "10.0.0.3", 5)

	candidates := tr.Candidates()
	if len(candidates) != 2 {
		t.Fatalf("Expected limit of 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Score < candidates[1].Score {
		t.Errorf("Candidates not sorted by score descending: %f < %f",
			candidates[0].Score, candidates[1].Score)
	}
	if candidates[0].WindowsSeen != 25 {
		t.Errorf("Expected the longest-seen peer first, got %+v", candidates[0])
	}
}

func TestScoreAlwaysWithinBounds(t *testing.T) {
	tr := newTestTracker(t)
	base := time.Now()
	// Pathologically large traffic must still clamp to [0, 1].
	for i := 0; i < 1000; i++ {
		tr.Observe(base.Add(time.Duration(i)*time.Minute), map[string]model.PeerTraffic{
			"10.0.0.9": {InBytes: 1 << 40, OutBytes: 1 << 40, InPackets: 1 << 30, OutPackets: 1 << 30},
		})
	}
	candidates := tr.Candidates()
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	if s := candidates[0].Score; s < 0 || s > 1 {
		t.Errorf("Score out of [0,1]: %f", s)
	}
}
