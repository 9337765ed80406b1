package model

import (
	"time"
)

// MetricUnavailable is the sentinel stored in a Sample field whose metric
// source could not be read. Valid readings are always >= 0.
const MetricUnavailable float64 = -1

// Sample is one host-metric reading. It is created once per tick by the
// scheduler and never mutated afterwards.
type Sample struct {
	Timestamp   time.Time `json:"ts"`
	CPUPercent  float64   `json:"cpu_usage"`
	MemPercent  float64   `json:"mem_used_pct"`
	DiskPercent float64   `json:"disk_used_pct"`
	MemUsedMB   float64   `json:"mem_used_mb"`
	MemTotalMB  float64   `json:"mem_total_mb"`
	DiskUsedGB  float64   `json:"disk_used_gb"`
	DiskFreeGB  float64   `json:"disk_free_gb"`
}

// TalkerStat is the per-peer traffic volume used in a window's top-talker
// list.
type TalkerStat struct {
	Addr    string `json:"ip"`
	Bytes   uint64 `json:"bytes"`
	Packets uint64 `json:"packets"`
}

// TrafficWindow summarizes one fixed-duration capture window. Timestamp is
// the window end in UTC. Immutable once created.
type TrafficWindow struct {
	Timestamp    time.Time    `json:"ts"`
	DurationSec  int          `json:"duration_seconds"`
	UniquePeers  int          `json:"unique_peers"`
	TotalBytes   uint64       `json:"total_bytes"`
	TotalPackets uint64       `json:"total_packets"`
	InBytes      uint64       `json:"in_bytes"`
	OutBytes     uint64       `json:"out_bytes"`
	InPackets    uint64       `json:"in_packets"`
	OutPackets   uint64       `json:"out_packets"`
	NewPeers     int          `json:"new_peers"`
	ExpiredPeers int          `json:"expired_peers"`
	TopTalkers   []TalkerStat `json:"top_peers"`
}

// PeerTraffic holds directional totals for a single remote address within one
// window. Remote means the non-local endpoint of the classified packets.
type PeerTraffic struct {
	InBytes    uint64
	OutBytes   uint64
	InPackets  uint64
	OutPackets uint64
}

// CaptureResult is the full outcome of one capture window: the public
// TrafficWindow plus the per-remote directional detail consumed by the node
// tracker.
type CaptureResult struct {
	Window  *TrafficWindow
	Remotes map[string]PeerTraffic
	// SkippedLines counts capture-tool output lines rejected by the parser.
	SkippedLines int
}

// RecordKind tags the two record types held by the store.
type RecordKind string

const (
	KindSample RecordKind = "sample"
	KindWindow RecordKind = "window"
)

// StoredRecord is the tagged union persisted by the store. Exactly one of
// Sample and Window is set, matching Kind.
type StoredRecord struct {
	ID     int64          `json:"id"`
	Kind   RecordKind     `json:"kind"`
	Time   time.Time      `json:"ts"`
	Sample *Sample        `json:"sample,omitempty"`
	Window *TrafficWindow `json:"window,omitempty"`
}

// SummaryStats is the store's introspection result. Timestamp pointers are
// nil while the store is empty.
type SummaryStats struct {
	SampleCount    int64      `json:"sample_count"`
	WindowCount    int64      `json:"window_count"`
	EarliestTS     *time.Time `json:"earliest_ts"`
	LatestTS       *time.Time `json:"latest_ts"`
	LatestSampleTS *time.Time `json:"latest_sample_ts"`
	LatestWindowTS *time.Time `json:"latest_window_ts"`
	StorageBytes   int64      `json:"storage_bytes"`
}

// ProcessInfo describes the watched process for the health endpoint.
// CPUPercent, MemRSSMB and UptimeSec are MetricUnavailable when the process
// is running but the reading failed.
type ProcessInfo struct {
	Running    bool    `json:"running"`
	CPUPercent float64 `json:"cpu_pct"`
	MemRSSMB   float64 `json:"mem_mb"`
	UptimeSec  float64 `json:"uptime_seconds"`
}

// NodeCandidate is one anonymized tracker entry: a remote peer that behaves
// like a long-lived DHT node. Raw addresses never leave the tracker; ID is
// "node-" plus the first 8 hex chars of the address SHA-256, IPHash the full
// digest.
type NodeCandidate struct {
	ID          string  `json:"id"`
	IPHash      string  `json:"ip_hash"`
	Score       float64 `json:"score"`
	LifetimeSec int64   `json:"lifetime_sec"`
	WindowsSeen int     `json:"windows_seen"`
	InBytes     uint64  `json:"in_bytes"`
	OutBytes    uint64  `json:"out_bytes"`
	InPackets   uint64  `json:"in_packets"`
	OutPackets  uint64  `json:"out_packets"`
}

// Health is the /health payload. Status is "cold" before the first window,
// "ok" while the last window saw packets and "idle" otherwise. Pointer fields
// are nil while cold.
type Health struct {
	Status          string       `json:"status"`
	Points          int64        `json:"points"`
	LastTS          *time.Time   `json:"last_ts"`
	LastPackets     *uint64      `json:"last_packets"`
	LastBytes       *uint64      `json:"last_bytes"`
	AgeSeconds      *float64     `json:"age_seconds"`
	IntervalSeconds int          `json:"interval_seconds"`
	ProcessName     string       `json:"process_name,omitempty"`
	Process         *ProcessInfo `json:"process,omitempty"`
}
