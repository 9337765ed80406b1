package model

import "time"

// Store is the durable time-series store. Append is called by the scheduler
// goroutine only (single writer); all read methods are safe to call
// concurrently with an in-flight write.
type Store interface {
	// Append persists one record durably. A successful append is visible to
	// every subsequent query. Failures are *StoreError values.
	Append(rec *StoredRecord) error

	// QueryRange returns records of the requested kind with timestamps in
	// [from, to], ordered by timestamp ascending.
	QueryRange(kind RecordKind, from, to time.Time) ([]StoredRecord, error)

	// RecentSamples returns the most recent n samples in ascending order.
	RecentSamples(n int) ([]Sample, error)

	// RecentWindows returns the most recent n windows in ascending order.
	RecentWindows(n int) ([]TrafficWindow, error)

	// SummaryStats reports record counts, timestamp bounds and storage size.
	SummaryStats() (*SummaryStats, error)

	// Prune deletes records with timestamps strictly before the cutoff and
	// returns the number of rows removed. Results already returned to
	// readers are unaffected.
	Prune(olderThan time.Time) (int64, error)

	Close() error
}
