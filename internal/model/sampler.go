package model

import "context"

// SystemSampler reads host utilization metrics for one tick.
type SystemSampler interface {
	// Sample always returns a Sample when err is nil; unreadable metrics are
	// degraded to MetricUnavailable rather than failing the call.
	Sample(ctx context.Context) (*Sample, error)
}
