package model

import (
	"context"
	"time"
)

// Capturer runs one bounded capture window against the external capture tool
// and reduces its output to per-window statistics.
type Capturer interface {
	// CaptureWindow blocks for up to duration plus the configured grace
	// period. On success the result carries the TrafficWindow and the
	// per-remote directional detail; on failure it returns a *CaptureError
	// and no partial result.
	CaptureWindow(ctx context.Context, duration time.Duration) (*CaptureResult, error)
}
