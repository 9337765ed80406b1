package model

import "fmt"

// CaptureErrorKind classifies how a capture window failed.
type CaptureErrorKind string

const (
	// CaptureToolUnavailable means the external capture binary is missing or
	// failed to start.
	CaptureToolUnavailable CaptureErrorKind = "tool_unavailable"
	// CaptureTimeout means the capture process outlived duration+grace and
	// was killed. The window is discarded.
	CaptureTimeout CaptureErrorKind = "timeout"
	// CaptureParse marks a single malformed output line. Parse errors are
	// per-line and never abort the window.
	CaptureParse CaptureErrorKind = "parse"
)

// CaptureError describes a capture failure. ToolUnavailable and Timeout abort
// the window for that tick; Parse is attached to individual skipped lines.
type CaptureError struct {
	Kind   CaptureErrorKind
	Detail string
	Err    error
}

func (e *CaptureError) Error() string {
	msg := fmt.Sprintf("capture: %s", e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CaptureError) Unwrap() error { return e.Err }

// SamplerError reports one unreadable host metric. The sampler degrades the
// affected Sample field to MetricUnavailable instead of failing the tick.
type SamplerError struct {
	Metric string
	Err    error
}

func (e *SamplerError) Error() string {
	return fmt.Sprintf("sampler: metric %s unavailable: %v", e.Metric, e.Err)
}

func (e *SamplerError) Unwrap() error { return e.Err }

// StoreErrorOp classifies store failures by the operation that failed.
type StoreErrorOp string

const (
	StoreOpWrite   StoreErrorOp = "write"
	StoreOpRead    StoreErrorOp = "read"
	StoreOpCorrupt StoreErrorOp = "corrupt"
)

// StoreError wraps a storage failure. Write and corruption errors are fatal
// to the scheduler; read errors surface to the API caller only.
type StoreError struct {
	Op  StoreErrorOp
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Fatal reports whether the failure must terminate the process. Data
// durability takes priority over availability on the write path.
func (e *StoreError) Fatal() bool { return e.Op != StoreOpRead }
