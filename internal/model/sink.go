package model

// Sink receives completed records for delivery outside the process, e.g. a
// message bus. Sinks are best-effort: a failed publish never blocks or fails
// the tick that produced the record.
type Sink interface {
	PublishSample(s *Sample) error
	PublishWindow(w *TrafficWindow) error
	Close()
}
