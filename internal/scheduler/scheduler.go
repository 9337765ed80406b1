package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
	"DHTSpectra/internal/observability"
	"DHTSpectra/internal/tracker"
)

// Scheduler drives both samplers on a shared timer and is the store's single
// writer. A tick runs the capture window and the system sample concurrently,
// then appends whatever succeeded. Scheduling is at-least-interval: the next
// tick starts interval minus elapsed after the previous tick's work, so a
// slow capture stretches the period rather than piling up ticks.
type Scheduler struct {
	store    model.Store
	sampler  model.SystemSampler
	capturer model.Capturer
	tracker  *tracker.Tracker
	sinks    []model.Sink
	metrics  *observability.Metrics

	interval  time.Duration
	window    time.Duration
	retention time.Duration
}

// New creates a Scheduler. tracker, sinks and metrics are optional.
func New(cfg *config.Config, st model.Store, sampler model.SystemSampler, capturer model.Capturer,
	tr *tracker.Tracker, sinks []model.Sink, metrics *observability.Metrics) (*Scheduler, error) {

	interval, err := time.ParseDuration(cfg.Scheduler.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler interval: %w", err)
	}
	window, err := time.ParseDuration(cfg.Capture.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid capture window: %w", err)
	}
	var retention time.Duration
	if cfg.Store.Retention != "" {
		retention, err = time.ParseDuration(cfg.Store.Retention)
		if err != nil {
			return nil, fmt.Errorf("invalid store retention: %w", err)
		}
	}

	return &Scheduler{
		store:     st,
		sampler:   sampler,
		capturer:  capturer,
		tracker:   tr,
		sinks:     sinks,
		metrics:   metrics,
		interval:  interval,
		window:    window,
		retention: retention,
	}, nil
}

// Run executes ticks until the context is cancelled. It returns nil on
// cancellation and an error only for fatal store failures: losing the
// capture tool or a metric source skips records, losing the store ends the
// process.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Scheduler started: interval %s, capture window %s", s.interval, s.window)
	for {
		start := time.Now()
		if err := s.tick(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			log.Println("Scheduler stopped.")
			return nil
		}

		wait := s.interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped.")
			return nil
		case <-time.After(wait):
		}
	}
}

type captureOutcome struct {
	result *model.CaptureResult
	err    error
}

func (s *Scheduler) tick(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.Ticks.Inc()
	}

	// The capture window blocks for up to window+grace; the system sample
	// runs concurrently so host metrics are never serialized behind it.
	captureCh := make(chan captureOutcome, 1)
	captureStart := time.Now()
	go func() {
		result, err := s.capturer.CaptureWindow(ctx, s.window)
		captureCh <- captureOutcome{result: result, err: err}
	}()

	sample, sampleErr := s.sampler.Sample(ctx)
	capture := <-captureCh
	if s.metrics != nil {
		s.metrics.ObserveCapture(captureStart)
	}

	// A cancelled tick writes nothing: windows are discarded, not partially
	// persisted.
	if ctx.Err() != nil {
		return nil
	}

	// Sample first, then window. A failed sampler skips its record only; the
	// next tick is the retry.
	if sampleErr != nil {
		log.Printf("Tick: system sample failed: %v", sampleErr)
	} else {
		if err := s.append(&model.StoredRecord{Kind: model.KindSample, Time: sample.Timestamp, Sample: sample}); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.LastSampleTS.Set(float64(sample.Timestamp.Unix()))
		}
		s.publish(func(sink model.Sink) error { return sink.PublishSample(sample) })
	}

	if capture.err != nil {
		log.Printf("Tick: capture window failed: %v", capture.err)
		if s.metrics != nil {
			s.metrics.CaptureFailures.WithLabelValues(failureReason(capture.err)).Inc()
		}
	} else {
		window := capture.result.Window
		if err := s.append(&model.StoredRecord{Kind: model.KindWindow, Time: window.Timestamp, Window: window}); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.LastWindowTS.Set(float64(window.Timestamp.Unix()))
			s.metrics.LastUniquePeers.Set(float64(window.UniquePeers))
			if capture.result.SkippedLines > 0 {
				s.metrics.ParseSkipped.Add(float64(capture.result.SkippedLines))
			}
		}
		if s.tracker != nil {
			s.tracker.Observe(window.Timestamp, capture.result.Remotes)
		}
		s.publish(func(sink model.Sink) error { return sink.PublishWindow(window) })
		log.Printf("Tick: window stored: %d unique peers, %d packets, %d bytes (in %d/%d, out %d/%d, churn +%d/-%d)",
			window.UniquePeers, window.TotalPackets, window.TotalBytes,
			window.InBytes, window.InPackets, window.OutBytes, window.OutPackets,
			window.NewPeers, window.ExpiredPeers)
	}

	s.pruneIfDue()
	return nil
}

// append writes one record and classifies the failure: write and corruption
// errors are fatal and propagate, anything else is logged and skipped.
func (s *Scheduler) append(rec *model.StoredRecord) error {
	err := s.store.Append(rec)
	if err == nil {
		if s.metrics != nil {
			s.metrics.Appends.WithLabelValues(string(rec.Kind)).Inc()
		}
		return nil
	}
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) && storeErr.Fatal() {
		return fmt.Errorf("fatal store failure: %w", err)
	}
	log.Printf("Tick: append %s failed: %v", rec.Kind, err)
	return nil
}

// publish delivers a record to all sinks, best effort.
func (s *Scheduler) publish(send func(model.Sink) error) {
	for _, sink := range s.sinks {
		if err := send(sink); err != nil {
			log.Printf("Tick: export sink failed: %v", err)
		}
	}
}

// pruneIfDue applies the time-based retention horizon. Runs on the writer
// goroutine like every other mutation.
func (s *Scheduler) pruneIfDue() {
	if s.retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.store.Prune(cutoff)
	if err != nil {
		log.Printf("Tick: retention prune failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Tick: retention pruned %d rows older than %s", removed, cutoff.Format(time.RFC3339))
	}
}

func failureReason(err error) string {
	var capErr *model.CaptureError
	if errors.As(err, &capErr) {
		return string(capErr.Kind)
	}
	return "other"
}
