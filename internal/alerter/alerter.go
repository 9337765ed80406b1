package alerter

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"DHTSpectra/internal/ai"
	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

// Alerter periodically evaluates the store against its rules and notifies on
// state transitions: an alert fires once when its condition becomes true and
// again only after it has recovered in between.
type Alerter struct {
	store         model.Store
	notifier      model.Notifier
	analyzer      *ai.Analyzer
	checkInterval time.Duration
	staleAfter    time.Duration
	zeroWindows   int
	diskPercent   float64
	windowEvery   time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	firing map[string]bool
}

// NewAlerter creates a new Alerter instance. analyzer may be nil, disabling
// AI enrichment. windowEvery is the scheduler interval, used as the default
// staleness horizon.
func NewAlerter(cfg *config.AlerterConfig, st model.Store, notifier model.Notifier,
	analyzer *ai.Analyzer, windowEvery time.Duration) (*Alerter, error) {

	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}

	staleAfter := 3 * windowEvery
	if cfg.StaleAfter != "" {
		staleAfter, err = time.ParseDuration(cfg.StaleAfter)
		if err != nil {
			return nil, fmt.Errorf("invalid stale_after for alerter: %w", err)
		}
	}

	return &Alerter{
		store:         st,
		notifier:      notifier,
		analyzer:      analyzer,
		checkInterval: interval,
		staleAfter:    staleAfter,
		zeroWindows:   cfg.ZeroPeerWindows,
		diskPercent:   cfg.DiskPercent,
		windowEvery:   windowEvery,
		stopChan:      make(chan struct{}),
		firing:        make(map[string]bool),
	}, nil
}

// Start begins the periodic evaluation of alert rules.
func (a *Alerter) Start() {
	log.Println("Alerter started")

	a.wg.Add(1)
	defer a.wg.Done()

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.evaluate()
		case <-a.stopChan:
			return
		}
	}
}

// Stop gracefully stops the alerter's evaluation loop.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
}

// evaluate runs every rule and sends one consolidated notification for the
// rules that transitioned into the firing state.
func (a *Alerter) evaluate() {
	var triggered []string
	for name, check := range map[string]func() (bool, string){
		"capture_stale": a.checkCaptureStale,
		"zero_peers":    a.checkZeroPeers,
		"disk_usage":    a.checkDiskUsage,
	} {
		active, msg := check()
		if a.transition(name, active) && active {
			triggered = append(triggered, msg)
		}
	}

	if len(triggered) == 0 {
		return
	}
	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(triggered))

	body := "The following alerts were triggered during the last check:\n\n" +
		strings.Join(triggered, "\n\n")

	if a.analyzer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		analysis, err := a.analyzer.AnalyzeTraffic(ctx, strings.Join(triggered, "\n"))
		cancel()
		if err != nil {
			log.Printf("Failed to get AI analysis: %v", err)
		} else if analysis != "" {
			body += "\n\n--- AI Analysis ---\n" + analysis
		}
	}

	if a.notifier != nil {
		subject := fmt.Sprintf("DHTSpectra Alert Summary (%d Triggered)", len(triggered))
		if err := a.notifier.Send(subject, body); err != nil {
			log.Printf("ERROR: Failed to send alert notification: %v", err)
		} else {
			log.Println("INFO: Alert notification sent successfully.")
		}
	}
}

// transition records the rule's new state and reports whether it changed.
func (a *Alerter) transition(name string, active bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.firing[name] == active {
		return false
	}
	a.firing[name] = active
	if !active {
		log.Printf("Alert %s recovered", name)
	}
	return true
}

// checkCaptureStale fires when the newest window is older than the staleness
// horizon, which distinguishes a dead capture tool from an idle network.
func (a *Alerter) checkCaptureStale() (bool, string) {
	stats, err := a.store.SummaryStats()
	if err != nil {
		log.Printf("Alerter: summary stats read failed: %v", err)
		return false, ""
	}
	if stats.LatestWindowTS == nil {
		// No window yet; the daemon may still be warming up.
		return false, ""
	}
	age := time.Since(*stats.LatestWindowTS)
	if age <= a.staleAfter {
		return false, ""
	}
	return true, fmt.Sprintf("[capture_stale] newest traffic window is %s old (threshold %s); the capture tool may be down",
		age.Round(time.Second), a.staleAfter)
}

// checkZeroPeers fires after the configured number of consecutive windows
// with no peers while windows are still being produced.
func (a *Alerter) checkZeroPeers() (bool, string) {
	if a.zeroWindows <= 0 {
		return false, ""
	}
	windows, err := a.store.RecentWindows(a.zeroWindows)
	if err != nil {
		log.Printf("Alerter: recent windows read failed: %v", err)
		return false, ""
	}
	if len(windows) < a.zeroWindows {
		return false, ""
	}
	for _, w := range windows {
		if w.UniquePeers > 0 {
			return false, ""
		}
	}
	return true, fmt.Sprintf("[zero_peers] last %d capture windows saw no peers; the monitored node may be unreachable",
		a.zeroWindows)
}

// checkDiskUsage fires when the newest sample's disk usage exceeds the
// threshold.
func (a *Alerter) checkDiskUsage() (bool, string) {
	if a.diskPercent <= 0 {
		return false, ""
	}
	samples, err := a.store.RecentSamples(1)
	if err != nil {
		log.Printf("Alerter: recent samples read failed: %v", err)
		return false, ""
	}
	if len(samples) == 0 || samples[0].DiskPercent == model.MetricUnavailable {
		return false, ""
	}
	if samples[0].DiskPercent <= a.diskPercent {
		return false, ""
	}
	return true, fmt.Sprintf("[disk_usage] disk usage %.1f%% exceeds threshold %.1f%%; the store may soon fail to append",
		samples[0].DiskPercent, a.diskPercent)
}
