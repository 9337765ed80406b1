package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"syscall"
	"time"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

// Capturer invokes the external capture tool for one bounded window and
// reduces its output through the Aggregator. It implements model.Capturer.
type Capturer struct {
	tool   string
	iface  string
	filter string
	grace  time.Duration
	agg    *Aggregator
}

// New creates a Capturer from the capture configuration. localIPs are the
// host addresses used for direction classification.
func New(cfg config.CaptureConfig, localIPs []string) (*Capturer, error) {
	grace, err := time.ParseDuration(cfg.Grace)
	if err != nil {
		return nil, fmt.Errorf("invalid capture grace: %w", err)
	}
	filter := cfg.Filter
	if filter == "" {
		filter = fmt.Sprintf("udp port %d", cfg.Port)
	}
	return &Capturer{
		tool:   cfg.Tool,
		iface:  cfg.Interface,
		filter: filter,
		grace:  grace,
		agg:    NewAggregator(cfg.TopTalkers, localIPs),
	}, nil
}

// CaptureWindow runs the capture tool for duration seconds with a hard
// deadline of duration+grace. A process that exceeds the deadline is killed
// and reported as a timeout; no partial window is ever returned.
func (c *Capturer) CaptureWindow(ctx context.Context, duration time.Duration) (*model.CaptureResult, error) {
	if _, err := exec.LookPath(c.tool); err != nil {
		return nil, &model.CaptureError{Kind: model.CaptureToolUnavailable, Detail: c.tool, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, duration+c.grace)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.tool,
		"-i", c.iface,
		"-f", c.filter,
		"-a", fmt.Sprintf("duration:%d", int(duration.Seconds())),
		"-T", "fields",
		"-e", "ip.src",
		"-e", "ip.dst",
		"-e", "frame.len",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The capture tool can fork (tshark runs a dumpcap child) and a child
	// that inherits stdout would keep Wait blocked long after the tool
	// itself is killed. Kill the whole process group on deadline, and cap
	// how long Wait may linger on unclosed pipes.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == syscall.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = c.grace

	if err := cmd.Start(); err != nil {
		return nil, &model.CaptureError{Kind: model.CaptureToolUnavailable, Detail: c.tool, Err: err}
	}
	err := cmd.Wait()
	// ErrWaitDelay means the tool exited cleanly but something still held
	// its pipes; the collected output is complete.
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}

	// A cancelled parent context means shutdown: discard the window.
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &model.CaptureError{Kind: model.CaptureTimeout, Detail: fmt.Sprintf("killed after %s", duration+c.grace)}
	}
	if err != nil {
		return nil, &model.CaptureError{
			Kind:   model.CaptureToolUnavailable,
			Detail: fmt.Sprintf("%s exited: %s", c.tool, firstLine(stderr.String())),
			Err:    err,
		}
	}

	packets, skipped, perr := ParseOutput(&stdout)
	if perr != nil {
		return nil, &model.CaptureError{Kind: model.CaptureParse, Detail: "reading tool output", Err: perr}
	}
	if skipped > 0 {
		log.Printf("Capture window: skipped %d malformed output lines", skipped)
	}

	result := c.agg.Aggregate(time.Now(), duration, packets)
	result.SkippedLines = skipped
	return result, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
