package sysinfo

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"DHTSpectra/internal/model"
)

// ProcessInfo inspects the first process matching name and returns its
// running state, CPU percent, resident memory and uptime. A missing process
// is not an error: Running is false and the readings are sentinels. Readings
// that fail on a running process are degraded individually.
func ProcessInfo(ctx context.Context, name string) (*model.ProcessInfo, error) {
	info := &model.ProcessInfo{
		CPUPercent: model.MetricUnavailable,
		MemRSSMB:   model.MetricUnavailable,
		UptimeSec:  model.MetricUnavailable,
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, &model.SamplerError{Metric: "process", Err: err}
	}

	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil || pname != name {
			continue
		}
		info.Running = true

		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			info.CPUPercent = pct
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.MemRSSMB = float64(mi.RSS) / bytesPerMB
		}
		if created, err := p.CreateTimeWithContext(ctx); err == nil {
			info.UptimeSec = time.Since(time.UnixMilli(created)).Seconds()
		}
		// First match wins.
		break
	}

	return info, nil
}
