package sysinfo

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"DHTSpectra/internal/model"
)

const bytesPerMB = 1024 * 1024
const bytesPerGB = 1024 * 1024 * 1024

// Sampler reads host CPU, memory and root-filesystem utilization. It
// implements model.SystemSampler.
type Sampler struct {
	diskPath string
}

// NewSampler creates a sampler reading disk usage for the root filesystem.
func NewSampler() *Sampler {
	return &Sampler{diskPath: "/"}
}

// Sample reads all three metric sources for one tick. An unreadable source
// degrades its fields to the MetricUnavailable sentinel and is logged; the
// remaining metrics are still recorded. The only hard failure is a cancelled
// context.
func (s *Sampler) Sample(ctx context.Context) (*model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample := &model.Sample{
		Timestamp:   time.Now().UTC(),
		CPUPercent:  model.MetricUnavailable,
		MemPercent:  model.MetricUnavailable,
		DiskPercent: model.MetricUnavailable,
		MemUsedMB:   model.MetricUnavailable,
		MemTotalMB:  model.MetricUnavailable,
		DiskUsedGB:  model.MetricUnavailable,
		DiskFreeGB:  model.MetricUnavailable,
	}

	// CPU percent since the previous call; the first call primes the counter
	// and legitimately reports 0.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		log.Printf("System sampler: %v", &model.SamplerError{Metric: "cpu", Err: err})
	} else if v, err := aggregatePercent(percents); err != nil {
		log.Printf("System sampler: %v", &model.SamplerError{Metric: "cpu", Err: err})
	} else {
		sample.CPUPercent = v
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Printf("System sampler: %v", &model.SamplerError{Metric: "memory", Err: err})
	} else {
		sample.MemPercent = vm.UsedPercent
		sample.MemUsedMB = float64(vm.Used) / bytesPerMB
		sample.MemTotalMB = float64(vm.Total) / bytesPerMB
	}

	if du, err := disk.UsageWithContext(ctx, s.diskPath); err != nil {
		log.Printf("System sampler: %v", &model.SamplerError{Metric: "disk", Err: err})
	} else {
		sample.DiskPercent = du.UsedPercent
		sample.DiskUsedGB = float64(du.Used) / bytesPerGB
		sample.DiskFreeGB = float64(du.Free) / bytesPerGB
	}

	return sample, nil
}

// aggregatePercent extracts the single whole-machine value from cpu.Percent
// output, which is empty on platforms gopsutil cannot read.
func aggregatePercent(percents []float64) (float64, error) {
	if len(percents) == 0 {
		return 0, errors.New("no aggregate cpu value reported")
	}
	return percents[0], nil
}
