// Package resourcemonitor samples host CPU and RAM usage, grounded in
// the teacher's internal/monitor/monitor.go (same gopsutil calls, same
// busy heuristic). Repurposed from "report hardware to the
// orchestrator" into a source an optional load-aware concurrency
// modifier and the ambient metrics endpoint can read.
package resourcemonitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is a single CPU/RAM reading.
type Sample struct {
	CPUPercent float64
	RAMPercent float64
	IsBusy     bool
}

// Monitor samples host resource usage on demand.
type Monitor struct{}

// New builds a Monitor. No state to initialize: gopsutil reads live
// kernel counters on every call.
func New() *Monitor {
	return &Monitor{}
}

// Sample gathers real-time CPU and RAM usage, matching the teacher's
// busy heuristic: CPU > 80% or RAM > 90% marks the host busy.
func (m *Monitor) Sample(ctx context.Context) (Sample, error) {
	var s Sample

	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to sample memory: %w", err)
	}
	s.RAMPercent = v.UsedPercent

	cpuPct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return s, fmt.Errorf("failed to sample cpu: %w", err)
	}
	if len(cpuPct) > 0 {
		s.CPUPercent = cpuPct[0]
	}

	s.IsBusy = isBusy(s.CPUPercent, s.RAMPercent)
	return s, nil
}

// isBusy is the busy heuristic Sample applies: CPU > 80% or RAM > 90%.
func isBusy(cpuPercent, ramPercent float64) bool {
	return cpuPercent > 80.0 || ramPercent > 90.0
}
