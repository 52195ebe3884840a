package scaler

import (
	"context"

	"github.com/runpod-worker/serverless-worker/internal/resourcemonitor"
)

// ConcurrencyModifier computes the next concurrency target from the
// current one. Per §4.4.1 it must return an integer ≥ 1; the scaler
// clamps anything lower.
type ConcurrencyModifier func(current int) int

// DefaultConcurrencyModifier is the identity modifier used when the
// caller supplies none, matching _default_concurrency_modifier in
// rp_scale.py.
func DefaultConcurrencyModifier(current int) int {
	return current
}

// LoadAwareConcurrencyModifier builds a modifier backed by
// resourcemonitor: it halves the requested concurrency (never below 1)
// whenever the host is busy (CPU > 80% or RAM > 90%), and otherwise
// leaves it unchanged. This is one concrete implementation of the
// pluggable modifier §4.4 describes — not the only legal one.
func LoadAwareConcurrencyModifier(monitor *resourcemonitor.Monitor) ConcurrencyModifier {
	return func(current int) int {
		sample, err := monitor.Sample(context.Background())
		if err != nil || !sample.IsBusy {
			return current
		}
		if current <= 1 {
			return 1
		}
		return current / 2
	}
}

func clampConcurrency(requested int) int {
	if requested < 1 {
		return 1
	}
	return requested
}
