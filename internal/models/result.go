// Package models holds the wire-facing shapes the core produces and
// sends back to the control plane.
package models

import "encoding/json"

// JobResult is built by the Handler Adapter and posted back to the
// control plane by the Job Transport. Exactly one of Output or Error is
// meaningful for a terminal result; StopPod is set by the Job Scaler
// after the handler returns, never by the handler itself. When debug
// collection is enabled, the scaler nests an rp_debugger payload inside
// Output itself (output.rp_debugger, per §3) rather than hanging it off
// the result root — see debugger.Attach.
type JobResult struct {
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`

	// StopPod requests worker refresh: set when the handler's config
	// asked for refresh_worker.
	StopPod bool `json:"stopPod,omitempty"`

	// Status is read, not written, by the core: the local-dev sentinel
	// in the Job Transport checks it for "IN_PROGRESS" before logging a
	// finalization marker.
	Status string `json:"status,omitempty"`
}

// DebuggerInfo is the ready_delay_ms payload attached by the scaler when
// debug collection is enabled, computed from the process-start reference
// counter and the job's own start counter.
type DebuggerInfo struct {
	ReadyDelayMS int64 `json:"ready_delay_ms"`
}

// IsError reports whether this result represents a handler/adapter
// failure rather than a successful output.
func (r JobResult) IsError() bool {
	return r.Error != ""
}
