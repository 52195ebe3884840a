// Package workerstate holds the process-wide job registries the rest of
// the worker binds against: JobsQueue (the acquisition/dispatch handoff)
// and JobsProgress (the in-flight set Heartbeat reports). Both are
// singletons by design — every construction yields the same instance —
// so decoupled components see one shared registry without dependency
// injection, while the mutable state itself stays behind this package's
// API instead of a bare global.
package workerstate

import "encoding/json"

// Job is a unit of work acquired from the control plane. Two jobs are
// equal iff their IDs match; a Job is immutable once acquired.
type Job struct {
	ID      string          `json:"id"`
	Input   json.RawMessage `json:"input,omitempty"`
	Webhook string          `json:"webhook,omitempty"`

	// Extra carries any additional control-plane fields verbatim so the
	// handler can read them, without the core needing to know their shape.
	Extra map[string]json.RawMessage `json:"-"`

	// StartCounter is a wall-clock timestamp in Unix seconds (not
	// monotonic) stamped when the job starts running, used only to
	// compute ready_delay_ms for the debugger collaborator.
	StartCounter float64 `json:"-"`
}

// Equal reports whether two jobs share an id. A nil Job is never equal
// to anything, including another nil Job, matching Python's instance
// check in worker_state.py's Job.__eq__.
func (j *Job) Equal(other *Job) bool {
	if j == nil || other == nil {
		return false
	}
	return j.ID == other.ID
}

// String returns the job id, mirroring Job.__str__ in the source SDK.
func (j *Job) String() string {
	if j == nil {
		return ""
	}
	return j.ID
}

// UnmarshalJSON preserves unrecognized fields into Extra so the handler
// can still read them, per spec.md's "additional fields are preserved
// verbatim" invariant.
func (j *Job) UnmarshalJSON(data []byte) error {
	type alias Job
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "id")
	delete(raw, "input")
	delete(raw, "webhook")

	*j = Job(a)
	if len(raw) > 0 {
		j.Extra = raw
	}
	return nil
}
