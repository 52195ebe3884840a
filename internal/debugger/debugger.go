// Package debugger computes the rp_debugger payload §3 describes:
// ready_delay_ms, the milliseconds between a fixed reference timestamp
// captured at process start and a job's own start counter.
package debugger

import (
	"encoding/json"
	"time"

	"github.com/runpod-worker/serverless-worker/internal/models"
)

// RefCountZero is the reference timestamp captured once at process
// start, in the role of worker_state.py's REF_COUNT_ZERO. It is a
// wall-clock reading in Unix seconds, not a monotonic one, so a clock
// step between process start and a job's start shifts ready_delay_ms.
var RefCountZero = nowSeconds()

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Collect builds the DebuggerInfo for a job whose StartCounter has
// already been stamped, per §3's "ready_delay_ms computed as the
// milliseconds between a fixed reference timestamp ... and the
// handler's start_counter".
func Collect(startCounter float64) *models.DebuggerInfo {
	delay := (startCounter - RefCountZero) * 1000
	return &models.DebuggerInfo{ReadyDelayMS: int64(delay)}
}

// Attach nests info under the output's own rp_debugger key, matching
// §3's output.rp_debugger shape (the original's job_result["output"]
// ["rp_debugger"]), rather than hanging it off the result root. If
// output does not already decode as a JSON object, its value is
// preserved under an "output" key so the debugger payload still has an
// object to nest into.
func Attach(output json.RawMessage, info *models.DebuggerInfo) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}

	if len(output) > 0 {
		if err := json.Unmarshal(output, &fields); err != nil {
			fields = map[string]json.RawMessage{"output": output}
		}
	}

	debugBytes, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	fields["rp_debugger"] = debugBytes

	return json.Marshal(fields)
}
