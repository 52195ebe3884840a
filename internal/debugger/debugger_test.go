package debugger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runpod-worker/serverless-worker/internal/models"
)

func TestCollectComputesReadyDelayFromReferenceZero(t *testing.T) {
	startCounter := RefCountZero + 0.25 // 250ms after process start

	info := Collect(startCounter)

	assert.InDelta(t, 250, info.ReadyDelayMS, 5)
}

func TestCollectHandlesStartBeforeReference(t *testing.T) {
	startCounter := RefCountZero - 0.1

	info := Collect(startCounter)

	assert.Less(t, info.ReadyDelayMS, int64(0))
}

func TestAttachNestsDebuggerInsideObjectOutput(t *testing.T) {
	output := json.RawMessage(`{"result":"ok"}`)

	merged, err := Attach(output, &models.DebuggerInfo{ReadyDelayMS: 42})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(merged, &decoded))

	assert.JSONEq(t, `"ok"`, string(decoded["result"]))
	assert.JSONEq(t, `{"ready_delay_ms":42}`, string(decoded["rp_debugger"]))
}

func TestAttachWrapsNonObjectOutput(t *testing.T) {
	output := json.RawMessage(`[1,2,3]`)

	merged, err := Attach(output, &models.DebuggerInfo{ReadyDelayMS: 7})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(merged, &decoded))

	assert.JSONEq(t, `[1,2,3]`, string(decoded["output"]))
	assert.JSONEq(t, `{"ready_delay_ms":7}`, string(decoded["rp_debugger"]))
}

func TestAttachHandlesEmptyOutput(t *testing.T) {
	merged, err := Attach(nil, &models.DebuggerInfo{ReadyDelayMS: 1})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(merged, &decoded))
	assert.JSONEq(t, `{"ready_delay_ms":1}`, string(decoded["rp_debugger"]))
}
