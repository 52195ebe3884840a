package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runpod-worker/serverless-worker/internal/models"
	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

func TestAdapterInvokePlainHandlerSuccess(t *testing.T) {
	h := NewPlain(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"echo":true}`), nil
	}, Config{})
	a := NewAdapter(h)

	result := a.Invoke(context.Background(), &workerstate.Job{ID: "job-1"}, nil)

	assert.False(t, result.IsError())
	assert.JSONEq(t, `{"echo":true}`, string(result.Output))
	assert.False(t, a.HandlerIsStream())
}

func TestAdapterInvokePlainHandlerError(t *testing.T) {
	h := NewPlain(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("boom")
	}, Config{})
	a := NewAdapter(h)

	result := a.Invoke(context.Background(), &workerstate.Job{ID: "job-1"}, nil)

	assert.True(t, result.IsError())
	assert.Equal(t, "boom", result.Error)
}

func TestAdapterInvokeRecoversPanic(t *testing.T) {
	h := NewPlain(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		panic("handler exploded")
	}, Config{})
	a := NewAdapter(h)

	result := a.Invoke(context.Background(), &workerstate.Job{ID: "job-1"}, nil)

	assert.True(t, result.IsError())
	assert.Contains(t, result.Error, "handler exploded")
}

func TestAdapterGeneratorStreamsChunksInOrder(t *testing.T) {
	gen := func(ctx context.Context, input json.RawMessage) (<-chan models.JobResult, error) {
		ch := make(chan models.JobResult, 3)
		ch <- models.JobResult{Output: json.RawMessage(`1`)}
		ch <- models.JobResult{Output: json.RawMessage(`2`)}
		ch <- models.JobResult{Output: json.RawMessage(`3`)}
		close(ch)
		return ch, nil
	}
	h := NewGenerator(gen, Config{})
	a := NewAdapter(h)

	var seen []string
	result := a.Invoke(context.Background(), &workerstate.Job{ID: "job-1"}, func(chunk models.JobResult) {
		seen = append(seen, string(chunk.Output))
	})

	assert.True(t, a.HandlerIsStream())
	assert.False(t, result.IsError())
	assert.Equal(t, []string{"1", "2", "3"}, seen)
}

func TestAdapterGeneratorErrorChunkTerminatesStream(t *testing.T) {
	gen := func(ctx context.Context, input json.RawMessage) (<-chan models.JobResult, error) {
		ch := make(chan models.JobResult, 3)
		ch <- models.JobResult{Output: json.RawMessage(`1`)}
		ch <- models.JobResult{Error: "stream failed"}
		ch <- models.JobResult{Output: json.RawMessage(`3`)}
		close(ch)
		return ch, nil
	}
	h := NewGenerator(gen, Config{})
	a := NewAdapter(h)

	var seen []string
	result := a.Invoke(context.Background(), &workerstate.Job{ID: "job-1"}, func(chunk models.JobResult) {
		seen = append(seen, string(chunk.Output))
	})

	require.True(t, result.IsError())
	assert.Equal(t, "stream failed", result.Error)
	// only the chunk before the error was forwarded
	assert.Equal(t, []string{"1"}, seen)
}

func TestAdapterGeneratorAggregatesWhenConfigured(t *testing.T) {
	gen := func(ctx context.Context, input json.RawMessage) (<-chan models.JobResult, error) {
		ch := make(chan models.JobResult, 2)
		ch <- models.JobResult{Output: json.RawMessage(`"a"`)}
		ch <- models.JobResult{Output: json.RawMessage(`"b"`)}
		close(ch)
		return ch, nil
	}
	h := NewGenerator(gen, Config{ReturnAggregateStream: true})
	a := NewAdapter(h)

	result := a.Invoke(context.Background(), &workerstate.Job{ID: "job-1"}, nil)

	assert.False(t, result.IsError())
	assert.JSONEq(t, `["a","b"]`, string(result.Output))
}

func TestAdapterRefreshWorkerReflectsConfig(t *testing.T) {
	h := NewPlain(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	}, Config{RefreshWorker: true})
	a := NewAdapter(h)

	assert.True(t, a.RefreshWorker())
}
