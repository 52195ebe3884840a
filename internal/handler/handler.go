// Package handler implements the Handler Adapter (§4.3): it classifies
// a user handler once at startup into a tagged Kind, then invokes it
// uniformly, converting panics/errors into {error: "..."} results and
// never letting a handler failure unwind past the adapter. This
// replaces the source SDK's per-call duck-typing (is_generator /
// inspect.isasyncgenfunction) with the static classification spec.md's
// §9 redesign note calls for.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/runpod-worker/serverless-worker/internal/models"
	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

// Kind tags which shape a Handler was built from.
type Kind int

const (
	// Plain handlers return a single output (or error) per job.
	Plain Kind = iota
	// Generator handlers stream zero or more chunks per job.
	Generator
)

// PlainFunc computes a single output for one job's input.
type PlainFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// GeneratorFunc streams chunks for one job's input onto the returned
// channel. Implementations must respect ctx cancellation: the adapter
// stops reading (and cancels ctx) once it sees an error chunk or once
// the channel closes.
type GeneratorFunc func(ctx context.Context, input json.RawMessage) (<-chan models.JobResult, error)

// Config carries the per-handler settings the scaler consults after
// invocation: whether a generator's chunks should also be aggregated
// into a final send_result, and whether this job should trigger worker
// refresh.
type Config struct {
	ReturnAggregateStream bool
	RefreshWorker         bool
}

// Handler is the tagged variant produced by exactly one of NewPlain or
// NewGenerator, classified once and dispatched by Kind thereafter —
// never re-inspected per call.
type Handler struct {
	Kind      Kind
	Config    Config
	plainFn   PlainFunc
	generator GeneratorFunc
}

// NewPlain builds a Handler around a single-shot function.
func NewPlain(fn PlainFunc, cfg Config) *Handler {
	return &Handler{Kind: Plain, Config: cfg, plainFn: fn}
}

// NewGenerator builds a Handler around a streaming function.
func NewGenerator(fn GeneratorFunc, cfg Config) *Handler {
	return &Handler{Kind: Generator, Config: cfg, generator: fn}
}

// IsStream reports whether invoking this handler produces a stream of
// chunks (true) or a single result (false) — the is_stream flag the Job
// Transport's send_result call needs.
func (h *Handler) IsStream() bool {
	return h.Kind == Generator
}

// Adapter invokes a Handler and produces a JobResult, optionally
// forwarding intermediate chunks to onChunk as they are produced.
type Adapter struct {
	handler *Handler
}

// NewAdapter binds an Adapter to one classified Handler.
func NewAdapter(h *Handler) *Adapter {
	return &Adapter{handler: h}
}

// HandlerIsStream reports whether the bound handler streams chunks.
func (a *Adapter) HandlerIsStream() bool {
	return a.handler.IsStream()
}

// RefreshWorker reports whether the bound handler's config requests
// worker refresh after each job.
func (a *Adapter) RefreshWorker() bool {
	return a.handler.Config.RefreshWorker
}

// Invoke runs the handler against job. For a Plain handler, onChunk is
// never called. For a Generator handler, onChunk is called once per
// yielded chunk, in yield order, and stops being called as soon as a
// chunk carries an error (that chunk becomes the final result instead,
// and any further chunks are discarded per §4.3).
func (a *Adapter) Invoke(ctx context.Context, job *workerstate.Job, onChunk func(models.JobResult)) (result models.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.JobResult{Error: fmt.Sprintf("%v", r)}
		}
	}()

	switch a.handler.Kind {
	case Plain:
		out, err := a.handler.plainFn(ctx, job.Input)
		if err != nil {
			return models.JobResult{Error: err.Error()}
		}
		return models.JobResult{Output: out}

	case Generator:
		return a.runGenerator(ctx, job, onChunk)

	default:
		return models.JobResult{Error: "handler has an unrecognized kind"}
	}
}

func (a *Adapter) runGenerator(ctx context.Context, job *workerstate.Job, onChunk func(models.JobResult)) models.JobResult {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := a.handler.generator(genCtx, job.Input)
	if err != nil {
		return models.JobResult{Error: err.Error()}
	}

	aggregate := make([]json.RawMessage, 0)
	for chunk := range chunks {
		if chunk.IsError() {
			// An error chunk terminates the stream: it replaces the
			// result and everything still pending on the channel is
			// discarded. Cancelling genCtx lets a well-behaved
			// generator stop producing promptly.
			return chunk
		}

		if onChunk != nil {
			onChunk(chunk)
		}

		if a.handler.Config.ReturnAggregateStream {
			aggregate = append(aggregate, chunk.Output)
		}
	}

	if !a.handler.Config.ReturnAggregateStream {
		aggregate = []json.RawMessage{}
	}

	payload, marshalErr := json.Marshal(aggregate)
	if marshalErr != nil {
		return models.JobResult{Error: marshalErr.Error()}
	}

	return models.JobResult{Output: payload}
}
