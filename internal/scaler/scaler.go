// Package scaler implements the Job Scaler (§4.4): an acquisition loop
// that pulls jobs into the shared JobsQueue up to a modifier-controlled
// concurrency target, and a dispatch loop that drains the queue into
// concurrent execution tasks. Grounded in
// original_source/runpod/serverless/modules/rp_scale.py, restructured
// per spec.md §9's redesign note as two goroutines communicating via
// JobsQueue rather than two asyncio coroutines on one event loop — the
// "equivalently two goroutines" alternative the note calls faithful.
package scaler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runpod-worker/serverless-worker/internal/debugger"
	"github.com/runpod-worker/serverless-worker/internal/handler"
	"github.com/runpod-worker/serverless-worker/internal/jobtransport"
	"github.com/runpod-worker/serverless-worker/internal/logging"
	"github.com/runpod-worker/serverless-worker/internal/metrics"
	"github.com/runpod-worker/serverless-worker/internal/models"
	"github.com/runpod-worker/serverless-worker/internal/workerstate"
)

const (
	// BackoffEmpty is how long the acquisition loop sleeps after a
	// request for jobs came back empty.
	BackoffEmpty = 10 * time.Second
	// BackoffFull is how long the acquisition loop sleeps when the
	// queue already holds as many jobs as the current concurrency
	// allows.
	BackoffFull = 5 * time.Second

	dispatchIdleSleep = 50 * time.Millisecond
)

// JobScaler owns the acquisition and dispatch loops and the worker's
// alive/dead state machine (§4.4's state machine diagram).
type JobScaler struct {
	modifier           ConcurrencyModifier
	currentConcurrency atomic.Int64

	alive    atomic.Bool
	killOnce sync.Once

	queue    *workerstate.JobsQueue
	progress *workerstate.JobsProgress

	jobs    *jobtransport.Client
	adapter *handler.Adapter

	log     *logging.Logger
	metrics *metrics.Metrics

	debugEnabled bool
}

// Option configures optional JobScaler behavior.
type Option func(*JobScaler)

// WithDebugCollection enables attaching the rp_debugger payload to
// every successful job result; error results are sent without it.
func WithDebugCollection(enabled bool) Option {
	return func(s *JobScaler) { s.debugEnabled = enabled }
}

// WithMetrics wires the ambient Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *JobScaler) { s.metrics = m }
}

// New builds a JobScaler. modifier may be nil, in which case
// DefaultConcurrencyModifier is used.
func New(jobs *jobtransport.Client, adapter *handler.Adapter, log *logging.Logger, modifier ConcurrencyModifier, opts ...Option) *JobScaler {
	if modifier == nil {
		modifier = DefaultConcurrencyModifier
	}

	s := &JobScaler{
		modifier: modifier,
		queue:    workerstate.Queue(),
		progress: workerstate.Progress(),
		jobs:     jobs,
		adapter:  adapter,
		log:      log,
	}
	s.currentConcurrency.Store(1)
	s.alive.Store(true)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAlive reports whether the worker should keep acquiring/dispatching.
func (s *JobScaler) IsAlive() bool {
	return s.alive.Load()
}

// KillWorker marks the worker dead. Idempotent: later calls are no-ops.
// It never cancels in-flight handler tasks — the dispatch loop still
// drains them (§5).
func (s *JobScaler) KillWorker() {
	s.killOnce.Do(func() {
		s.alive.Store(false)
		s.log.Info("kill_worker called, acquisition loop will exit and dispatch loop will drain")
	})
}

// AcquisitionLoop is the producer: §4.4.1. It runs until the worker
// dies or idleTimeout elapses with no jobs acquired, whichever comes
// first.
func (s *JobScaler) AcquisitionLoop(ctx context.Context, idleTimeout time.Duration) {
	idleSince := time.Now()

	for s.IsAlive() {
		if ctx.Err() != nil {
			return
		}

		next := clampConcurrency(s.modifier(int(s.currentConcurrency.Load())))
		s.currentConcurrency.Store(int64(next))
		s.log.Debug(fmt.Sprintf("concurrency set to %d", next))

		jobsNeeded := next - s.queue.Size()

		if jobsNeeded > 0 {
			acquired := s.jobs.GetJob(ctx, jobsNeeded)
			if len(acquired) > 0 {
				for _, job := range acquired {
					s.queue.Add(job)
				}
				idleSince = time.Now()
				s.log.Info(fmt.Sprintf("jobs in queue: %d", s.queue.Size()))
			} else {
				s.log.Debug("no jobs acquired")
				sleepOrDone(ctx, BackoffEmpty)
			}
		} else {
			sleepOrDone(ctx, BackoffFull)
		}

		if s.metrics != nil {
			s.metrics.SetQueueDepth(s.queue.Size())
		}

		if time.Since(idleSince) > idleTimeout {
			s.log.Info(fmt.Sprintf("idle timeout of %s exceeded, killing worker", idleTimeout))
			s.KillWorker()
			return
		}
	}
}

// DispatchLoop is the consumer: §4.4.2. It runs while the worker is
// alive or the queue is non-empty, maintaining a set of in-flight
// execution tasks bounded by the current concurrency.
func (s *JobScaler) DispatchLoop(ctx context.Context) {
	var wg sync.WaitGroup
	var active atomic.Int64
	done := make(chan struct{}, 1024)

	for s.IsAlive() || !s.queue.Empty() {
		for active.Load() < s.currentConcurrency.Load() && !s.queue.Empty() {
			job, err := s.queue.Take(ctx)
			if err != nil {
				wg.Wait()
				return
			}

			active.Add(1)
			wg.Add(1)
			go func(job *workerstate.Job) {
				defer func() {
					active.Add(-1)
					wg.Done()
					select {
					case done <- struct{}{}:
					default:
					}
				}()
				s.executeJob(ctx, job)
			}(job)
		}

		if s.metrics != nil {
			s.metrics.SetInFlight(int(active.Load()))
			s.metrics.SetQueueDepth(s.queue.Size())
		}

		if active.Load() > 0 {
			s.log.Info(fmt.Sprintf("jobs in progress: %d", active.Load()))
			select {
			case <-done:
			case <-ctx.Done():
				wg.Wait()
				return
			}
		} else if s.IsAlive() {
			time.Sleep(dispatchIdleSleep)
		}
	}

	wg.Wait()
	if s.metrics != nil {
		s.metrics.SetInFlight(0)
		s.metrics.SetQueueDepth(s.queue.Size())
	}
}

// executeJob is the per-job execution task body (§4.4.2). Any panic or
// error is logged and swallowed; task_done is always signaled exactly
// once.
func (s *JobScaler) executeJob(ctx context.Context, job *workerstate.Job) {
	defer s.queue.TaskDone()

	_ = s.progress.Add(job)
	defer func() { _ = s.progress.Remove(job) }()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Sprintf("execution task panicked: %v", r), job.ID)
		}
	}()

	job.StartCounter = float64(time.Now().UnixNano()) / float64(time.Second)

	isStream := s.adapter.HandlerIsStream()

	result := s.adapter.Invoke(ctx, job, func(chunk models.JobResult) {
		s.jobs.StreamResult(ctx, chunk, job)
	})

	if s.adapter.RefreshWorker() {
		s.log.Info("refresh_worker flag set, stopping pod after job", job.ID)
		result.StopPod = true
		s.KillWorker()
	}

	if s.debugEnabled && !result.IsError() {
		withDebugger, err := debugger.Attach(result.Output, debugger.Collect(job.StartCounter))
		if err != nil {
			s.log.Error("failed to attach rp_debugger payload: "+err.Error(), job.ID)
		} else {
			result.Output = withDebugger
		}
	}

	s.jobs.SendResult(ctx, result, job, isStream)

	if s.metrics != nil {
		if result.IsError() {
			s.metrics.JobFailed()
		} else {
			s.metrics.JobCompleted()
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
