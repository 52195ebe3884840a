package workerstate

import (
	"context"
	"sync"
)

// JobsQueue is the process-wide FIFO handoff between the Job Scaler's
// acquisition loop (producer) and its dispatch loop (consumer). It is
// unbounded by default — the scaler's concurrency modifier is what caps
// how many jobs the producer ever requests — and safe for concurrent
// use by both loops plus any number of in-flight execution tasks.
type JobsQueue struct {
	mu         sync.Mutex
	items      []*Job
	notify     chan struct{}
	unfinished int
}

func newJobsQueue() *JobsQueue {
	return &JobsQueue{notify: make(chan struct{})}
}

// Add appends a job to the back of the queue. Never blocks: the queue
// has no capacity bound.
func (q *JobsQueue) Add(job *Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.unfinished++
	ch := q.notify
	q.notify = make(chan struct{})
	q.mu.Unlock()
	close(ch)
}

// Take removes and returns the job at the front of the queue, blocking
// until one is available or ctx is cancelled. Every successful Take
// must be paired with exactly one call to TaskDone.
func (q *JobsQueue) Take(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return job, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TaskDone signals that processing for one previously taken job has
// finished, successfully or not.
func (q *JobsQueue) TaskDone() {
	q.mu.Lock()
	if q.unfinished > 0 {
		q.unfinished--
	}
	q.mu.Unlock()
}

// Size returns the number of jobs currently queued (not counting jobs
// already taken but not yet task-done).
func (q *JobsQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether the queue currently holds no jobs.
func (q *JobsQueue) Empty() bool {
	return q.Size() == 0
}
