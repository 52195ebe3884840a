package workerstate

import "sync"

var (
	queueOnce    sync.Once
	queue        *JobsQueue
	progressOnce sync.Once
	progress     *JobsProgress
)

// Queue returns the process-wide JobsQueue. Every call returns the same
// pointer: the original's singleton-via-__new__ pattern, replaced with
// an explicit package-level accessor instead of hiding the dependency
// behind a constructor (per spec.md §9's redesign note).
func Queue() *JobsQueue {
	queueOnce.Do(func() { queue = newJobsQueue() })
	return queue
}

// Progress returns the process-wide JobsProgress set. Every call
// returns the same pointer.
func Progress() *JobsProgress {
	progressOnce.Do(func() { progress = newJobsProgress() })
	return progress
}
