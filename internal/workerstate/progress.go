package workerstate

import (
	"encoding/json"
	"fmt"
	"sync"
)

// JobsProgress is the process-wide set of in-flight jobs, keyed by id.
// Heartbeat reads it to report liveness; per spec.md's resolution of its
// one open question, the Job Scaler's execution tasks add a job on
// start and remove it on finish, making this set authoritative.
type JobsProgress struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newJobsProgress() *JobsProgress {
	return &JobsProgress{jobs: make(map[string]*Job)}
}

// normalize accepts a *Job or Job, a string id, or a map[string]any or
// map[string]json.RawMessage containing an "id" key (the Job / id / dict
// shapes worker_state.py's JobsProgress.add/remove accept), and returns
// a *Job keyed by id. Any other input is an error.
func normalize(element interface{}) (*Job, error) {
	switch v := element.(type) {
	case *Job:
		return v, nil
	case Job:
		return &v, nil
	case string:
		return &Job{ID: v}, nil
	case map[string]interface{}:
		id, _ := v["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("map passed to JobsProgress must contain a non-empty \"id\"")
		}
		return &Job{ID: id}, nil
	case map[string]json.RawMessage:
		raw, ok := v["id"]
		if !ok {
			return nil, fmt.Errorf("map passed to JobsProgress must contain an \"id\"")
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("JobsProgress id must be a string: %w", err)
		}
		return &Job{ID: id}, nil
	default:
		return nil, fmt.Errorf("only Job, string, or map values can be used with JobsProgress, got %T", element)
	}
}

// Add inserts a job into the in-flight set. Re-adding an id already
// present is a no-op (sets have no duplicates), regardless of whether
// the caller passed a *Job, a string id, or a map.
func (p *JobsProgress) Add(element interface{}) error {
	job, err := normalize(element)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.jobs[job.ID]; !exists {
		p.jobs[job.ID] = job
	}
	return nil
}

// Remove deletes a job from the in-flight set, accepting the same
// shapes as Add.
func (p *JobsProgress) Remove(element interface{}) error {
	job, err := normalize(element)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.jobs, job.ID)
	return nil
}

// Get returns the stored job for an id, or nil if it is not in
// progress. O(1) here (a map), unlike the Python set-scan original;
// spec.md only requires it be "infrequent", not any particular
// complexity.
func (p *JobsProgress) Get(id string) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobs[id]
}

// Size returns the number of jobs currently in progress.
func (p *JobsProgress) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// ListIDs returns the ids of all jobs currently in progress, in no
// particular order.
func (p *JobsProgress) ListIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.jobs))
	for id := range p.jobs {
		ids = append(ids, id)
	}
	return ids
}
