// Package batch synthesizes dataset transcripts in the background. Jobs run
// in-process or are handed to NATS workers.
package batch

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("batch job not found")
	// ErrDatasetNotFound is returned when a dataset has no readable metadata.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrEmptyDataset is returned when a dataset has metadata but no usable rows.
	ErrEmptyDataset = errors.New("dataset has no usable rows")
	// ErrDispatcherClosed is returned by Dispatch after shutdown began.
	ErrDispatcherClosed = errors.New("batch dispatcher closed")
	// ErrOutputNotFound is returned for a file the job did not produce.
	ErrOutputNotFound = errors.New("batch output not found")
)

// DefaultMaxSamples is used when a request does not bound the job.
const DefaultMaxSamples = 10

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a batch synthesis request and its progress.
type Job struct {
	ID         string    `json:"id"`
	Dataset    string    `json:"dataset"`
	MaxSamples int       `json:"max_samples"`
	Status     Status    `json:"status"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Outputs    []string  `json:"outputs"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJob returns a queued job with a fresh ID.
func NewJob(dataset string, maxSamples int) Job {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	now := time.Now().UTC()
	return Job{
		ID:         uuid.NewString(),
		Dataset:    dataset,
		MaxSamples: maxSamples,
		Status:     StatusQueued,
		Outputs:    []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Finished reports whether the job reached a terminal state.
func (j Job) Finished() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

func (j Job) clone() Job {
	j.Outputs = append([]string{}, j.Outputs...)
	return j
}

// Registry tracks job state in memory.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Report stores the latest state of a job. Updates older than the stored
// state are ignored.
func (r *Registry) Report(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.jobs[job.ID]; ok && job.UpdatedAt.Before(cur.UpdatedAt) {
		return
	}
	r.jobs[job.ID] = job.clone()
}

// Get returns a job by ID.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job.clone(), nil
}

// Output returns the storage key of file when job id produced it.
func (r *Registry) Output(id, file string) (string, error) {
	job, err := r.Get(id)
	if err != nil {
		return "", err
	}
	key := id + "/" + file
	if !slices.Contains(job.Outputs, key) {
		return "", fmt.Errorf("%w: %s", ErrOutputNotFound, key)
	}
	return key, nil
}

// List returns all jobs, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}
