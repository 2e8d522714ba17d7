package job

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryJobRepository is a mutex-guarded in-memory JobRepository. It backs
// tests and carries the same lifecycle invariants as the PostgreSQL
// implementation.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: map[string]Job{},
	}
}

func (r *MemoryJobRepository) Create(ctx context.Context, jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; ok {
		return nil, ErrConflict
	}

	j := Job{
		JobID:     jobID,
		Status:    JobStatusPending,
		Progress:  "Job created",
		CreatedAt: time.Now().UTC(),
	}
	r.jobs[jobID] = j

	out := j
	return &out, nil
}

func (r *MemoryJobRepository) Update(ctx context.Context, jobID string, upd Update) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}

	j.apply(upd, time.Now().UTC())
	r.jobs[jobID] = j

	out := j
	return &out, nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, jobID string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}

	out := j
	return &out, nil
}

func (r *MemoryJobRepository) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out := j
		jobs = append(jobs, &out)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})

	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	return jobs, nil
}

func (r *MemoryJobRepository) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; !ok {
		return ErrNotFound
	}

	delete(r.jobs, jobID)
	return nil
}
