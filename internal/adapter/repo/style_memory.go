package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"neongen/internal/domain"
)

// StyleRepositoryMemory keeps training job records in an in-process map.
// Default backend when no DATABASE_URL is configured, and the store used in
// tests. Values are cloned on the way in and out so callers never share
// state with the map.
type StyleRepositoryMemory struct {
	mu   sync.RWMutex
	jobs map[string]*domain.TrainingJob
}

// NewStyleRepositoryMemory constructs an empty in-memory repository.
func NewStyleRepositoryMemory() *StyleRepositoryMemory {
	return &StyleRepositoryMemory{jobs: make(map[string]*domain.TrainingJob)}
}

// Create inserts a new record. Job ids are unique; re-inserting one is a bug
// in the caller.
func (r *StyleRepositoryMemory) Create(ctx context.Context, job *domain.TrainingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("style repo: duplicate job id %q", job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Get fetches a record by id.
func (r *StyleRepositoryMemory) Get(ctx context.Context, id string) (*domain.TrainingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// Update replaces the stored record.
func (r *StyleRepositoryMemory) Update(ctx context.Context, job *domain.TrainingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// List returns all records, newest first.
func (r *StyleRepositoryMemory) List(ctx context.Context) ([]*domain.TrainingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*domain.TrainingJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})
	return jobs, nil
}

// Delete removes a record. The remote trained artifact, if any, is left
// untouched on the provider.
func (r *StyleRepositoryMemory) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

var _ domain.StyleRepository = (*StyleRepositoryMemory)(nil)
