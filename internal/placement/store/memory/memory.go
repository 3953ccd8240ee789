// Package memory is the in-process job store used by tests and by
// deployments without postgres.
package memory

import (
	"context"
	"sync"

	"qplace/internal/placement/models"
	"qplace/pkg/platform/sentinel"
)

// Store keeps jobs and results in maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]models.Job
	results map[string]models.Result
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]models.Job),
		results: make(map[string]models.Result),
	}
}

// Clear drops everything. Used between tests.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]models.Job)
	s.results = make(map[string]models.Result)
}

// CreateJob stores a new job, rejecting duplicate ids.
func (s *Store) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return sentinel.ErrConflict
	}
	s.jobs[job.ID] = *job
	return nil
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &job, nil
}

// UpdateJob replaces an existing job.
func (s *Store) UpdateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

// SaveResult stores the result of a completed job.
func (s *Store) SaveResult(_ context.Context, result *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = cloneResult(result)
	return nil
}

// GetResult returns a copy of the stored result.
func (s *Store) GetResult(_ context.Context, jobID string) (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[jobID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cloneResult(&result)
	return &out, nil
}

// cloneResult copies the slices so callers cannot mutate stored state.
func cloneResult(r *models.Result) models.Result {
	out := *r
	out.Mapping = append([]int(nil), r.Mapping...)
	if r.PrunedCoupling != nil {
		out.PrunedCoupling = append([][2]int(nil), r.PrunedCoupling...)
	}
	return out
}
