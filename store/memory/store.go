// Package memory implements job.Store as a mutex-guarded in-process
// map. It is the canonical registry backend: the scheduler assumes a
// single process, and the backlog is lost on restart by design.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

var _ job.Store = (*Store)(nil)

// Store is a fully in-memory job registry. Safe for concurrent access:
// a single RWMutex arbitrates readers (status, stats, listings) against
// the workers mutating jobs in flight. Jobs cross the boundary by value.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Job)}
}

// SaveJob stores a new job.
func (m *Store) SaveJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return job.ErrAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob returns a copy of the job with the given ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob replaces the stored record for an existing job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return job.ErrNotFound
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// ClaimJob atomically transitions a pending job to running. Exactly one
// caller wins; cancelled or already-claimed jobs are rejected with
// ErrInvalidTransition.
func (m *Store) ClaimJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}
	if j.State != job.StatePending {
		return nil, job.ErrInvalidTransition
	}

	now := time.Now().UTC()
	j.State = job.StateRunning
	j.StartedAt = &now

	cp := *j
	return &cp, nil
}

// CancelJob transitions a pending job to cancelled. Jobs that are
// running, retrying, or terminal are rejected.
func (m *Store) CancelJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return job.ErrNotFound
	}
	if j.State != job.StatePending {
		return job.ErrInvalidTransition
	}

	j.State = job.StateCancelled
	return nil
}

// WakeJob transitions a retrying job back to pending once its backoff
// delay has elapsed.
func (m *Store) WakeJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}
	if j.State != job.StateRetrying {
		return nil, job.ErrInvalidTransition
	}

	j.State = job.StatePending
	j.NextRunAt = nil

	cp := *j
	return &cp, nil
}

// ResetJob transitions a failed job back to pending for an explicit
// retry, zeroing the retry counter and clearing the last error.
func (m *Store) ResetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, job.ErrNotFound
	}
	if j.State != job.StateFailed {
		return nil, job.ErrInvalidTransition
	}

	j.State = job.StatePending
	j.RetryCount = 0
	j.LastError = ""
	j.Progress = 0
	j.StartedAt = nil
	j.CompletedAt = nil
	j.NextRunAt = nil

	cp := *j
	return &cp, nil
}

// SetProgress records handler progress for a running job. Updates for
// jobs in any other state are rejected; progress never moves backwards.
func (m *Store) SetProgress(_ context.Context, jobID id.JobID, pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return job.ErrNotFound
	}
	if j.State != job.StateRunning {
		return job.ErrInvalidTransition
	}
	if pct > j.Progress {
		j.Progress = pct
	}
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return job.ErrNotFound
	}
	delete(m.jobs, key)
	return nil
}

// ListJobsByState returns jobs in the given state, most recently
// created first. An empty state matches all jobs.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if state != "" && j.State != state {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// CountJobsByState returns the number of stored jobs per state.
func (m *Store) CountJobsByState(_ context.Context) (map[job.State]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[job.State]int)
	for _, j := range m.jobs {
		counts[j.State]++
	}
	return counts, nil
}

// SweepJobs deletes completed and failed jobs whose CompletedAt is
// older than the given age. Pending, running, retrying, and cancelled
// jobs are never swept.
func (m *Store) SweepJobs(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	for key, j := range m.jobs {
		if j.State != job.StateCompleted && j.State != job.StateFailed {
			continue
		}
		if j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}
		delete(m.jobs, key)
		removed++
	}
	return removed, nil
}
