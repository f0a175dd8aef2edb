package job

import (
	"context"
	"time"

	"github.com/xraph/jobq/id"
)

// ListOpts controls filtering and capping for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
}

// Store is the job registry contract: a concurrent map from job ID to
// the canonical Job record. All state transitions go through the store
// so that its internal locking, never the Job value itself, arbitrates
// concurrent readers against the worker that owns a running job.
//
// Jobs cross the Store boundary by value: implementations copy on write
// and on read.
type Store interface {
	ProgressWriter

	// SaveJob stores a new job. Returns ErrAlreadyExists if the ID is taken.
	SaveJob(ctx context.Context, j *Job) error

	// GetJob returns a copy of the job, or ErrNotFound.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob replaces the stored record for an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// ClaimJob atomically transitions a pending job to running and
	// stamps StartedAt. Exactly one caller can win the claim; every
	// other state, including cancelled, yields ErrInvalidTransition.
	ClaimJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// CancelJob transitions a pending job to cancelled. Jobs in any
	// other state are rejected with ErrInvalidTransition.
	CancelJob(ctx context.Context, jobID id.JobID) error

	// WakeJob transitions a retrying job back to pending once its
	// backoff delay has elapsed, clearing NextRunAt.
	WakeJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// ResetJob transitions a failed job back to pending for an explicit
	// retry: the retry counter is zeroed and the last error cleared.
	ResetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByState returns jobs in the given state, most recently
	// created first. An empty state matches all jobs.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// CountJobsByState returns the number of stored jobs per state.
	CountJobsByState(ctx context.Context) (map[State]int, error)

	// SweepJobs deletes completed and failed jobs whose CompletedAt is
	// older than the given age, returning how many were removed. Jobs
	// in any other state are never swept.
	SweepJobs(ctx context.Context, olderThan time.Duration) (int, error)
}
