// Package job defines the Job entity, its lifecycle states, the handler
// registry, and the Store contract that arbitrates all job mutation.
package job

import (
	"time"

	"github.com/xraph/jobq/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be claimed by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its retries and will not run again.
	StateFailed State = "failed"
	// StateRetrying means the job failed and is waiting out its backoff delay.
	StateRetrying State = "retrying"
	// StateCancelled means the job was cancelled before a worker claimed it.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state admits no further automatic transition.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Priority determines dequeue ordering. Higher values are dequeued first;
// jobs of equal priority run in enqueue order.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// String returns the lowercase name of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Job represents one schedulable unit of work.
//
// The Store holds the canonical record; copies cross the Store boundary
// so readers never race the worker that owns a running job.
type Job struct {
	ID         id.JobID `json:"id"`
	Type       string   `json:"type"`
	Payload    []byte   `json:"payload,omitempty"`
	Priority   Priority `json:"priority"`
	State      State    `json:"state"`
	MaxRetries int      `json:"max_retries"`
	RetryCount int      `json:"retry_count"`
	LastError  string   `json:"last_error,omitempty"`
	Result     []byte   `json:"result,omitempty"`

	// Progress is 0-100 and only meaningful while the job is running.
	// Handlers update it through the Handle side channel.
	Progress int `json:"progress"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// NextRunAt is set while the job is retrying: the instant its
	// backoff delay elapses and it returns to the queue.
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}
