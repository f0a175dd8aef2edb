package job

import (
	"context"

	"github.com/xraph/jobq/id"
)

// ProgressWriter persists progress updates for a running job. The Store
// implements it; the indirection keeps handlers from touching the
// canonical record directly.
type ProgressWriter interface {
	SetProgress(ctx context.Context, jobID id.JobID, pct int) error
}

// Handle is the job-handle side channel passed to handlers. It exposes
// the job's identity and a progress setter that routes through the
// store's locking, so observers reading the job never race the handler.
type Handle struct {
	jobID id.JobID
	store ProgressWriter
}

// NewHandle creates a handle for the given job backed by the store.
func NewHandle(jobID id.JobID, store ProgressWriter) *Handle {
	return &Handle{jobID: jobID, store: store}
}

// JobID returns the ID of the job this handle belongs to.
func (h *Handle) JobID() id.JobID { return h.jobID }

// SetProgress records completion progress as a percentage. Values are
// clamped to [0, 100]; progress never moves backwards, and updates are
// only accepted while the job is running.
func (h *Handle) SetProgress(ctx context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return h.store.SetProgress(ctx, h.jobID, pct)
}
