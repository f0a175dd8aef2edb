package middleware

import (
	"context"
	"time"

	"github.com/xraph/jobq/job"
)

// Timeout returns middleware that enforces an execution deadline on
// every job. When the deadline is exceeded the context is cancelled and
// a cooperative handler returns context.DeadlineExceeded, which drives
// the normal retry path. A non-positive duration disables the deadline.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
