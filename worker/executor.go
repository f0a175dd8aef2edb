// Package worker provides the job execution engine: an Executor that
// runs a claimed job through middleware and its registered handler and
// applies the state machine's transition rules, and a Pool of
// concurrent dequeue loops feeding it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/jobq/backoff"
	"github.com/xraph/jobq/hook"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/middleware"
	"github.com/xraph/jobq/queue"
)

// Enqueuer re-admits jobs to the ready queue. Implemented by
// queue.Queue; the interface keeps worker free of queue internals.
type Enqueuer interface {
	Push(priority job.Priority, jobID id.JobID) error
}

// Executor runs a single claimed job through the middleware chain and
// the registered handler, then applies the transition rules: completed
// on success, retrying with backoff while attempts remain, failed once
// the ceiling is hit.
//
// Retries are timer-based: instead of sleeping inside the worker loop,
// a timer re-admits the job to the queue when its backoff delay
// elapses, so the worker is immediately free for other jobs.
type Executor struct {
	registry *job.Registry
	store    job.Store
	enqueue  Enqueuer
	hooks    *hook.Registry
	backoff  backoff.Strategy
	mw       middleware.Middleware
	logger   *slog.Logger

	timerMu sync.Mutex
	timers  map[string]*time.Timer
	closed  bool
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	store job.Store,
	enqueue Enqueuer,
	hooks *hook.Registry,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry: registry,
		store:    store,
		enqueue:  enqueue,
		hooks:    hooks,
		backoff:  bo,
		mw:       middleware.Chain(mws...),
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Execute runs a job that has already been claimed (state running).
// The returned error is the handler failure, for the caller to log;
// failures are fully absorbed into the job record and retry machinery.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	fn, resolved := e.registry.Resolve(j.Type)

	start := time.Now()

	var result []byte
	var err error
	if !resolved {
		// A missing handler follows the retry path: the hosting
		// application may register the handler and retry explicitly.
		err = fmt.Errorf("%w: %q", job.ErrUnknownType, j.Type)
	} else {
		h := job.NewHandle(j.ID, e.store)
		terminal := func(ctx context.Context) error {
			res, herr := fn(ctx, j.Payload, h)
			result = res
			return herr
		}
		err = e.mw(ctx, j, terminal)
	}

	elapsed := time.Since(start)
	now := time.Now().UTC()

	if err != nil {
		return e.handleFailure(ctx, j, err, now)
	}
	return e.handleSuccess(ctx, j, result, now, elapsed)
}

// handleSuccess marks the job completed with its result.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, result []byte, now time.Time, elapsed time.Duration) error {
	j.State = job.StateCompleted
	j.Result = result
	j.Progress = 100
	j.CompletedAt = &now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after success",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.hooks.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleFailure increments the retry counter and either schedules a
// retry or marks the job failed.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error, now time.Time) error {
	j.RetryCount++
	j.LastError = handlerErr.Error()

	if j.RetryCount < j.MaxRetries {
		return e.scheduleRetry(ctx, j, now, handlerErr)
	}
	return e.markFailed(ctx, j, now, handlerErr)
}

// scheduleRetry parks the job in the retrying state and arms a timer
// that re-admits it to the queue once the backoff delay elapses.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, now time.Time, handlerErr error) error {
	delay := e.backoff.Delay(j.RetryCount)
	nextRunAt := now.Add(delay)
	j.State = job.StateRetrying
	j.NextRunAt = &nextRunAt

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.hooks.EmitJobRetrying(ctx, j, j.RetryCount, nextRunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Int("attempt", j.RetryCount),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)

	jobID := j.ID
	key := jobID.String()

	e.timerMu.Lock()
	if e.closed {
		e.timerMu.Unlock()
		return handlerErr
	}
	e.timers[key] = time.AfterFunc(delay, func() { e.wake(jobID) })
	e.timerMu.Unlock()

	return handlerErr
}

// wake runs when a retry timer fires: flip retrying back to pending and
// re-admit the job with its original priority and a fresh sequence.
func (e *Executor) wake(jobID id.JobID) {
	key := jobID.String()

	e.timerMu.Lock()
	delete(e.timers, key)
	closed := e.closed
	e.timerMu.Unlock()
	if closed {
		return
	}

	woken, err := e.store.WakeJob(context.Background(), jobID)
	if err != nil {
		e.logger.Error("failed to wake retrying job",
			slog.String("job_id", key),
			slog.String("error", err.Error()),
		)
		return
	}

	if pushErr := e.enqueue.Push(woken.Priority, jobID); pushErr != nil {
		// Queue closed during shutdown; the job stays pending and is
		// lost with the rest of the backlog when the process exits.
		e.logger.Debug("retry requeue skipped",
			slog.String("job_id", key),
			slog.String("error", pushErr.Error()),
		)
	}
}

// markFailed records terminal failure after the retry ceiling is hit.
func (e *Executor) markFailed(ctx context.Context, j *job.Job, now time.Time, handlerErr error) error {
	j.State = job.StateFailed
	j.CompletedAt = &now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job as failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.hooks.EmitJobFailed(ctx, j, handlerErr)

	e.logger.Warn("job failed after exhausting retries",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}

// Close stops all pending retry timers. Jobs parked in the retrying
// state stay there; with no persistence they are gone on restart.
func (e *Executor) Close() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}
}

// compile-time check that queue.Queue satisfies Enqueuer.
var _ Enqueuer = (*queue.Queue)(nil)
