package jobq

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/xraph/jobq/store/memory"
	"github.com/xraph/jobq/worker"
)

// Scheduler is the façade over the scheduler core: it owns the handler
// registry, the ready queue, the job store, and the worker pool, and
// exposes the enqueue/cancel/retry/stats operations to the hosting
// application.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	store  job.Store
	bo     backoff.Strategy
	mws    []middleware.Middleware
	limits []queue.Limit

	// pendingHooks are collected by options and registered during New.
	pendingHooks []hook.Hook

	registry *job.Registry
	queue    *queue.Queue
	hooks    *hook.Registry
	executor *worker.Executor
	pool     *worker.Pool

	mu          sync.Mutex
	started     bool
	stopped     bool
	janitorStop chan struct{}
	janitorWG   sync.WaitGroup
}

// New creates a Scheduler with the given options. Workers do not run
// until Start is called; jobs may be enqueued before that and wait in
// the queue.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.cfg.Workers <= 0 {
		return nil, fmt.Errorf("jobq: workers must be positive, got %d", s.cfg.Workers)
	}
	if s.store == nil {
		s.store = memory.New()
	}
	if s.bo == nil {
		s.bo = backoff.Default()
	}

	s.registry = job.NewRegistry()
	s.queue = queue.New()
	s.hooks = hook.NewRegistry(s.logger)
	for _, h := range s.pendingHooks {
		s.hooks.Register(h)
	}
	s.pendingHooks = nil

	// Default middleware stack: recover → tracing → metrics → logging,
	// then whatever the application added.
	mws := append([]middleware.Middleware{
		middleware.Recover(s.logger),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logging(s.logger),
	}, s.mws...)

	s.executor = worker.NewExecutor(s.registry, s.store, s.queue, s.hooks, s.bo, s.logger, mws...)

	poolOpts := []worker.PoolOption{
		worker.WithWorkers(s.cfg.Workers),
		worker.WithDequeueTimeout(s.cfg.DequeueTimeout),
	}
	if len(s.limits) > 0 {
		poolOpts = append(poolOpts, worker.WithLimiter(queue.NewLimiter(s.limits...)))
	}
	s.pool = worker.NewPool(s.queue, s.store, s.executor, s.hooks, s.logger, poolOpts...)

	return s, nil
}

// Register registers a typed job definition with the scheduler's
// handler registry. The last registration for a type wins.
func Register[T any](s *Scheduler, def *job.Definition[T]) {
	job.RegisterDefinition(s.registry, def)
}

// RegisterFunc registers a type-erased handler for a job type.
func (s *Scheduler) RegisterFunc(jobType string, fn job.HandlerFunc) {
	s.registry.RegisterFunc(jobType, fn)
}

// Start launches the worker pool and, when configured, the cleanup
// janitor. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true

	if err := s.pool.Start(ctx); err != nil {
		return err
	}

	if s.cfg.CleanupInterval > 0 {
		s.janitorStop = make(chan struct{})
		s.janitorWG.Add(1)
		go s.janitorLoop()
	}

	return nil
}

// Stop shuts the scheduler down: the queue stops delivering, workers
// finish their in-flight jobs within the bounded wait, pending retry
// timers are cancelled, and shutdown hooks fire. When ctx carries no
// deadline, Config.ShutdownTimeout applies. Stop is idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	janitorStop := s.janitorStop
	s.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if janitorStop != nil {
		close(janitorStop)
		s.janitorWG.Wait()
	}

	// Closing the queue stops workers from claiming new work; the pool
	// then drains in-flight executions within the deadline.
	s.queue.Close()

	var poolErr error
	if started {
		poolErr = s.pool.Stop(ctx)
	}

	s.executor.Close()
	s.hooks.EmitShutdown(ctx)

	s.logger.Info("scheduler stopped")
	return poolErr
}

// Enqueue marshals a typed payload and submits a job.
func Enqueue[T any](ctx context.Context, s *Scheduler, jobType string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobq: marshal payload for job type %q: %w", jobType, err)
	}
	return s.EnqueueRaw(ctx, jobType, data, opts...)
}

// EnqueueRaw submits a job with a pre-serialized payload. The job is
// stored pending and queued for the next free worker.
func (s *Scheduler) EnqueueRaw(ctx context.Context, jobType string, payload []byte, opts ...job.Option) (*job.Job, error) {
	o := job.DefaultOptions()
	o.MaxRetries = s.cfg.DefaultMaxRetries
	for _, opt := range opts {
		opt(&o)
	}

	j := &job.Job{
		ID:         id.NewJobID(),
		Type:       jobType,
		Payload:    payload,
		Priority:   o.Priority,
		State:      job.StatePending,
		MaxRetries: o.MaxRetries,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.SaveJob(ctx, j); err != nil {
		return nil, err
	}

	if err := s.queue.Push(j.Priority, j.ID); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return nil, ErrStopped
		}
		return nil, err
	}

	s.hooks.EmitJobEnqueued(ctx, j)

	s.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", jobType),
		slog.String("priority", j.Priority.String()),
	)

	return j, nil
}

// Job returns a copy of the job with the given ID, or job.ErrNotFound.
func (s *Scheduler) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Cancel cancels a pending job. It returns nil when the job was
// cancelled, job.ErrInvalidTransition when the job has already been
// claimed or finished, and job.ErrNotFound for unknown IDs. A cancelled
// job is never dispatched to a handler: its queue entry is dropped when
// a worker fails to claim it.
func (s *Scheduler) Cancel(ctx context.Context, jobID id.JobID) error {
	if err := s.store.CancelJob(ctx, jobID); err != nil {
		return err
	}

	if j, err := s.store.GetJob(ctx, jobID); err == nil {
		s.hooks.EmitJobCancelled(ctx, j)
	}

	s.logger.Info("job cancelled", slog.String("job_id", jobID.String()))
	return nil
}

// Retry re-submits a failed job: the retry counter is reset, the error
// cleared, and the job re-enters the queue with its original priority.
// Only failed jobs can be retried.
func (s *Scheduler) Retry(ctx context.Context, jobID id.JobID) error {
	j, err := s.store.ResetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.queue.Push(j.Priority, j.ID); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return ErrStopped
		}
		return err
	}

	s.hooks.EmitJobEnqueued(ctx, j)

	s.logger.Info("job resubmitted",
		slog.String("job_id", jobID.String()),
		slog.String("job_type", j.Type),
	)
	return nil
}

// Jobs lists jobs in the given state, most recently created first,
// capped at limit. An empty state matches all jobs; limit <= 0 means
// no cap.
func (s *Scheduler) Jobs(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	return s.store.ListJobsByState(ctx, state, job.ListOpts{Limit: limit})
}

// Cleanup sweeps completed and failed jobs older than maxAge from the
// registry, returning how many were removed.
func (s *Scheduler) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	removed, err := s.store.SweepJobs(ctx, maxAge)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("cleaned up old jobs", slog.Int("removed", removed))
	}
	return removed, nil
}

// Stats returns a snapshot of job counts, queue depth, and worker
// occupancy.
func (s *Scheduler) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.CountJobsByState(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Pending:     counts[job.StatePending],
		Running:     counts[job.StateRunning],
		Completed:   counts[job.StateCompleted],
		Failed:      counts[job.StateFailed],
		Retrying:    counts[job.StateRetrying],
		Cancelled:   counts[job.StateCancelled],
		QueueDepth:  s.queue.Len(),
		Workers:     s.pool.Workers(),
		BusyWorkers: s.pool.Busy(),
	}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}

// Hooks returns the scheduler's hook registry.
func (s *Scheduler) Hooks() *hook.Registry { return s.hooks }

// Registry returns the scheduler's handler registry.
func (s *Scheduler) Registry() *job.Registry { return s.registry }

// janitorLoop periodically sweeps aged terminal jobs.
func (s *Scheduler) janitorLoop() {
	defer s.janitorWG.Done()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
			if _, err := s.Cleanup(context.Background(), s.cfg.CleanupMaxAge); err != nil {
				s.logger.Error("janitor sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
