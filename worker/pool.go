package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/jobq/hook"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/queue"
)

// Pool manages a fixed set of concurrent worker goroutines that dequeue
// job references, claim them through the store, and execute them.
type Pool struct {
	queue          *queue.Queue
	store          job.Store
	executor       *Executor
	hooks          *hook.Registry
	limiter        *queue.Limiter
	workers        int
	dequeueTimeout time.Duration
	workerID       id.WorkerID
	logger         *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	busy    atomic.Int64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent worker goroutines.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) { p.workers = n }
}

// WithDequeueTimeout sets how long a worker blocks on an empty queue
// before re-checking the shutdown signal.
func WithDequeueTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.dequeueTimeout = d }
}

// WithLimiter sets the per-type rate and concurrency limiter.
func WithLimiter(l *queue.Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// NewPool creates a worker pool.
func NewPool(
	q *queue.Queue,
	store job.Store,
	executor *Executor,
	hooks *hook.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		queue:          q,
		store:          store,
		executor:       executor,
		hooks:          hooks,
		workers:        4,
		dequeueTimeout: time.Second,
		workerID:       id.NewWorkerID(),
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Workers returns the configured number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Busy returns the number of workers currently executing a job.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("workers", p.workers),
	)

	for range p.workers {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	return nil
}

// Stop signals all workers to stop claiming new work and waits for
// in-flight jobs to finish their current execution, bounded by the
// context. Running handlers are never forcibly interrupted; on a
// deadline the workers are left to drain in the background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out with jobs in flight",
			slog.Int64("busy", p.busy.Load()),
		)
		return ctx.Err()
	}
}

// dequeueLoop is run by each worker goroutine.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		jobID, ok := p.queue.Dequeue(p.dequeueTimeout)
		if !ok {
			if p.queue.Closed() {
				return
			}
			continue
		}

		p.runJob(jobID)
	}
}

// runJob claims and executes a single dequeued job reference. Any
// unexpected error here is contained: one bad job must not take down
// the loop.
func (p *Pool) runJob(jobID id.JobID) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker loop panic",
				slog.String("job_id", jobID.String()),
				slog.Any("panic", r),
			)
		}
	}()

	ctx := context.Background()

	if p.limiter != nil {
		current, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return
		}
		if !p.limiter.Acquire(current.Type) {
			// Throttled: back of its priority band, try again shortly.
			if pushErr := p.queue.Push(current.Priority, jobID); pushErr != nil {
				return
			}
			p.sleep()
			return
		}
		defer p.limiter.Release(current.Type)
	}

	j, err := p.store.ClaimJob(ctx, jobID)
	if err != nil {
		// Lost the claim: cancelled before dispatch, already claimed
		// via a duplicate queue entry, or swept. All are normal.
		if !errors.Is(err, job.ErrInvalidTransition) && !errors.Is(err, job.ErrNotFound) {
			p.logger.Error("claim failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	p.hooks.EmitJobStarted(ctx, j)

	p.busy.Add(1)
	execErr := p.executor.Execute(ctx, j)
	p.busy.Add(-1)

	if execErr != nil {
		p.logger.Debug("job execution failed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", execErr.Error()),
		)
	}
}

// sleep pauses briefly between throttled retries of the same queue
// entry, waking early on shutdown.
func (p *Pool) sleep() {
	select {
	case <-time.After(p.dequeueTimeout):
	case <-p.stopCh:
	}
}
