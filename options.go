package jobq

import (
	"log/slog"
	"time"

	"github.com/xraph/jobq/backoff"
	"github.com/xraph/jobq/hook"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/middleware"
	"github.com/xraph/jobq/queue"
)

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithConfig replaces the whole configuration. Compose with
// ConfigFromEnv to configure from the environment:
//
//	cfg, _ := jobq.ConfigFromEnv()
//	sched, err := jobq.New(jobq.WithConfig(cfg))
func WithConfig(c Config) Option {
	return func(s *Scheduler) error {
		s.cfg = c
		return nil
	}
}

// WithWorkers sets the number of concurrent worker goroutines.
func WithWorkers(n int) Option {
	return func(s *Scheduler) error {
		s.cfg.Workers = n
		return nil
	}
}

// WithLogger sets the structured logger for the scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) error {
		s.logger = l
		return nil
	}
}

// WithStore sets the job registry backend. Defaults to the in-memory
// store.
func WithStore(st job.Store) Option {
	return func(s *Scheduler) error {
		s.store = st
		return nil
	}
}

// WithBackoff sets the retry backoff strategy. Defaults to
// backoff.Default(), exponential with a 2s base.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Scheduler) error {
		s.bo = b
		return nil
	}
}

// WithMiddleware appends middleware to the execution chain, inside the
// default stack (recover, tracing, metrics, logging).
func WithMiddleware(m middleware.Middleware) Option {
	return func(s *Scheduler) error {
		s.mws = append(s.mws, m)
		return nil
	}
}

// WithHook registers a lifecycle hook with the scheduler.
func WithHook(h hook.Hook) Option {
	return func(s *Scheduler) error {
		s.pendingHooks = append(s.pendingHooks, h)
		return nil
	}
}

// WithTypeLimits registers per-type rate and concurrency limits. Job
// types without a limit run unthrottled.
func WithTypeLimits(limits ...queue.Limit) Option {
	return func(s *Scheduler) error {
		s.limits = append(s.limits, limits...)
		return nil
	}
}

// WithCleanupInterval enables the janitor, sweeping aged terminal jobs
// every interval. Zero (the default) disables it.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Scheduler) error {
		s.cfg.CleanupInterval = d
		return nil
	}
}

// WithCleanupMaxAge sets the age past which the janitor sweeps
// completed and failed jobs.
func WithCleanupMaxAge(d time.Duration) Option {
	return func(s *Scheduler) error {
		s.cfg.CleanupMaxAge = d
		return nil
	}
}
