package jobq

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for the Scheduler.
type Config struct {
	// Workers is the number of concurrent worker goroutines.
	Workers int `env:"JOBQ_WORKERS" envDefault:"4"`

	// DequeueTimeout is how long a worker blocks on an empty queue
	// before re-checking the shutdown signal.
	DequeueTimeout time.Duration `env:"JOBQ_DEQUEUE_TIMEOUT" envDefault:"1s"`

	// ShutdownTimeout bounds how long Stop waits for in-flight jobs
	// when the caller's context carries no deadline of its own.
	ShutdownTimeout time.Duration `env:"JOBQ_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// DefaultMaxRetries is the retry ceiling applied to jobs enqueued
	// without an explicit override.
	DefaultMaxRetries int `env:"JOBQ_DEFAULT_MAX_RETRIES" envDefault:"3"`

	// CleanupInterval enables the janitor: every interval, terminal
	// jobs older than CleanupMaxAge are swept from the registry.
	// Zero disables the janitor; Cleanup can still be called directly.
	CleanupInterval time.Duration `env:"JOBQ_CLEANUP_INTERVAL" envDefault:"0"`

	// CleanupMaxAge is the age threshold used by the janitor.
	CleanupMaxAge time.Duration `env:"JOBQ_CLEANUP_MAX_AGE" envDefault:"24h"`
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		DequeueTimeout:    time.Second,
		ShutdownTimeout:   30 * time.Second,
		DefaultMaxRetries: 3,
		CleanupInterval:   0,
		CleanupMaxAge:     24 * time.Hour,
	}
}

// ConfigFromEnv builds a Config from JOBQ_* environment variables,
// falling back to the defaults for unset variables.
func ConfigFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("jobq: parse config from env: %w", err)
	}
	return c, nil
}
