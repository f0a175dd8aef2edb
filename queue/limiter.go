package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limit defines throttling for one job type. Types without a Limit run
// unthrottled (pool-wide concurrency still applies).
type Limit struct {
	// Type is the job type this limit applies to.
	Type string

	// MaxConcurrency caps how many jobs of this type may run
	// simultaneously. Zero means no concurrency cap.
	MaxConcurrency int

	// RatePerSecond is the sustained execution rate for this type.
	// Zero disables rate limiting.
	RatePerSecond float64

	// Burst is the token-bucket burst size. Defaults to 1 when
	// RatePerSecond is set and Burst is zero.
	Burst int
}

// typeState tracks runtime throttle state for a single job type.
type typeState struct {
	limit  Limit
	bucket *rate.Limiter
	active int
}

// Limiter enforces per-type rate and concurrency limits. The worker
// pool calls Acquire before executing a claimed job and Release after
// execution completes. Safe for concurrent use.
type Limiter struct {
	mu    sync.Mutex
	types map[string]*typeState
}

// NewLimiter creates a Limiter with the given per-type limits.
func NewLimiter(limits ...Limit) *Limiter {
	l := &Limiter{types: make(map[string]*typeState, len(limits))}
	for _, lim := range limits {
		ts := &typeState{limit: lim}
		if lim.RatePerSecond > 0 {
			burst := lim.Burst
			if burst <= 0 {
				burst = 1
			}
			ts.bucket = rate.NewLimiter(rate.Limit(lim.RatePerSecond), burst)
		}
		l.types[lim.Type] = ts
	}
	return l
}

// Acquire reports whether a job of the given type may execute now. On
// true the active count is incremented and the caller MUST call Release
// when execution finishes.
func (l *Limiter) Acquire(jobType string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.types[jobType]
	if ts == nil {
		return true
	}

	if ts.limit.MaxConcurrency > 0 && ts.active >= ts.limit.MaxConcurrency {
		return false
	}
	if ts.bucket != nil && !ts.bucket.Allow() {
		return false
	}

	ts.active++
	return true
}

// Release decrements the active count for the given job type.
func (l *Limiter) Release(jobType string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.types[jobType]
	if ts == nil {
		return
	}
	if ts.active > 0 {
		ts.active--
	}
}
