// Package backoff provides retry delay strategies for failed jobs.
// All strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Fixed always waits the same interval regardless of attempt number.
type Fixed struct {
	Interval time.Duration
}

// NewFixed creates a fixed-interval backoff strategy.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

// Delay returns the fixed interval.
func (f *Fixed) Delay(_ int) time.Duration { return f.Interval }

// Linear grows the delay linearly: min(Base * attempt, Cap).
type Linear struct {
	Base time.Duration
	Cap  time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(base, maxDelay time.Duration) *Linear {
	return &Linear{Base: base, Cap: maxDelay}
}

// Delay returns Base * attempt, capped at Cap.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Base * time.Duration(attempt)
	if l.Cap > 0 && d > l.Cap {
		return l.Cap
	}
	return d
}

// Exponential doubles the delay each attempt: min(Base * 2^(attempt-1), Cap).
type Exponential struct {
	Base time.Duration
	Cap  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Cap: maxDelay}
}

// Delay returns Base * 2^(attempt-1), capped at Cap.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if d < 0 || (e.Cap > 0 && d > e.Cap) {
		return e.Cap
	}
	return d
}

// FullJitter draws a random delay in [0, min(Base * 2^(attempt-1), Cap)].
// Spreads out simultaneous retries so they do not stampede.
type FullJitter struct {
	Base time.Duration
	Cap  time.Duration
}

// NewFullJitter creates an exponential backoff strategy with full jitter.
func NewFullJitter(base, maxDelay time.Duration) *FullJitter {
	return &FullJitter{Base: base, Cap: maxDelay}
}

// Delay returns a random duration in [0, min(Base * 2^(attempt-1), Cap)].
func (f *FullJitter) Delay(attempt int) time.Duration {
	ceil := float64(f.Base) * math.Pow(2, float64(attempt-1))
	if ceil < 0 || (f.Cap > 0 && ceil > float64(f.Cap)) {
		ceil = float64(f.Cap)
	}
	return time.Duration(rand.Float64() * ceil) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// Default returns the scheduler's default strategy: exponential with a
// 2s base, so the delay before retry n is 2^n seconds, capped at 5m.
func Default() Strategy {
	return NewExponential(2*time.Second, 5*time.Minute)
}
