// Package job holds the pure domain logic for job lifecycle decisions:
// retry backoff, lease normalisation, cache key derivation, and the
// availability notifier.
package job

import (
	"errors"
	"time"
)

// ErrInvalidBaseDelay indicates the configured backoff base delay is not positive.
var ErrInvalidBaseDelay = errors.New("base delay must be positive")

// RetryDecision captures the outcome of evaluating a failed attempt.
type RetryDecision struct {
	// GiveUp is true when the job has exhausted its attempts and must be
	// marked failed.
	GiveUp bool
	// Delay is the backoff before the next attempt; meaningful only when
	// GiveUp is false.
	Delay time.Duration
}

// RetryPolicy computes exponential backoff without jitter.
//
// The delay doubles with each failed attempt: the first retry waits the base
// delay, the second twice that, and so on. The attempt number passed to
// Decide is the attempt that just failed (1-based).
type RetryPolicy struct {
	baseDelay time.Duration
}

// NewRetryPolicy constructs a RetryPolicy with the given base delay.
func NewRetryPolicy(baseDelay time.Duration) (*RetryPolicy, error) {
	if baseDelay <= 0 {
		return nil, ErrInvalidBaseDelay
	}
	return &RetryPolicy{baseDelay: baseDelay}, nil
}

// BaseDelay returns the configured base delay.
func (p *RetryPolicy) BaseDelay() time.Duration {
	if p == nil {
		return 0
	}
	return p.baseDelay
}

// Decide evaluates whether the attempt that just failed should be retried.
// failedAttempts is the total number of attempts executed so far including
// the one that just failed; maxAttempts is the per-job ceiling.
func (p *RetryPolicy) Decide(failedAttempts, maxAttempts int) RetryDecision {
	if p == nil || failedAttempts >= maxAttempts || maxAttempts <= 0 {
		return RetryDecision{GiveUp: true}
	}

	delay := p.baseDelay
	// Cap the shift so pathological attempt counts cannot overflow.
	shift := failedAttempts - 1
	if shift > 30 {
		shift = 30
	}
	for i := 0; i < shift; i++ {
		delay *= 2
	}
	return RetryDecision{Delay: delay}
}
