// Package retry provides the single retry policy shared by every outbound
// client (bill registry, relevance validator). Call sites declare how many
// attempts they want and which errors are retryable; the backoff curve and
// timeout handling live here so they cannot drift per call site.
package retry

import (
	"context"
	"errors"
	"time"

	"pledgewatch/pkg/platform/sentinel"
)

// Policy describes a bounded retry loop with exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether an error is worth another attempt. When nil,
	// everything except sentinel.ErrNotFound and context errors is retried.
	Retryable func(error) bool
}

// DefaultPolicy matches the upstream rate expectations of the external
// services this system talks to: few attempts, seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrMalformed) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do runs fn until it succeeds, exhausts attempts, or hits a non-retryable
// error. The last error is returned as-is so sentinel checks keep working.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !p.retryable(err) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
