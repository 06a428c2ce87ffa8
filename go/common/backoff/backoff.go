// Package backoff contains helpers for dealing with backoffs.
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewExponentialBackOff creates an instance of ExponentialBackOff that
// gives up after maxElapsed. A zero maxElapsed never gives up.
func NewExponentialBackOff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	return b
}

// Retry calls fn until it succeeds, fails with a backoff.Permanent error,
// the policy gives up or the context is cancelled.
func Retry(ctx context.Context, policy backoff.BackOff, fn func() error) error {
	return backoff.Retry(fn, backoff.WithContext(policy, ctx))
}
