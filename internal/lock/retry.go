package lock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrier retries lock attempts with exponential backoff
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	timeout         time.Duration
}

// RetrierOptions contains options for creating a Retrier
type RetrierOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Timeout bounds the total time spent retrying
	Timeout time.Duration
}

// DefaultRetrierOptions returns default retrier options
func DefaultRetrierOptions() RetrierOptions {
	return RetrierOptions{
		InitialInterval: 25 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		Multiplier:      2.0,
		Timeout:         10 * time.Second,
	}
}

// NewRetrier creates a new Retrier with the given options
func NewRetrier(opts RetrierOptions) *Retrier {
	defaults := DefaultRetrierOptions()
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaults.InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = defaults.MaxInterval
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = defaults.Multiplier
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	return &Retrier{
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
		multiplier:      opts.Multiplier,
		timeout:         opts.Timeout,
	}
}

// newBackoff creates a new exponential backoff
func (r *Retrier) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.Multiplier = r.multiplier
	b.MaxElapsedTime = r.timeout
	b.RandomizationFactor = 0.5
	b.Reset()

	return b
}

// Retry runs operation until it succeeds, returns a non-retryable error, the
// timeout elapses or ctx is done. notify may be nil.
func (r *Retrier) Retry(ctx context.Context, operation func() error, retryable func(error) bool, notify func(error, time.Duration)) error {
	b := backoff.WithContext(r.newBackoff(), ctx)

	return backoff.RetryNotify(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}
