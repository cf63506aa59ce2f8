// Package waitfor implements a bounded wait on a predicate that is checked
// both periodically and whenever an external event signals a change.
package waitfor

import (
	"context"
	"time"
)

// Options controls a wait.
type Options struct {
	// Interval between periodic checks. Zero disables polling.
	Interval time.Duration
	// Timeout bounds the whole wait. Zero means only ctx bounds it.
	Timeout time.Duration
	// Events triggers an immediate check on every receive. May be nil.
	Events <-chan struct{}
	// Release is called exactly once before Until returns, typically to
	// unsubscribe the Events source.
	Release func()
}

// Check reports the value and whether the wait is over. A non-nil error
// also ends the wait.
type Check[T any] func(ctx context.Context) (T, bool, error)

// Until runs check immediately, then on every tick and every event, and
// returns the first value for which check reports done. ok is false when
// the timeout or ctx ends the wait first.
func Until[T any](ctx context.Context, opts Options, check Check[T]) (value T, ok bool, err error) {
	if opts.Release != nil {
		defer opts.Release()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var tick <-chan time.Time
	if opts.Interval > 0 {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	events := opts.Events
	for {
		v, done, err := check(ctx)
		if err != nil {
			var zero T
			return zero, false, err
		}
		if done {
			return v, true, nil
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, false, nil
		case <-tick:
		case _, open := <-events:
			if !open {
				events = nil
			}
		}
	}
}
