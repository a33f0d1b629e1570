// Package retry runs an operation again after an exponentially growing delay when it fails.
package retry

import (
	"context"
	"time"

	"github.com/alanbriolat/loom-archiver/async"
)

type Policy struct {
	// MaxAttempts is the total number of attempts, including the first. Values below 1 mean 1.
	MaxAttempts int
	// InitialDelay is the wait after the first failed attempt; it doubles after each subsequent failure.
	InitialDelay time.Duration
	// MaxDelay is the ceiling: once the next delay would exceed it, the last error is returned instead of waiting.
	MaxDelay time.Duration
	// Wait is used to pause between attempts; defaults to async.Sleep.
	Wait func(ctx context.Context, d time.Duration) error
	// OnRetry, if set, is called before each wait with the attempt that just failed (1-based).
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy waits 1s, 2s, 4s, 8s between 5 attempts.
var DefaultPolicy = Policy{
	MaxAttempts:  5,
	InitialDelay: 1000 * time.Millisecond,
	MaxDelay:     32000 * time.Millisecond,
}

// Do calls op until it succeeds, attempts run out, or the next delay would exceed the ceiling, and returns the last
// error unchanged. If ctx is cancelled during a wait the context error is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	wait := p.Wait
	if wait == nil {
		wait = async.Sleep
	}
	remaining := p.MaxAttempts
	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if remaining <= 1 || delay > p.MaxDelay {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if werr := wait(ctx, delay); werr != nil {
			return werr
		}
		remaining--
		delay *= 2
	}
}
