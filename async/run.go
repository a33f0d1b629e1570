package async

import (
	"context"
	"time"
)

// Run will run a function in a goroutine, returning its result via a channel.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}

// Sleep pauses for d, returning early with the context's error if ctx is done first. A non-positive d returns
// immediately without consulting ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
