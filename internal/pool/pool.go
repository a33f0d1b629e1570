// Package pool runs independent tasks with a fixed upper bound on how many are in flight.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/loom-archiver/generic"
)

type Task[T any] func(ctx context.Context) (T, error)

// RunBounded starts at most limit tasks at once, admitting the next queued task (in slice order) as soon as a running
// one returns. It waits for every task and returns one Result per task, at the task's index. A failing or panicking
// task never stops the others.
func RunBounded[T any](ctx context.Context, tasks []Task[T], limit int) []generic.Result[T] {
	if limit < 1 {
		limit = 1
	}
	results := make([]generic.Result[T], len(tasks))
	// Not errgroup.WithContext: one task's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = run(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func run[T any](ctx context.Context, task Task[T]) (result generic.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = generic.Err[T](fmt.Errorf("task panicked: %v", r))
		}
	}()
	return generic.NewResult(task(ctx))
}
