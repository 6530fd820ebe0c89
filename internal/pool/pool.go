// Package pool provides a bounded worker pool for fan-out of storage calls.
//
// Tasks are addressed by index so callers record results into pre-sized
// slices; result order never depends on completion order.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the concurrency used when a non-positive limit is given.
const DefaultLimit = 8

// Pool runs indexed tasks with at most Limit of them in flight.
type Pool struct {
	limit int
}

// New creates a Pool. A non-positive limit uses DefaultLimit.
func New(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{limit: limit}
}

// Limit returns the maximum number of tasks in flight.
func (p *Pool) Limit() int {
	return p.limit
}

// Go runs task(ctx, i) for i in [0, n) and stops at the first failure.
// The context passed to tasks is cancelled when any task fails or the parent
// is cancelled; tasks not yet started are skipped. Go returns after every
// started task has returned, with the first error.
func (p *Pool) Go(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Each runs task(ctx, i) for every i in [0, n) regardless of other tasks'
// outcomes. Failures are the task's to record. If ctx is cancelled, tasks
// not yet started are passed to skipped instead of task.
func (p *Pool) Each(ctx context.Context, n int, task func(ctx context.Context, i int), skipped func(i int, err error)) {
	var g errgroup.Group
	g.SetLimit(p.limit)

	for i := range n {
		if err := ctx.Err(); err != nil {
			if skipped != nil {
				skipped(i, err)
			}
			continue
		}
		g.Go(func() error {
			task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}
