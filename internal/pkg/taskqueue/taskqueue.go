// Package taskqueue runs independent units of work, either one after another
// or with bounded parallelism. A failing task never cancels its siblings;
// tasks report their own outcome.
package taskqueue

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Task func(ctx context.Context)

type Scheduler interface {
	// Run blocks until every submitted task has returned. Tasks not yet
	// started when ctx is done are skipped and ctx.Err() is returned.
	Run(ctx context.Context, tasks []Task) error
}

// ForConcurrency returns Sequential for n <= 1 and Bounded(n) otherwise.
func ForConcurrency(n int) Scheduler {
	if n <= 1 {
		return Sequential{}
	}
	return Bounded(n)
}

type Sequential struct{}

func (Sequential) Run(ctx context.Context, tasks []Task) error {
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		task(ctx)
	}
	return nil
}

type bounded struct {
	limit int
}

// Bounded runs at most n tasks at once.
func Bounded(n int) Scheduler {
	if n < 1 {
		n = 1
	}
	return bounded{limit: n}
}

func (b bounded) Run(ctx context.Context, tasks []Task) error {
	// plain Group: no shared cancellation between tasks
	var g errgroup.Group
	g.SetLimit(b.limit)

	var skipped error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			skipped = err
			break
		}
		task := task
		g.Go(func() error {
			task(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return skipped
}
