// Package background runs fire-and-forget work that must not hold up an
// HTTP response, such as post-order profile saves and notifications.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Runner struct {
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

// Go runs fn in its own goroutine. ctx loses its cancellation so the task
// outlives the request that scheduled it. Errors and panics are logged.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				r.log.Error("background task panicked",
					zap.String("task", name),
					zap.String("panic", fmt.Sprint(p)))
			}
		}()

		if err := fn(detached); err != nil {
			r.log.Warn("background task failed",
				zap.String("task", name),
				zap.Duration("took", time.Since(start)),
				zap.Error(err))
			return
		}
		r.log.Debug("background task done",
			zap.String("task", name),
			zap.Duration("took", time.Since(start)))
	}()
}

// Wait blocks until every scheduled task has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
