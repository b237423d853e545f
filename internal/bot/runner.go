package bot

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Handler consumes messages. *Dispatcher is the production Handler.
type Handler interface {
	Dispatch(ctx context.Context, m Message)
}

// Runner dispatches messages concurrently, at most workers at a time.
type Runner struct {
	h   Handler
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewRunner returns a Runner. workers < 1 means 1.
func NewRunner(h Handler, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{h: h, sem: semaphore.NewWeighted(int64(workers))}
}

// Submit schedules m, blocking while every worker is busy. It returns
// ctx.Err() if ctx ends first. The handler itself runs detached from ctx's
// cancellation so shutdown does not cut a command in half.
func (r *Runner) Submit(ctx context.Context, m Message) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	r.wg.Add(1)
	hctx := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		r.h.Dispatch(hctx, m)
	}()
	return nil
}

// Run submits every message from in until in is closed or ctx ends, then
// waits for in-flight handlers.
func (r *Runner) Run(ctx context.Context, in <-chan Message) error {
	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				return nil
			}
			if err := r.Submit(ctx, m); err != nil {
				return err
			}
		}
	}
}

// Wait blocks until every submitted message has been handled.
func (r *Runner) Wait() { r.wg.Wait() }
