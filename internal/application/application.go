package application

import (
	"context"
	"sync"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Runner starts work that outlives the request that triggered it.
type Runner interface {
	Go(ctx context.Context, fn func(ctx context.Context))
}

// AsyncRunner runs each job on its own goroutine, detached from the caller's
// cancellation. Wait blocks until every started job has returned.
type AsyncRunner struct {
	wg sync.WaitGroup
}

func NewAsyncRunner() *AsyncRunner { return &AsyncRunner{} }

func (r *AsyncRunner) Go(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(ctx)
	}()
}

func (r *AsyncRunner) Wait(ctx context.Context) error {
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

// InlineRunner runs jobs synchronously on the caller's goroutine.
type InlineRunner struct{}

func (InlineRunner) Go(ctx context.Context, fn func(ctx context.Context)) { fn(ctx) }
