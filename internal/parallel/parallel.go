// Package parallel runs groups of named workers against a shared,
// cancellable context. A new Executor is built for every fan-out; executors
// are never reused.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Executor manages parallel execution of workers with cancellation support
type Executor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Int64

	mu   sync.Mutex
	errs []error
}

// NewExecutor creates a new parallel executor with the given context
func NewExecutor(ctx context.Context) *Executor {
	execCtx, cancel := context.WithCancel(ctx)
	return &Executor{
		ctx:    execCtx,
		cancel: cancel,
	}
}

// Go runs fn in a goroutine. fn is skipped if the executor is already
// cancelled; a returned error is recorded under name.
func (e *Executor) Go(name string, fn func(context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		select {
		case <-e.ctx.Done():
			return
		default:
		}

		e.started.Add(1)
		if err := fn(e.ctx); err != nil {
			e.mu.Lock()
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			e.mu.Unlock()
		}
	}()
}

// Wait blocks until every worker returns, releases the executor's context
// and joins the recorded errors.
func (e *Executor) Wait() error {
	e.wg.Wait()
	e.cancel()
	return errors.Join(e.Errors()...)
}

// Cancel cancels all running operations
func (e *Executor) Cancel() {
	e.cancel()
}

func (e *Executor) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// Started is the number of workers that actually ran.
func (e *Executor) Started() int {
	return int(e.started.Load())
}

func (e *Executor) Context() context.Context {
	return e.ctx
}

// FanOut starts exactly n workers, numbered from 0, and waits for all of them.
func FanOut(ctx context.Context, n int, fn func(ctx context.Context, worker int) error) error {
	exec := NewExecutor(ctx)
	for i := 0; i < n; i++ {
		worker := i
		exec.Go(fmt.Sprintf("worker %d", worker), func(ctx context.Context) error {
			return fn(ctx, worker)
		})
	}
	return exec.Wait()
}
