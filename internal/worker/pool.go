package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Store operations block on disk I/O, so interactive callers run each one
// as a unit of work on a bounded pool and read the outcome from the task's
// completion channels. Cancellation is admission-only: a context cancels a
// task still waiting for a slot, but a running store write is never
// aborted mid-flight — atomicity comes from the store's replace
// discipline, and a stale result is simply ignored by the caller.

// Result carries a finished task's value or failure.
type Result struct {
	Value any
	Err   error
}

// Task is a unit of work. The report callback publishes coarse progress
// (0-100) to the handle's progress channel; passing it is optional.
type Task func(ctx context.Context, report func(percent int)) (any, error)

// Handle exposes one task's completion channels.
type Handle struct {
	done     chan Result
	progress chan int
}

// Done yields exactly one Result when the task finishes.
func (h *Handle) Done() <-chan Result {
	return h.done
}

// Progress yields coarse progress updates until the task finishes. Slow
// consumers lose intermediate updates rather than stalling the task.
func (h *Handle) Progress() <-chan int {
	return h.progress
}

// Wait blocks until the task finishes and returns its result.
func (h *Handle) Wait() Result {
	return <-h.done
}

// Pool runs tasks with a fixed concurrency bound.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool creates a pool running at most size tasks at once.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit schedules the task and returns immediately. The returned handle
// delivers exactly one Result, including when admission fails because ctx
// was cancelled before a slot opened up.
func (p *Pool) Submit(ctx context.Context, task Task) *Handle {
	h := &Handle{
		done:     make(chan Result, 1),
		progress: make(chan int, 8),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(h.progress)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			h.done <- Result{Err: err}
			return
		}
		defer p.sem.Release(1)

		report := func(percent int) {
			select {
			case h.progress <- percent:
			default:
			}
		}
		value, err := task(ctx, report)
		h.done <- Result{Value: value, Err: err}
	}()
	return h
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
