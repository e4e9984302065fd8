package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// WorkFunc is the signature for queued work.
type WorkFunc func(ctx context.Context) error

// Queue runs a batch of downloads with an optional concurrency limit.
type Queue struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewQueue creates a Queue with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func NewQueue(maxConcurrent int) *Queue {
	q := &Queue{}
	if maxConcurrent > 0 {
		q.sem = make(chan struct{}, maxConcurrent)
	}
	return q
}

// Wait blocks until all queued work completes.
// Returns all errors joined via errors.Join, each prefixed with its label.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}

// Shutdown prevents work that has not yet started from executing.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

// Start launches fn in a new goroutine managed by the queue and returns
// a Result for tracking it. label identifies the work in joined errors,
// typically the destination path.
func (q *Queue) Start(ctx context.Context, label string, fn WorkFunc) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	q.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			q.wg.Done()
		}()

		if q.sem != nil {
			select {
			case q.sem <- struct{}{}:
				defer func() {
					<-q.sem
				}()
			case <-ctx.Done():
				r.err = ctx.Err()
				q.recordErr(label, r.err)
				return
			}
		}

		if q.shutdown.Load() {
			r.err = ErrQueueShutdown
			q.recordErr(label, r.err)
			return
		}

		r.err = fn(ctx)
		if r.err != nil {
			q.recordErr(label, r.err)
		}
	}()

	return r
}

// recordErr appends err to the queue's error slice under the mutex.
func (q *Queue) recordErr(label string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, fmt.Errorf("%s: %w", label, err))
}

// Result represents an in-flight or completed queued download.
type Result struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done returns a channel that is closed when the download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until the download completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Cancel cancels this download's context.
func (r *Result) Cancel() {
	r.cancel()
}
