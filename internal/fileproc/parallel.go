// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/esmaudit/pkg/parser"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Sorted returns a copy of the collected errors ordered by path, so reports
// do not depend on worker scheduling.
func (e *ProcessingErrors) Sorted() []ProcessingError {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	out := make([]ProcessingError, len(e.Errors))
	copy(out, e.Errors)
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap returns nil (ProcessingErrors doesn't wrap a single error).
func (e *ProcessingErrors) Unwrap() error {
	return nil
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// DefaultWorkers returns the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// ProgressFunc is called after each work item is processed.
type ProgressFunc func()

// DrainFunc handles one work item with the worker's dedicated parser. It
// returns the item's result and any follow-up items to enqueue.
type DrainFunc[T, R any] func(psr *parser.Parser, item T) (R, []T)

// Drain processes seeds and everything they discover with a fixed pool of
// workers. Every worker owns one parser and folds its results into a local
// accumulator with merge, starting from the zero value of R. The accumulators
// are merged once all workers have exited, so merge must be associative and
// commutative with the zero value as identity.
//
// Drain returns when the queue is empty and no item is in flight, or when ctx
// is cancelled, in which case the partial result is returned with ctx.Err().
// If maxWorkers is <= 0, defaults to 2x NumCPU.
func Drain[T, R any](
	ctx context.Context,
	seeds []T,
	maxWorkers int,
	fn DrainFunc[T, R],
	merge func(R, R) R,
	onProgress ProgressFunc,
) (R, error) {
	var total R
	if len(seeds) == 0 {
		return total, ctx.Err()
	}

	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers()
	}

	q := newQueue(seeds)
	stop := context.AfterFunc(ctx, q.abort)
	defer stop()

	p := pool.NewWithResults[R]().WithMaxGoroutines(maxWorkers)
	for range maxWorkers {
		p.Go(func() R {
			// A panicking item must not leave the other workers waiting on it.
			defer func() {
				if r := recover(); r != nil {
					q.abort()
					panic(r)
				}
			}()

			psr := parser.New()
			defer psr.Close()

			var acc R
			for {
				item, ok := q.pop()
				if !ok {
					return acc
				}

				result, next := fn(psr, item)
				acc = merge(acc, result)
				q.finish(next)

				if onProgress != nil {
					onProgress()
				}
			}
		})
	}

	for _, r := range p.Wait() {
		total = merge(total, r)
	}
	return total, ctx.Err()
}

// queue is an unbounded LIFO work list shared by the Drain workers. It tracks
// in-flight items so workers can tell "empty for now" from "done".
type queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	inflight int
	aborted  bool
}

func newQueue[T any](seeds []T) *queue[T] {
	q := &queue[T]{items: append([]T(nil), seeds...)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// pop blocks until an item is available or the work is exhausted.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.inflight > 0 && !q.aborted {
		q.cond.Wait()
	}

	var zero T
	if q.aborted || len(q.items) == 0 {
		return zero, false
	}

	last := len(q.items) - 1
	item := q.items[last]
	q.items[last] = zero
	q.items = q.items[:last]
	q.inflight++
	return item, true
}

// finish marks one popped item as done and enqueues what it discovered.
// Both happen under one lock so no worker can observe an empty, idle queue
// in between.
func (q *queue[T]) finish(next []T) {
	q.mu.Lock()
	q.items = append(q.items, next...)
	q.inflight--
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *queue[T]) abort() {
	q.mu.Lock()
	q.aborted = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
