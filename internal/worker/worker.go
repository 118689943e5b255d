// Package worker provides bounded concurrency for batch extraction.
package worker

import (
	"context"
	"sync"
)

// Semaphore provides a counting semaphore for controlling concurrency.
// It limits how many extraction sessions run at once.
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a new semaphore with the given number of permits.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		count = 1
	}
	s := &Semaphore{
		permits: make(chan struct{}, count),
	}
	for i := 0; i < count; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire takes a permit, or returns the context error if ctx ends first.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Semaphore is full, this shouldn't happen in normal use
	}
}

// Chan returns the underlying permit channel for use with select.
func (s *Semaphore) Chan() <-chan struct{} {
	return s.permits
}

// Result is the outcome of one job.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Run calls fn for every index in [0, n) with at most jobs calls in flight
// and returns the results in index order. Jobs not yet started when ctx
// ends report ctx's error.
func Run[T any](ctx context.Context, n, jobs int, fn func(ctx context.Context, i int) (T, error)) []Result[T] {
	results := make([]Result[T], n)
	sem := NewSemaphore(jobs)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		results[i].Index = i
		if err := sem.Acquire(ctx); err != nil {
			results[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release()
			v, err := fn(ctx, i)
			results[i].Value = v
			results[i].Err = err
		}(i)
	}
	wg.Wait()
	return results
}

// Progress counts finished jobs.
type Progress struct {
	Complete int
	Failed   int
	Total    int
}

// Percent returns the completion percentage.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Complete+p.Failed) / float64(p.Total) * 100
}
