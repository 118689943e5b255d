// Package fallback runs an ordered list of strategies, moving to the next
// one when the current one fails.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrExhausted is returned when every step has failed.
var ErrExhausted = errors.New("all fallback steps failed")

// StepFunc produces Out from In.
type StepFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// Step is a named StepFunc.
type Step[In, Out any] struct {
	Name string
	Run  StepFunc[In, Out]
}

// Event describes one move from a failed step to the next.
type Event struct {
	From string
	To   string
	Err  error
}

// Chain tries its steps in order. A step that fails is abandoned for the
// rest of the chain's life, so later calls go straight to the step that
// last succeeded. Chain is safe for concurrent use.
type Chain[In, Out any] struct {
	// OnFallback, when set, is called each time the chain advances.
	OnFallback func(Event)
	// Retryable decides whether an error moves the chain on. nil treats
	// every error as retryable; a non-retryable error is returned as is.
	Retryable func(error) bool

	mu      sync.Mutex
	steps   []Step[In, Out]
	current int
	events  []Event
}

// New creates a chain over steps.
func New[In, Out any](steps ...Step[In, Out]) *Chain[In, Out] {
	return &Chain[In, Out]{steps: steps}
}

// Do runs the current step, advancing on failure until one succeeds or
// none remain.
func (c *Chain[In, Out]) Do(ctx context.Context, in In) (Out, error) {
	var zero Out
	var lastErr error
	for {
		step, idx, ok := c.step()
		if !ok {
			if lastErr == nil {
				return zero, ErrExhausted
			}
			return zero, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := step.Run(ctx, in)
		if err == nil {
			return out, nil
		}
		if c.Retryable != nil && !c.Retryable(err) {
			return zero, err
		}
		lastErr = err
		c.advance(idx, err)
	}
}

// Current returns the name of the step the next call will try, or "" if
// the chain is exhausted.
func (c *Chain[In, Out]) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= len(c.steps) {
		return ""
	}
	return c.steps[c.current].Name
}

// Events returns every fallback that has happened so far.
func (c *Chain[In, Out]) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *Chain[In, Out]) step() (Step[In, Out], int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= len(c.steps) {
		return Step[In, Out]{}, c.current, false
	}
	return c.steps[c.current], c.current, true
}

// advance moves past idx unless a concurrent caller already did.
func (c *Chain[In, Out]) advance(idx int, err error) {
	c.mu.Lock()
	if c.current != idx {
		c.mu.Unlock()
		return
	}
	c.current++
	ev := Event{From: c.steps[idx].Name, Err: err}
	if c.current < len(c.steps) {
		ev.To = c.steps[c.current].Name
	}
	c.events = append(c.events, ev)
	hook := c.OnFallback
	c.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
}
