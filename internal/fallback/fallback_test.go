package fallback

import (
	"context"
	"errors"
	"testing"
)

func constStep(name string, out int, err error, calls *int) Step[string, int] {
	return Step[string, int]{
		Name: name,
		Run: func(context.Context, string) (int, error) {
			*calls++
			return out, err
		},
	}
}

func TestChainFirstStepSucceeds(t *testing.T) {
	var a, b int
	c := New(constStep("a", 1, nil, &a), constStep("b", 2, nil, &b))

	got, err := c.Do(context.Background(), "x")
	if err != nil || got != 1 {
		t.Fatalf("Do() = %d, %v; want 1, nil", got, err)
	}
	if b != 0 {
		t.Error("second step should not run when the first succeeds")
	}
	if len(c.Events()) != 0 {
		t.Errorf("Events() = %v, want none", c.Events())
	}
}

func TestChainFallbackIsSticky(t *testing.T) {
	var a, b int
	boom := errors.New("boom")
	c := New(constStep("judged", 0, boom, &a), constStep("hash", 7, nil, &b))

	var seen []Event
	c.OnFallback = func(ev Event) { seen = append(seen, ev) }

	for i := 0; i < 3; i++ {
		got, err := c.Do(context.Background(), "x")
		if err != nil || got != 7 {
			t.Fatalf("Do() = %d, %v; want 7, nil", got, err)
		}
	}

	if a != 1 {
		t.Errorf("failed step ran %d times, want 1", a)
	}
	if b != 3 {
		t.Errorf("fallback step ran %d times, want 3", b)
	}
	if c.Current() != "hash" {
		t.Errorf("Current() = %q, want hash", c.Current())
	}
	if len(seen) != 1 || seen[0].From != "judged" || seen[0].To != "hash" || !errors.Is(seen[0].Err, boom) {
		t.Errorf("OnFallback events = %+v", seen)
	}
}

func TestChainExhausted(t *testing.T) {
	var a, b int
	last := errors.New("software decode failed")
	c := New(constStep("hw", 0, errors.New("no device"), &a), constStep("sw", 0, last, &b))

	_, err := c.Do(context.Background(), "x")
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, last) {
		t.Errorf("Do() error = %v, want ErrExhausted wrapping the last failure", err)
	}
	if c.Current() != "" {
		t.Errorf("Current() = %q, want empty", c.Current())
	}

	if _, err := c.Do(context.Background(), "x"); !errors.Is(err, ErrExhausted) {
		t.Errorf("Do() on exhausted chain error = %v", err)
	}
}

func TestChainNonRetryableError(t *testing.T) {
	var a, b int
	fatal := errors.New("bad input")
	c := New(constStep("a", 0, fatal, &a), constStep("b", 1, nil, &b))
	c.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

	if _, err := c.Do(context.Background(), "x"); !errors.Is(err, fatal) {
		t.Errorf("Do() error = %v, want %v", err, fatal)
	}
	if b != 0 || c.Current() != "a" {
		t.Error("a non-retryable error should not advance the chain")
	}
}

func TestChainCancelledContext(t *testing.T) {
	var a int
	c := New(constStep("a", 1, nil, &a))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Do(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if a != 0 {
		t.Error("no step should run after cancellation")
	}
}
