// Package dedupe finds near-duplicate keyframes within one session.
//
// Artifacts are compared pairwise in insertion order. For i < j, j is a
// duplicate of the earliest artifact i that is not itself a duplicate and
// is within threshold. Clusters are not merged transitively.
package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/five82/keyframes/internal/config"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/fallback"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/metrics"
	"github.com/five82/keyframes/internal/ratelimit"
)

// Artifact is one persisted keyframe image.
type Artifact struct {
	ID   string
	Data []byte
}

// Duplicate marks Member as a near copy of Canonical.
type Duplicate struct {
	Member     Artifact
	Canonical  Artifact
	Similarity float64
	Strategy   config.Strategy
}

// Result partitions the input artifacts.
type Result struct {
	Unique     []Artifact
	Duplicates []Duplicate
	// Strategy is the strategy that was requested.
	Strategy config.Strategy
	// RateLimited is set when the judge refused a call; the caller may retry
	// the judged strategy later.
	RateLimited bool
	// Fallbacks describes every strategy switch, in order.
	Fallbacks []string
}

// Match is the outcome of comparing one pair.
type Match struct {
	Similarity float64
	Duplicate  bool
	Strategy   config.Strategy
}

// Pair is two artifacts to compare.
type Pair struct {
	A, B Artifact
}

// Comparer decides whether a pair is a duplicate at a threshold.
type Comparer interface {
	Compare(ctx context.Context, p Pair, threshold float64) (Match, error)
}

// Resolver runs duplicate resolution. The zero value is not usable; use
// NewResolver.
type Resolver struct {
	judge          Judge
	limiter        *ratelimit.Window
	maxComparisons int
	prompt         string
	metrics        *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithJudge enables the judged strategy.
func WithJudge(j Judge) Option {
	return func(r *Resolver) {
		r.judge = j
	}
}

// WithLimiter shares a rate limiter across every judged call.
func WithLimiter(w *ratelimit.Window) Option {
	return func(r *Resolver) {
		r.limiter = w
	}
}

// WithMaxComparisons caps judged calls per invocation.
func WithMaxComparisons(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxComparisons = n
		}
	}
}

// WithPrompt replaces the prompt sent to the judge.
func WithPrompt(p string) Option {
	return func(r *Resolver) {
		r.prompt = p
	}
}

// WithMetrics records judge calls and duplicates.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a resolver. Without WithLimiter a private limiter with
// the default window is used.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		maxComparisons: config.DefaultJudgeMaxComparisons,
		prompt:         DefaultPrompt,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.limiter == nil {
		r.limiter = ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	return r
}

// Resolve partitions artifacts into unique frames and duplicates.
//
// The judged strategy falls back to hashing for the rest of the call when
// its comparison budget runs out, the judge fails, or the limiter refuses a
// call. Resolve only fails on an invalid threshold or a cancelled context.
func (r *Resolver) Resolve(ctx context.Context, artifacts []Artifact, threshold float64, strategy config.Strategy) (*Result, error) {
	if err := config.ValidateDedupeThreshold(threshold); err != nil {
		return nil, coreerrors.NewInvalidParameterError("dedupe threshold", err)
	}
	if strategy == "" {
		strategy = config.StrategyHash
	}

	result := &Result{Strategy: strategy}
	if len(artifacts) < 2 {
		result.Unique = append([]Artifact(nil), artifacts...)
		return result, nil
	}

	chain := r.chain(strategy, threshold)
	chain.OnFallback = func(ev fallback.Event) {
		if coreerrors.IsRateLimit(ev.Err) {
			result.RateLimited = true
		}
		logging.Warn("duplicate strategy fell back", "from", ev.From, "to", ev.To, "reason", ev.Err)
	}

	dup := make([]bool, len(artifacts))
	for i := range artifacts {
		if dup[i] {
			continue
		}
		for j := i + 1; j < len(artifacts); j++ {
			if dup[j] {
				continue
			}
			m, err := chain.Do(ctx, Pair{A: artifacts[i], B: artifacts[j]})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, coreerrors.NewOperationFailedError("compare keyframes", err)
			}
			if !m.Duplicate {
				continue
			}
			dup[j] = true
			result.Duplicates = append(result.Duplicates, Duplicate{
				Member:     artifacts[j],
				Canonical:  artifacts[i],
				Similarity: m.Similarity,
				Strategy:   m.Strategy,
			})
			r.metrics.Duplicate(string(m.Strategy))
		}
	}

	for _, ev := range chain.Events() {
		result.Fallbacks = append(result.Fallbacks, fmt.Sprintf("%s -> %s: %v", ev.From, ev.To, ev.Err))
	}
	for i, a := range artifacts {
		if !dup[i] {
			result.Unique = append(result.Unique, a)
		}
	}
	logging.Info("duplicates resolved",
		"artifacts", len(artifacts),
		"unique", len(result.Unique),
		"duplicates", len(result.Duplicates),
		"strategy", strategy,
		"finished_with", chain.Current())
	return result, nil
}

func (r *Resolver) chain(strategy config.Strategy, threshold float64) *fallback.Chain[Pair, Match] {
	hash := NewHashStrategy()
	var steps []fallback.Step[Pair, Match]

	if strategy == config.StrategyJudged {
		if r.judge == nil {
			logging.Warn("judged strategy requested without a judge, using hash")
		} else {
			judged := &JudgedStrategy{
				Judge:          r.judge,
				Limiter:        r.limiter,
				MaxComparisons: r.maxComparisons,
				Prompt:         r.prompt,
				Metrics:        r.metrics,
			}
			steps = append(steps, step(config.StrategyJudged, judged, threshold))
		}
	}
	steps = append(steps, step(config.StrategyHash, hash, threshold))

	c := fallback.New(steps...)
	c.Retryable = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return c
}

func step(name config.Strategy, c Comparer, threshold float64) fallback.Step[Pair, Match] {
	return fallback.Step[Pair, Match]{
		Name: string(name),
		Run: func(ctx context.Context, p Pair) (Match, error) {
			m, err := c.Compare(ctx, p, threshold)
			m.Strategy = name
			return m, err
		},
	}
}
