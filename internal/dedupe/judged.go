package dedupe

import (
	"context"
	"errors"
	"fmt"

	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/metrics"
	"github.com/five82/keyframes/internal/ratelimit"
)

// DefaultPrompt asks the judge for a strict JSON verdict.
const DefaultPrompt = `Compare these two images and determine if they are duplicates or very similar.
Rate their similarity from 0 to 1 where:
- 0 means completely different
- 1 means identical or nearly identical

Return ONLY a JSON with two fields:
{
  "similarity_score": (number between 0 and 1),
  "are_duplicates": (true/false)
}`

// ErrBudgetExhausted is returned once a judged strategy has spent its
// comparisons.
var ErrBudgetExhausted = errors.New("judge comparison budget exhausted")

// Verdict is a judge's answer for one pair.
type Verdict struct {
	Similarity    float64
	AreDuplicates bool
}

// Judge scores the similarity of two encoded images.
type Judge interface {
	Judge(ctx context.Context, a, b []byte, prompt string) (Verdict, error)
}

// JudgedStrategy delegates pairs to an external judge. It is used for one
// resolution and is not safe for concurrent use.
type JudgedStrategy struct {
	Judge          Judge
	Limiter        *ratelimit.Window
	MaxComparisons int
	Prompt         string
	Metrics        *metrics.Metrics

	used int
}

// Used returns how many judge calls were made.
func (s *JudgedStrategy) Used() int {
	return s.used
}

// Compare implements Comparer. A pair is a duplicate only when the judge
// says so and its score reaches threshold. A pair with a missing image is
// never a duplicate and costs no judge call.
func (s *JudgedStrategy) Compare(ctx context.Context, p Pair, threshold float64) (Match, error) {
	if len(p.A.Data) == 0 || len(p.B.Data) == 0 {
		return Match{}, nil
	}
	if s.used >= s.MaxComparisons {
		return Match{}, ErrBudgetExhausted
	}
	if s.Limiter != nil && !s.Limiter.Allow() {
		s.Metrics.JudgeCall(metrics.OutcomeRateLimited)
		return Match{}, coreerrors.NewRateLimitError(fmt.Sprintf("similarity judge, retry after %s", s.Limiter.RetryAfter()))
	}
	s.used++
	if s.Limiter != nil {
		logging.Debug("judge call", "pair", p.A.ID+"/"+p.B.ID, "budget_used", s.used, "rate_remaining", s.Limiter.Remaining())
	}

	v, err := s.Judge.Judge(ctx, p.A.Data, p.B.Data, s.Prompt)
	if err != nil {
		s.Metrics.JudgeCall(metrics.OutcomeError)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Match{}, ctxErr
		}
		if coreerrors.IsKind(err, coreerrors.KindExternalService) {
			return Match{}, err
		}
		return Match{}, coreerrors.NewExternalServiceError("similarity judge", err)
	}
	s.Metrics.JudgeCall(metrics.OutcomeOK)

	sim := min(max(v.Similarity, 0), 1)
	return Match{Similarity: sim, Duplicate: v.AreDuplicates && sim >= threshold}, nil
}
