package keyframe

import (
	"context"
	"fmt"

	"github.com/five82/keyframes/internal/config"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/imgproc"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/video"
)

// ValidateDifference checks the parameters used by DetectDifferences.
func ValidateDifference(p Params) error {
	if p.Threshold <= 0 {
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("threshold must be positive, got %g", p.Threshold), config.ErrInvalidThreshold)
	}
	if p.MaxFrames <= 0 {
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("max_frames must be positive, got %d", p.MaxFrames), config.ErrInvalidMaxFrames)
	}
	if p.TransitionSensitivity < 0 || p.TransitionSensitivity > 1 {
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("transition sensitivity must be 0-1, got %g", p.TransitionSensitivity), config.ErrInvalidSensitivity)
	}
	return nil
}

// DetectDifferences retains the first sampled frame and then every sampled
// frame whose mean absolute luma difference from the reference exceeds
// p.Threshold. Each retained frame after the first is annotated by the
// transition classifier. Detection stops when the stream ends or
// p.MaxFrames keyframes have been persisted.
func DetectDifferences(ctx context.Context, s *video.Sampler, p Params, sink Sink) (*Result, error) {
	if err := ValidateDifference(p); err != nil {
		return nil, err
	}

	meta := s.Metadata()
	res := &Result{}
	var (
		ref     []uint8
		history diffHistory
	)

	logging.Debug("difference detection starting",
		"stride", s.Plan().Stride,
		"threshold", p.Threshold,
		"max_frames", p.MaxFrames,
		"reference", p.Reference)

	for len(res.Keyframes) < p.MaxFrames {
		f, ok := s.Next()
		if !ok {
			break
		}
		res.Sampled++
		p.sampled(f.Index)
		luma := imgproc.Luma(f.Pix)

		if ref == nil {
			ref = luma
			res.emit(ctx, sink, f, Candidate{
				FrameNumber: f.Index,
				Timestamp:   meta.Timestamp(f.Index),
			})
			continue
		}

		diff := imgproc.MeanAbsDiff(luma, ref)
		history.push(diff)

		if diff > p.Threshold {
			cls := ClassifyTransition(luma, f.Width, f.Height, history.snapshot(), p.TransitionSensitivity)
			res.emit(ctx, sink, f, Candidate{
				FrameNumber:  f.Index,
				Timestamp:    meta.Timestamp(f.Index),
				Score:        diff,
				IsTransition: cls.IsTransition,
			})
			logging.Debug("keyframe retained",
				"frame", f.Index,
				"score", diff,
				"transition", cls.IsTransition,
				"confidence", cls.Confidence)
			ref = luma
			continue
		}

		if p.Reference == config.ReferenceSampled {
			ref = luma
		}
	}

	return res, nil
}

func (r *Result) emit(ctx context.Context, sink Sink, f *video.Frame, c Candidate) bool {
	if sink != nil {
		if err := sink.Emit(ctx, f, c); err != nil {
			logging.Warn("failed to persist keyframe, skipping", "frame", c.FrameNumber, "error", err)
			r.Skipped++
			return false
		}
	}
	r.Keyframes = append(r.Keyframes, c)
	if c.IsTransition {
		r.Transitions++
	}
	return true
}
