package video

import (
	"errors"
	"fmt"
	"io"

	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/logging"
)

// SamplingPlan is the stride between positions considered by a detector.
type SamplingPlan struct {
	Stride int
}

// NewSamplingPlan computes max(1, floor(frameCount / (10*fps))), which
// processes roughly ten positions per second of video regardless of length.
func NewSamplingPlan(frameCount int, fps float64) SamplingPlan {
	if fps <= 0 {
		return SamplingPlan{Stride: 1}
	}
	stride := int(float64(frameCount) / (10 * fps))
	return SamplingPlan{Stride: max(1, stride)}
}

// Material reports whether the raw position is one the detectors consider.
func (p SamplingPlan) Material(index int) bool {
	return index == 0 || index%p.Stride == 0
}

// Sampler walks a Source and yields only material positions.
// Any read or seek failure ends the sequence.
type Sampler struct {
	src  Source
	meta Metadata
	plan SamplingPlan
	pos  int
	done bool
}

// NewSampler validates the source metadata and builds a sampler over it.
func NewSampler(src Source) (*Sampler, error) {
	meta := src.Metadata()
	if meta.FrameCount <= 0 {
		return nil, coreerrors.NewInvalidVideoError(fmt.Sprintf("frame count must be positive, got %d", meta.FrameCount), nil)
	}
	if meta.FPS <= 0 {
		return nil, coreerrors.NewInvalidVideoError(fmt.Sprintf("fps must be positive, got %g", meta.FPS), nil)
	}
	return &Sampler{
		src:  src,
		meta: meta,
		plan: NewSamplingPlan(meta.FrameCount, meta.FPS),
	}, nil
}

// Metadata returns the source metadata.
func (s *Sampler) Metadata() Metadata {
	return s.meta
}

// Plan returns the sampling plan.
func (s *Sampler) Plan() SamplingPlan {
	return s.plan
}

// Consumed returns the number of raw positions read so far.
func (s *Sampler) Consumed() int {
	return s.pos
}

// Next returns the next material frame. Non-material positions are still
// decoded so the cursor advances. ok is false once the stream has ended.
func (s *Sampler) Next() (*Frame, bool) {
	for !s.done {
		f, ok := s.read()
		if !ok {
			return nil, false
		}
		if s.plan.Material(f.Index) {
			return f, true
		}
	}
	return nil, false
}

// ReadAt seeks to index and decodes exactly that frame. The cursor is left
// just after it, so a following Next continues forward sampling. ReadAt may
// be used after the stream has ended to revisit earlier frames.
func (s *Sampler) ReadAt(index int) (*Frame, bool) {
	if index < 0 {
		s.end(fmt.Errorf("seek to negative frame %d", index))
		return nil, false
	}
	if err := s.src.Seek(index); err != nil {
		s.end(err)
		return nil, false
	}
	s.pos = index
	s.done = false
	return s.read()
}

func (s *Sampler) read() (*Frame, bool) {
	f, err := s.src.ReadNext()
	if err != nil {
		s.end(err)
		return nil, false
	}
	f.Index = s.pos
	s.pos++
	return f, true
}

func (s *Sampler) end(err error) {
	s.done = true
	if !errors.Is(err, io.EOF) {
		logging.Debug("frame source ended early", "position", s.pos, "error", err)
	}
}
