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

// ValidateScene checks the parameters used by DetectScenes.
func ValidateScene(p Params) error {
	if p.Threshold <= 0 {
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("threshold must be positive, got %g", p.Threshold), config.ErrInvalidThreshold)
	}
	if p.MaxFrames <= 0 {
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("max_frames must be positive, got %d", p.MaxFrames), config.ErrInvalidMaxFrames)
	}
	if p.MinSceneLength < 1 {
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("min_scene_length must be at least 1, got %d", p.MinSceneLength), config.ErrInvalidMinSceneLength)
	}
	return nil
}

// DetectScenes splits the video at histogram boundaries and emits the middle
// frame of each scene. A boundary needs a Bhattacharyya distance above
// p.Threshold/100 and at least p.MinSceneLength native frames since the
// scene began. A trailing scene is kept only if it is long enough and the
// cap has not been reached.
func DetectScenes(ctx context.Context, s *video.Sampler, p Params, sink Sink) (*Result, error) {
	if err := ValidateScene(p); err != nil {
		return nil, err
	}

	meta := s.Metadata()
	res := &Result{}
	limit := p.Threshold / 100
	sceneStart := 0
	started := false
	truncated := false
	var ref imgproc.Histogram

	logging.Debug("scene detection starting",
		"stride", s.Plan().Stride,
		"threshold", limit,
		"min_scene_length", p.MinSceneLength,
		"max_frames", p.MaxFrames,
		"reference", p.Reference)

	for len(res.Scenes) < p.MaxFrames {
		f, ok := s.Next()
		if !ok {
			break
		}
		res.Sampled++
		p.sampled(f.Index)
		hist := imgproc.NewHistogram(imgproc.Luma(f.Pix))

		if !started {
			started = true
			sceneStart = f.Index
			ref = hist
			continue
		}

		cur := f.Index
		dist := imgproc.Bhattacharyya(ref, hist)
		if dist > limit && cur-sceneStart >= p.MinSceneLength {
			scene := newScene(sceneStart, cur)
			res.Scenes = append(res.Scenes, scene)
			logging.Debug("scene boundary", "start", scene.Start, "end", scene.End, "distance", dist)

			if !res.emitScene(ctx, s, sink, meta, scene, dist) {
				truncated = true
				break
			}

			again, ok := s.ReadAt(cur)
			if !ok {
				truncated = true
				break
			}
			sceneStart = cur
			ref = imgproc.NewHistogram(imgproc.Luma(again.Pix))
			continue
		}

		if p.Reference == config.ReferenceSampled {
			ref = hist
		}
	}

	end := s.Consumed()
	if started && !truncated && len(res.Scenes) < p.MaxFrames && end-sceneStart >= p.MinSceneLength {
		scene := newScene(sceneStart, end)
		res.Scenes = append(res.Scenes, scene)
		logging.Debug("trailing scene", "start", scene.Start, "end", scene.End)
		res.emitScene(ctx, s, sink, meta, scene, 0)
	}

	return res, nil
}

// emitScene decodes the middle frame of scene and emits it. It returns false
// if the frame could not be decoded.
func (r *Result) emitScene(ctx context.Context, s *video.Sampler, sink Sink, meta video.Metadata, scene Scene, score float64) bool {
	mid := scene.Start + scene.Length/2
	f, ok := s.ReadAt(mid)
	if !ok {
		return false
	}
	id := len(r.Scenes) - 1
	r.emit(ctx, sink, f, Candidate{
		FrameNumber: mid,
		Timestamp:   meta.Timestamp(mid),
		Score:       score,
		SceneID:     &id,
	})
	return true
}
