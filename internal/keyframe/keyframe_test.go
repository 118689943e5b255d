package keyframe

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/five82/keyframes/internal/config"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/video"
)

// clip builds n solid gray frames; lumaAt returns the gray level per index.
func clip(n int, lumaAt func(i int) byte) []*video.Frame {
	frames := make([]*video.Frame, n)
	for i := range frames {
		v := lumaAt(i)
		frames[i] = video.SolidFrame(8, 8, v, v, v)
	}
	return frames
}

func sampler(t *testing.T, fps float64, frames []*video.Frame) (*video.Sampler, *video.MemorySource) {
	t.Helper()
	src := video.NewMemorySource(fps, frames)
	s, err := video.NewSampler(src)
	if err != nil {
		t.Fatalf("NewSampler() error = %v", err)
	}
	return s, src
}

type recordingSink struct {
	frames []int
	failAt map[int]bool
}

func (r *recordingSink) Emit(_ context.Context, f *video.Frame, c Candidate) error {
	if f.Index != c.FrameNumber {
		return errors.New("frame index does not match candidate")
	}
	if r.failAt[c.FrameNumber] {
		return errors.New("disk full")
	}
	r.frames = append(r.frames, c.FrameNumber)
	return nil
}

func TestDetectDifferencesHardCuts(t *testing.T) {
	// 10s at 30fps with a hard cut every 2s alternating between dark and bright.
	frames := clip(300, func(i int) byte {
		if (i/60)%2 == 0 {
			return 20
		}
		return 200
	})
	s, _ := sampler(t, 30, frames)
	p := DefaultParams()
	p.MaxFrames = 5

	sink := &recordingSink{}
	res, err := DetectDifferences(context.Background(), s, p, sink)
	if err != nil {
		t.Fatalf("DetectDifferences() error = %v", err)
	}

	want := []float64{0, 2, 4, 6, 8}
	if len(res.Keyframes) != len(want) {
		t.Fatalf("got %d keyframes, want %d", len(res.Keyframes), len(want))
	}
	for i, kf := range res.Keyframes {
		if math.Abs(kf.Timestamp-want[i]) > 1e-9 {
			t.Errorf("keyframe %d timestamp = %g, want %g", i, kf.Timestamp, want[i])
		}
	}
	if res.Keyframes[0].Score != 0 {
		t.Errorf("seed keyframe score = %g, want 0", res.Keyframes[0].Score)
	}
	if res.Keyframes[1].Score != 180 {
		t.Errorf("cut score = %g, want 180", res.Keyframes[1].Score)
	}
	if len(sink.frames) != 5 {
		t.Errorf("sink received %d frames, want 5", len(sink.frames))
	}
}

func TestDetectDifferencesRespectsCap(t *testing.T) {
	// Every frame differs strongly from the previous one.
	frames := clip(50, func(i int) byte {
		if i%2 == 0 {
			return 0
		}
		return 255
	})
	for _, limit := range []int{1, 3, 7} {
		s, _ := sampler(t, 30, frames)
		p := DefaultParams()
		p.MaxFrames = limit
		res, err := DetectDifferences(context.Background(), s, p, nil)
		if err != nil {
			t.Fatalf("DetectDifferences() error = %v", err)
		}
		if len(res.Keyframes) != limit {
			t.Errorf("max_frames=%d produced %d keyframes", limit, len(res.Keyframes))
		}
		for i := 1; i < len(res.Keyframes); i++ {
			if res.Keyframes[i].Timestamp < res.Keyframes[i-1].Timestamp {
				t.Errorf("timestamps not monotonic at %d", i)
			}
		}
	}
}

func TestDetectDifferencesReferencePolicy(t *testing.T) {
	// A slow ramp: each step is below threshold but the drift is not.
	frames := clip(30, func(i int) byte { return byte(i * 8) })

	tests := []struct {
		policy config.ReferencePolicy
		want   int
	}{
		// 8 per frame against the last retained frame crosses 30 every 4 frames.
		{config.ReferenceRetained, 8},
		// 8 per frame against the previous sampled frame never crosses 30.
		{config.ReferenceSampled, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			s, _ := sampler(t, 30, frames)
			p := DefaultParams()
			p.Reference = tt.policy
			res, err := DetectDifferences(context.Background(), s, p, nil)
			if err != nil {
				t.Fatalf("DetectDifferences() error = %v", err)
			}
			if len(res.Keyframes) != tt.want {
				t.Errorf("got %d keyframes, want %d", len(res.Keyframes), tt.want)
			}
		})
	}
}

func TestDetectDifferencesSinkFailureSkipsFrame(t *testing.T) {
	frames := clip(180, func(i int) byte { return byte((i / 60) * 100) })
	s, _ := sampler(t, 30, frames)
	sink := &recordingSink{failAt: map[int]bool{60: true}}

	res, err := DetectDifferences(context.Background(), s, DefaultParams(), sink)
	if err != nil {
		t.Fatalf("DetectDifferences() error = %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if len(res.Keyframes) != 2 || res.Keyframes[1].FrameNumber != 120 {
		t.Errorf("keyframes = %+v, want frames 0 and 120", res.Keyframes)
	}
}

func TestDetectDifferencesInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero threshold", func(p *Params) { p.Threshold = 0 }},
		{"negative threshold", func(p *Params) { p.Threshold = -5 }},
		{"zero max frames", func(p *Params) { p.MaxFrames = 0 }},
		{"sensitivity above one", func(p *Params) { p.TransitionSensitivity = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, src := sampler(t, 30, clip(10, func(int) byte { return 0 }))
			p := DefaultParams()
			tt.modify(&p)
			_, err := DetectDifferences(context.Background(), s, p, nil)
			if !coreerrors.IsInvalidParameter(err) {
				t.Errorf("error = %v, want InvalidParameter", err)
			}
			if src.Reads != 0 {
				t.Errorf("decoded %d frames before rejecting parameters", src.Reads)
			}
		})
	}
}

func TestDetectDifferencesStopsOnDecodeFailure(t *testing.T) {
	frames := clip(120, func(i int) byte { return byte((i / 30) * 60) })
	s, src := sampler(t, 30, frames)
	src.FailAt = 45

	res, err := DetectDifferences(context.Background(), s, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("DetectDifferences() error = %v", err)
	}
	if len(res.Keyframes) != 2 {
		t.Errorf("got %d keyframes, want 2 (seed and the cut at 30)", len(res.Keyframes))
	}
}

func TestDetectScenesBoundaries(t *testing.T) {
	frames := clip(100, func(i int) byte {
		switch {
		case i < 20:
			return 10
		case i < 45:
			return 128
		default:
			return 240
		}
	})
	s, src := sampler(t, 30, frames)
	sink := &recordingSink{}

	res, err := DetectScenes(context.Background(), s, DefaultParams(), sink)
	if err != nil {
		t.Fatalf("DetectScenes() error = %v", err)
	}

	want := []Scene{{0, 20, 20}, {20, 45, 25}, {45, 100, 55}}
	if len(res.Scenes) != len(want) {
		t.Fatalf("scenes = %+v, want %+v", res.Scenes, want)
	}
	for i := range want {
		if res.Scenes[i] != want[i] {
			t.Errorf("scene %d = %+v, want %+v", i, res.Scenes[i], want[i])
		}
	}

	wantFrames := []int{10, 32, 72}
	if len(res.Keyframes) != len(wantFrames) {
		t.Fatalf("got %d keyframes, want %d", len(res.Keyframes), len(wantFrames))
	}
	for i, kf := range res.Keyframes {
		if kf.FrameNumber != wantFrames[i] {
			t.Errorf("keyframe %d frame = %d, want %d", i, kf.FrameNumber, wantFrames[i])
		}
		if kf.SceneID == nil || *kf.SceneID != i {
			t.Errorf("keyframe %d scene id = %v, want %d", i, kf.SceneID, i)
		}
		if i > 0 && kf.Timestamp < res.Keyframes[i-1].Timestamp {
			t.Errorf("timestamps not monotonic at %d", i)
		}
	}
	if res.Keyframes[0].Score <= 0.3 {
		t.Errorf("boundary score = %g, want above threshold", res.Keyframes[0].Score)
	}
	if res.Keyframes[2].Score != 0 {
		t.Errorf("trailing scene score = %g, want 0", res.Keyframes[2].Score)
	}

	// Midpoint, resume, midpoint, resume, trailing midpoint.
	wantSeeks := []int{10, 20, 32, 45, 72}
	if len(src.Seeks) != len(wantSeeks) {
		t.Fatalf("seeks = %v, want %v", src.Seeks, wantSeeks)
	}
	for i := range wantSeeks {
		if src.Seeks[i] != wantSeeks[i] {
			t.Errorf("seeks = %v, want %v", src.Seeks, wantSeeks)
			break
		}
	}
}

func TestDetectScenesDropsShortTrailingScene(t *testing.T) {
	frames := clip(55, func(i int) byte {
		if i < 45 {
			return 10
		}
		return 240
	})
	s, _ := sampler(t, 30, frames)

	res, err := DetectScenes(context.Background(), s, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("DetectScenes() error = %v", err)
	}
	want := []Scene{{0, 45, 45}}
	if len(res.Scenes) != 1 || res.Scenes[0] != want[0] {
		t.Errorf("scenes = %+v, want %+v", res.Scenes, want)
	}
	for _, sc := range res.Scenes {
		if sc.Length < DefaultParams().MinSceneLength {
			t.Errorf("scene %+v shorter than minimum", sc)
		}
	}
}

func TestDetectScenesMinLengthSuppressesBoundary(t *testing.T) {
	// A flash at frame 5 is too early to close a scene of minimum length 15.
	frames := clip(40, func(i int) byte {
		if i >= 5 && i < 10 {
			return 240
		}
		return 10
	})
	s, _ := sampler(t, 30, frames)

	res, err := DetectScenes(context.Background(), s, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("DetectScenes() error = %v", err)
	}
	if len(res.Scenes) != 1 || res.Scenes[0] != (Scene{0, 40, 40}) {
		t.Errorf("scenes = %+v, want a single trailing scene {0,40}", res.Scenes)
	}
}

func TestDetectScenesRespectsCap(t *testing.T) {
	frames := clip(200, func(i int) byte {
		if (i/20)%2 == 0 {
			return 10
		}
		return 240
	})
	s, _ := sampler(t, 30, frames)
	p := DefaultParams()
	p.MaxFrames = 2

	res, err := DetectScenes(context.Background(), s, p, nil)
	if err != nil {
		t.Fatalf("DetectScenes() error = %v", err)
	}
	if len(res.Scenes) != 2 || len(res.Keyframes) != 2 {
		t.Errorf("got %d scenes and %d keyframes, want 2 each", len(res.Scenes), len(res.Keyframes))
	}
}

// fadeClip builds n frames whose luma spreads evenly over 16 histogram bins,
// the window sliding up one bin per frame.
func fadeClip(n int) []*video.Frame {
	frames := make([]*video.Frame, n)
	for i := range frames {
		f := video.SolidFrame(16, 4, 0, 0, 0)
		for p := 0; p < 64; p++ {
			v := byte((i+p%16)*4 + 1)
			f.Pix[p*3], f.Pix[p*3+1], f.Pix[p*3+2] = v, v, v
		}
		frames[i] = f
	}
	return frames
}

func TestDetectScenesReferencePolicy(t *testing.T) {
	hardCut := clip(40, func(i int) byte {
		if i < 20 {
			return 10
		}
		return 240
	})

	tests := []struct {
		name   string
		frames []*video.Frame
		policy config.ReferencePolicy
		want   []Scene
	}{
		// One bin of drift per frame stays under the limit frame to frame,
		// but not against the first frame of the scene.
		{"fade retained", fadeClip(48), config.ReferenceRetained, []Scene{{0, 15, 15}, {15, 30, 15}, {30, 45, 15}}},
		{"fade sampled", fadeClip(48), config.ReferenceSampled, []Scene{{0, 48, 48}}},
		{"cut retained", hardCut, config.ReferenceRetained, []Scene{{0, 20, 20}, {20, 40, 20}}},
		{"cut sampled", hardCut, config.ReferenceSampled, []Scene{{0, 20, 20}, {20, 40, 20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := sampler(t, 30, tt.frames)
			p := DefaultParams()
			p.Reference = tt.policy
			res, err := DetectScenes(context.Background(), s, p, nil)
			if err != nil {
				t.Fatalf("DetectScenes() error = %v", err)
			}
			if len(res.Scenes) != len(tt.want) {
				t.Fatalf("scenes = %+v, want %+v", res.Scenes, tt.want)
			}
			for i := range tt.want {
				if res.Scenes[i] != tt.want[i] {
					t.Errorf("scene %d = %+v, want %+v", i, res.Scenes[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetectScenesInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero threshold", func(p *Params) { p.Threshold = 0 }},
		{"zero max frames", func(p *Params) { p.MaxFrames = 0 }},
		{"zero min scene length", func(p *Params) { p.MinSceneLength = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, src := sampler(t, 30, clip(10, func(int) byte { return 0 }))
			p := DefaultParams()
			tt.modify(&p)
			_, err := DetectScenes(context.Background(), s, p, nil)
			if !coreerrors.IsInvalidParameter(err) {
				t.Errorf("error = %v, want InvalidParameter", err)
			}
			if src.Reads != 0 {
				t.Errorf("decoded %d frames before rejecting parameters", src.Reads)
			}
		})
	}
}
