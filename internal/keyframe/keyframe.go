// Package keyframe selects representative frames from a sampled video using
// either frame differences or histogram scene boundaries.
package keyframe

import (
	"context"

	"github.com/five82/keyframes/internal/config"
	"github.com/five82/keyframes/internal/video"
)

// Candidate is a frame a detector has decided to keep.
type Candidate struct {
	FrameNumber  int
	Timestamp    float64
	Score        float64
	IsTransition bool
	SceneID      *int
}

// Scene is a span of native frames [Start, End).
type Scene struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Length int `json:"length"`
}

func newScene(start, end int) Scene {
	return Scene{Start: start, End: end, Length: end - start}
}

// Sink persists emitted keyframes. An error skips the frame; detection
// continues.
type Sink interface {
	Emit(ctx context.Context, frame *video.Frame, c Candidate) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, frame *video.Frame, c Candidate) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, frame *video.Frame, c Candidate) error {
	return f(ctx, frame, c)
}

// Result is what a detector produced.
type Result struct {
	Keyframes   []Candidate
	Scenes      []Scene
	Sampled     int
	Transitions int
	Skipped     int // frames the sink failed to persist
}

// Params configures both detectors. Fields a detector does not use are ignored.
type Params struct {
	Threshold             float64
	MaxFrames             int
	MinSceneLength        int
	TransitionSensitivity float64
	Reference             config.ReferencePolicy

	// OnSample, when set, is called with the native index of each sampled frame.
	OnSample func(index int)
}

// DefaultParams returns the default detection parameters.
func DefaultParams() Params {
	return Params{
		Threshold:             config.DefaultThreshold,
		MaxFrames:             config.DefaultMaxFrames,
		MinSceneLength:        config.DefaultMinSceneLength,
		TransitionSensitivity: config.DefaultTransitionSensitivity,
		Reference:             config.ReferenceRetained,
	}
}

func (p Params) sampled(index int) {
	if p.OnSample != nil {
		p.OnSample(index)
	}
}
