package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidMethod indicates an unknown detection method.
	ErrInvalidMethod = errors.New("invalid method")

	// ErrInvalidStrategy indicates an unknown dedupe strategy.
	ErrInvalidStrategy = errors.New("invalid dedupe strategy")

	// ErrInvalidReferencePolicy indicates an unknown reference policy.
	ErrInvalidReferencePolicy = errors.New("invalid reference policy")

	// ErrInvalidThreshold indicates a non-positive detection threshold.
	ErrInvalidThreshold = errors.New("threshold out of range")

	// ErrInvalidMaxFrames indicates a non-positive keyframe cap.
	ErrInvalidMaxFrames = errors.New("max_frames out of range")

	// ErrInvalidMinSceneLength indicates a minimum scene length below one frame.
	ErrInvalidMinSceneLength = errors.New("min_scene_length out of range")

	// ErrInvalidSensitivity indicates a transition sensitivity outside 0-1.
	ErrInvalidSensitivity = errors.New("transition sensitivity out of range")

	// ErrInvalidDedupeThreshold indicates a similarity threshold outside (0, 1].
	ErrInvalidDedupeThreshold = errors.New("dedupe threshold out of range")

	// ErrInvalidJobs indicates a batch concurrency below one.
	ErrInvalidJobs = errors.New("jobs out of range")

	// ErrInvalidEnvironment indicates an environment variable could not be parsed.
	ErrInvalidEnvironment = errors.New("invalid environment")
)
