// Package config provides configuration types and defaults for keyframes.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Default constants
const (
	// DefaultThreshold is the detection threshold. Method 1 compares it to a
	// mean absolute luma difference on a 0-255 scale; Method 2 divides it by
	// 100 and compares it to a histogram distance.
	DefaultThreshold float64 = 30

	// DefaultMaxFrames caps retained keyframes (Method 1) or scenes (Method 2).
	DefaultMaxFrames int = 20

	// DefaultMinSceneLength is the minimum scene length in native frames.
	DefaultMinSceneLength int = 15

	// DefaultTransitionSensitivity controls how eagerly frames are flagged as transitions.
	DefaultTransitionSensitivity float64 = 0.4

	// DefaultDedupeThreshold is the similarity at or above which two frames are duplicates.
	DefaultDedupeThreshold float64 = 0.85

	// DefaultSessionNameMaxLen is the longest session id produced before truncation.
	DefaultSessionNameMaxLen int = 50

	// DefaultJudgeMaxComparisons bounds judged comparisons per resolve call.
	DefaultJudgeMaxComparisons int = 5

	// DefaultJudgeRateLimit is the number of judge calls allowed per window.
	DefaultJudgeRateLimit int = 10

	// DefaultJudgeRateWindowSecs is the sliding window length for judge calls.
	DefaultJudgeRateWindowSecs int = 60

	// DefaultJudgeModel is the vision model used by the judged strategy.
	DefaultJudgeModel string = "gpt-4o-mini"

	// DefaultOutputDir is the local artifact root.
	DefaultOutputDir string = "keyframes"

	// DefaultJobs is the number of videos extracted concurrently in batch mode.
	DefaultJobs int = 1

	// LowDiskWarningBytes triggers a warning before extraction on the local backend.
	LowDiskWarningBytes uint64 = 100 * 1024 * 1024
)

// Method selects the keyframe detection strategy.
type Method string

const (
	// MethodDifference retains frames whose luma differs from the reference.
	MethodDifference Method = "difference"
	// MethodScene emits one keyframe per detected scene.
	MethodScene Method = "scene"
)

// ParseMethod parses a string into a Method. "1" and "2" are accepted as aliases.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "difference", "diff", "1", "method1":
		return MethodDifference, nil
	case "scene", "2", "method2":
		return MethodScene, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: difference, scene", ErrInvalidMethod, s)
	}
}

// String returns the string representation of the method.
func (m Method) String() string {
	return string(m)
}

// ArtifactPrefix returns the file name prefix used for keyframes of this method.
func (m Method) ArtifactPrefix() string {
	if m == MethodScene {
		return "scene"
	}
	return "frame"
}

// Strategy selects the near-duplicate resolution strategy.
type Strategy string

const (
	// StrategyHash compares perceptual hashes locally.
	StrategyHash Strategy = "hash"
	// StrategyJudged asks an external vision model, falling back to hashes.
	StrategyJudged Strategy = "judged"
)

// ParseStrategy parses a string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hash", "":
		return StrategyHash, nil
	case "judged", "judge", "ai":
		return StrategyJudged, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: hash, judged", ErrInvalidStrategy, s)
	}
}

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// ReferencePolicy selects what each detector compares the current frame against.
type ReferencePolicy string

const (
	// ReferenceRetained compares against the last retained frame (Method 1)
	// or the frame that opened the current scene (Method 2).
	ReferenceRetained ReferencePolicy = "retained"
	// ReferenceSampled compares against the previous sampled frame.
	ReferenceSampled ReferencePolicy = "sampled"
)

// ParseReferencePolicy parses a string into a ReferencePolicy.
func ParseReferencePolicy(s string) (ReferencePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retained", "":
		return ReferenceRetained, nil
	case "sampled":
		return ReferenceSampled, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: retained, sampled", ErrInvalidReferencePolicy, s)
	}
}

// String returns the string representation of the policy.
func (p ReferencePolicy) String() string {
	return string(p)
}

// Config holds all configuration for keyframe extraction and deduplication.
type Config struct {
	// Paths
	OutputDir string `env:"KEYFRAMES_OUTPUT_DIR"`
	LogDir    string `env:"KEYFRAMES_LOG_DIR"`

	// Detection
	Method                Method          `env:"KEYFRAMES_METHOD"`
	Threshold             float64         `env:"KEYFRAMES_THRESHOLD"`
	MaxFrames             int             `env:"KEYFRAMES_MAX_FRAMES"`
	MinSceneLength        int             `env:"KEYFRAMES_MIN_SCENE_LENGTH"`
	TransitionSensitivity float64         `env:"KEYFRAMES_TRANSITION_SENSITIVITY"`
	Reference             ReferencePolicy `env:"KEYFRAMES_REFERENCE"`
	HWAccel               bool            `env:"KEYFRAMES_HWACCEL"`

	// Deduplication
	DedupeThreshold     float64  `env:"KEYFRAMES_DEDUPE_THRESHOLD"`
	Strategy            Strategy `env:"KEYFRAMES_DEDUPE_STRATEGY"`
	JudgeMaxComparisons int      `env:"KEYFRAMES_JUDGE_MAX_COMPARISONS"`
	JudgeRateLimit      int      `env:"KEYFRAMES_JUDGE_RATE_LIMIT"`
	JudgeRateWindowSecs int      `env:"KEYFRAMES_JUDGE_RATE_WINDOW_SECS"`
	JudgeModel          string   `env:"KEYFRAMES_JUDGE_MODEL"`
	JudgeBaseURL        string   `env:"OPENAI_BASE_URL"`
	JudgeAPIKey         string   `env:"OPENAI_API_KEY"`

	// Sessions
	SessionNameMaxLen int `env:"KEYFRAMES_SESSION_NAME_MAX_LEN"`

	// MinIO artifact backend, used when MinIOEndpoint is set
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"`
	MinIOBucket    string `env:"MINIO_BUCKET"`

	// Batch processing
	Jobs int `env:"KEYFRAMES_JOBS"`
}

// NewConfig creates a new Config with default values.
func NewConfig(outputDir string) *Config {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return &Config{
		OutputDir:             outputDir,
		Method:                MethodDifference,
		Threshold:             DefaultThreshold,
		MaxFrames:             DefaultMaxFrames,
		MinSceneLength:        DefaultMinSceneLength,
		TransitionSensitivity: DefaultTransitionSensitivity,
		Reference:             ReferenceRetained,
		HWAccel:               true,
		DedupeThreshold:       DefaultDedupeThreshold,
		Strategy:              StrategyHash,
		JudgeMaxComparisons:   DefaultJudgeMaxComparisons,
		JudgeRateLimit:        DefaultJudgeRateLimit,
		JudgeRateWindowSecs:   DefaultJudgeRateWindowSecs,
		JudgeModel:            DefaultJudgeModel,
		SessionNameMaxLen:     DefaultSessionNameMaxLen,
		MinIOBucket:           "keyframes",
		Jobs:                  DefaultJobs,
	}
}

// LoadEnv overlays environment variables onto cfg. Unset variables keep the
// values already present.
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvironment, err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Method {
	case MethodDifference, MethodScene:
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidMethod, c.Method)
	}

	if c.Threshold <= 0 {
		return fmt.Errorf("%w: must be positive, got %g", ErrInvalidThreshold, c.Threshold)
	}

	if c.MaxFrames <= 0 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidMaxFrames, c.MaxFrames)
	}

	if c.Method == MethodScene && c.MinSceneLength < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidMinSceneLength, c.MinSceneLength)
	}

	if c.TransitionSensitivity < 0 || c.TransitionSensitivity > 1 {
		return fmt.Errorf("%w: must be 0-1, got %g", ErrInvalidSensitivity, c.TransitionSensitivity)
	}

	switch c.Reference {
	case ReferenceRetained, ReferenceSampled:
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidReferencePolicy, c.Reference)
	}

	if err := ValidateDedupeThreshold(c.DedupeThreshold); err != nil {
		return err
	}

	switch c.Strategy {
	case StrategyHash, StrategyJudged:
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidStrategy, c.Strategy)
	}

	if c.Jobs < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidJobs, c.Jobs)
	}

	return nil
}

// ValidateDedupeThreshold checks that a similarity threshold lies in (0, 1].
func ValidateDedupeThreshold(t float64) error {
	if t <= 0 || t > 1 {
		return fmt.Errorf("%w: must be in (0, 1], got %g", ErrInvalidDedupeThreshold, t)
	}
	return nil
}

// JudgeEnabled reports whether the judged strategy has credentials to run.
func (c *Config) JudgeEnabled() bool {
	return c.JudgeAPIKey != ""
}

// UseMinIO reports whether artifacts go to MinIO instead of the local filesystem.
func (c *Config) UseMinIO() bool {
	return c.MinIOEndpoint != ""
}
