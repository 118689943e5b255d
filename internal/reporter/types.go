// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary contains host information.
type HardwareSummary struct {
	Hostname     string
	LogicalCores int
}

// InitializationSummary describes the current video before extraction.
type InitializationSummary struct {
	InputFile  string
	SessionID  string
	OutputDir  string
	Duration   string
	Resolution string
	FrameRate  float64
	FrameCount int
}

// ExtractionConfigSummary describes the detector settings for one run.
type ExtractionConfigSummary struct {
	Method                string
	Threshold             float64
	MaxFrames             int
	MinSceneLength        int
	TransitionSensitivity float64
	Reference             string
	Stride                int
	Backend               string
}

// ProgressSnapshot contains sampling progress.
type ProgressSnapshot struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Keyframes    int
	Elapsed      time.Duration
}

// KeyframeEvent describes one persisted keyframe.
type KeyframeEvent struct {
	ID           string
	Sequence     int
	FrameNumber  int
	Timestamp    float64
	Score        float64
	IsTransition bool
	SceneID      *int
	Path         string
}

// ExtractionOutcome contains final extraction results.
type ExtractionOutcome struct {
	InputFile   string
	SessionID   string
	Method      string
	Keyframes   int
	Scenes      int
	Transitions int
	Sampled     int
	Skipped     int
	TotalTime   time.Duration
	OutputPath  string
}

// DuplicatePair is one member/canonical pair.
type DuplicatePair struct {
	ID          string
	CanonicalID string
	Similarity  float64
}

// DedupeSummary contains duplicate resolution results.
type DedupeSummary struct {
	SessionID   string
	Strategy    string
	Threshold   float64
	Unique      int
	Duplicates  []DuplicatePair
	Removed     int
	RateLimited bool
	Fallbacks   []string
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo contains batch start metadata.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
	Jobs       int
}

// FileProgressContext contains current file index within a batch.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
	File        string
}

// BatchSummary contains batch completion information.
type BatchSummary struct {
	SuccessfulCount int
	TotalFiles      int
	TotalKeyframes  int
	TotalDuration   time.Duration
	FileResults     []FileResult
}

// FileResult contains a per-file extraction result.
type FileResult struct {
	Filename  string
	SessionID string
	Keyframes int
	Err       string
}

// StageProgress represents a generic stage update.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}
