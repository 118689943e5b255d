package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs one JSON event per line.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
	lastProgressTime   time.Time
	now                func() time.Time
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return NewJSONReporterWithWriter(os.Stdout)
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
		now:                time.Now,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return r.now().Unix()
}

func (r *JSONReporter) write(v map[string]any) {
	v["timestamp"] = r.timestamp()

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]any{
		"type":          "hardware",
		"hostname":      summary.Hostname,
		"logical_cores": summary.LogicalCores,
	})
}

func (r *JSONReporter) Initialization(summary InitializationSummary) {
	r.write(map[string]any{
		"type":        "initialization",
		"input_file":  summary.InputFile,
		"session_id":  summary.SessionID,
		"output_dir":  summary.OutputDir,
		"duration":    summary.Duration,
		"resolution":  summary.Resolution,
		"fps":         summary.FrameRate,
		"frame_count": summary.FrameCount,
	})
}

func (r *JSONReporter) StageProgress(update StageProgress) {
	event := map[string]any{
		"type":    "stage_progress",
		"stage":   update.Stage,
		"percent": update.Percent,
		"message": update.Message,
	}
	if update.ETA != nil {
		event["eta_seconds"] = int64(update.ETA.Seconds())
	}
	r.write(event)
}

func (r *JSONReporter) ExtractionConfig(summary ExtractionConfigSummary) {
	r.write(map[string]any{
		"type":                   "extraction_config",
		"method":                 summary.Method,
		"threshold":              summary.Threshold,
		"max_frames":             summary.MaxFrames,
		"min_scene_length":       summary.MinSceneLength,
		"transition_sensitivity": summary.TransitionSensitivity,
		"reference":              summary.Reference,
		"stride":                 summary.Stride,
		"backend":                summary.Backend,
	})
}

func (r *JSONReporter) ExtractionStarted(totalSamples uint64) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()

	r.write(map[string]any{
		"type":          "extraction_started",
		"total_samples": totalSamples,
	})
}

// ExtractionProgress emits at most one event per whole percent unless
// minInterval has passed, plus the final update.
func (r *JSONReporter) ExtractionProgress(progress ProgressSnapshot) {
	const minInterval = 5 * time.Second

	bucket := int(progress.Percent)
	now := r.now()

	r.mu.Lock()
	intervalElapsed := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	shouldEmit := bucket > r.lastProgressBucket || intervalElapsed || progress.Percent >= 99.0
	if !shouldEmit {
		r.mu.Unlock()
		return
	}
	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	r.mu.Unlock()

	r.write(map[string]any{
		"type":          "extraction_progress",
		"stage":         "sampling",
		"current_frame": progress.CurrentFrame,
		"total_frames":  progress.TotalFrames,
		"percent":       progress.Percent,
		"keyframes":     progress.Keyframes,
		"elapsed_ms":    progress.Elapsed.Milliseconds(),
	})
}

func (r *JSONReporter) KeyframeSaved(event KeyframeEvent) {
	e := map[string]any{
		"type":          "keyframe",
		"id":            event.ID,
		"sequence":      event.Sequence,
		"frame_number":  event.FrameNumber,
		"timestamp_sec": event.Timestamp,
		"score":         event.Score,
		"is_transition": event.IsTransition,
		"path":          event.Path,
	}
	if event.SceneID != nil {
		e["scene_id"] = *event.SceneID
	}
	r.write(e)
}

func (r *JSONReporter) ExtractionComplete(summary ExtractionOutcome) {
	r.write(map[string]any{
		"type":             "extraction_complete",
		"input_file":       summary.InputFile,
		"session_id":       summary.SessionID,
		"method":           summary.Method,
		"keyframes":        summary.Keyframes,
		"scenes":           summary.Scenes,
		"transitions":      summary.Transitions,
		"sampled":          summary.Sampled,
		"skipped":          summary.Skipped,
		"output_path":      summary.OutputPath,
		"duration_seconds": summary.TotalTime.Seconds(),
	})
}

func (r *JSONReporter) DedupeComplete(summary DedupeSummary) {
	dups := make([]map[string]any, len(summary.Duplicates))
	for i, d := range summary.Duplicates {
		dups[i] = map[string]any{
			"id":           d.ID,
			"canonical_id": d.CanonicalID,
			"similarity":   d.Similarity,
		}
	}
	r.write(map[string]any{
		"type":         "dedupe_complete",
		"session_id":   summary.SessionID,
		"strategy":     summary.Strategy,
		"threshold":    summary.Threshold,
		"unique":       summary.Unique,
		"duplicates":   dups,
		"removed":      summary.Removed,
		"rate_limited": summary.RateLimited,
		"fallbacks":    summary.Fallbacks,
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]any{
		"type":    "warning",
		"message": message,
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]any{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.write(map[string]any{
		"type":    "operation_complete",
		"message": message,
	})
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo) {
	r.write(map[string]any{
		"type":        "batch_started",
		"total_files": info.TotalFiles,
		"file_list":   info.FileList,
		"output_dir":  info.OutputDir,
		"jobs":        info.Jobs,
	})
}

func (r *JSONReporter) FileProgress(context FileProgressContext) {
	r.write(map[string]any{
		"type":         "file_progress",
		"current_file": context.CurrentFile,
		"total_files":  context.TotalFiles,
		"file":         context.File,
	})
}

func (r *JSONReporter) BatchComplete(summary BatchSummary) {
	results := make([]map[string]any, len(summary.FileResults))
	for i, fr := range summary.FileResults {
		results[i] = map[string]any{
			"file":       fr.Filename,
			"session_id": fr.SessionID,
			"keyframes":  fr.Keyframes,
			"error":      fr.Err,
		}
	}
	r.write(map[string]any{
		"type":                   "batch_complete",
		"successful_count":       summary.SuccessfulCount,
		"total_files":            summary.TotalFiles,
		"total_keyframes":        summary.TotalKeyframes,
		"total_duration_seconds": summary.TotalDuration.Seconds(),
		"files":                  results,
	})
}

// Verbose messages are not emitted as JSON events.
func (r *JSONReporter) Verbose(string) {}
