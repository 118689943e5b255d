// Package processing runs keyframe extraction over one or many videos:
// decode, detect, persist and report.
package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/five82/keyframes/internal/config"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/ffmpeg"
	"github.com/five82/keyframes/internal/keyframe"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/metrics"
	"github.com/five82/keyframes/internal/reporter"
	"github.com/five82/keyframes/internal/session"
	"github.com/five82/keyframes/internal/storage"
	"github.com/five82/keyframes/internal/util"
	"github.com/five82/keyframes/internal/video"
	"github.com/five82/keyframes/internal/worker"
)

// Opener opens a video for decoding.
type Opener func(ctx context.Context, path string, hwaccel bool) (video.Source, error)

// FFmpegOpener probes and decodes files with ffmpeg.
func FFmpegOpener(ctx context.Context, path string, hwaccel bool) (video.Source, error) {
	d, err := ffmpeg.OpenFile(ctx, path, ffmpeg.Options{HWAccel: hwaccel})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Options configures one extraction.
type Options struct {
	Method      config.Method
	Params      keyframe.Params
	HWAccel     bool
	JPEGQuality int
}

// Result is the outcome of one extraction.
type Result struct {
	Session   *session.Session
	Detection *keyframe.Result
	Backend   string
	Elapsed   time.Duration
}

// Orchestrator wires the sampler, a detector and the session store.
type Orchestrator struct {
	store    *session.Store
	reporter reporter.Reporter
	metrics  *metrics.Metrics
	open     Opener
}

// New creates an orchestrator. A nil reporter discards events; a nil opener
// uses ffmpeg.
func New(store *session.Store, rep reporter.Reporter, m *metrics.Metrics, open Opener) *Orchestrator {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	if open == nil {
		open = FFmpegOpener
	}
	return &Orchestrator{store: store, reporter: rep, metrics: m, open: open}
}

// Validate checks detector parameters for method without touching the video.
func Validate(method config.Method, p keyframe.Params) error {
	switch method {
	case config.MethodDifference:
		return keyframe.ValidateDifference(p)
	case config.MethodScene:
		return keyframe.ValidateScene(p)
	default:
		return coreerrors.NewInvalidParameterError(fmt.Sprintf("unknown method %q", method), config.ErrInvalidMethod)
	}
}

// Extract runs one extraction and persists its keyframes in a new session.
// Parameters are validated before the video is opened.
func (o *Orchestrator) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := Validate(opts.Method, opts.Params); err != nil {
		return nil, err
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = video.DefaultJPEGQuality
	}
	start := time.Now()

	o.checkDiskSpace()

	o.reporter.StageProgress(reporter.StageProgress{Stage: "open", Message: fmt.Sprintf("Probing %s", util.GetFilename(path))})
	src, err := o.open(ctx, path, opts.HWAccel)
	if err != nil {
		if coreerrors.IsInvalidVideo(err) || coreerrors.IsCancelled(err) {
			return nil, err
		}
		return nil, coreerrors.NewInvalidVideoError(fmt.Sprintf("cannot open %s", path), err)
	}
	defer src.Close()

	sampler, err := video.NewSampler(src)
	if err != nil {
		return nil, err
	}
	meta := sampler.Metadata()
	backend := ""
	if b, ok := src.(interface{ Backend() string }); ok {
		backend = b.Backend()
	}

	sess, err := o.store.Create(ctx, path, util.SessionBasename(path), meta, opts.Method)
	if err != nil {
		return nil, err
	}
	if opts.Method == config.MethodDifference {
		sess.TransitionSensitivity = opts.Params.TransitionSensitivity
	}
	log := logging.Global().WithSession(sess.ID)
	log.Info("extraction started", "video", path, "method", opts.Method, "frames", meta.FrameCount, "fps", meta.FPS)
	if size, err := util.GetFileSize(path); err == nil {
		log.Debug("input size", "bytes", size, "human", util.FormatBytes(size))
	}

	o.reporter.Initialization(reporter.InitializationSummary{
		InputFile:  util.GetFilename(path),
		SessionID:  sess.ID,
		OutputDir:  o.store.Backend().Locate(sess.ID),
		Duration:   util.FormatDuration(meta.Duration),
		Resolution: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		FrameRate:  meta.FPS,
		FrameCount: meta.FrameCount,
	})
	plan := sampler.Plan()
	o.reporter.ExtractionConfig(reporter.ExtractionConfigSummary{
		Method:                string(opts.Method),
		Threshold:             opts.Params.Threshold,
		MaxFrames:             opts.Params.MaxFrames,
		MinSceneLength:        opts.Params.MinSceneLength,
		TransitionSensitivity: opts.Params.TransitionSensitivity,
		Reference:             string(opts.Params.Reference),
		Stride:                plan.Stride,
		Backend:               backend,
	})
	o.reporter.ExtractionStarted(uint64(meta.FrameCount))

	saved := 0
	sink := keyframe.SinkFunc(func(ctx context.Context, f *video.Frame, c keyframe.Candidate) error {
		data, err := f.EncodeJPEG(opts.JPEGQuality)
		if err != nil {
			return err
		}
		kf, err := o.store.Append(ctx, sess, data, c)
		if err != nil {
			return err
		}
		saved++
		o.metrics.Retained(string(opts.Method), kf.IsTransition)
		o.reporter.KeyframeSaved(reporter.KeyframeEvent{
			ID:           kf.ID,
			Sequence:     kf.SequenceIndex,
			FrameNumber:  kf.FrameNumber,
			Timestamp:    kf.Timestamp,
			Score:        kf.Score,
			IsTransition: kf.IsTransition,
			SceneID:      kf.SceneID,
			Path:         kf.ArtifactPath,
		})
		return nil
	})

	params := opts.Params
	userSample := params.OnSample
	params.OnSample = func(index int) {
		o.metrics.Sampled()
		o.reporter.ExtractionProgress(reporter.ProgressSnapshot{
			CurrentFrame: uint64(index),
			TotalFrames:  uint64(meta.FrameCount),
			Percent:      float32(index) / float32(meta.FrameCount) * 100,
			Keyframes:    saved,
			Elapsed:      time.Since(start),
		})
		if userSample != nil {
			userSample(index)
		}
	}

	var det *keyframe.Result
	switch opts.Method {
	case config.MethodScene:
		det, err = keyframe.DetectScenes(ctx, sampler, params, sink)
	default:
		det, err = keyframe.DetectDifferences(ctx, sampler, params, sink)
	}
	if err != nil {
		return nil, err
	}

	if len(det.Scenes) > 0 {
		if err := o.store.SetScenes(ctx, sess, det.Scenes); err != nil {
			log.Warn("failed to record scenes", "error", err)
		}
		o.metrics.Scenes(len(det.Scenes))
	}
	o.metrics.Skipped(det.Skipped)

	elapsed := time.Since(start)
	o.metrics.ObserveExtraction(string(opts.Method), elapsed)
	log.Info("extraction complete",
		"keyframes", len(sess.Keyframes),
		"sampled", det.Sampled,
		"scenes", len(det.Scenes),
		"transitions", det.Transitions,
		"skipped", det.Skipped,
		"elapsed", elapsed.Round(time.Millisecond))

	o.reporter.ExtractionComplete(reporter.ExtractionOutcome{
		InputFile:   util.GetFilename(path),
		SessionID:   sess.ID,
		Method:      string(opts.Method),
		Keyframes:   len(sess.Keyframes),
		Scenes:      len(det.Scenes),
		Transitions: det.Transitions,
		Sampled:     det.Sampled,
		Skipped:     det.Skipped,
		TotalTime:   elapsed,
		OutputPath:  o.store.Backend().Locate(sess.ID),
	})

	return &Result{Session: sess, Detection: det, Backend: backend, Elapsed: elapsed}, nil
}

// checkDiskSpace warns when the local artifact root is nearly full.
func (o *Orchestrator) checkDiskSpace() {
	local, ok := o.store.Backend().(*storage.Local)
	if !ok {
		return
	}
	avail := local.AvailableBytes()
	if avail == 0 || avail >= config.LowDiskWarningBytes {
		return
	}
	msg := fmt.Sprintf("Low disk space under %s: %s available", local.Root(), util.FormatBytes(avail))
	logging.Warn("low disk space", "root", local.Root(), "available", avail)
	o.reporter.Warning(msg)
}

// BatchItem is the outcome for one file of a batch.
type BatchItem struct {
	Path   string
	Result *Result
	Err    error
}

// ExtractBatch runs Extract for every path with at most jobs extractions in
// flight. A failing file is reported and does not stop the batch; only a
// cancelled context does.
func (o *Orchestrator) ExtractBatch(ctx context.Context, paths []string, opts Options, jobs int) ([]BatchItem, error) {
	if err := Validate(opts.Method, opts.Params); err != nil {
		return nil, err
	}
	jobs = util.ClampJobs(jobs)

	sysInfo := util.GetSystemInfo()
	o.reporter.Hardware(reporter.HardwareSummary{
		Hostname:     sysInfo.Hostname,
		LogicalCores: sysInfo.NumCPU,
	})

	var names []string
	for _, p := range paths {
		names = append(names, util.GetFilename(p))
	}
	o.reporter.BatchStarted(reporter.BatchStartInfo{
		TotalFiles: len(paths),
		FileList:   names,
		OutputDir:  o.store.Backend().Locate(""),
		Jobs:       jobs,
	})

	batchStart := time.Now()
	var (
		mu       sync.Mutex
		progress = worker.Progress{Total: len(paths)}
	)
	results := worker.Run(ctx, len(paths), jobs, func(ctx context.Context, i int) (*Result, error) {
		o.reporter.FileProgress(reporter.FileProgressContext{
			CurrentFile: i + 1,
			TotalFiles:  len(paths),
			File:        names[i],
		})
		res, err := o.Extract(ctx, paths[i], opts)
		if err != nil {
			logging.Error("extraction failed", "video", paths[i], "error", err)
			o.reporter.Error(reporter.ReporterError{
				Title:      "Extraction failed",
				Message:    err.Error(),
				Context:    fmt.Sprintf("File: %s", paths[i]),
				Suggestion: suggestionFor(err),
			})
		}
		mu.Lock()
		if err != nil {
			progress.Failed++
		} else {
			progress.Complete++
		}
		logging.Info("batch progress",
			"complete", progress.Complete,
			"failed", progress.Failed,
			"total", progress.Total,
			"percent", progress.Percent())
		mu.Unlock()
		return res, err
	})

	items := make([]BatchItem, len(results))
	summary := reporter.BatchSummary{TotalFiles: len(paths)}
	for i, r := range results {
		items[i] = BatchItem{Path: paths[i], Result: r.Value, Err: r.Err}
		fr := reporter.FileResult{Filename: names[i]}
		if r.Err != nil {
			fr.Err = r.Err.Error()
		} else {
			summary.SuccessfulCount++
			summary.TotalKeyframes += len(r.Value.Session.Keyframes)
			fr.SessionID = r.Value.Session.ID
			fr.Keyframes = len(r.Value.Session.Keyframes)
		}
		summary.FileResults = append(summary.FileResults, fr)
	}
	summary.TotalDuration = time.Since(batchStart)
	o.reporter.BatchComplete(summary)

	if err := ctx.Err(); err != nil {
		o.reporter.Warning(fmt.Sprintf("Extraction cancelled: %v", err))
		return items, coreerrors.NewCancelledError()
	}
	return items, nil
}

func suggestionFor(err error) string {
	switch {
	case coreerrors.IsInvalidVideo(err):
		return "Check that the file is a valid video and ffmpeg can decode it"
	case coreerrors.IsInvalidParameter(err):
		return "Check the extraction flags"
	case coreerrors.IsKind(err, coreerrors.KindIO):
		return "Check that the output directory is writable"
	default:
		return ""
	}
}
