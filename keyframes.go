// Package keyframes extracts representative frames from videos and resolves
// near-duplicates among them.
//
// Keyframes are selected by one of two methods: luma differences against a
// reference frame, or histogram scene boundaries with one frame per scene.
// Every run is recorded as a session whose JPEG artifacts and manifest live
// in a storage backend (local directory or MinIO bucket), so duplicates can
// be resolved and removed later.
//
// Basic usage:
//
//	engine, err := keyframes.New(
//	    keyframes.WithOutputDir("frames"),
//	    keyframes.WithMethod(keyframes.MethodScene),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := engine.Extract(ctx, "talk.mp4", engine.ExtractOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dups, err := engine.RemoveDuplicates(ctx, res.SessionID, 0.85, keyframes.StrategyHash)
package keyframes

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/keyframes/internal/config"
	"github.com/five82/keyframes/internal/dedupe"
	"github.com/five82/keyframes/internal/discovery"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/judge"
	"github.com/five82/keyframes/internal/keyframe"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/metrics"
	"github.com/five82/keyframes/internal/processing"
	"github.com/five82/keyframes/internal/ratelimit"
	"github.com/five82/keyframes/internal/reporter"
	"github.com/five82/keyframes/internal/session"
	"github.com/five82/keyframes/internal/storage"
	"github.com/five82/keyframes/internal/video"
)

// Re-exported types.
type (
	Method          = config.Method
	Strategy        = config.Strategy
	ReferencePolicy = config.ReferencePolicy
	Config          = config.Config
	Keyframe        = session.Keyframe
	Session         = session.Session
	Scene           = keyframe.Scene
	VideoInfo       = video.Metadata
	Reporter        = reporter.Reporter
	Judge           = dedupe.Judge
	Verdict         = dedupe.Verdict
	Metrics         = metrics.Metrics
	Backend         = storage.Backend
	RateLimiter     = ratelimit.Window
)

const (
	MethodDifference = config.MethodDifference
	MethodScene      = config.MethodScene

	StrategyHash   = config.StrategyHash
	StrategyJudged = config.StrategyJudged

	ReferenceRetained = config.ReferenceRetained
	ReferenceSampled  = config.ReferenceSampled
)

// ParseMethod converts "difference" or "scene" (or "1", "2") to a Method.
func ParseMethod(s string) (Method, error) {
	return config.ParseMethod(s)
}

// ParseStrategy converts "hash" or "judged" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	return config.ParseStrategy(s)
}

// Engine extracts keyframes and manages the sessions it produced.
type Engine struct {
	config   *config.Config
	store    *session.Store
	reporter reporter.Reporter
	metrics  *metrics.Metrics
	resolver *dedupe.Resolver
	orch     *processing.Orchestrator
}

type options struct {
	config   *config.Config
	backend  storage.Backend
	reporter reporter.Reporter
	metrics  *metrics.Metrics
	judge    dedupe.Judge
	limiter  *ratelimit.Window
	opener   processing.Opener
	session  []session.Option
}

// Option configures the engine.
type Option func(*options)

// New creates an Engine. Without WithBackend, artifacts go to MinIO when the
// configuration names an endpoint and to the local output directory
// otherwise. A judge is built from the configured API key unless WithJudge
// supplies one.
func New(opts ...Option) (*Engine, error) {
	o := &options{config: config.NewConfig("")}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.config

	if err := cfg.Validate(); err != nil {
		return nil, coreerrors.NewInvalidParameterError("invalid configuration", err)
	}

	backend := o.backend
	if backend == nil {
		b, err := defaultBackend(cfg)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	rep := o.reporter
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	limiter := o.limiter
	if limiter == nil {
		limiter = ratelimit.New(cfg.JudgeRateLimit, time.Duration(cfg.JudgeRateWindowSecs)*time.Second)
	}

	resolverOpts := []dedupe.Option{
		dedupe.WithLimiter(limiter),
		dedupe.WithMaxComparisons(cfg.JudgeMaxComparisons),
		dedupe.WithMetrics(o.metrics),
	}
	if o.judge != nil {
		resolverOpts = append(resolverOpts, dedupe.WithJudge(o.judge))
	} else if cfg.JudgeEnabled() {
		j, err := judge.New(judge.Config{
			APIKey:  cfg.JudgeAPIKey,
			BaseURL: cfg.JudgeBaseURL,
			Model:   cfg.JudgeModel,
		})
		if err != nil {
			return nil, err
		}
		resolverOpts = append(resolverOpts, dedupe.WithJudge(j))
	}

	sessionOpts := append([]session.Option{session.WithNameMaxLen(cfg.SessionNameMaxLen)}, o.session...)
	store := session.NewStore(backend, sessionOpts...)

	return &Engine{
		config:   cfg,
		store:    store,
		reporter: rep,
		metrics:  o.metrics,
		resolver: dedupe.NewResolver(resolverOpts...),
		orch:     processing.New(store, rep, o.metrics, o.opener),
	}, nil
}

func defaultBackend(cfg *config.Config) (storage.Backend, error) {
	if cfg.UseMinIO() {
		return storage.NewMinIO(context.Background(), storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
	}
	return storage.NewLocal(cfg.OutputDir)
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg != nil {
			c := *cfg
			o.config = &c
		}
	}
}

// WithOutputDir sets the local artifact root.
func WithOutputDir(dir string) Option {
	return func(o *options) {
		o.config.OutputDir = dir
	}
}

// WithMethod sets the default detection method.
func WithMethod(m Method) Option {
	return func(o *options) {
		o.config.Method = m
	}
}

// WithThreshold sets the detection threshold. Method 1 compares it to the mean
// absolute luma difference (0-255); Method 2 divides it by 100 and compares
// it to the histogram distance.
func WithThreshold(t float64) Option {
	return func(o *options) {
		o.config.Threshold = t
	}
}

// WithMaxFrames caps keyframes (Method 1) or scenes (Method 2).
func WithMaxFrames(n int) Option {
	return func(o *options) {
		o.config.MaxFrames = n
	}
}

// WithMinSceneLength sets the minimum scene length in native frames.
func WithMinSceneLength(n int) Option {
	return func(o *options) {
		o.config.MinSceneLength = n
	}
}

// WithTransitionSensitivity sets the transition classifier sensitivity (0-1).
func WithTransitionSensitivity(s float64) Option {
	return func(o *options) {
		o.config.TransitionSensitivity = s
	}
}

// WithReferencePolicy selects what frames are compared against.
func WithReferencePolicy(p ReferencePolicy) Option {
	return func(o *options) {
		o.config.Reference = p
	}
}

// WithHWAccel toggles hardware-accelerated decoding.
func WithHWAccel(enable bool) Option {
	return func(o *options) {
		o.config.HWAccel = enable
	}
}

// WithJobs sets how many videos a batch extracts concurrently.
func WithJobs(n int) Option {
	return func(o *options) {
		o.config.Jobs = n
	}
}

// WithSessionNameMaxLen sets the longest session id before truncation.
func WithSessionNameMaxLen(n int) Option {
	return func(o *options) {
		o.config.SessionNameMaxLen = n
	}
}

// WithBackend stores artifacts and manifests in b.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithReporter receives progress events.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithJudge enables the judged dedupe strategy with j.
func WithJudge(j Judge) Option {
	return func(o *options) {
		o.judge = j
	}
}

// WithRateLimiter shares a judge rate limiter across engines.
func WithRateLimiter(w *RateLimiter) Option {
	return func(o *options) {
		o.limiter = w
	}
}

// ExtractOptions are the per-call detection settings.
type ExtractOptions struct {
	Method                Method
	Threshold             float64
	MaxFrames             int
	MinSceneLength        int
	TransitionSensitivity float64
	Reference             ReferencePolicy
}

// ExtractOptions returns the engine's configured detection settings.
func (e *Engine) ExtractOptions() ExtractOptions {
	return ExtractOptions{
		Method:                e.config.Method,
		Threshold:             e.config.Threshold,
		MaxFrames:             e.config.MaxFrames,
		MinSceneLength:        e.config.MinSceneLength,
		TransitionSensitivity: e.config.TransitionSensitivity,
		Reference:             e.config.Reference,
	}
}

func (e *Engine) processingOptions(opts ExtractOptions) (processing.Options, error) {
	ref := opts.Reference
	if ref == "" {
		ref = config.ReferenceRetained
	}
	if _, err := config.ParseReferencePolicy(string(ref)); err != nil {
		return processing.Options{}, coreerrors.NewInvalidParameterError("reference policy", err)
	}
	return processing.Options{
		Method: opts.Method,
		Params: keyframe.Params{
			Threshold:             opts.Threshold,
			MaxFrames:             opts.MaxFrames,
			MinSceneLength:        opts.MinSceneLength,
			TransitionSensitivity: opts.TransitionSensitivity,
			Reference:             ref,
		},
		HWAccel: e.config.HWAccel,
	}, nil
}

// ExtractResult is the outcome of one extraction.
type ExtractResult struct {
	SessionID             string
	Method                Method
	TransitionSensitivity float64
	Video                 VideoInfo
	Keyframes             []Keyframe
	Scenes                []Scene
	Sampled               int
	Transitions           int
	Skipped               int
	OutputPath            string
	Elapsed               time.Duration
}

func (e *Engine) extractResult(r *processing.Result) ExtractResult {
	s := r.Session
	return ExtractResult{
		SessionID:             s.ID,
		Method:                s.Method,
		TransitionSensitivity: s.TransitionSensitivity,
		Video:                 s.Metadata,
		Keyframes:             append([]Keyframe(nil), s.Keyframes...),
		Scenes:                append([]Scene(nil), s.Scenes...),
		Sampled:               r.Detection.Sampled,
		Transitions:           r.Detection.Transitions,
		Skipped:               r.Detection.Skipped,
		OutputPath:            e.store.Backend().Locate(s.ID),
		Elapsed:               r.Elapsed,
	}
}

// Extract selects keyframes from videoPath and records them in a new session.
// Invalid options fail before the video is opened.
func (e *Engine) Extract(ctx context.Context, videoPath string, opts ExtractOptions) (*ExtractResult, error) {
	popts, err := e.processingOptions(opts)
	if err != nil {
		return nil, err
	}
	r, err := e.orch.Extract(ctx, videoPath, popts)
	if err != nil {
		return nil, err
	}
	res := e.extractResult(r)
	return &res, nil
}

// BatchFailure is a file a batch could not extract.
type BatchFailure struct {
	Path string
	Err  error
}

// BatchResult is the outcome of a batch extraction.
type BatchResult struct {
	Results         []ExtractResult
	Failures        []BatchFailure
	SuccessfulCount int
	TotalFiles      int
}

// ExtractBatch extracts every video in paths, running up to the configured
// number of jobs at once. Per-file failures are collected in the result.
func (e *Engine) ExtractBatch(ctx context.Context, paths []string, opts ExtractOptions) (*BatchResult, error) {
	popts, err := e.processingOptions(opts)
	if err != nil {
		return nil, err
	}
	items, err := e.orch.ExtractBatch(ctx, paths, popts, e.config.Jobs)
	if items == nil && err != nil {
		return nil, err
	}

	batch := &BatchResult{TotalFiles: len(paths)}
	for _, it := range items {
		if it.Err != nil {
			batch.Failures = append(batch.Failures, BatchFailure{Path: it.Path, Err: it.Err})
			continue
		}
		batch.Results = append(batch.Results, e.extractResult(it.Result))
		batch.SuccessfulCount++
	}
	return batch, err
}

// FindVideos returns the video files directly inside dir.
func FindVideos(dir string) ([]string, error) {
	res, err := discovery.FindVideoFiles(dir)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// DuplicatePair names a duplicate keyframe and the keyframe it duplicates.
type DuplicatePair struct {
	ID          string
	CanonicalID string
	Similarity  float64
	Strategy    Strategy
}

// DedupeResult is the outcome of duplicate resolution over one session.
type DedupeResult struct {
	SessionID  string
	Strategy   Strategy
	Threshold  float64
	Unique     []string
	Duplicates []DuplicatePair
	// RateLimited reports that the judge refused calls and hashing was used
	// instead; callers may retry later.
	RateLimited bool
	Fallbacks   []string
	// Removed counts duplicates deleted by RemoveDuplicates.
	Removed int
}

// ResolveDuplicates partitions a session's keyframes into unique frames and
// duplicates. Nothing is deleted.
func (e *Engine) ResolveDuplicates(ctx context.Context, sessionID string, threshold float64, strategy Strategy) (*DedupeResult, error) {
	res, _, err := e.resolve(ctx, sessionID, threshold, strategy)
	if err != nil {
		return nil, err
	}
	e.reportDedupe(res)
	return res, nil
}

// RemoveDuplicates resolves duplicates and deletes every duplicate keyframe
// from the session.
func (e *Engine) RemoveDuplicates(ctx context.Context, sessionID string, threshold float64, strategy Strategy) (*DedupeResult, error) {
	res, sess, err := e.resolve(ctx, sessionID, threshold, strategy)
	if err != nil {
		return nil, err
	}
	for _, d := range res.Duplicates {
		if err := e.store.Delete(ctx, sess, d.ID); err != nil {
			return res, err
		}
		res.Removed++
	}
	e.reportDedupe(res)
	return res, nil
}

func (e *Engine) resolve(ctx context.Context, sessionID string, threshold float64, strategy Strategy) (*DedupeResult, *session.Session, error) {
	if err := config.ValidateDedupeThreshold(threshold); err != nil {
		return nil, nil, coreerrors.NewInvalidParameterError("dedupe threshold", err)
	}
	sess, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	log := logging.Global().WithSession(sess.ID)
	artifacts := make([]dedupe.Artifact, 0, len(sess.Keyframes))
	for _, kf := range sess.Keyframes {
		data, err := e.store.ReadArtifact(ctx, kf)
		if err != nil {
			log.Warn("keyframe artifact unreadable, keeping it unique", "keyframe", kf.ID, "error", err)
			data = nil
		}
		artifacts = append(artifacts, dedupe.Artifact{ID: kf.ID, Data: data})
	}

	r, err := e.resolver.Resolve(ctx, artifacts, threshold, strategy)
	if err != nil {
		return nil, nil, err
	}

	res := &DedupeResult{
		SessionID:   sess.ID,
		Strategy:    r.Strategy,
		Threshold:   threshold,
		RateLimited: r.RateLimited,
		Fallbacks:   r.Fallbacks,
	}
	for _, a := range r.Unique {
		res.Unique = append(res.Unique, a.ID)
	}
	for _, d := range r.Duplicates {
		res.Duplicates = append(res.Duplicates, DuplicatePair{
			ID:          d.Member.ID,
			CanonicalID: d.Canonical.ID,
			Similarity:  d.Similarity,
			Strategy:    d.Strategy,
		})
	}
	return res, sess, nil
}

func (e *Engine) reportDedupe(res *DedupeResult) {
	pairs := make([]reporter.DuplicatePair, len(res.Duplicates))
	for i, d := range res.Duplicates {
		pairs[i] = reporter.DuplicatePair{ID: d.ID, CanonicalID: d.CanonicalID, Similarity: d.Similarity}
	}
	e.reporter.DedupeComplete(reporter.DedupeSummary{
		SessionID:   res.SessionID,
		Strategy:    string(res.Strategy),
		Threshold:   res.Threshold,
		Unique:      len(res.Unique),
		Duplicates:  pairs,
		Removed:     res.Removed,
		RateLimited: res.RateLimited,
		Fallbacks:   res.Fallbacks,
	})
}

// DeleteKeyframe removes one keyframe and its artifact from a session.
// An unknown session or keyframe is a NotFound error.
func (e *Engine) DeleteKeyframe(ctx context.Context, sessionID, keyframeID string) error {
	sess, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, sess, keyframeID); err != nil {
		return err
	}
	e.reporter.OperationComplete(fmt.Sprintf("Deleted keyframe %s from %s", keyframeID, sessionID))
	return nil
}

// Session loads a stored session.
func (e *Engine) Session(ctx context.Context, id string) (*Session, error) {
	return e.store.Load(ctx, id)
}

// Sessions lists stored session ids.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// KeyframeData returns the JPEG bytes of a stored keyframe.
func (e *Engine) KeyframeData(ctx context.Context, kf Keyframe) ([]byte, error) {
	return e.store.ReadArtifact(ctx, kf)
}
