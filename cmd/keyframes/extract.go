package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/keyframes/internal/config"
	"github.com/five82/keyframes/internal/discovery"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/reporter"
	"github.com/five82/keyframes/internal/util"
)

type extractArgs struct {
	method                string
	threshold             float64
	maxFrames             int
	minSceneLength        int
	transitionSensitivity float64
	reference             string
	jobs                  int
	noHWAccel             bool
}

func newExtractCmd(g *globalFlags) *cobra.Command {
	var ea extractArgs
	cmd := &cobra.Command{
		Use:   "extract <video|dir>...",
		Short: "Extract keyframes into a new session per video",
		Long: `Extract keyframes from one or more videos. Directories contribute
every video file they contain. Each video gets its own session under the
output root.

Methods:
  difference  keep frames whose luma differs from the reference by more
              than --threshold (0-255); flags likely transitions
  scene       split at histogram boundaries (--threshold/100) and keep the
              middle frame of each scene`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, g, &ea, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ea.method, "method", "m", string(config.MethodDifference), "Detection method (difference, scene)")
	f.Float64VarP(&ea.threshold, "threshold", "t", config.DefaultThreshold, "Detection threshold")
	f.IntVar(&ea.maxFrames, "max-frames", config.DefaultMaxFrames, "Maximum keyframes (difference) or scenes (scene)")
	f.IntVar(&ea.minSceneLength, "min-scene-length", config.DefaultMinSceneLength, "Minimum scene length in frames")
	f.Float64Var(&ea.transitionSensitivity, "transition-sensitivity", config.DefaultTransitionSensitivity, "Transition classifier sensitivity (0-1)")
	f.StringVar(&ea.reference, "reference", string(config.ReferenceRetained), "Reference frame policy (retained, sampled)")
	f.IntVarP(&ea.jobs, "jobs", "j", config.DefaultJobs, "Videos extracted concurrently")
	f.BoolVar(&ea.noHWAccel, "no-hwaccel", false, "Disable hardware-accelerated decoding")
	return cmd
}

// apply copies explicitly set flags over the environment configuration.
func (ea *extractArgs) apply(cmd *cobra.Command) func(*config.Config) error {
	return func(cfg *config.Config) error {
		f := cmd.Flags()
		if f.Changed("method") {
			m, err := config.ParseMethod(ea.method)
			if err != nil {
				return err
			}
			cfg.Method = m
		}
		if f.Changed("reference") {
			p, err := config.ParseReferencePolicy(ea.reference)
			if err != nil {
				return err
			}
			cfg.Reference = p
		}
		if f.Changed("threshold") {
			cfg.Threshold = ea.threshold
		}
		if f.Changed("max-frames") {
			cfg.MaxFrames = ea.maxFrames
		}
		if f.Changed("min-scene-length") {
			cfg.MinSceneLength = ea.minSceneLength
		}
		if f.Changed("transition-sensitivity") {
			cfg.TransitionSensitivity = ea.transitionSensitivity
		}
		if f.Changed("jobs") {
			cfg.Jobs = ea.jobs
		}
		if ea.noHWAccel {
			cfg.HWAccel = false
		}
		return nil
	}
}

func runExtract(cmd *cobra.Command, g *globalFlags, ea *extractArgs, args []string) error {
	files, err := discovery.ResolveInputs(args)
	if coreerrors.IsNoFilesFound(err) {
		return fmt.Errorf("%w (recognized extensions: %s)", err, supportedExtensions())
	}
	if err != nil {
		return err
	}

	rt, err := setup(cmd, g, ea.apply(cmd))
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	opts := rt.engine.ExtractOptions()

	if len(files) == 1 {
		res, err := rt.engine.Extract(ctx, files[0], opts)
		if err != nil {
			rt.reporter.Error(reporter.ReporterError{
				Title:   "Extraction failed",
				Message: err.Error(),
				Context: fmt.Sprintf("File: %s", files[0]),
			})
			return err
		}
		rt.reporter.OperationComplete(fmt.Sprintf("Session %s: %d keyframes", res.SessionID, len(res.Keyframes)))
		return nil
	}

	batch, err := rt.engine.ExtractBatch(ctx, files, opts)
	if err != nil {
		return err
	}
	if batch.SuccessfulCount == 0 {
		return fmt.Errorf("all %d extractions failed", batch.TotalFiles)
	}
	return nil
}

func supportedExtensions() string {
	return strings.Join(slices.Sorted(maps.Keys(util.VideoExtensions)), ", ")
}
