package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/keyframes/internal/config"
)

type dedupeArgs struct {
	threshold float64
	strategy  string
	remove    bool
	maxJudged int
}

func newDedupeCmd(g *globalFlags) *cobra.Command {
	var da dedupeArgs
	cmd := &cobra.Command{
		Use:   "dedupe <session-id>",
		Short: "Find near-duplicate keyframes in a session",
		Long: `Compare every keyframe of a session and report which are near-duplicates
of an earlier keyframe. With --remove the duplicates are deleted.

The judged strategy asks an OpenAI-compatible vision model (OPENAI_API_KEY)
and falls back to perceptual hashes when the model fails, is rate limited,
or its comparison budget is spent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, g, func(cfg *config.Config) error {
				if cmd.Flags().Changed("strategy") {
					s, err := config.ParseStrategy(da.strategy)
					if err != nil {
						return err
					}
					cfg.Strategy = s
				}
				if cmd.Flags().Changed("threshold") {
					cfg.DedupeThreshold = da.threshold
				}
				if cmd.Flags().Changed("max-judged") {
					cfg.JudgeMaxComparisons = da.maxJudged
				}
				return nil
			})
			if err != nil {
				return err
			}
			defer rt.close()

			if da.remove {
				_, err = rt.engine.RemoveDuplicates(cmd.Context(), args[0], rt.cfg.DedupeThreshold, rt.cfg.Strategy)
			} else {
				_, err = rt.engine.ResolveDuplicates(cmd.Context(), args[0], rt.cfg.DedupeThreshold, rt.cfg.Strategy)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&da.threshold, "threshold", "t", config.DefaultDedupeThreshold, "Similarity at or above which frames are duplicates (0-1]")
	f.StringVarP(&da.strategy, "strategy", "s", string(config.StrategyHash), "Comparison strategy (hash, judged)")
	f.BoolVar(&da.remove, "remove", false, "Delete the duplicates")
	f.IntVar(&da.maxJudged, "max-judged", config.DefaultJudgeMaxComparisons, "Judged comparisons before falling back to hashes")
	return cmd
}
