package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/five82/keyframes/internal/util"
)

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id> <keyframe-id>...",
		Short: "Delete keyframes from a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			for _, id := range args[1:] {
				if err := rt.engine.DeleteKeyframe(cmd.Context(), args[0], id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "List sessions or show the keyframes of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, g, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				ids, err := rt.engine.Sessions(ctx)
				if err != nil {
					return err
				}
				if g.jsonOutput {
					return json.NewEncoder(out).Encode(ids)
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			sess, err := rt.engine.Session(ctx, args[0])
			if err != nil {
				return err
			}
			if g.jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sess)
			}

			fmt.Fprintf(out, "Session:  %s\nVideo:    %s\nMethod:   %s\nDuration: %s (%d frames @ %.2f fps)\n\n",
				sess.ID, sess.VideoPath, sess.Method,
				util.FormatDuration(sess.Metadata.Duration), sess.Metadata.FrameCount, sess.Metadata.FPS)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tID\tFRAME\tTIME\tSCORE\tTRANSITION\tPATH")
			for _, kf := range sess.Keyframes {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%.2f\t%v\t%s\n",
					kf.SequenceIndex, kf.ID, kf.FrameNumber, util.FormatTimestamp(kf.Timestamp),
					kf.Score, kf.IsTransition, kf.ArtifactPath)
			}
			return tw.Flush()
		},
	}
}
