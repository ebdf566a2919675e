package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ReplayOutput is the replay command's output.
type ReplayOutput struct {
	Events    int    `json:"events"`
	Before    string `json:"digest_before"`
	After     string `json:"digest_after"`
	Identical bool   `json:"identical"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the projection from the event log",
		Long: `Reset every projection table, fold the whole event log into them
again and compare the state digest before and after.

Events are never modified.

Exit codes:
  0 - The rebuilt state is identical
  1 - The digests differ
  2 - Command error (database not found, etc.)

Examples:
  contentgraph replay --db ./content.db
  contentgraph replay --db ./content.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts, cmd)

	reg, eng, err := openRepository(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	res, err := eng.Replay(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	out := ReplayOutput{Events: res.Applied, Before: res.Before, After: res.After, Identical: res.Identical()}

	if formatter.IsJSON() {
		if out.Identical {
			return formatter.JSON(out)
		}
		_ = formatter.Error("E_REPLAY_MISMATCH", "replayed state differs from the previous projection", out)
		return NewExitError(ExitFailure, "replayed state differs")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replayed %d event(s)\n", out.Events)
	if opts.Verbose {
		fmt.Fprintf(w, "  Before: %s\n", out.Before)
		fmt.Fprintf(w, "  After:  %s\n", out.After)
	}
	if out.Identical {
		fmt.Fprintln(w, "✓ Projection state is identical")
		return nil
	}
	fmt.Fprintln(w, "✗ Projection state differs")
	return NewExitError(ExitFailure, "replayed state differs")
}
