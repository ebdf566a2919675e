package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// StatusResult is the status command's output.
type StatusResult struct {
	HeadSequence   int64                 `json:"head_sequence"`
	Checkpoint     int64                 `json:"checkpoint"`
	Workspaces     []WorkspaceStatus     `json:"workspaces"`
	ContentStreams []ContentStreamStatus `json:"content_streams"`
}

type WorkspaceStatus struct {
	Name          string `json:"name"`
	Base          string `json:"base,omitempty"`
	Title         string `json:"title,omitempty"`
	Owner         string `json:"owner,omitempty"`
	ContentStream string `json:"content_stream"`
	Status        string `json:"status"`
}

type ContentStreamStatus struct {
	ID      string `json:"id"`
	Source  string `json:"source,omitempty"`
	State   string `json:"state"`
	Version int64  `json:"version"`
	Closed  bool   `json:"closed"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the event log position, workspaces and content streams",
		Long: `Show how far the projection has caught up with the event log, every
workspace with its current content stream and status, and the content
streams. Removed streams are left out unless --all is given.

Example:
  contentgraph status --db ./content.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, all, cmd)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include removed content streams")
	return cmd
}

func runStatus(opts *RootOptions, all bool, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts, cmd)

	reg, eng, err := openRepository(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	var result StatusResult
	if result.HeadSequence, err = eng.Store().HeadSequence(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read head sequence", err)
	}
	if result.Checkpoint, err = eng.Projection().Checkpoint(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}

	workspaces, err := eng.Workspaces().FindAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read workspaces", err)
	}
	result.Workspaces = make([]WorkspaceStatus, 0, len(workspaces))
	for _, ws := range workspaces {
		result.Workspaces = append(result.Workspaces, WorkspaceStatus{
			Name:          string(ws.Name),
			Base:          string(ws.BaseName),
			Title:         ws.Title,
			Owner:         string(ws.Owner),
			ContentStream: string(ws.CurrentContentStreamID),
			Status:        string(ws.Status),
		})
	}

	streams, err := eng.ContentStreams().FindAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read content streams", err)
	}
	result.ContentStreams = make([]ContentStreamStatus, 0, len(streams))
	for _, cs := range streams {
		if cs.Removed && !all {
			continue
		}
		result.ContentStreams = append(result.ContentStreams, ContentStreamStatus{
			ID:      string(cs.ID),
			Source:  string(cs.SourceID),
			State:   string(cs.State),
			Version: cs.Version,
			Closed:  cs.Closed,
		})
	}

	if formatter.IsJSON() {
		return formatter.JSON(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Events: %d (projected up to %d)\n\n", result.HeadSequence, result.Checkpoint)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKSPACE\tBASE\tCONTENT STREAM\tSTATUS")
	for _, ws := range result.Workspaces {
		base := ws.Base
		if base == "" {
			base = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ws.Name, base, ws.ContentStream, ws.Status)
	}
	tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTENT STREAM\tSOURCE\tSTATE\tVERSION\tCLOSED")
	for _, cs := range result.ContentStreams {
		source := cs.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\n", cs.ID, source, cs.State, cs.Version, cs.Closed)
	}
	return tw.Flush()
}
