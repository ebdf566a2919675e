package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/engine"
	"github.com/roach88/contentgraph/internal/ir"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Workspace    string
	Title        string
	RootNodeType string
	RootNodeID   string
	User         string
}

// InitResult is the init command's output.
type InitResult struct {
	Workspace       string `json:"workspace"`
	ContentStreamID string `json:"content_stream_id"`
	RootNodeID      string `json:"root_node_id"`
	RootNodeType    string `json:"root_node_type"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the root workspace and its root node",
		Long: `Create the root workspace (live by default) and one root node of the
given root node type in it.

Example:
  contentgraph init --db ./content.db --config ./config --root-node-type Acme:Sites`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Workspace, "workspace", "live", "name of the root workspace")
	cmd.Flags().StringVar(&opts.Title, "title", "Live", "title of the root workspace")
	cmd.Flags().StringVar(&opts.RootNodeType, "root-node-type", "", "root node type (required)")
	_ = cmd.MarkFlagRequired("root-node-type")
	cmd.Flags().StringVar(&opts.RootNodeID, "root-node-id", "", "root node aggregate id (default: generated)")
	cmd.Flags().StringVar(&opts.User, "user", string(ir.SystemUserID), "initiating user")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, eng, err := openRepository(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	user := ir.UserID(opts.User)
	if _, err := eng.HandleAndBlock(ctx, user, command.CreateRootWorkspace{
		WorkspaceName: ir.WorkspaceName(opts.Workspace),
		Title:         opts.Title,
	}); err != nil {
		return formatter.DomainError(err)
	}
	rootID := opts.RootNodeID
	if rootID == "" {
		rootID = engine.UUIDv7Generator{}.Generate()
	}
	if _, err := eng.HandleAndBlock(ctx, user, command.CreateRootNodeAggregateWithNode{
		WorkspaceName:   ir.WorkspaceName(opts.Workspace),
		NodeAggregateID: ir.NodeAggregateID(rootID),
		NodeTypeName:    ir.NodeTypeName(opts.RootNodeType),
	}); err != nil {
		return formatter.DomainError(err)
	}

	ws, err := eng.Workspaces().FindByName(ctx, ir.WorkspaceName(opts.Workspace))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read workspace", err)
	}
	result := InitResult{
		Workspace:       opts.Workspace,
		ContentStreamID: string(ws.CurrentContentStreamID),
		RootNodeID:      rootID,
		RootNodeType:    opts.RootNodeType,
	}
	if formatter.IsJSON() {
		return formatter.JSON(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Workspace %s (content stream %s) with root node %s <%s>\n",
		result.Workspace, result.ContentStreamID, result.RootNodeID, result.RootNodeType)
	return nil
}
