package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	DBPath    string
	ConfigDir string

	// Env is loaded before any subcommand runs. --db and --config
	// override its DBPath and ConfigDir.
	Env config.Env
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the contentgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "contentgraph",
		Short: "Event-sourced multi-dimensional content repository",
		Long: `Operate a content repository: validate its dimension and node type
configuration, run commands and scenarios against it, and inspect the
event log, workspaces and content subgraphs.

Configuration is read from CONTENTGRAPH_* environment variables; --db and
--config take precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			env, err := config.LoadEnv()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			if cmd.Flags().Changed("db") {
				env.DBPath = opts.DBPath
			}
			if cmd.Flags().Changed("config") {
				env.ConfigDir = opts.ConfigDir
			}
			opts.Env = env
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (default $CONTENTGRAPH_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "", "directory with CUE configuration (default $CONTENTGRAPH_CONFIG_DIR)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewHandleCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}
