package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/ir"
)

// HandleOptions holds flags for the handle command.
type HandleOptions struct {
	*RootOptions
	Args string
	User string
}

// HandleResult is the handle command's output.
type HandleResult struct {
	Command       string `json:"command"`
	Stream        string `json:"stream"`
	FirstSequence int64  `json:"first_sequence"`
	LastSequence  int64  `json:"last_sequence"`
	Version       int64  `json:"version"`
}

// NewHandleCommand creates the handle command.
func NewHandleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HandleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "handle <command-type>",
		Short: "Handle one command against the repository",
		Long: `Decode a command from its JSON flat map, handle it and wait until the
projection has applied its events.

Exit codes:
  0 - command handled
  1 - command rejected (NOT_FOUND, INVARIANT_VIOLATION, ...)
  2 - undecodable command or unreadable repository

Example:
  contentgraph handle SetNodeProperties --args '{"workspaceName":"live",
    "nodeAggregateId":"home","originDimensionSpacePoint":{"language":"de"},
    "propertyValues":{"title":"Hello"}}'`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return command.Types(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHandle(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "command arguments as JSON")
	cmd.Flags().StringVar(&opts.User, "user", string(ir.SystemUserID), "initiating user")

	return cmd
}

func runHandle(opts *HandleOptions, commandType string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	var args map[string]any
	dec := json.NewDecoder(strings.NewReader(opts.Args))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	numbersToValues(args)
	c, err := command.FromFlatMap(commandType, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid command", err)
	}

	reg, eng, err := openRepository(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	formatter.VerboseLog("Handling %s as %s", c.CommandType(), opts.User)
	res, err := eng.HandleAndBlock(ctx, ir.UserID(opts.User), c)
	if err != nil {
		return formatter.DomainError(err)
	}

	result := HandleResult{
		Command:       c.CommandType(),
		Stream:        res.Stream,
		FirstSequence: res.Commit.FirstSequence,
		LastSequence:  res.Commit.LastSequence,
		Version:       res.Commit.Version,
	}
	if formatter.IsJSON() {
		return formatter.JSON(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s → %s (sequence %d..%d)\n",
		result.Command, result.Stream, result.FirstSequence, result.LastSequence)
	return nil
}

// numbersToValues turns json.Number into int64 where the number is
// integral, float64 otherwise, so int properties keep their type.
func numbersToValues(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, e := range val {
			val[k] = numbersToValues(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = numbersToValues(e)
		}
		return val
	}
	return v
}
