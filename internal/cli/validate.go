package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/config"
)

// ValidationResult is the validate command's output.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Files      int               `json:"files,omitempty"`
	Dimensions int               `json:"dimensions"`
	NodeTypes  int               `json:"node_types"`
	Points     int               `json:"dimension_space_points"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one configuration error.
type ValidationError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate dimension and node type configuration",
		Long: `Load the CUE configuration and report every dimension and node type
error at once: unknown generalizations, dimension cycles, unknown super
types or property scopes, invalid tethered children.

Exit codes:
  0 - configuration is valid
  1 - configuration has errors
  2 - configuration directory cannot be read

Example:
  contentgraph validate --config ./config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	repo, errs := config.LoadDir(opts.Env.ConfigDir)

	if repo == nil && len(errs) > 0 {
		var le *config.LoadError
		if errors.As(errs[0], &le) && isDirectoryError(le.Code) {
			_ = formatter.Error(le.Code, le.Message, nil)
			return WrapExitError(ExitCommandError, "cannot read configuration", errs[0])
		}
	}

	result := ValidationResult{Valid: len(errs) == 0}
	for _, err := range errs {
		result.Errors = append(result.Errors, toValidationError(err))
	}
	if repo != nil {
		result.Files = repo.FileCount
		result.Dimensions = len(repo.Dimensions)
		if repo.NodeTypes != nil {
			result.NodeTypes = len(repo.NodeTypes.All())
		}
		if repo.Graph != nil {
			result.Points = repo.Graph.DimensionSpacePoints().Len()
		}
	}

	if formatter.IsJSON() {
		if !result.Valid {
			_ = formatter.Error("E_INVALID_CONFIG", fmt.Sprintf("%d configuration error(s)", len(result.Errors)), result.Errors)
		} else if err := formatter.JSON(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "✗ [%s] line %d: %s\n", e.Code, e.Line, e.Message)
			} else {
				fmt.Fprintf(w, "✗ [%s] %s\n", e.Code, e.Message)
			}
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %d dimension(s), %d node type(s), %d dimension space point(s)\n",
				result.Dimensions, result.NodeTypes, result.Points)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("configuration has %d error(s)", len(result.Errors)))
	}
	return nil
}

func isDirectoryError(code string) bool {
	switch code {
	case config.ErrCodeNotFound, config.ErrCodeScanError, config.ErrCodeNoFiles:
		return true
	}
	return false
}

func toValidationError(err error) ValidationError {
	var le *config.LoadError
	if !errors.As(err, &le) {
		return ValidationError{Code: config.ErrCodeGeneric, Message: err.Error()}
	}
	v := ValidationError{Code: le.Code, Path: le.Path, Message: le.Message}
	if le.Pos.IsValid() {
		v.Line = le.Pos.Line()
	}
	return v
}
