package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/config"
	"github.com/roach88/contentgraph/internal/engine"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger writes structured logs to w. --verbose lowers the level to
// Debug; --format json switches to the JSON handler.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := opts.Env.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func loadConfig(opts *RootOptions) (*config.ContentRepository, error) {
	repo, errs := config.LoadDir(opts.Env.ConfigDir)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load config from "+opts.Env.ConfigDir, errors.Join(errs...))
	}
	return repo, nil
}

// openRepository loads the configuration and opens the repository's
// engine. Closing the returned registry closes the database.
func openRepository(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*engine.Registry, *engine.Engine, error) {
	repo, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	reg := engine.NewRegistry()
	e, err := reg.Open(ctx, engine.DefaultRepositoryID, opts.Env, repo, nil, newLogger(opts, cmd.ErrOrStderr()))
	if err != nil {
		reg.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open repository "+opts.Env.DBPath, err)
	}
	return reg, e, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
