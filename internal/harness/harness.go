package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/config"
	"github.com/roach88/contentgraph/internal/engine"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/handler"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/projection"
	"github.com/roach88/contentgraph/internal/store"
	"github.com/roach88/contentgraph/internal/testutil"
)

// DefaultUser initiates steps that do not name a user.
const DefaultUser ir.UserID = "harness"

// Harness runs one scenario against a fresh in-memory repository. Ids come
// from a sequence generator, so the same scenario always writes the same
// event log.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	dbPath string
}

// WithLogger routes engine logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDatabase runs the scenario against a file instead of memory, so the
// result can be inspected afterwards.
func WithDatabase(path string) Option {
	return func(o *options) { o.dbPath = path }
}

// Run executes s and evaluates its assertions.
//
// The returned error is reserved for problems with the scenario itself:
// unreadable config, undecodable commands or a failing setup step. Failed
// expectations and assertions are reported in the result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbPath: ":memory:",
	}
	for _, opt := range opts {
		opt(&o)
	}

	repo, errs := config.LoadDir(s.Config)
	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %w", errors.Join(errs...))
	}

	st, err := store.Open(o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	p := projection.New(st, projection.WithLogger(o.logger))
	h := &Harness{
		store: st,
		engine: engine.New(st, p, repo,
			engine.WithIDGenerator(testutil.NewSequenceGenerator("id")),
			engine.WithLogger(o.logger),
		),
		logger: o.logger,
	}

	if err := h.executeSetup(ctx, s.Setup); err != nil {
		return nil, err
	}

	result := NewResult()
	if err := h.executeFlow(ctx, s.Flow, result); err != nil {
		return nil, err
	}

	trace, err := h.trace(ctx)
	if err != nil {
		return nil, err
	}
	result.Trace = trace

	digest, err := p.StateDigest(ctx)
	if err != nil {
		return nil, err
	}
	result.Digest = digest

	actx := &AssertionContext{Engine: h.engine, Ctx: ctx, Trace: trace}
	for _, msg := range EvaluateAssertions(s.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		cmd, err := decode(step)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if _, err := h.engine.HandleAndBlock(ctx, user(step), cmd); err != nil {
			return fmt.Errorf("setup[%d] %s: %w", i, step.Command, err)
		}
	}
	return nil
}

func (h *Harness) executeFlow(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		cmd, err := decode(step)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		_, err = h.engine.HandleAndBlock(ctx, user(step), cmd)
		if msg := checkExpectation(step, err); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Command, msg))
		}
		h.logger.Debug("scenario step", "index", i, "command", step.Command, "error", err)
	}
	return nil
}

func decode(step Step) (command.Command, error) {
	args := step.Args
	if args == nil {
		args = map[string]any{}
	}
	return command.FromFlatMap(step.Command, args)
}

func user(step Step) ir.UserID {
	if step.User == "" {
		return DefaultUser
	}
	return ir.UserID(step.User)
}

// checkExpectation returns a failure message, or "" when err matches what
// the step expects.
func checkExpectation(step Step, err error) string {
	if step.Expect == nil {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}
	if err == nil {
		return fmt.Sprintf("expected %s error, command succeeded", step.Expect.Code)
	}
	var de *handler.DomainError
	if !errors.As(err, &de) {
		return fmt.Sprintf("expected %s error, got %v", step.Expect.Code, err)
	}
	if step.Expect.Code != "" && string(de.Code) != step.Expect.Code {
		return fmt.Sprintf("expected code %s, got %s", step.Expect.Code, de.Code)
	}
	if step.Expect.Reason != "" && handler.Reason(err) != step.Expect.Reason {
		return fmt.Sprintf("expected reason %s, got %s", step.Expect.Reason, handler.Reason(err))
	}
	return ""
}

func (h *Harness) trace(ctx context.Context) ([]TraceEvent, error) {
	events, err := h.store.LoadAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	trace := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		meta, err := event.DecodeMetadata(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.SequenceNumber, err)
		}
		trace = append(trace, TraceEvent{
			Seq:     e.SequenceNumber,
			Stream:  e.Stream,
			Type:    e.Type,
			Command: meta.CommandType,
		})
	}
	return trace, nil
}
