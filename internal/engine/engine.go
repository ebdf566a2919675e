package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/config"
	"github.com/roach88/contentgraph/internal/handler"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/metrics"
	"github.com/roach88/contentgraph/internal/projection"
	"github.com/roach88/contentgraph/internal/store"
	"github.com/roach88/contentgraph/internal/subgraph"
	"github.com/roach88/contentgraph/internal/workspace"
)

// DefaultMaxRetries is how often a command is re-run after its final
// append lost an expected-version race.
const DefaultMaxRetries = 3

// Engine is the command bus of one content repository.
//
// Handle may be called from any goroutine. Commands are not serialized
// against each other; the event store's expected-version check is the only
// point where concurrent writers meet.
type Engine struct {
	store          *store.Store
	projection     *projection.Projection
	repo           *config.ContentRepository
	graph          *subgraph.ContentGraph
	workspaces     *workspace.Finder
	contentStreams *workspace.ContentStreamFinder

	ids        command.IDGenerator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	maxRetries int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries sets how often a conflicting command is re-run.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithIDGenerator sets the generator for event, content stream and
// correlation ids. Defaults to UUIDv7Generator.
func WithIDGenerator(g command.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine writing to s and reading through p.
func New(s *store.Store, p *projection.Projection, repo *config.ContentRepository, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		projection:     p,
		repo:           repo,
		graph:          subgraph.NewContentGraph(s.DB(), repo.NodeTypes),
		workspaces:     workspace.NewFinder(s.DB()),
		contentStreams: workspace.NewContentStreamFinder(s.DB()),
		ids:            UUIDv7Generator{},
		logger:         slog.Default(),
		tracer:         otel.Tracer("github.com/roach88/contentgraph/internal/engine"),
		maxRetries:     DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() *store.Store                           { return e.store }
func (e *Engine) Projection() *projection.Projection            { return e.projection }
func (e *Engine) ContentRepository() *config.ContentRepository  { return e.repo }
func (e *Engine) ContentGraph() *subgraph.ContentGraph          { return e.graph }
func (e *Engine) Workspaces() *workspace.Finder                 { return e.workspaces }
func (e *Engine) ContentStreams() *workspace.ContentStreamFinder { return e.contentStreams }

// Handle runs cmd on behalf of user and appends its events.
//
// Domain errors from the handler are returned as they are. When the final
// append conflicts, the handler is re-run against fresh state up to
// MaxRetries times before a CONCURRENCY_CONFLICT is returned.
//
// Events committed by intermediate steps of workspace commands are already
// projected when Handle returns. The final commit is not; call Block on the
// result to read it back.
func (e *Engine) Handle(ctx context.Context, user ir.UserID, cmd command.Command) (*CommandResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Handle",
		trace.WithAttributes(attribute.String("command", cmd.CommandType())))
	defer span.End()

	correlationID := e.ids.Generate()
	deps := e.deps(user, correlationID)

	for attempt := 0; ; attempt++ {
		out, err := handler.Handle(ctx, cmd, deps)
		if err != nil {
			e.reject(span, cmd, err)
			return nil, err
		}

		commit, err := e.append(ctx, out, correlationID)
		if err == nil {
			e.projection.Notify()
			e.metrics.CommandHandled(cmd.CommandType(), metrics.OutcomeOK)
			e.logger.Info("command handled",
				"command", cmd.CommandType(),
				"stream", out.Stream,
				"events", len(out.Events),
				"first_sequence", commit.FirstSequence,
				"last_sequence", commit.LastSequence,
				"attempt", attempt+1,
			)
			return &CommandResult{Stream: out.Stream, Commit: commit, projection: e.projection}, nil
		}
		if !store.IsConcurrencyError(err) {
			e.metrics.CommandHandled(cmd.CommandType(), metrics.OutcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		e.metrics.ConcurrencyConflict(cmd.CommandType())
		if attempt >= e.maxRetries {
			conflict := handler.NewConcurrencyConflict("ConcurrencyConflict", err)
			e.reject(span, cmd, conflict)
			return nil, conflict
		}
		e.logger.Debug("retrying command after conflict", "command", cmd.CommandType(), "attempt", attempt+1, "error", err)
		if _, err := e.projection.CatchUp(ctx); err != nil {
			return nil, fmt.Errorf("catch up before retry: %w", err)
		}
	}
}

func (e *Engine) reject(span trace.Span, cmd command.Command, err error) {
	outcome := metrics.OutcomeError
	var de *handler.DomainError
	if errors.As(err, &de) {
		outcome = metrics.OutcomeRejected
		span.SetAttributes(attribute.String("error.code", string(de.Code)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.metrics.CommandHandled(cmd.CommandType(), outcome)
	e.logger.Info("command rejected", "command", cmd.CommandType(), "reason", handler.Reason(err), "error", err)
}

// HandleAndBlock runs Handle and waits until the projection has applied
// the result.
func (e *Engine) HandleAndBlock(ctx context.Context, user ir.UserID, cmd command.Command) (*CommandResult, error) {
	res, err := e.Handle(ctx, user, cmd)
	if err != nil {
		return nil, err
	}
	if err := res.Block(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) deps(user ir.UserID, correlationID string) handler.Deps {
	return handler.Deps{
		Graph:          e.graph,
		Workspaces:     e.workspaces,
		ContentStreams: e.contentStreams,
		NodeTypes:      e.repo.NodeTypes,
		Variation:      e.repo.Graph,
		IDs:            e.ids,
		Events:         e.store,
		Committer:      committer{engine: e, correlationID: correlationID},
		User:           user,
	}
}

func (e *Engine) append(ctx context.Context, out handler.EventsToPublish, correlationID string) (store.CommitResult, error) {
	events, err := out.NewEvents(e.ids, correlationID)
	if err != nil {
		return store.CommitResult{}, err
	}
	return e.store.Append(ctx, out.Stream, out.ExpectedVersion, events)
}

// committer persists the intermediate steps of a command and projects them
// right away so the next step reads them.
type committer struct {
	engine        *Engine
	correlationID string
}

func (c committer) Commit(ctx context.Context, out handler.EventsToPublish) (store.CommitResult, error) {
	commit, err := c.engine.append(ctx, out, c.correlationID)
	if err != nil {
		return store.CommitResult{}, err
	}
	if len(out.Events) == 0 {
		return commit, nil
	}
	if err := c.engine.projection.WaitFor(ctx, commit.LastSequence); err != nil {
		return store.CommitResult{}, fmt.Errorf("project %s: %w", out.Stream, err)
	}
	return commit, nil
}

// CommandResult is the outcome of a handled command.
type CommandResult struct {
	Stream string
	Commit store.CommitResult

	projection *projection.Projection
}

// Block waits until the projection has applied the command's events.
func (r *CommandResult) Block(ctx context.Context) error {
	if r.Commit.LastSequence == 0 {
		return nil
	}
	return r.projection.WaitFor(ctx, r.Commit.LastSequence)
}
