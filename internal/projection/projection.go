package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/contentgraph/internal/cache"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/metrics"
	"github.com/roach88/contentgraph/internal/store"
)

// CheckpointName is the name under which progress is stored.
const CheckpointName = "contentgraph"

// DefaultBatchSize is the number of events loaded per catch-up round.
const DefaultBatchSize = 500

var projectionTables = []string{
	"node",
	"hierarchy_hyperrelation",
	"reference_relation",
	"restriction_hyperrelation",
	"content_streams",
	"workspaces",
}

// Projection is the catch-up projection of the content graph.
//
// CatchUp may be called from any goroutine; runs are serialized.
type Projection struct {
	store     *store.Store
	processed cache.ProcessedEvents
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	batchSize int

	mu sync.Mutex // serializes catch-up and reset

	signal chan struct{}
}

type Option func(*Projection)

// WithProcessedEvents sets the processed-event cache. Defaults to an
// in-memory cache.
func WithProcessedEvents(c cache.ProcessedEvents) Option {
	return func(p *Projection) {
		p.processed = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Projection) {
		p.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Projection) {
		p.logger = l
	}
}

func WithBatchSize(n int) Option {
	return func(p *Projection) {
		p.batchSize = n
	}
}

// New creates a projection over the tables of s.
func New(s *store.Store, opts ...Option) *Projection {
	p := &Projection{
		store:     s,
		processed: cache.NewMemory(cache.DefaultTTL),
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/roach88/contentgraph/internal/projection"),
		batchSize: DefaultBatchSize,
		signal:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Checkpoint returns the last applied sequence number.
func (p *Projection) Checkpoint(ctx context.Context) (int64, error) {
	return p.store.Checkpoint(ctx, CheckpointName)
}

// Notify wakes Run. It never blocks.
func (p *Projection) Notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Run catches up whenever Notify is called, until ctx is done. Errors are
// logged and retried on the next signal.
func (p *Projection) Run(ctx context.Context) error {
	for {
		if _, err := p.CatchUp(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("projection catch-up failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.signal:
		}
	}
}

// CatchUp applies every event after the checkpoint and returns how many it
// applied. ctx is checked between batches.
func (p *Projection) CatchUp(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := p.tracer.Start(ctx, "projection.CatchUp")
	defer span.End()

	start := time.Now()
	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		checkpoint, err := p.Checkpoint(ctx)
		if err != nil {
			return applied, err
		}
		batch, err := p.store.LoadAll(ctx, checkpoint, p.batchSize)
		if err != nil {
			return applied, fmt.Errorf("catch up: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, stored := range batch {
			if err := p.applyStored(ctx, stored); err != nil {
				return applied, err
			}
			applied++
		}
		p.logger.Debug("projection batch applied", "events", len(batch), "checkpoint", batch[len(batch)-1].SequenceNumber)
	}

	span.SetAttributes(attribute.Int("events", applied))
	if p.metrics != nil {
		head, err := p.store.HeadSequence(ctx)
		if err == nil {
			checkpoint, _ := p.Checkpoint(ctx)
			p.metrics.CatchUp(time.Since(start), head-checkpoint)
		}
	}
	return applied, nil
}

func (p *Projection) applyStored(ctx context.Context, stored store.StoredEvent) error {
	seen, err := p.processed.IsProcessed(ctx, stored.ID)
	if err != nil {
		return err
	}

	tx, err := p.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply event %d: begin: %w", stored.SequenceNumber, err)
	}
	defer tx.Rollback()

	if !seen {
		env, err := decodeStored(stored)
		if err != nil {
			return fmt.Errorf("apply event %d: %w", stored.SequenceNumber, err)
		}
		a := &applier{tx: tx, seq: stored.SequenceNumber}
		if err := a.apply(ctx, env); err != nil {
			return fmt.Errorf("apply %s (sequence %d): %w", stored.Type, stored.SequenceNumber, err)
		}
	}
	if err := store.SaveCheckpoint(ctx, tx, CheckpointName, stored.SequenceNumber); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply event %d: commit: %w", stored.SequenceNumber, err)
	}

	if !seen {
		if _, err := p.processed.MarkProcessed(ctx, stored.ID); err != nil {
			p.logger.Warn("mark event processed", "event", stored.ID, "error", err)
		}
		p.metrics.EventProjected(stored.Type)
	}
	return nil
}

func decodeStored(stored store.StoredEvent) (event.Envelope, error) {
	e, err := event.Decode(stored.Type, stored.Payload)
	if err != nil {
		return event.Envelope{}, err
	}
	meta, err := event.DecodeMetadata(stored.Metadata)
	if err != nil {
		return event.Envelope{}, err
	}
	return event.Envelope{
		SequenceNumber: stored.SequenceNumber,
		Stream:         stored.Stream,
		Version:        stored.Version,
		ID:             stored.ID,
		Event:          e,
		Metadata:       meta,
	}, nil
}

// WaitFor blocks until the checkpoint is at least seq, catching up itself
// if nothing else does.
func (p *Projection) WaitFor(ctx context.Context, seq int64) error {
	for {
		checkpoint, err := p.Checkpoint(ctx)
		if err != nil {
			return err
		}
		if checkpoint >= seq {
			return nil
		}
		applied, err := p.CatchUp(ctx)
		if err != nil {
			return err
		}
		if applied == 0 {
			head, err := p.store.HeadSequence(ctx)
			if err != nil {
				return err
			}
			if head < seq {
				return fmt.Errorf("wait for sequence %d: log ends at %d", seq, head)
			}
		}
	}
}

// Reset empties every projection table, the checkpoint and the processed
// event cache. A following CatchUp replays the whole log.
func (p *Projection) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset projection: %w", err)
	}
	defer tx.Rollback()

	for _, table := range projectionTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset projection: truncate %s: %w", table, err)
		}
	}
	if err := store.DeleteCheckpoint(ctx, tx, CheckpointName); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset projection: commit: %w", err)
	}
	if err := p.processed.Clear(ctx); err != nil {
		return fmt.Errorf("reset projection: %w", err)
	}
	p.logger.Info("projection reset")
	return nil
}
