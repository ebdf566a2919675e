package handler

import (
	"context"
	"fmt"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
	"github.com/roach88/contentgraph/internal/store"
	"github.com/roach88/contentgraph/internal/subgraph"
	"github.com/roach88/contentgraph/internal/workspace"
)

// EventLoader reads persisted events of one stream.
// Implemented by *store.Store.
type EventLoader interface {
	LoadStream(ctx context.Context, stream string, fromVersion int64) ([]store.StoredEvent, error)
}

// Committer persists events and returns once the projection has applied
// them, so the next handler reads the committed state.
type Committer interface {
	Commit(ctx context.Context, events EventsToPublish) (store.CommitResult, error)
}

// Deps is everything a handler reads from and writes through.
type Deps struct {
	Graph          *subgraph.ContentGraph
	Workspaces     *workspace.Finder
	ContentStreams *workspace.ContentStreamFinder
	NodeTypes      *nodetype.Manager
	Variation      *dimension.VariationGraph
	IDs            command.IDGenerator
	Events         EventLoader
	Committer      Committer

	// User is recorded as the initiating actor of every event.
	User ir.UserID

	// contentStreamOverride redirects node commands away from their
	// workspace's current stream while rebasing or partially publishing.
	contentStreamOverride ir.ContentStreamID
}

// withContentStream returns deps that write node commands to cs.
func (d Deps) withContentStream(cs ir.ContentStreamID) Deps {
	d.contentStreamOverride = cs
	return d
}

// PendingEvent is an event with the metadata it will be persisted with.
type PendingEvent struct {
	Event    event.Event
	Metadata event.Metadata
}

// EventsToPublish is the result of a handler: events to append to one
// stream, guarded by an expected version.
type EventsToPublish struct {
	Stream          string
	ExpectedVersion store.ExpectedVersion
	Events          []PendingEvent
}

// NewEvents encodes the pending events for the event store. Event ids come
// from ids; every event carries correlationID.
func (p EventsToPublish) NewEvents(ids command.IDGenerator, correlationID string) ([]store.NewEvent, error) {
	out := make([]store.NewEvent, 0, len(p.Events))
	for _, pe := range p.Events {
		payload, err := event.Encode(pe.Event)
		if err != nil {
			return nil, err
		}
		metadata, err := event.EncodeMetadata(pe.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, store.NewEvent{
			ID:            ids.Generate(),
			Type:          string(pe.Event.EventType()),
			Payload:       payload,
			Metadata:      metadata,
			CorrelationID: correlationID,
		})
	}
	return out, nil
}

// Handle validates cmd against the projected state and returns the events
// that carry it out. Commands that span several streams commit their
// intermediate steps through deps.Committer and return the last step.
func Handle(ctx context.Context, cmd command.Command, deps Deps) (EventsToPublish, error) {
	if err := cmd.Validate(); err != nil {
		return EventsToPublish{}, &DomainError{
			Code:    CodeInvariantViolation,
			Message: fmt.Sprintf("invalid %s: %v", cmd.CommandType(), err),
			Details: map[string]string{"reason": "InvalidCommand"},
			Err:     err,
		}
	}

	switch c := cmd.(type) {
	case command.CreateContentStream:
		return deps.createContentStream(ctx, c)
	case command.ForkContentStream:
		return deps.forkContentStream(ctx, c)
	case command.CloseContentStream:
		return deps.closeContentStream(ctx, c)
	case command.ReopenContentStream:
		return deps.reopenContentStream(ctx, c)
	case command.RemoveContentStream:
		return deps.removeContentStream(ctx, c)

	case command.CreateRootWorkspace:
		return deps.createRootWorkspace(ctx, c)
	case command.CreateWorkspace:
		return deps.createWorkspace(ctx, c)
	case command.RenameWorkspace:
		return deps.renameWorkspace(ctx, c)
	case command.ChangeWorkspaceOwner:
		return deps.changeWorkspaceOwner(ctx, c)
	case command.DeleteWorkspace:
		return deps.deleteWorkspace(ctx, c)
	case command.PublishWorkspace:
		return deps.publishWorkspace(ctx, c)
	case command.RebaseWorkspace:
		return deps.rebaseWorkspace(ctx, c)
	case command.DiscardWorkspace:
		return deps.discardWorkspace(ctx, c)
	case command.PublishIndividualNodesFromWorkspace:
		return deps.publishIndividualNodes(ctx, c)
	case command.DiscardIndividualNodesFromWorkspace:
		return deps.discardIndividualNodes(ctx, c)

	case command.CreateRootNodeAggregateWithNode:
		return deps.createRootNodeAggregate(ctx, c)
	case command.CreateNodeAggregateWithNode:
		return deps.createNodeAggregate(ctx, c)
	case command.SetNodeProperties:
		return deps.setNodeProperties(ctx, c)
	case command.SetNodeReferences:
		return deps.setNodeReferences(ctx, c)
	case command.RemoveNodeAggregate:
		return deps.removeNodeAggregate(ctx, c)
	case command.DisableNodeAggregate:
		return deps.disableNodeAggregate(ctx, c)
	case command.EnableNodeAggregate:
		return deps.enableNodeAggregate(ctx, c)
	case command.ChangeNodeAggregateName:
		return deps.changeNodeAggregateName(ctx, c)
	case command.ChangeNodeAggregateType:
		return deps.changeNodeAggregateType(ctx, c)
	case command.CreateNodeVariant:
		return deps.createNodeVariant(ctx, c)
	case command.MoveNodeAggregate:
		return deps.moveNodeAggregate(ctx, c)
	case command.CopyNodesRecursively:
		return deps.copyNodesRecursively(ctx, c)
	}
	return EventsToPublish{}, fmt.Errorf("no handler for command type %s", cmd.CommandType())
}

// run handles cmd and commits the result right away.
func (d Deps) run(ctx context.Context, cmd command.Command) (store.CommitResult, error) {
	out, err := Handle(ctx, cmd, d)
	if err != nil {
		return store.CommitResult{}, err
	}
	return d.commit(ctx, out)
}

func (d Deps) commit(ctx context.Context, out EventsToPublish) (store.CommitResult, error) {
	if d.Committer == nil {
		return store.CommitResult{}, fmt.Errorf("commit to %s: no committer configured", out.Stream)
	}
	return d.Committer.Commit(ctx, out)
}

func (d Deps) generateID() string {
	return d.IDs.Generate()
}

// plain wraps events that do not record a command.
func (d Deps) plain(stream string, expected store.ExpectedVersion, events ...event.Event) EventsToPublish {
	out := EventsToPublish{Stream: stream, ExpectedVersion: expected}
	for _, e := range events {
		out.Events = append(out.Events, PendingEvent{Event: e, Metadata: event.Metadata{InitiatingUserID: d.User}})
	}
	return out
}

// recorded wraps the events of a node command. The first event records
// the command so rebase and partial publish can replay it.
func (d Deps) recorded(t target, cmd command.NodeCommand, events ...event.Event) (EventsToPublish, error) {
	payload, err := command.ToFlatMap(cmd)
	if err != nil {
		return EventsToPublish{}, fmt.Errorf("record %s: %w", cmd.CommandType(), err)
	}
	out := d.plain(event.ContentStreamStreamName(t.contentStream), store.ExpectVersion(t.version), events...)
	if len(out.Events) > 0 {
		out.Events[0].Metadata.CommandType = cmd.CommandType()
		out.Events[0].Metadata.CommandPayload = payload
	}
	return out, nil
}
