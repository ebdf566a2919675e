package handler

import (
	"context"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/store"
)

func (d Deps) publishWorkspace(ctx context.Context, c command.PublishWorkspace) (EventsToPublish, error) {
	ws, err := d.requireWorkspace(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	base, err := d.requireBaseWorkspace(ctx, ws)
	if err != nil {
		return EventsToPublish{}, err
	}
	current, err := d.requireOpenContentStream(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if _, err := d.requireOpenContentStream(ctx, base.CurrentContentStreamID); err != nil {
		return EventsToPublish{}, err
	}

	published, err := d.publishChanges(ctx, current, base.CurrentContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if !published {
		return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectAny()), nil
	}
	next := d.newContentStreamID(c.NewContentStreamID)
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: next, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceWasPublished{
			SourceWorkspaceName:           ws.Name,
			TargetWorkspaceName:           base.Name,
			NewSourceContentStreamID:      next,
			PreviousSourceContentStreamID: current.ID,
		}), nil
}

// publishIndividualNodes publishes the commands touching the selected
// nodes and keeps the rest in the workspace.
//
// The workspace stream is closed first. The matching commands are replayed
// on a fork of the base and published from there; the remaining ones are
// replayed on a second fork, taken after the publish, which becomes the
// workspace's stream. Any failure reopens the old stream.
func (d Deps) publishIndividualNodes(ctx context.Context, c command.PublishIndividualNodesFromWorkspace) (EventsToPublish, error) {
	ws, err := d.requireWorkspace(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	base, err := d.requireBaseWorkspace(ctx, ws)
	if err != nil {
		return EventsToPublish{}, err
	}
	current, err := d.requireOpenContentStream(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if _, err := d.requireOpenContentStream(ctx, base.CurrentContentStreamID); err != nil {
		return EventsToPublish{}, err
	}

	cmds, err := d.recordedCommands(ctx, current.ID)
	if err != nil {
		return EventsToPublish{}, err
	}
	matching, remaining := partition(cmds, c.NodesToPublish)
	if len(matching) == 0 {
		return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectAny()), nil
	}
	if len(remaining) == 0 {
		return d.publishWorkspace(ctx, command.PublishWorkspace{
			WorkspaceName:      ws.Name,
			NewContentStreamID: c.ContentStreamIDForRemainingPart,
		})
	}

	matchingID := d.newContentStreamID(c.ContentStreamIDForMatchingPart)
	remainingID := d.newContentStreamID(c.ContentStreamIDForRemainingPart)

	if _, err := d.run(ctx, command.CloseContentStream{ContentStreamID: current.ID}); err != nil {
		return EventsToPublish{}, err
	}
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: matchingID, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current)
	}
	failures, err := d.replay(ctx, matchingID, matching)
	if err == nil && len(failures) > 0 {
		err = replayConflict("PartialWorkspacePublishFailed", "selected changes could not be applied to the base", failures)
	}
	if err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current, matchingID)
	}

	matchingCS, err := d.requireContentStream(ctx, matchingID)
	if err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current, matchingID)
	}
	if _, err := d.publishChanges(ctx, matchingCS, base.CurrentContentStreamID); err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current, matchingID)
	}

	// From here on the base contains the published part.
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: remainingID, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current, matchingID)
	}
	failures, err = d.replay(ctx, remainingID, remaining)
	if err == nil && len(failures) > 0 {
		err = replayConflict("PartialWorkspacePublishFailed", "remaining changes could not be applied after publishing", failures)
	}
	if err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current, matchingID, remainingID)
	}
	if _, err := d.run(ctx, command.RemoveContentStream{ContentStreamID: matchingID}); err != nil {
		return EventsToPublish{}, err
	}

	return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceWasPartiallyPublished{
			SourceWorkspaceName:           ws.Name,
			TargetWorkspaceName:           base.Name,
			NewSourceContentStreamID:      remainingID,
			PreviousSourceContentStreamID: current.ID,
			PublishedNodes:                c.NodesToPublish,
		}), nil
}

// discardIndividualNodes drops the commands touching the selected nodes by
// replaying all others on a fresh fork of the base.
func (d Deps) discardIndividualNodes(ctx context.Context, c command.DiscardIndividualNodesFromWorkspace) (EventsToPublish, error) {
	ws, err := d.requireWorkspace(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	base, err := d.requireBaseWorkspace(ctx, ws)
	if err != nil {
		return EventsToPublish{}, err
	}
	current, err := d.requireOpenContentStream(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}

	cmds, err := d.recordedCommands(ctx, current.ID)
	if err != nil {
		return EventsToPublish{}, err
	}
	discarded, remaining := partition(cmds, c.NodesToDiscard)
	if len(discarded) == 0 {
		return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectAny()), nil
	}

	next := d.newContentStreamID(c.NewContentStreamID)
	if _, err := d.run(ctx, command.CloseContentStream{ContentStreamID: current.ID}); err != nil {
		return EventsToPublish{}, err
	}
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: next, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current)
	}
	failures, err := d.replay(ctx, next, remaining)
	if err == nil && len(failures) > 0 {
		err = replayConflict("PartialWorkspaceDiscardFailed", "remaining changes could not be applied", failures)
	}
	if err != nil {
		return EventsToPublish{}, d.rollback(ctx, err, current, next)
	}

	return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceWasPartiallyDiscarded{
			WorkspaceName:           ws.Name,
			NewContentStreamID:      next,
			PreviousContentStreamID: current.ID,
			DiscardedNodes:          c.NodesToDiscard,
		}), nil
}
