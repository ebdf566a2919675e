package handler

import (
	"context"
	"fmt"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/store"
)

// rebaseWorkspace replays the workspace's commands on a fresh fork of its
// base. With RebaseFail any rejected command leaves the workspace on its
// old stream and the candidate in REBASE_ERROR; with RebaseForce rejected
// commands are dropped.
func (d Deps) rebaseWorkspace(ctx context.Context, c command.RebaseWorkspace) (EventsToPublish, error) {
	ws, err := d.requireWorkspace(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	base, err := d.requireBaseWorkspace(ctx, ws)
	if err != nil {
		return EventsToPublish{}, err
	}
	current, err := d.requireContentStream(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	cmds, err := d.recordedCommands(ctx, current.ID)
	if err != nil {
		return EventsToPublish{}, err
	}

	candidate := d.newContentStreamID(c.RebasedContentStreamID)
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: candidate, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, err
	}
	started := d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceRebaseWasStarted{WorkspaceName: ws.Name, CandidateContentStreamID: candidate})
	if _, err := d.commit(ctx, started); err != nil {
		return EventsToPublish{}, err
	}

	failures, err := d.replay(ctx, candidate, cmds)
	if err != nil {
		failures = append(failures, event.RebaseErrorItem{Position: len(cmds), Message: err.Error()})
		if ferr := d.failRebase(context.WithoutCancel(ctx), ws.Name, candidate, current.ID, failures); ferr != nil {
			return EventsToPublish{}, fmt.Errorf("rebase %s: %w (recording failure: %v)", ws.Name, err, ferr)
		}
		return EventsToPublish{}, fmt.Errorf("rebase %s: %w", ws.Name, err)
	}
	if len(failures) > 0 && c.Strategy != command.RebaseForce {
		if err := d.failRebase(ctx, ws.Name, candidate, current.ID, failures); err != nil {
			return EventsToPublish{}, err
		}
		return EventsToPublish{}, replayConflict("WorkspaceRebaseFailed",
			fmt.Sprintf("%d of %d commands of %s could not be rebased", len(failures), len(cmds), ws.Name), failures)
	}

	return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceWasRebased{
			WorkspaceName:           ws.Name,
			NewContentStreamID:      candidate,
			PreviousContentStreamID: current.ID,
		}), nil
}

func (d Deps) failRebase(ctx context.Context, ws ir.WorkspaceName, candidate, previous ir.ContentStreamID, failures []event.RebaseErrorItem) error {
	_, err := d.commit(ctx, d.plain(event.WorkspaceStreamName(ws), store.ExpectStreamExists(),
		event.WorkspaceRebaseFailed{
			WorkspaceName:            ws,
			CandidateContentStreamID: candidate,
			PreviousContentStreamID:  previous,
			Errors:                   failures,
		}))
	return err
}
