package handler

import (
	"context"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/store"
)

func (d Deps) newContentStreamID(id ir.ContentStreamID) ir.ContentStreamID {
	if id != "" {
		return id
	}
	return ir.ContentStreamID(d.generateID())
}

func (d Deps) createRootWorkspace(ctx context.Context, c command.CreateRootWorkspace) (EventsToPublish, error) {
	if err := d.requireWorkspaceAbsent(ctx, c.WorkspaceName); err != nil {
		return EventsToPublish{}, err
	}
	cs := d.newContentStreamID(c.NewContentStreamID)
	if _, err := d.run(ctx, command.CreateContentStream{ContentStreamID: cs}); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.WorkspaceStreamName(c.WorkspaceName), store.ExpectAny(),
		event.RootWorkspaceWasCreated{
			WorkspaceName:      c.WorkspaceName,
			Title:              c.Title,
			Description:        c.Description,
			NewContentStreamID: cs,
		}), nil
}

func (d Deps) createWorkspace(ctx context.Context, c command.CreateWorkspace) (EventsToPublish, error) {
	if err := d.requireWorkspaceAbsent(ctx, c.WorkspaceName); err != nil {
		return EventsToPublish{}, err
	}
	base, err := d.Workspaces.FindByName(ctx, c.BaseWorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	if base == nil {
		return EventsToPublish{}, notFound("BaseWorkspaceDoesNotExist", "base workspace %s does not exist", c.BaseWorkspaceName)
	}
	cs := d.newContentStreamID(c.NewContentStreamID)
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: cs, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.WorkspaceStreamName(c.WorkspaceName), store.ExpectAny(),
		event.WorkspaceWasCreated{
			WorkspaceName:      c.WorkspaceName,
			BaseWorkspaceName:  base.Name,
			Title:              c.Title,
			Description:        c.Description,
			Owner:              c.Owner,
			NewContentStreamID: cs,
		}), nil
}

func (d Deps) renameWorkspace(ctx context.Context, c command.RenameWorkspace) (EventsToPublish, error) {
	if _, err := d.requireWorkspace(ctx, c.WorkspaceName); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.WorkspaceStreamName(c.WorkspaceName), store.ExpectStreamExists(),
		event.WorkspaceWasRenamed{WorkspaceName: c.WorkspaceName, Title: c.Title, Description: c.Description}), nil
}

func (d Deps) changeWorkspaceOwner(ctx context.Context, c command.ChangeWorkspaceOwner) (EventsToPublish, error) {
	if _, err := d.requireWorkspace(ctx, c.WorkspaceName); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.WorkspaceStreamName(c.WorkspaceName), store.ExpectStreamExists(),
		event.WorkspaceOwnerWasChanged{WorkspaceName: c.WorkspaceName, NewOwner: c.NewOwner}), nil
}

func (d Deps) deleteWorkspace(ctx context.Context, c command.DeleteWorkspace) (EventsToPublish, error) {
	ws, err := d.requireWorkspace(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	dependents, err := d.Workspaces.FindByBaseWorkspace(ctx, ws.Name)
	if err != nil {
		return EventsToPublish{}, err
	}
	if len(dependents) > 0 {
		return EventsToPublish{}, violation("WorkspaceHasDependentWorkspaces",
			"workspace %s is the base of %d workspaces", ws.Name, len(dependents))
	}
	cs, err := d.ContentStreams.FindByID(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if cs != nil && !cs.Removed {
		if _, err := d.run(ctx, command.RemoveContentStream{ContentStreamID: cs.ID}); err != nil {
			return EventsToPublish{}, err
		}
	}
	return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceWasRemoved{WorkspaceName: ws.Name}), nil
}

func (d Deps) discardWorkspace(ctx context.Context, c command.DiscardWorkspace) (EventsToPublish, error) {
	ws, err := d.requireWorkspace(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	base, err := d.requireBaseWorkspace(ctx, ws)
	if err != nil {
		return EventsToPublish{}, err
	}
	cs := d.newContentStreamID(c.NewContentStreamID)
	if _, err := d.run(ctx, command.ForkContentStream{NewContentStreamID: cs, SourceContentStreamID: base.CurrentContentStreamID}); err != nil {
		return EventsToPublish{}, err
	}
	return d.plain(event.WorkspaceStreamName(ws.Name), store.ExpectStreamExists(),
		event.WorkspaceWasDiscarded{
			WorkspaceName:           ws.Name,
			NewContentStreamID:      cs,
			PreviousContentStreamID: ws.CurrentContentStreamID,
		}), nil
}
