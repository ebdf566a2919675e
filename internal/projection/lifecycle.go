package projection

import (
	"context"
	"fmt"

	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/workspace"
)

func (a *applier) contentStreamWasCreated(ctx context.Context, e event.ContentStreamWasCreated) error {
	err := a.exec(ctx, `INSERT INTO content_streams (content_stream_id, state) VALUES (?, ?)`,
		e.ContentStreamID, workspace.StateCreated)
	if err != nil {
		return fmt.Errorf("create content stream %s: %w", e.ContentStreamID, err)
	}
	return nil
}

func (a *applier) contentStreamWasForked(ctx context.Context, e event.ContentStreamWasForked) error {
	err := a.exec(ctx, `
		INSERT INTO content_streams (content_stream_id, source_content_stream_id, source_version, state)
		VALUES (?, ?, ?, ?)`,
		e.NewContentStreamID, e.SourceContentStreamID, e.VersionOfSourceContentStream, workspace.StateCreated)
	if err != nil {
		return fmt.Errorf("fork content stream %s: %w", e.SourceContentStreamID, err)
	}
	return a.forkHierarchy(ctx, e.NewContentStreamID, e.SourceContentStreamID)
}

func (a *applier) contentStreamWasClosed(ctx context.Context, e event.ContentStreamWasClosed) error {
	if err := a.exec(ctx, `UPDATE content_streams SET closed = 1 WHERE content_stream_id = ?`, e.ContentStreamID); err != nil {
		return fmt.Errorf("close content stream %s: %w", e.ContentStreamID, err)
	}
	return nil
}

func (a *applier) contentStreamWasReopened(ctx context.Context, e event.ContentStreamWasReopened) error {
	if err := a.exec(ctx, `UPDATE content_streams SET closed = 0 WHERE content_stream_id = ?`, e.ContentStreamID); err != nil {
		return fmt.Errorf("reopen content stream %s: %w", e.ContentStreamID, err)
	}
	if e.PreviousState == "" {
		return nil
	}
	return a.setContentStreamState(ctx, e.ContentStreamID, workspace.State(e.PreviousState))
}

func (a *applier) contentStreamWasRemoved(ctx context.Context, e event.ContentStreamWasRemoved) error {
	if err := a.exec(ctx, `UPDATE content_streams SET removed = 1 WHERE content_stream_id = ?`, e.ContentStreamID); err != nil {
		return fmt.Errorf("remove content stream %s: %w", e.ContentStreamID, err)
	}
	return a.dropHierarchy(ctx, e.ContentStreamID)
}

func (a *applier) setContentStreamState(ctx context.Context, cs ir.ContentStreamID, state workspace.State) error {
	if err := a.exec(ctx, `UPDATE content_streams SET state = ? WHERE content_stream_id = ?`, state, cs); err != nil {
		return fmt.Errorf("set state of %s: %w", cs, err)
	}
	return nil
}

func (a *applier) insertWorkspace(ctx context.Context, w workspace.Workspace) error {
	err := a.exec(ctx, `INSERT INTO workspaces VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.Name, w.BaseName, w.Title, w.Description, w.Owner, w.CurrentContentStreamID, w.Status)
	if err != nil {
		return fmt.Errorf("create workspace %s: %w", w.Name, err)
	}
	return a.setContentStreamState(ctx, w.CurrentContentStreamID, workspace.StateInUseByWorkspace)
}

func (a *applier) rootWorkspaceWasCreated(ctx context.Context, e event.RootWorkspaceWasCreated) error {
	return a.insertWorkspace(ctx, workspace.Workspace{
		Name:                   e.WorkspaceName,
		Title:                  e.Title,
		Description:            e.Description,
		CurrentContentStreamID: e.NewContentStreamID,
		Status:                 workspace.StatusUpToDate,
	})
}

func (a *applier) workspaceWasCreated(ctx context.Context, e event.WorkspaceWasCreated) error {
	return a.insertWorkspace(ctx, workspace.Workspace{
		Name:                   e.WorkspaceName,
		BaseName:               e.BaseWorkspaceName,
		Title:                  e.Title,
		Description:            e.Description,
		Owner:                  e.Owner,
		CurrentContentStreamID: e.NewContentStreamID,
		Status:                 workspace.StatusUpToDate,
	})
}

func (a *applier) workspaceWasRenamed(ctx context.Context, e event.WorkspaceWasRenamed) error {
	err := a.exec(ctx, `UPDATE workspaces SET title = ?, description = ? WHERE workspace_name = ?`,
		e.Title, e.Description, e.WorkspaceName)
	if err != nil {
		return fmt.Errorf("rename workspace %s: %w", e.WorkspaceName, err)
	}
	return nil
}

func (a *applier) workspaceOwnerWasChanged(ctx context.Context, e event.WorkspaceOwnerWasChanged) error {
	if err := a.exec(ctx, `UPDATE workspaces SET owner = ? WHERE workspace_name = ?`, e.NewOwner, e.WorkspaceName); err != nil {
		return fmt.Errorf("change owner of %s: %w", e.WorkspaceName, err)
	}
	return nil
}

func (a *applier) workspaceWasRemoved(ctx context.Context, e event.WorkspaceWasRemoved) error {
	if err := a.exec(ctx, `DELETE FROM workspaces WHERE workspace_name = ?`, e.WorkspaceName); err != nil {
		return fmt.Errorf("remove workspace %s: %w", e.WorkspaceName, err)
	}
	return nil
}

// switchContentStream points a workspace at a new stream after publishing,
// discarding or rebasing. The workspace has then seen every base change.
func (a *applier) switchContentStream(ctx context.Context, ws ir.WorkspaceName, next, previous ir.ContentStreamID) error {
	err := a.exec(ctx, `UPDATE workspaces SET current_content_stream_id = ?, status = ? WHERE workspace_name = ?`,
		next, workspace.StatusUpToDate, ws)
	if err != nil {
		return fmt.Errorf("switch stream of %s: %w", ws, err)
	}
	if err := a.setContentStreamState(ctx, next, workspace.StateInUseByWorkspace); err != nil {
		return err
	}
	return a.setContentStreamState(ctx, previous, workspace.StateNoLongerInUse)
}

func (a *applier) workspaceRebaseFailed(ctx context.Context, e event.WorkspaceRebaseFailed) error {
	if err := a.setContentStreamState(ctx, e.CandidateContentStreamID, workspace.StateRebaseError); err != nil {
		return err
	}
	err := a.exec(ctx, `UPDATE workspaces SET status = ? WHERE workspace_name = ?`,
		workspace.StatusOutdatedConflict, e.WorkspaceName)
	if err != nil {
		return fmt.Errorf("mark %s conflicting: %w", e.WorkspaceName, err)
	}
	return nil
}

// markDependentsOutdated flags up-to-date workspaces whose base currently
// writes to cs.
func (a *applier) markDependentsOutdated(ctx context.Context, cs ir.ContentStreamID) error {
	err := a.exec(ctx, `
		UPDATE workspaces SET status = ?
		WHERE status = ? AND base_workspace_name IN (
			SELECT workspace_name FROM workspaces WHERE current_content_stream_id = ?
		)`, workspace.StatusOutdated, workspace.StatusUpToDate, cs)
	if err != nil {
		return fmt.Errorf("mark dependents of %s outdated: %w", cs, err)
	}
	return nil
}
