package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/contentgraph/internal/ir"
)

const workspaceColumns = `workspace_name, base_workspace_name, title, description, owner, current_content_stream_id, status`

// Finder reads the workspaces table.
type Finder struct {
	db Querier
}

func NewFinder(db Querier) *Finder {
	return &Finder{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*Workspace, error) {
	var w Workspace
	if err := row.Scan(&w.Name, &w.BaseName, &w.Title, &w.Description, &w.Owner, &w.CurrentContentStreamID, &w.Status); err != nil {
		return nil, err
	}
	return &w, nil
}

func (f *Finder) queryAll(ctx context.Context, query string, args ...any) ([]*Workspace, error) {
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Workspace{}
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (f *Finder) queryOne(ctx context.Context, query string, args ...any) (*Workspace, error) {
	w, err := scanWorkspace(f.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// FindByName returns the workspace, or nil.
func (f *Finder) FindByName(ctx context.Context, name ir.WorkspaceName) (*Workspace, error) {
	w, err := f.queryOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE workspace_name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("find workspace %s: %w", name, err)
	}
	return w, nil
}

// FindByCurrentContentStream returns the workspace currently on cs, or nil.
func (f *Finder) FindByCurrentContentStream(ctx context.Context, cs ir.ContentStreamID) (*Workspace, error) {
	w, err := f.queryOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE current_content_stream_id = ?`, cs)
	if err != nil {
		return nil, fmt.Errorf("find workspace on %s: %w", cs, err)
	}
	return w, nil
}

// FindByBaseWorkspace returns the workspaces based on base, sorted by name.
func (f *Finder) FindByBaseWorkspace(ctx context.Context, base ir.WorkspaceName) ([]*Workspace, error) {
	ws, err := f.queryAll(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE base_workspace_name = ? ORDER BY workspace_name`, base)
	if err != nil {
		return nil, fmt.Errorf("find workspaces based on %s: %w", base, err)
	}
	return ws, nil
}

// FindAll returns every workspace sorted by name.
func (f *Finder) FindAll(ctx context.Context) ([]*Workspace, error) {
	ws, err := f.queryAll(ctx, `SELECT `+workspaceColumns+` FROM workspaces ORDER BY workspace_name`)
	if err != nil {
		return nil, fmt.Errorf("find workspaces: %w", err)
	}
	return ws, nil
}

const contentStreamColumns = `content_stream_id, source_content_stream_id, source_version, state, closed, removed, version`

// ContentStreamFinder reads the content_streams table.
type ContentStreamFinder struct {
	db Querier
}

func NewContentStreamFinder(db Querier) *ContentStreamFinder {
	return &ContentStreamFinder{db: db}
}

func scanContentStream(row rowScanner) (*ContentStream, error) {
	var cs ContentStream
	if err := row.Scan(&cs.ID, &cs.SourceID, &cs.SourceVersion, &cs.State, &cs.Closed, &cs.Removed, &cs.Version); err != nil {
		return nil, err
	}
	return &cs, nil
}

// FindByID returns the content stream, or nil. Removed streams are
// returned with Removed set.
func (f *ContentStreamFinder) FindByID(ctx context.Context, id ir.ContentStreamID) (*ContentStream, error) {
	cs, err := scanContentStream(f.db.QueryRowContext(ctx,
		`SELECT `+contentStreamColumns+` FROM content_streams WHERE content_stream_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content stream %s: %w", id, err)
	}
	return cs, nil
}

// FindAll returns every content stream sorted by id.
func (f *ContentStreamFinder) FindAll(ctx context.Context) ([]*ContentStream, error) {
	return f.findWhere(ctx, "1 = 1")
}

// FindByState returns the non-removed streams in state, sorted by id.
func (f *ContentStreamFinder) FindByState(ctx context.Context, state State) ([]*ContentStream, error) {
	return f.findWhere(ctx, "state = ? AND removed = 0", state)
}

func (f *ContentStreamFinder) findWhere(ctx context.Context, where string, args ...any) ([]*ContentStream, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT `+contentStreamColumns+` FROM content_streams WHERE `+where+` ORDER BY content_stream_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find content streams: %w", err)
	}
	defer rows.Close()

	out := []*ContentStream{}
	for rows.Next() {
		cs, err := scanContentStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content stream: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}
