package workspace

import (
	"context"
	"database/sql"

	"github.com/roach88/contentgraph/internal/ir"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Status tells whether a workspace has seen every change of its base.
type Status string

const (
	StatusUpToDate         Status = "UP_TO_DATE"
	StatusOutdated         Status = "OUTDATED"
	StatusOutdatedConflict Status = "OUTDATED_CONFLICT"
)

// Workspace is one projected workspace row.
type Workspace struct {
	Name                   ir.WorkspaceName
	BaseName               ir.WorkspaceName
	Title                  string
	Description            string
	Owner                  ir.UserID
	CurrentContentStreamID ir.ContentStreamID
	Status                 Status
}

// IsRoot reports whether the workspace has no base.
func (w *Workspace) IsRoot() bool {
	return w.BaseName == ""
}

// State is the lifecycle state of a content stream.
type State string

const (
	StateCreated          State = "CREATED"
	StateInUseByWorkspace State = "IN_USE_BY_WORKSPACE"
	StateRebasing         State = "REBASING"
	StateRebaseError      State = "REBASE_ERROR"
	StateNoLongerInUse    State = "NO_LONGER_IN_USE"
)

// ContentStream is one projected content stream row.
//
// Version is the version of the stream's last event; SourceVersion is the
// source stream's version at the time of the fork, or -1.
type ContentStream struct {
	ID            ir.ContentStreamID
	SourceID      ir.ContentStreamID
	SourceVersion int64
	State         State
	Closed        bool
	Removed       bool
	Version       int64
}
