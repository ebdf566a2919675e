package event

import (
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
)

// ContentStreamWasCreated starts an empty content stream.
type ContentStreamWasCreated struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
}

func (ContentStreamWasCreated) EventType() Type { return TypeContentStreamWasCreated }

func (e ContentStreamWasCreated) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

// ContentStreamWasForked starts a content stream that logically continues
// the source stream after VersionOfSourceContentStream.
type ContentStreamWasForked struct {
	NewContentStreamID           ir.ContentStreamID `json:"newContentStreamId"`
	SourceContentStreamID        ir.ContentStreamID `json:"sourceContentStreamId"`
	VersionOfSourceContentStream int64              `json:"versionOfSourceContentStream"`
}

func (ContentStreamWasForked) EventType() Type { return TypeContentStreamWasForked }

func (e ContentStreamWasForked) GetContentStreamID() ir.ContentStreamID { return e.NewContentStreamID }

type ContentStreamWasClosed struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
}

func (ContentStreamWasClosed) EventType() Type { return TypeContentStreamWasClosed }

func (e ContentStreamWasClosed) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

// ContentStreamWasReopened lifts a closure. PreviousState is the state the
// stream had when it was closed.
type ContentStreamWasReopened struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
	PreviousState   string             `json:"previousState"`
}

func (ContentStreamWasReopened) EventType() Type { return TypeContentStreamWasReopened }

func (e ContentStreamWasReopened) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

type ContentStreamWasRemoved struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
}

func (ContentStreamWasRemoved) EventType() Type { return TypeContentStreamWasRemoved }

func (e ContentStreamWasRemoved) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

type RootWorkspaceWasCreated struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId"`
}

func (RootWorkspaceWasCreated) EventType() Type { return TypeRootWorkspaceWasCreated }

type WorkspaceWasCreated struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	BaseWorkspaceName  ir.WorkspaceName   `json:"baseWorkspaceName"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Owner              ir.UserID          `json:"owner,omitempty"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId"`
}

func (WorkspaceWasCreated) EventType() Type { return TypeWorkspaceWasCreated }

type WorkspaceWasRenamed struct {
	WorkspaceName ir.WorkspaceName `json:"workspaceName"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
}

func (WorkspaceWasRenamed) EventType() Type { return TypeWorkspaceWasRenamed }

type WorkspaceOwnerWasChanged struct {
	WorkspaceName ir.WorkspaceName `json:"workspaceName"`
	NewOwner      ir.UserID        `json:"newOwner"`
}

func (WorkspaceOwnerWasChanged) EventType() Type { return TypeWorkspaceOwnerWasChanged }

type WorkspaceWasRemoved struct {
	WorkspaceName ir.WorkspaceName `json:"workspaceName"`
}

func (WorkspaceWasRemoved) EventType() Type { return TypeWorkspaceWasRemoved }

type WorkspaceWasPublished struct {
	SourceWorkspaceName           ir.WorkspaceName   `json:"sourceWorkspaceName"`
	TargetWorkspaceName           ir.WorkspaceName   `json:"targetWorkspaceName"`
	NewSourceContentStreamID      ir.ContentStreamID `json:"newSourceContentStreamId"`
	PreviousSourceContentStreamID ir.ContentStreamID `json:"previousSourceContentStreamId"`
}

func (WorkspaceWasPublished) EventType() Type { return TypeWorkspaceWasPublished }

// NodeRef selects a node for partial publishing or discarding. An empty
// DimensionSpacePoint matches every variant of the aggregate.
type NodeRef struct {
	NodeAggregateID     ir.NodeAggregateID            `json:"nodeAggregateId"`
	DimensionSpacePoint dimension.DimensionSpacePoint `json:"dimensionSpacePoint"`
}

type WorkspaceWasPartiallyPublished struct {
	SourceWorkspaceName           ir.WorkspaceName   `json:"sourceWorkspaceName"`
	TargetWorkspaceName           ir.WorkspaceName   `json:"targetWorkspaceName"`
	NewSourceContentStreamID      ir.ContentStreamID `json:"newSourceContentStreamId"`
	PreviousSourceContentStreamID ir.ContentStreamID `json:"previousSourceContentStreamId"`
	PublishedNodes                []NodeRef          `json:"publishedNodes"`
}

func (WorkspaceWasPartiallyPublished) EventType() Type { return TypeWorkspaceWasPartiallyPublished }

type WorkspaceWasDiscarded struct {
	WorkspaceName           ir.WorkspaceName   `json:"workspaceName"`
	NewContentStreamID      ir.ContentStreamID `json:"newContentStreamId"`
	PreviousContentStreamID ir.ContentStreamID `json:"previousContentStreamId"`
}

func (WorkspaceWasDiscarded) EventType() Type { return TypeWorkspaceWasDiscarded }

type WorkspaceWasPartiallyDiscarded struct {
	WorkspaceName           ir.WorkspaceName   `json:"workspaceName"`
	NewContentStreamID      ir.ContentStreamID `json:"newContentStreamId"`
	PreviousContentStreamID ir.ContentStreamID `json:"previousContentStreamId"`
	DiscardedNodes          []NodeRef          `json:"discardedNodes"`
}

func (WorkspaceWasPartiallyDiscarded) EventType() Type { return TypeWorkspaceWasPartiallyDiscarded }

// WorkspaceRebaseWasStarted marks the candidate stream as REBASING while the
// workspace's commands are replayed onto it.
type WorkspaceRebaseWasStarted struct {
	WorkspaceName            ir.WorkspaceName   `json:"workspaceName"`
	CandidateContentStreamID ir.ContentStreamID `json:"candidateContentStreamId"`
}

func (WorkspaceRebaseWasStarted) EventType() Type { return TypeWorkspaceRebaseWasStarted }

type WorkspaceWasRebased struct {
	WorkspaceName           ir.WorkspaceName   `json:"workspaceName"`
	NewContentStreamID      ir.ContentStreamID `json:"newContentStreamId"`
	PreviousContentStreamID ir.ContentStreamID `json:"previousContentStreamId"`
}

func (WorkspaceWasRebased) EventType() Type { return TypeWorkspaceWasRebased }

// RebaseErrorItem describes one replayed command that failed.
type RebaseErrorItem struct {
	Position    int    `json:"position"`
	CommandType string `json:"commandType"`
	Message     string `json:"message"`
}

// WorkspaceRebaseFailed leaves the workspace on its previous stream and the
// candidate in REBASE_ERROR.
type WorkspaceRebaseFailed struct {
	WorkspaceName            ir.WorkspaceName   `json:"workspaceName"`
	CandidateContentStreamID ir.ContentStreamID `json:"candidateContentStreamId"`
	PreviousContentStreamID  ir.ContentStreamID `json:"previousContentStreamId"`
	Errors                   []RebaseErrorItem  `json:"errors"`
}

func (WorkspaceRebaseFailed) EventType() Type { return TypeWorkspaceRebaseFailed }
