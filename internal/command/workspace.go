package command

import (
	"fmt"

	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
)

type CreateContentStream struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
}

func (CreateContentStream) CommandType() string { return "CreateContentStream" }

func (c CreateContentStream) Validate() error { return c.ContentStreamID.Validate() }

type ForkContentStream struct {
	NewContentStreamID    ir.ContentStreamID `json:"newContentStreamId"`
	SourceContentStreamID ir.ContentStreamID `json:"sourceContentStreamId"`
}

func (ForkContentStream) CommandType() string { return "ForkContentStream" }

func (c ForkContentStream) Validate() error {
	return firstError(c.NewContentStreamID.Validate(), c.SourceContentStreamID.Validate())
}

type CloseContentStream struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
}

func (CloseContentStream) CommandType() string { return "CloseContentStream" }

func (c CloseContentStream) Validate() error { return c.ContentStreamID.Validate() }

type ReopenContentStream struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
	PreviousState   string             `json:"previousState"`
}

func (ReopenContentStream) CommandType() string { return "ReopenContentStream" }

func (c ReopenContentStream) Validate() error { return c.ContentStreamID.Validate() }

type RemoveContentStream struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
}

func (RemoveContentStream) CommandType() string { return "RemoveContentStream" }

func (c RemoveContentStream) Validate() error { return c.ContentStreamID.Validate() }

// CreateRootWorkspace creates a workspace without base, on a new empty
// content stream. An empty NewContentStreamID is generated.
type CreateRootWorkspace struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId,omitempty"`
}

func (CreateRootWorkspace) CommandType() string { return "CreateRootWorkspace" }

func (c CreateRootWorkspace) Validate() error { return c.WorkspaceName.Validate() }

type CreateWorkspace struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	BaseWorkspaceName  ir.WorkspaceName   `json:"baseWorkspaceName"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Owner              ir.UserID          `json:"owner,omitempty"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId,omitempty"`
}

func (CreateWorkspace) CommandType() string { return "CreateWorkspace" }

func (c CreateWorkspace) Validate() error {
	if err := firstError(c.WorkspaceName.Validate(), c.BaseWorkspaceName.Validate()); err != nil {
		return err
	}
	if c.WorkspaceName == c.BaseWorkspaceName {
		return fmt.Errorf("workspace %q cannot be its own base", c.WorkspaceName)
	}
	return nil
}

type RenameWorkspace struct {
	WorkspaceName ir.WorkspaceName `json:"workspaceName"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
}

func (RenameWorkspace) CommandType() string { return "RenameWorkspace" }

func (c RenameWorkspace) Validate() error { return c.WorkspaceName.Validate() }

type ChangeWorkspaceOwner struct {
	WorkspaceName ir.WorkspaceName `json:"workspaceName"`
	NewOwner      ir.UserID        `json:"newOwner"`
}

func (ChangeWorkspaceOwner) CommandType() string { return "ChangeWorkspaceOwner" }

func (c ChangeWorkspaceOwner) Validate() error { return c.WorkspaceName.Validate() }

type DeleteWorkspace struct {
	WorkspaceName ir.WorkspaceName `json:"workspaceName"`
}

func (DeleteWorkspace) CommandType() string { return "DeleteWorkspace" }

func (c DeleteWorkspace) Validate() error { return c.WorkspaceName.Validate() }

// PublishWorkspace copies the workspace's pending changes to its base and
// continues the workspace on a fresh fork of the base.
type PublishWorkspace struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId,omitempty"`
}

func (PublishWorkspace) CommandType() string { return "PublishWorkspace" }

func (c PublishWorkspace) Validate() error { return c.WorkspaceName.Validate() }

type RebaseWorkspace struct {
	WorkspaceName          ir.WorkspaceName   `json:"workspaceName"`
	RebasedContentStreamID ir.ContentStreamID `json:"rebasedContentStreamId,omitempty"`
	Strategy               RebaseStrategy     `json:"strategy,omitempty"`
}

func (RebaseWorkspace) CommandType() string { return "RebaseWorkspace" }

func (c RebaseWorkspace) Validate() error {
	return firstError(c.WorkspaceName.Validate(), c.Strategy.validate())
}

type DiscardWorkspace struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId,omitempty"`
}

func (DiscardWorkspace) CommandType() string { return "DiscardWorkspace" }

func (c DiscardWorkspace) Validate() error { return c.WorkspaceName.Validate() }

type PublishIndividualNodesFromWorkspace struct {
	WorkspaceName                   ir.WorkspaceName   `json:"workspaceName"`
	NodesToPublish                  []event.NodeRef    `json:"nodesToPublish"`
	ContentStreamIDForMatchingPart  ir.ContentStreamID `json:"contentStreamIdForMatchingPart,omitempty"`
	ContentStreamIDForRemainingPart ir.ContentStreamID `json:"contentStreamIdForRemainingPart,omitempty"`
}

func (PublishIndividualNodesFromWorkspace) CommandType() string {
	return "PublishIndividualNodesFromWorkspace"
}

func (c PublishIndividualNodesFromWorkspace) Validate() error {
	if err := c.WorkspaceName.Validate(); err != nil {
		return err
	}
	return validateRefs(c.NodesToPublish)
}

type DiscardIndividualNodesFromWorkspace struct {
	WorkspaceName      ir.WorkspaceName   `json:"workspaceName"`
	NodesToDiscard     []event.NodeRef    `json:"nodesToDiscard"`
	NewContentStreamID ir.ContentStreamID `json:"newContentStreamId,omitempty"`
}

func (DiscardIndividualNodesFromWorkspace) CommandType() string {
	return "DiscardIndividualNodesFromWorkspace"
}

func (c DiscardIndividualNodesFromWorkspace) Validate() error {
	if err := c.WorkspaceName.Validate(); err != nil {
		return err
	}
	return validateRefs(c.NodesToDiscard)
}

func validateRefs(refs []event.NodeRef) error {
	if len(refs) == 0 {
		return fmt.Errorf("at least one node must be selected")
	}
	for _, ref := range refs {
		if err := ref.NodeAggregateID.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MatchesAny reports whether cmd changes one of the selected nodes.
func MatchesAny(cmd NodeCommand, refs []event.NodeRef) bool {
	for _, ref := range refs {
		if cmd.MatchesNodeRef(ref) {
			return true
		}
	}
	return false
}
