package event

import (
	"github.com/roach88/contentgraph/internal/ir"
)

// Type is the persisted name of an event.
type Type string

const (
	TypeContentStreamWasCreated  Type = "ContentStreamWasCreated"
	TypeContentStreamWasForked   Type = "ContentStreamWasForked"
	TypeContentStreamWasClosed   Type = "ContentStreamWasClosed"
	TypeContentStreamWasReopened Type = "ContentStreamWasReopened"
	TypeContentStreamWasRemoved  Type = "ContentStreamWasRemoved"

	TypeRootWorkspaceWasCreated        Type = "RootWorkspaceWasCreated"
	TypeWorkspaceWasCreated            Type = "WorkspaceWasCreated"
	TypeWorkspaceWasRenamed            Type = "WorkspaceWasRenamed"
	TypeWorkspaceOwnerWasChanged       Type = "WorkspaceOwnerWasChanged"
	TypeWorkspaceWasRemoved            Type = "WorkspaceWasRemoved"
	TypeWorkspaceWasPublished          Type = "WorkspaceWasPublished"
	TypeWorkspaceWasPartiallyPublished Type = "WorkspaceWasPartiallyPublished"
	TypeWorkspaceWasDiscarded          Type = "WorkspaceWasDiscarded"
	TypeWorkspaceWasPartiallyDiscarded Type = "WorkspaceWasPartiallyDiscarded"
	TypeWorkspaceRebaseWasStarted      Type = "WorkspaceRebaseWasStarted"
	TypeWorkspaceWasRebased            Type = "WorkspaceWasRebased"
	TypeWorkspaceRebaseFailed          Type = "WorkspaceRebaseFailed"

	TypeRootNodeAggregateWithNodeWasCreated Type = "RootNodeAggregateWithNodeWasCreated"
	TypeNodeAggregateWithNodeWasCreated     Type = "NodeAggregateWithNodeWasCreated"
	TypeNodePropertiesWereSet               Type = "NodePropertiesWereSet"
	TypeNodeReferencesWereSet               Type = "NodeReferencesWereSet"
	TypeNodeAggregateWasRemoved             Type = "NodeAggregateWasRemoved"
	TypeNodeAggregateWasDisabled            Type = "NodeAggregateWasDisabled"
	TypeNodeAggregateWasEnabled             Type = "NodeAggregateWasEnabled"
	TypeNodeAggregateNameWasChanged         Type = "NodeAggregateNameWasChanged"
	TypeNodeAggregateTypeWasChanged         Type = "NodeAggregateTypeWasChanged"
	TypeNodeSpecializationVariantWasCreated Type = "NodeSpecializationVariantWasCreated"
	TypeNodeGeneralizationVariantWasCreated Type = "NodeGeneralizationVariantWasCreated"
	TypeNodePeerVariantWasCreated           Type = "NodePeerVariantWasCreated"
	TypeNodeAggregateWasMoved               Type = "NodeAggregateWasMoved"
)

// Event is a domain event: a fact that happened to a content stream or a
// workspace. Events are the durable source of truth.
type Event interface {
	EventType() Type
}

// ContentStreamEvent is implemented by events that belong to one content
// stream.
type ContentStreamEvent interface {
	Event
	GetContentStreamID() ir.ContentStreamID
}

// Publishable is implemented by events that can be copied to another
// content stream when a workspace is published.
type Publishable interface {
	ContentStreamEvent
	WithContentStreamID(id ir.ContentStreamID) Event
}

// NodeAggregateEvent is implemented by events that affect one node aggregate.
type NodeAggregateEvent interface {
	ContentStreamEvent
	GetNodeAggregateID() ir.NodeAggregateID
}

// ContentStreamStreamName returns the event stream name of a content stream.
func ContentStreamStreamName(id ir.ContentStreamID) string {
	return "ContentStream:" + string(id)
}

// WorkspaceStreamName returns the event stream name of a workspace.
func WorkspaceStreamName(name ir.WorkspaceName) string {
	return "Workspace:" + string(name)
}

// ContentStreamIDFromStreamName extracts the content stream id from a stream
// name, or returns false if the stream is not a content stream.
func ContentStreamIDFromStreamName(stream string) (ir.ContentStreamID, bool) {
	const prefix = "ContentStream:"
	if len(stream) <= len(prefix) || stream[:len(prefix)] != prefix {
		return "", false
	}
	return ir.ContentStreamID(stream[len(prefix):]), true
}
