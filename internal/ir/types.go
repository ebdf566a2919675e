package ir

import (
	"fmt"
	"regexp"
)

// ContentStreamID identifies one independent append-only event sequence.
type ContentStreamID string

// NodeAggregateID identifies a node across all its dimension variants
// within one content stream.
type NodeAggregateID string

// WorkspaceName is the unique, human-chosen name of a workspace.
type WorkspaceName string

// NodeTypeName names a configured node type, e.g. "Acme:Page".
type NodeTypeName string

// NodeName is the optional name of a node below its parent.
type NodeName string

// RelationAnchorPoint is the opaque surrogate key of a node row.
// Hierarchy and reference relations only store anchors, never aggregate ids
// of their endpoints, so several content streams can share one node row.
type RelationAnchorPoint string

// RootRelationAnchorPoint is the sentinel parent of root nodes in the
// hierarchy. No node row carries it.
const RootRelationAnchorPoint RelationAnchorPoint = "ROOT"

// UserID identifies the actor that initiated a command.
type UserID string

// SystemUserID is recorded when no actor is known.
const SystemUserID UserID = "system"

// LiveWorkspaceName is the conventional name of the root workspace.
const LiveWorkspaceName WorkspaceName = "live"

// NodeAggregateClassification distinguishes root, regular and tethered aggregates.
type NodeAggregateClassification string

const (
	ClassificationRoot     NodeAggregateClassification = "root"
	ClassificationRegular  NodeAggregateClassification = "regular"
	ClassificationTethered NodeAggregateClassification = "tethered"
)

// ValidClassifications defines allowed classifications.
var ValidClassifications = map[NodeAggregateClassification]bool{
	ClassificationRoot:     true,
	ClassificationRegular:  true,
	ClassificationTethered: true,
}

var (
	workspaceNamePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{0,35}$`)
	nodeAggregateIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]{1,64}$`)
	nodeNamePattern        = regexp.MustCompile(`^[a-z0-9\-]+(?::[a-z0-9\-]+)*$`)
)

// Validate checks the workspace name format.
func (n WorkspaceName) Validate() error {
	if !workspaceNamePattern.MatchString(string(n)) {
		return fmt.Errorf("invalid workspace name %q: must match %s", n, workspaceNamePattern)
	}
	return nil
}

// Validate checks the node aggregate id format.
func (id NodeAggregateID) Validate() error {
	if !nodeAggregateIDPattern.MatchString(string(id)) {
		return fmt.Errorf("invalid node aggregate id %q: must match %s", id, nodeAggregateIDPattern)
	}
	return nil
}

// Validate checks the node name format. Node names are lowercase.
func (n NodeName) Validate() error {
	if !nodeNamePattern.MatchString(string(n)) {
		return fmt.Errorf("invalid node name %q: must match %s", n, nodeNamePattern)
	}
	return nil
}

// Validate checks that the content stream id is present.
func (id ContentStreamID) Validate() error {
	if id == "" {
		return fmt.Errorf("content stream id must not be empty")
	}
	return nil
}

// Validate checks that the node type name is present.
func (n NodeTypeName) Validate() error {
	if n == "" {
		return fmt.Errorf("node type name must not be empty")
	}
	return nil
}
