package command

import (
	"context"
	"fmt"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/subgraph"
)

// SnapshotReference is an outgoing reference captured in a subtree snapshot.
type SnapshotReference struct {
	Name                  string                      `json:"name"`
	TargetNodeAggregateID ir.NodeAggregateID          `json:"targetNodeAggregateId"`
	Properties            ir.SerializedPropertyValues `json:"properties,omitempty"`
}

// NodeSubtreeSnapshot is an immutable pre-order copy of a subtree as seen in
// one subgraph.
type NodeSubtreeSnapshot struct {
	NodeAggregateID ir.NodeAggregateID             `json:"nodeAggregateId"`
	NodeTypeName    ir.NodeTypeName                `json:"nodeTypeName"`
	NodeName        ir.NodeName                    `json:"nodeName,omitempty"`
	Classification  ir.NodeAggregateClassification `json:"classification"`
	PropertyValues  ir.SerializedPropertyValues    `json:"propertyValues"`
	References      []SnapshotReference            `json:"references,omitempty"`
	ChildNodes      []NodeSubtreeSnapshot          `json:"childNodes,omitempty"`
}

// Walk visits the snapshot in pre-order, passing each node's parent (nil
// for the root).
func (s *NodeSubtreeSnapshot) Walk(fn func(node, parent *NodeSubtreeSnapshot) error) error {
	return s.walk(nil, fn)
}

func (s *NodeSubtreeSnapshot) walk(parent *NodeSubtreeSnapshot, fn func(node, parent *NodeSubtreeSnapshot) error) error {
	if err := fn(s, parent); err != nil {
		return err
	}
	for i := range s.ChildNodes {
		if err := s.ChildNodes[i].walk(s, fn); err != nil {
			return err
		}
	}
	return nil
}

// AggregateIDs returns every aggregate id in the snapshot, pre-order.
func (s *NodeSubtreeSnapshot) AggregateIDs() []ir.NodeAggregateID {
	var ids []ir.NodeAggregateID
	_ = s.Walk(func(node, _ *NodeSubtreeSnapshot) error {
		ids = append(ids, node.NodeAggregateID)
		return nil
	})
	return ids
}

// CopyNodesRecursively inserts a copy of a snapshot at a target location.
// NodeAggregateIDMapping maps every original id in the snapshot to the id of
// its copy.
type CopyNodesRecursively struct {
	WorkspaceName                          ir.WorkspaceName                    `json:"workspaceName"`
	NodeTreeToInsert                       NodeSubtreeSnapshot                 `json:"nodeTreeToInsert"`
	TargetDimensionSpacePoint              dimension.OriginDimensionSpacePoint `json:"targetDimensionSpacePoint"`
	TargetParentNodeAggregateID            ir.NodeAggregateID                  `json:"targetParentNodeAggregateId"`
	TargetSucceedingSiblingNodeAggregateID ir.NodeAggregateID                  `json:"targetSucceedingSiblingNodeAggregateId,omitempty"`
	TargetNodeName                         ir.NodeName                         `json:"targetNodeName,omitempty"`
	NodeAggregateIDMapping                 map[string]ir.NodeAggregateID       `json:"nodeAggregateIdMapping"`
}

// NewCopyNodesRecursively snapshots the subtree below start in sg and
// generates a fresh id for every node in it.
func NewCopyNodesRecursively(
	ctx context.Context,
	sg *subgraph.ContentSubgraph,
	ws ir.WorkspaceName,
	start ir.NodeAggregateID,
	target dimension.OriginDimensionSpacePoint,
	targetParent ir.NodeAggregateID,
	targetName ir.NodeName,
	ids IDGenerator,
) (CopyNodesRecursively, error) {
	tree, err := sg.FindSubtree(ctx, start, subgraph.FindSubtreeFilter{})
	if err != nil {
		return CopyNodesRecursively{}, fmt.Errorf("snapshot subtree of %s: %w", start, err)
	}
	if tree == nil {
		return CopyNodesRecursively{}, fmt.Errorf("snapshot subtree of %s: node not found in %s", start, sg.DimensionSpacePoint())
	}
	snapshot, err := snapshotSubtree(ctx, sg, tree)
	if err != nil {
		return CopyNodesRecursively{}, err
	}

	mapping := make(map[string]ir.NodeAggregateID)
	for _, id := range snapshot.AggregateIDs() {
		mapping[string(id)] = ir.NodeAggregateID(ids.Generate())
	}

	c := CopyNodesRecursively{
		WorkspaceName:               ws,
		NodeTreeToInsert:            snapshot,
		TargetDimensionSpacePoint:   target,
		TargetParentNodeAggregateID: targetParent,
		TargetNodeName:              targetName,
		NodeAggregateIDMapping:      mapping,
	}
	return c, c.Validate()
}

func snapshotSubtree(ctx context.Context, sg *subgraph.ContentSubgraph, tree *subgraph.Subtree) (NodeSubtreeSnapshot, error) {
	node := tree.Node
	refs, err := sg.FindReferences(ctx, node.AggregateID, subgraph.FindReferencesFilter{})
	if err != nil {
		return NodeSubtreeSnapshot{}, fmt.Errorf("snapshot references of %s: %w", node.AggregateID, err)
	}
	snapshot := NodeSubtreeSnapshot{
		NodeAggregateID: node.AggregateID,
		NodeTypeName:    node.NodeTypeName,
		NodeName:        node.Name,
		Classification:  node.Classification,
		PropertyValues:  node.Properties,
	}
	for _, ref := range refs {
		snapshot.References = append(snapshot.References, SnapshotReference{
			Name:                  ref.Name,
			TargetNodeAggregateID: ref.Node.AggregateID,
			Properties:            ref.Properties,
		})
	}
	for _, child := range tree.Children {
		childSnapshot, err := snapshotSubtree(ctx, sg, child)
		if err != nil {
			return NodeSubtreeSnapshot{}, err
		}
		snapshot.ChildNodes = append(snapshot.ChildNodes, childSnapshot)
	}
	return snapshot, nil
}

func (CopyNodesRecursively) CommandType() string { return "CopyNodesRecursively" }

func (c CopyNodesRecursively) Validate() error {
	if err := firstError(
		c.WorkspaceName.Validate(),
		c.TargetParentNodeAggregateID.Validate(),
		validateOptionalID(c.TargetSucceedingSiblingNodeAggregateID),
		validateOptionalName(c.TargetNodeName),
	); err != nil {
		return err
	}
	for _, id := range c.NodeTreeToInsert.AggregateIDs() {
		mapped, ok := c.NodeAggregateIDMapping[string(id)]
		if !ok {
			return fmt.Errorf("no new id mapped for copied node %q", id)
		}
		if err := mapped.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c CopyNodesRecursively) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c CopyNodesRecursively) MatchesNodeRef(ref event.NodeRef) bool {
	root := c.NodeAggregateIDMapping[string(c.NodeTreeToInsert.NodeAggregateID)]
	return matchesRef(ref, root, c.TargetDimensionSpacePoint.ToDimensionSpacePoint())
}
