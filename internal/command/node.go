package command

import (
	"fmt"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
)

type CreateRootNodeAggregateWithNode struct {
	WorkspaceName   ir.WorkspaceName   `json:"workspaceName"`
	NodeAggregateID ir.NodeAggregateID `json:"nodeAggregateId"`
	NodeTypeName    ir.NodeTypeName    `json:"nodeTypeName"`
}

func (CreateRootNodeAggregateWithNode) CommandType() string {
	return "CreateRootNodeAggregateWithNode"
}

func (c CreateRootNodeAggregateWithNode) Validate() error {
	return firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate(), c.NodeTypeName.Validate())
}

func (c CreateRootNodeAggregateWithNode) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c CreateRootNodeAggregateWithNode) MatchesNodeRef(ref event.NodeRef) bool {
	return ref.NodeAggregateID == c.NodeAggregateID
}

// CreateNodeAggregateWithNode creates a regular node aggregate with one node
// at OriginDimensionSpacePoint, plus the tethered children its type declares.
//
// TetheredDescendantNodeAggregateIDs maps tethered node paths ("main",
// "main/footer") to aggregate ids. Missing entries are derived from the
// parent id and the path, so replays produce the same ids.
type CreateNodeAggregateWithNode struct {
	WorkspaceName                      ir.WorkspaceName                    `json:"workspaceName"`
	NodeAggregateID                    ir.NodeAggregateID                  `json:"nodeAggregateId"`
	NodeTypeName                       ir.NodeTypeName                     `json:"nodeTypeName"`
	OriginDimensionSpacePoint          dimension.OriginDimensionSpacePoint `json:"originDimensionSpacePoint"`
	ParentNodeAggregateID              ir.NodeAggregateID                  `json:"parentNodeAggregateId"`
	SucceedingSiblingNodeAggregateID   ir.NodeAggregateID                  `json:"succeedingSiblingNodeAggregateId,omitempty"`
	NodeName                           ir.NodeName                         `json:"nodeName,omitempty"`
	InitialPropertyValues              map[string]any                      `json:"initialPropertyValues,omitempty"`
	TetheredDescendantNodeAggregateIDs map[string]ir.NodeAggregateID       `json:"tetheredDescendantNodeAggregateIds,omitempty"`
}

// NewCreateNodeAggregateWithNode builds and validates a creation command.
func NewCreateNodeAggregateWithNode(
	ws ir.WorkspaceName,
	id ir.NodeAggregateID,
	nodeType ir.NodeTypeName,
	origin dimension.OriginDimensionSpacePoint,
	parent ir.NodeAggregateID,
) (CreateNodeAggregateWithNode, error) {
	c := CreateNodeAggregateWithNode{
		WorkspaceName:             ws,
		NodeAggregateID:           id,
		NodeTypeName:              nodeType,
		OriginDimensionSpacePoint: origin,
		ParentNodeAggregateID:     parent,
	}
	return c, c.Validate()
}

// WithNodeName returns a copy with the node name set.
func (c CreateNodeAggregateWithNode) WithNodeName(name ir.NodeName) CreateNodeAggregateWithNode {
	c.NodeName = name
	return c
}

// WithInitialPropertyValues returns a copy with initial property values.
func (c CreateNodeAggregateWithNode) WithInitialPropertyValues(values map[string]any) CreateNodeAggregateWithNode {
	c.InitialPropertyValues = values
	return c
}

// WithSucceedingSibling returns a copy inserted before the given sibling.
func (c CreateNodeAggregateWithNode) WithSucceedingSibling(sibling ir.NodeAggregateID) CreateNodeAggregateWithNode {
	c.SucceedingSiblingNodeAggregateID = sibling
	return c
}

func (CreateNodeAggregateWithNode) CommandType() string { return "CreateNodeAggregateWithNode" }

func (c CreateNodeAggregateWithNode) Validate() error {
	if err := firstError(
		c.WorkspaceName.Validate(),
		c.NodeAggregateID.Validate(),
		c.NodeTypeName.Validate(),
		c.ParentNodeAggregateID.Validate(),
		validateOptionalID(c.SucceedingSiblingNodeAggregateID),
		validateOptionalName(c.NodeName),
	); err != nil {
		return err
	}
	if c.NodeAggregateID == c.ParentNodeAggregateID {
		return fmt.Errorf("node aggregate %q cannot be its own parent", c.NodeAggregateID)
	}
	return nil
}

func (c CreateNodeAggregateWithNode) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c CreateNodeAggregateWithNode) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.OriginDimensionSpacePoint.ToDimensionSpacePoint())
}

// SetNodeProperties writes property values. A nil value unsets the property.
type SetNodeProperties struct {
	WorkspaceName             ir.WorkspaceName                    `json:"workspaceName"`
	NodeAggregateID           ir.NodeAggregateID                  `json:"nodeAggregateId"`
	OriginDimensionSpacePoint dimension.OriginDimensionSpacePoint `json:"originDimensionSpacePoint"`
	PropertyValues            map[string]any                      `json:"propertyValues"`
}

// NewSetNodeProperties builds and validates a property write.
func NewSetNodeProperties(ws ir.WorkspaceName, id ir.NodeAggregateID, origin dimension.OriginDimensionSpacePoint, values map[string]any) (SetNodeProperties, error) {
	c := SetNodeProperties{WorkspaceName: ws, NodeAggregateID: id, OriginDimensionSpacePoint: origin, PropertyValues: values}
	return c, c.Validate()
}

func (SetNodeProperties) CommandType() string { return "SetNodeProperties" }

func (c SetNodeProperties) Validate() error {
	if err := firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate()); err != nil {
		return err
	}
	if len(c.PropertyValues) == 0 {
		return fmt.Errorf("no property values to write")
	}
	return nil
}

func (c SetNodeProperties) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c SetNodeProperties) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.OriginDimensionSpacePoint.ToDimensionSpacePoint())
}

// NodeReferenceToWrite is one target of a reference with unconverted
// reference properties.
type NodeReferenceToWrite struct {
	TargetNodeAggregateID ir.NodeAggregateID `json:"targetNodeAggregateId"`
	Properties            map[string]any     `json:"properties,omitempty"`
}

// SetNodeReferences replaces all targets of one reference name. An empty
// References list clears the reference.
type SetNodeReferences struct {
	WorkspaceName                   ir.WorkspaceName                    `json:"workspaceName"`
	SourceNodeAggregateID           ir.NodeAggregateID                  `json:"sourceNodeAggregateId"`
	SourceOriginDimensionSpacePoint dimension.OriginDimensionSpacePoint `json:"sourceOriginDimensionSpacePoint"`
	ReferenceName                   string                              `json:"referenceName"`
	References                      []NodeReferenceToWrite              `json:"references"`
}

func (SetNodeReferences) CommandType() string { return "SetNodeReferences" }

func (c SetNodeReferences) Validate() error {
	if err := firstError(c.WorkspaceName.Validate(), c.SourceNodeAggregateID.Validate()); err != nil {
		return err
	}
	if c.ReferenceName == "" {
		return fmt.Errorf("reference name must not be empty")
	}
	for _, ref := range c.References {
		if err := ref.TargetNodeAggregateID.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c SetNodeReferences) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c SetNodeReferences) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.SourceNodeAggregateID, c.SourceOriginDimensionSpacePoint.ToDimensionSpacePoint())
}

type RemoveNodeAggregate struct {
	WorkspaceName              ir.WorkspaceName              `json:"workspaceName"`
	NodeAggregateID            ir.NodeAggregateID            `json:"nodeAggregateId"`
	CoveredDimensionSpacePoint dimension.DimensionSpacePoint `json:"coveredDimensionSpacePoint"`
	Strategy                   NodeVariantSelectionStrategy  `json:"nodeVariantSelectionStrategy"`
}

func (RemoveNodeAggregate) CommandType() string { return "RemoveNodeAggregate" }

func (c RemoveNodeAggregate) Validate() error {
	return firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate(), c.Strategy.validate())
}

func (c RemoveNodeAggregate) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c RemoveNodeAggregate) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.CoveredDimensionSpacePoint)
}

type DisableNodeAggregate struct {
	WorkspaceName              ir.WorkspaceName              `json:"workspaceName"`
	NodeAggregateID            ir.NodeAggregateID            `json:"nodeAggregateId"`
	CoveredDimensionSpacePoint dimension.DimensionSpacePoint `json:"coveredDimensionSpacePoint"`
	Strategy                   NodeVariantSelectionStrategy  `json:"nodeVariantSelectionStrategy"`
}

func (DisableNodeAggregate) CommandType() string { return "DisableNodeAggregate" }

func (c DisableNodeAggregate) Validate() error {
	return firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate(), c.Strategy.validate())
}

func (c DisableNodeAggregate) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c DisableNodeAggregate) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.CoveredDimensionSpacePoint)
}

type EnableNodeAggregate struct {
	WorkspaceName              ir.WorkspaceName              `json:"workspaceName"`
	NodeAggregateID            ir.NodeAggregateID            `json:"nodeAggregateId"`
	CoveredDimensionSpacePoint dimension.DimensionSpacePoint `json:"coveredDimensionSpacePoint"`
	Strategy                   NodeVariantSelectionStrategy  `json:"nodeVariantSelectionStrategy"`
}

func (EnableNodeAggregate) CommandType() string { return "EnableNodeAggregate" }

func (c EnableNodeAggregate) Validate() error {
	return firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate(), c.Strategy.validate())
}

func (c EnableNodeAggregate) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c EnableNodeAggregate) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.CoveredDimensionSpacePoint)
}

type ChangeNodeAggregateName struct {
	WorkspaceName   ir.WorkspaceName   `json:"workspaceName"`
	NodeAggregateID ir.NodeAggregateID `json:"nodeAggregateId"`
	NewNodeName     ir.NodeName        `json:"newNodeName"`
}

func (ChangeNodeAggregateName) CommandType() string { return "ChangeNodeAggregateName" }

func (c ChangeNodeAggregateName) Validate() error {
	return firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate(), c.NewNodeName.Validate())
}

func (c ChangeNodeAggregateName) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c ChangeNodeAggregateName) MatchesNodeRef(ref event.NodeRef) bool {
	return ref.NodeAggregateID == c.NodeAggregateID
}

type ChangeNodeAggregateType struct {
	WorkspaceName   ir.WorkspaceName   `json:"workspaceName"`
	NodeAggregateID ir.NodeAggregateID `json:"nodeAggregateId"`
	NewNodeTypeName ir.NodeTypeName    `json:"newNodeTypeName"`
	Strategy        TypeChangeStrategy `json:"strategy"`
}

func (ChangeNodeAggregateType) CommandType() string { return "ChangeNodeAggregateType" }

func (c ChangeNodeAggregateType) Validate() error {
	return firstError(
		c.WorkspaceName.Validate(),
		c.NodeAggregateID.Validate(),
		c.NewNodeTypeName.Validate(),
		c.Strategy.validate(),
	)
}

func (c ChangeNodeAggregateType) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c ChangeNodeAggregateType) MatchesNodeRef(ref event.NodeRef) bool {
	return ref.NodeAggregateID == c.NodeAggregateID
}

// CreateNodeVariant authors the node found at SourceOrigin at TargetOrigin.
type CreateNodeVariant struct {
	WorkspaceName   ir.WorkspaceName                    `json:"workspaceName"`
	NodeAggregateID ir.NodeAggregateID                  `json:"nodeAggregateId"`
	SourceOrigin    dimension.OriginDimensionSpacePoint `json:"sourceOrigin"`
	TargetOrigin    dimension.OriginDimensionSpacePoint `json:"targetOrigin"`
}

func (CreateNodeVariant) CommandType() string { return "CreateNodeVariant" }

func (c CreateNodeVariant) Validate() error {
	if err := firstError(c.WorkspaceName.Validate(), c.NodeAggregateID.Validate()); err != nil {
		return err
	}
	if c.SourceOrigin.Equal(c.TargetOrigin) {
		return fmt.Errorf("source and target origin are both %s", c.SourceOrigin)
	}
	return nil
}

func (c CreateNodeVariant) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c CreateNodeVariant) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.TargetOrigin.ToDimensionSpacePoint())
}

// MoveNodeAggregate moves the aggregate below a new parent, before a new
// sibling, or both. At least one of them must be set.
type MoveNodeAggregate struct {
	WorkspaceName                       ir.WorkspaceName              `json:"workspaceName"`
	NodeAggregateID                     ir.NodeAggregateID            `json:"nodeAggregateId"`
	DimensionSpacePoint                 dimension.DimensionSpacePoint `json:"dimensionSpacePoint"`
	NewParentNodeAggregateID            ir.NodeAggregateID            `json:"newParentNodeAggregateId,omitempty"`
	NewSucceedingSiblingNodeAggregateID ir.NodeAggregateID            `json:"newSucceedingSiblingNodeAggregateId,omitempty"`
	Strategy                            RelationDistributionStrategy  `json:"relationDistributionStrategy"`
}

func (MoveNodeAggregate) CommandType() string { return "MoveNodeAggregate" }

func (c MoveNodeAggregate) Validate() error {
	if err := firstError(
		c.WorkspaceName.Validate(),
		c.NodeAggregateID.Validate(),
		validateOptionalID(c.NewParentNodeAggregateID),
		validateOptionalID(c.NewSucceedingSiblingNodeAggregateID),
		c.Strategy.validate(),
	); err != nil {
		return err
	}
	if c.NewParentNodeAggregateID == "" && c.NewSucceedingSiblingNodeAggregateID == "" {
		return fmt.Errorf("move of %q needs a new parent or a new succeeding sibling", c.NodeAggregateID)
	}
	if c.NewParentNodeAggregateID == c.NodeAggregateID || c.NewSucceedingSiblingNodeAggregateID == c.NodeAggregateID {
		return fmt.Errorf("node aggregate %q cannot be moved relative to itself", c.NodeAggregateID)
	}
	return nil
}

func (c MoveNodeAggregate) GetWorkspaceName() ir.WorkspaceName { return c.WorkspaceName }

func (c MoveNodeAggregate) MatchesNodeRef(ref event.NodeRef) bool {
	return matchesRef(ref, c.NodeAggregateID, c.DimensionSpacePoint)
}
