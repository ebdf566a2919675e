package event

import (
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
)

type RootNodeAggregateWithNodeWasCreated struct {
	ContentStreamID             ir.ContentStreamID               `json:"contentStreamId"`
	NodeAggregateID             ir.NodeAggregateID               `json:"nodeAggregateId"`
	NodeTypeName                ir.NodeTypeName                  `json:"nodeTypeName"`
	CoveredDimensionSpacePoints dimension.DimensionSpacePointSet `json:"coveredDimensionSpacePoints"`
	NodeAggregateClassification ir.NodeAggregateClassification   `json:"nodeAggregateClassification"`
}

func (RootNodeAggregateWithNodeWasCreated) EventType() Type {
	return TypeRootNodeAggregateWithNodeWasCreated
}

func (e RootNodeAggregateWithNodeWasCreated) GetContentStreamID() ir.ContentStreamID {
	return e.ContentStreamID
}

func (e RootNodeAggregateWithNodeWasCreated) GetNodeAggregateID() ir.NodeAggregateID {
	return e.NodeAggregateID
}

func (e RootNodeAggregateWithNodeWasCreated) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

// NodeAggregateWithNodeWasCreated creates a node at its origin, visible in
// every covered point. When SucceedingSiblingNodeAggregateID is set the node
// is inserted before that sibling in each covered point where the sibling is
// a child of the same parent; otherwise it is appended.
type NodeAggregateWithNodeWasCreated struct {
	ContentStreamID                  ir.ContentStreamID                  `json:"contentStreamId"`
	NodeAggregateID                  ir.NodeAggregateID                  `json:"nodeAggregateId"`
	NodeTypeName                     ir.NodeTypeName                     `json:"nodeTypeName"`
	OriginDimensionSpacePoint        dimension.OriginDimensionSpacePoint `json:"originDimensionSpacePoint"`
	CoveredDimensionSpacePoints      dimension.DimensionSpacePointSet    `json:"coveredDimensionSpacePoints"`
	ParentNodeAggregateID            ir.NodeAggregateID                  `json:"parentNodeAggregateId"`
	SucceedingSiblingNodeAggregateID ir.NodeAggregateID                  `json:"succeedingSiblingNodeAggregateId,omitempty"`
	NodeName                         ir.NodeName                         `json:"nodeName,omitempty"`
	InitialPropertyValues            ir.SerializedPropertyValues         `json:"initialPropertyValues"`
	NodeAggregateClassification      ir.NodeAggregateClassification      `json:"nodeAggregateClassification"`
}

func (NodeAggregateWithNodeWasCreated) EventType() Type { return TypeNodeAggregateWithNodeWasCreated }

func (e NodeAggregateWithNodeWasCreated) GetContentStreamID() ir.ContentStreamID {
	return e.ContentStreamID
}

func (e NodeAggregateWithNodeWasCreated) GetNodeAggregateID() ir.NodeAggregateID {
	return e.NodeAggregateID
}

func (e NodeAggregateWithNodeWasCreated) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

// NodePropertiesWereSet writes and unsets properties of the node at one
// origin. AffectedDimensionSpacePoints are the points that node covers.
type NodePropertiesWereSet struct {
	ContentStreamID              ir.ContentStreamID                  `json:"contentStreamId"`
	NodeAggregateID              ir.NodeAggregateID                  `json:"nodeAggregateId"`
	OriginDimensionSpacePoint    dimension.OriginDimensionSpacePoint `json:"originDimensionSpacePoint"`
	AffectedDimensionSpacePoints dimension.DimensionSpacePointSet    `json:"affectedDimensionSpacePoints"`
	PropertyValues               ir.SerializedPropertyValues         `json:"propertyValues"`
	PropertiesToUnset            []string                            `json:"propertiesToUnset,omitempty"`
}

func (NodePropertiesWereSet) EventType() Type { return TypeNodePropertiesWereSet }

func (e NodePropertiesWereSet) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodePropertiesWereSet) GetNodeAggregateID() ir.NodeAggregateID { return e.NodeAggregateID }

func (e NodePropertiesWereSet) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

// SerializedReference is one target of a named reference.
type SerializedReference struct {
	TargetNodeAggregateID ir.NodeAggregateID          `json:"targetNodeAggregateId"`
	Properties            ir.SerializedPropertyValues `json:"properties,omitempty"`
}

// NodeReferencesWereSet replaces all targets of one reference name on the
// nodes at the affected origins.
type NodeReferencesWereSet struct {
	ContentStreamID                          ir.ContentStreamID    `json:"contentStreamId"`
	SourceNodeAggregateID                    ir.NodeAggregateID    `json:"sourceNodeAggregateId"`
	AffectedSourceOriginDimensionSpacePoints dimension.OriginSet   `json:"affectedSourceOriginDimensionSpacePoints"`
	ReferenceName                            string                `json:"referenceName"`
	References                               []SerializedReference `json:"references"`
}

func (NodeReferencesWereSet) EventType() Type { return TypeNodeReferencesWereSet }

func (e NodeReferencesWereSet) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodeReferencesWereSet) GetNodeAggregateID() ir.NodeAggregateID {
	return e.SourceNodeAggregateID
}

func (e NodeReferencesWereSet) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodeAggregateWasRemoved struct {
	ContentStreamID                      ir.ContentStreamID               `json:"contentStreamId"`
	NodeAggregateID                      ir.NodeAggregateID               `json:"nodeAggregateId"`
	AffectedOccupiedDimensionSpacePoints dimension.OriginSet              `json:"affectedOccupiedDimensionSpacePoints"`
	AffectedCoveredDimensionSpacePoints  dimension.DimensionSpacePointSet `json:"affectedCoveredDimensionSpacePoints"`
}

func (NodeAggregateWasRemoved) EventType() Type { return TypeNodeAggregateWasRemoved }

func (e NodeAggregateWasRemoved) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodeAggregateWasRemoved) GetNodeAggregateID() ir.NodeAggregateID { return e.NodeAggregateID }

func (e NodeAggregateWasRemoved) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodeAggregateWasDisabled struct {
	ContentStreamID              ir.ContentStreamID               `json:"contentStreamId"`
	NodeAggregateID              ir.NodeAggregateID               `json:"nodeAggregateId"`
	AffectedDimensionSpacePoints dimension.DimensionSpacePointSet `json:"affectedDimensionSpacePoints"`
}

func (NodeAggregateWasDisabled) EventType() Type { return TypeNodeAggregateWasDisabled }

func (e NodeAggregateWasDisabled) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodeAggregateWasDisabled) GetNodeAggregateID() ir.NodeAggregateID { return e.NodeAggregateID }

func (e NodeAggregateWasDisabled) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodeAggregateWasEnabled struct {
	ContentStreamID              ir.ContentStreamID               `json:"contentStreamId"`
	NodeAggregateID              ir.NodeAggregateID               `json:"nodeAggregateId"`
	AffectedDimensionSpacePoints dimension.DimensionSpacePointSet `json:"affectedDimensionSpacePoints"`
}

func (NodeAggregateWasEnabled) EventType() Type { return TypeNodeAggregateWasEnabled }

func (e NodeAggregateWasEnabled) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodeAggregateWasEnabled) GetNodeAggregateID() ir.NodeAggregateID { return e.NodeAggregateID }

func (e NodeAggregateWasEnabled) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodeAggregateNameWasChanged struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
	NodeAggregateID ir.NodeAggregateID `json:"nodeAggregateId"`
	NewNodeName     ir.NodeName        `json:"newNodeName"`
}

func (NodeAggregateNameWasChanged) EventType() Type { return TypeNodeAggregateNameWasChanged }

func (e NodeAggregateNameWasChanged) GetContentStreamID() ir.ContentStreamID {
	return e.ContentStreamID
}

func (e NodeAggregateNameWasChanged) GetNodeAggregateID() ir.NodeAggregateID {
	return e.NodeAggregateID
}

func (e NodeAggregateNameWasChanged) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodeAggregateTypeWasChanged struct {
	ContentStreamID ir.ContentStreamID `json:"contentStreamId"`
	NodeAggregateID ir.NodeAggregateID `json:"nodeAggregateId"`
	NewNodeTypeName ir.NodeTypeName    `json:"newNodeTypeName"`
}

func (NodeAggregateTypeWasChanged) EventType() Type { return TypeNodeAggregateTypeWasChanged }

func (e NodeAggregateTypeWasChanged) GetContentStreamID() ir.ContentStreamID {
	return e.ContentStreamID
}

func (e NodeAggregateTypeWasChanged) GetNodeAggregateID() ir.NodeAggregateID {
	return e.NodeAggregateID
}

func (e NodeAggregateTypeWasChanged) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

// NodeVariantWasCreated is the shared payload of the three variant events:
// a copy of the node at SourceOrigin is authored at TargetOrigin and takes
// over the points in Coverage.
type NodeVariantWasCreated struct {
	ContentStreamID ir.ContentStreamID                  `json:"contentStreamId"`
	NodeAggregateID ir.NodeAggregateID                  `json:"nodeAggregateId"`
	SourceOrigin    dimension.OriginDimensionSpacePoint `json:"sourceOrigin"`
	TargetOrigin    dimension.OriginDimensionSpacePoint `json:"targetOrigin"`
	Coverage        dimension.DimensionSpacePointSet    `json:"coverage"`
}

func (e NodeVariantWasCreated) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodeVariantWasCreated) GetNodeAggregateID() ir.NodeAggregateID { return e.NodeAggregateID }

type NodeSpecializationVariantWasCreated struct {
	NodeVariantWasCreated
}

func (NodeSpecializationVariantWasCreated) EventType() Type {
	return TypeNodeSpecializationVariantWasCreated
}

func (e NodeSpecializationVariantWasCreated) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodeGeneralizationVariantWasCreated struct {
	NodeVariantWasCreated
}

func (NodeGeneralizationVariantWasCreated) EventType() Type {
	return TypeNodeGeneralizationVariantWasCreated
}

func (e NodeGeneralizationVariantWasCreated) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

type NodePeerVariantWasCreated struct {
	NodeVariantWasCreated
}

func (NodePeerVariantWasCreated) EventType() Type { return TypeNodePeerVariantWasCreated }

func (e NodePeerVariantWasCreated) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}

// NodeAggregateWasMoved reattaches the aggregate's nodes in the affected
// points. An empty NewParentNodeAggregateID keeps the current parent.
type NodeAggregateWasMoved struct {
	ContentStreamID                     ir.ContentStreamID               `json:"contentStreamId"`
	NodeAggregateID                     ir.NodeAggregateID               `json:"nodeAggregateId"`
	NewParentNodeAggregateID            ir.NodeAggregateID               `json:"newParentNodeAggregateId,omitempty"`
	NewSucceedingSiblingNodeAggregateID ir.NodeAggregateID               `json:"newSucceedingSiblingNodeAggregateId,omitempty"`
	AffectedDimensionSpacePoints        dimension.DimensionSpacePointSet `json:"affectedDimensionSpacePoints"`
}

func (NodeAggregateWasMoved) EventType() Type { return TypeNodeAggregateWasMoved }

func (e NodeAggregateWasMoved) GetContentStreamID() ir.ContentStreamID { return e.ContentStreamID }

func (e NodeAggregateWasMoved) GetNodeAggregateID() ir.NodeAggregateID { return e.NodeAggregateID }

func (e NodeAggregateWasMoved) WithContentStreamID(id ir.ContentStreamID) Event {
	e.ContentStreamID = id
	return e
}
