package subgraph

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// VisibilityConstraints decide whether disabled nodes are visible.
type VisibilityConstraints string

const (
	// Frontend hides disabled nodes and everything below them.
	Frontend VisibilityConstraints = "frontend"
	// WithoutRestrictions shows every node.
	WithoutRestrictions VisibilityConstraints = "withoutRestrictions"
)

// Node is one node as read in a subgraph, or one variant of a node
// aggregate.
type Node struct {
	ContentStreamID           ir.ContentStreamID
	DimensionSpacePoint       dimension.DimensionSpacePoint
	OriginDimensionSpacePoint dimension.OriginDimensionSpacePoint
	AggregateID               ir.NodeAggregateID
	NodeTypeName              ir.NodeTypeName
	Name                      ir.NodeName
	Classification            ir.NodeAggregateClassification
	Properties                ir.SerializedPropertyValues

	anchor ir.RelationAnchorPoint
}

// Property returns the raw value of a property, or nil.
func (n *Node) Property(name string) any {
	return n.Properties.Value(name)
}

// Subtree is a node with its descendants, as returned by FindSubtree.
type Subtree struct {
	Node     *Node
	Level    int
	Children []*Subtree
}

// Reference is one outgoing or incoming reference. Node is the other end:
// the target for FindReferences, the source for FindBackReferences.
type Reference struct {
	Node       *Node
	Name       string
	Properties ir.SerializedPropertyValues
}

// NodePath is a relative path of node names.
type NodePath []ir.NodeName

// ParseNodePath splits "a/b/c" into a NodePath. Leading and trailing
// slashes are ignored.
func ParseNodePath(path string) (NodePath, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return NodePath{}, nil
	}
	parts := strings.Split(trimmed, "/")
	out := make(NodePath, len(parts))
	for i, part := range parts {
		name := ir.NodeName(part)
		if err := name.Validate(); err != nil {
			return nil, fmt.Errorf("parse node path %q: %w", path, err)
		}
		out[i] = name
	}
	return out, nil
}

func (p NodePath) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = string(n)
	}
	return strings.Join(parts, "/")
}

// AbsoluteNodePath addresses a node from a root node, which is identified
// by its type: "/<Acme:Sites>/home/about".
type AbsoluteNodePath struct {
	RootNodeTypeName ir.NodeTypeName
	Path             NodePath
}

func (p AbsoluteNodePath) String() string {
	s := "/<" + string(p.RootNodeTypeName) + ">"
	if len(p.Path) > 0 {
		s += "/" + p.Path.String()
	}
	return s
}

// NodeAggregate is every variant of one node aggregate in a content stream,
// together with which dimension space points each variant covers.
type NodeAggregate struct {
	ContentStreamID ir.ContentStreamID
	ID              ir.NodeAggregateID
	NodeTypeName    ir.NodeTypeName
	NodeName        ir.NodeName
	Classification  ir.NodeAggregateClassification

	OccupiedDimensionSpacePoints dimension.OriginSet
	CoveredDimensionSpacePoints  dimension.DimensionSpacePointSet
	DisabledDimensionSpacePoints dimension.DimensionSpacePointSet

	nodesByOrigin       map[string]*Node
	coverageByOccupant  map[string]dimension.DimensionSpacePointSet
	occupationByCovered map[string]dimension.OriginDimensionSpacePoint
}

// Occupies reports whether a variant originates at origin.
func (a *NodeAggregate) Occupies(origin dimension.OriginDimensionSpacePoint) bool {
	return a.OccupiedDimensionSpacePoints.ContainsOrigin(origin)
}

// Covers reports whether some variant is visible at p.
func (a *NodeAggregate) Covers(p dimension.DimensionSpacePoint) bool {
	return a.CoveredDimensionSpacePoints.Contains(p)
}

// NodeByOccupied returns the variant originating at origin, or nil.
func (a *NodeAggregate) NodeByOccupied(origin dimension.OriginDimensionSpacePoint) *Node {
	return a.nodesByOrigin[origin.Hash()]
}

// NodeByCovered returns the variant visible at p, or nil.
func (a *NodeAggregate) NodeByCovered(p dimension.DimensionSpacePoint) *Node {
	origin, ok := a.OccupationByCovered(p)
	if !ok {
		return nil
	}
	return a.NodeByOccupied(origin)
}

// OccupationByCovered returns the origin of the variant visible at p.
func (a *NodeAggregate) OccupationByCovered(p dimension.DimensionSpacePoint) (dimension.OriginDimensionSpacePoint, bool) {
	origin, ok := a.occupationByCovered[p.Hash()]
	return origin, ok
}

// CoverageByOccupant returns the points covered by the variant originating
// at origin.
func (a *NodeAggregate) CoverageByOccupant(origin dimension.OriginDimensionSpacePoint) dimension.DimensionSpacePointSet {
	if set, ok := a.coverageByOccupant[origin.Hash()]; ok {
		return set
	}
	return dimension.NewDimensionSpacePointSet()
}

// Nodes returns every variant, sorted by origin hash.
func (a *NodeAggregate) Nodes() []*Node {
	nodes := make([]*Node, 0, len(a.nodesByOrigin))
	for _, n := range a.nodesByOrigin {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].OriginDimensionSpacePoint.Hash() < nodes[j].OriginDimensionSpacePoint.Hash()
	})
	return nodes
}

func (a *NodeAggregate) IsRoot() bool     { return a.Classification == ir.ClassificationRoot }
func (a *NodeAggregate) IsTethered() bool { return a.Classification == ir.ClassificationTethered }

// IsDisabledIn reports whether the aggregate itself was disabled at p.
// Descendants of a disabled aggregate are hidden but not disabled.
func (a *NodeAggregate) IsDisabledIn(p dimension.DimensionSpacePoint) bool {
	return a.DisabledDimensionSpacePoints.Contains(p)
}
