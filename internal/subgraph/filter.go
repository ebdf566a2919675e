package subgraph

import (
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
	"github.com/roach88/contentgraph/internal/queryir"
)

// NodeTypeCriteria restricts results by node type. Each name matches the
// type and every type inheriting from it. Empty criteria match everything.
type NodeTypeCriteria struct {
	Include []ir.NodeTypeName
	Exclude []ir.NodeTypeName
}

// IsEmpty reports whether the criteria match everything.
func (c NodeTypeCriteria) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0
}

// expand resolves each name to itself plus its configured subtypes.
func expandNodeTypes(m *nodetype.Manager, names []ir.NodeTypeName) []any {
	seen := make(map[ir.NodeTypeName]bool)
	var out []any
	add := func(n ir.NodeTypeName) {
		if !seen[n] {
			seen[n] = true
			out = append(out, string(n))
		}
	}
	for _, name := range names {
		add(name)
		if m == nil {
			continue
		}
		for _, sub := range m.SubTypes(name) {
			add(sub.Name)
		}
	}
	return out
}

// OrderingField sorts by a property value.
type OrderingField struct {
	Property   string
	Descending bool
}

// Pagination limits a result. A zero Limit means no limit.
type Pagination struct {
	Limit  int
	Offset int
}

type FindChildNodesFilter struct {
	NodeTypes     NodeTypeCriteria
	PropertyValue queryir.Criterion
	// Ordering replaces the hierarchy order; ties keep hierarchy order.
	Ordering   []OrderingField
	Pagination *Pagination
}

type CountChildNodesFilter struct {
	NodeTypes     NodeTypeCriteria
	PropertyValue queryir.Criterion
}

type FindDescendantNodesFilter struct {
	NodeTypes     NodeTypeCriteria
	PropertyValue queryir.Criterion
	Pagination    *Pagination
}

type CountDescendantNodesFilter struct {
	NodeTypes     NodeTypeCriteria
	PropertyValue queryir.Criterion
}

// FindSubtreeFilter limits a subtree. Nodes not matching NodeTypes are
// left out together with everything below them. A zero MaxLevels means
// unlimited depth.
type FindSubtreeFilter struct {
	MaxLevels int
	NodeTypes NodeTypeCriteria
}

type FindSiblingNodesFilter struct {
	NodeTypes     NodeTypeCriteria
	PropertyValue queryir.Criterion
	Pagination    *Pagination
}

type FindReferencesFilter struct {
	ReferenceName string
	NodeTypes     NodeTypeCriteria
	// PropertyValue filters by the other end's properties,
	// ReferencePropertyValue by the reference's own properties.
	PropertyValue          queryir.Criterion
	ReferencePropertyValue queryir.Criterion
	Pagination             *Pagination
}

type FindBackReferencesFilter = FindReferencesFilter
