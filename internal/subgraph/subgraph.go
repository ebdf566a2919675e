package subgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
	"github.com/roach88/contentgraph/internal/querysql"
)

// ErrNodeNotFound is returned by operations that need an existing entry
// node and cannot express its absence as an empty result.
var ErrNodeNotFound = errors.New("node not found")

// ContentSubgraph is the view of one content stream at one dimension space
// point. Finders return nil (or an empty slice) for nodes that do not exist
// or are not visible.
type ContentSubgraph struct {
	db              Querier
	nodeTypes       *nodetype.Manager
	contentStreamID ir.ContentStreamID
	point           dimension.DimensionSpacePoint
	visibility      VisibilityConstraints
}

// NewContentSubgraph creates a subgraph view. ContentGraph.Subgraph is the
// usual way to get one.
func NewContentSubgraph(db Querier, nodeTypes *nodetype.Manager, cs ir.ContentStreamID, p dimension.DimensionSpacePoint, v VisibilityConstraints) *ContentSubgraph {
	return &ContentSubgraph{db: db, nodeTypes: nodeTypes, contentStreamID: cs, point: p, visibility: v}
}

func (s *ContentSubgraph) ContentStreamID() ir.ContentStreamID                { return s.contentStreamID }
func (s *ContentSubgraph) DimensionSpacePoint() dimension.DimensionSpacePoint { return s.point }
func (s *ContentSubgraph) VisibilityConstraints() VisibilityConstraints       { return s.visibility }

// from starts a query over the nodes of this subgraph as n, positioned in
// their parent's hyperedge h at c.key.
func (s *ContentSubgraph) from(b *sqlBuilder) {
	b.write(`
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND h.dimension_space_point_hash = ?`,
		s.contentStreamID, s.point.Hash())
}

// visible hides disabled aggregates unless restrictions are lifted.
func (s *ContentSubgraph) visible(b *sqlBuilder, alias string) {
	if s.visibility == WithoutRestrictions {
		return
	}
	b.write(`
		AND NOT EXISTS (
			SELECT 1 FROM restriction_hyperrelation rh, json_each(rh.affected_node_aggregate_ids) ra
			WHERE rh.content_stream_id = ? AND rh.dimension_space_point_hash = ?
			AND ra.value = `+alias+`.node_aggregate_id
		)`, s.contentStreamID, s.point.Hash())
}

// inSubgraph requires alias to be a node of this subgraph.
func (s *ContentSubgraph) inSubgraph(b *sqlBuilder, alias string) {
	b.write(`
		AND EXISTS (
			SELECT 1 FROM hierarchy_hyperrelation sh, json_each(sh.child_relation_anchor_points) sc
			WHERE sh.content_stream_id = ? AND sh.dimension_space_point_hash = ?
			AND sc.value = `+alias+`.relation_anchor_point
		)`, s.contentStreamID, s.point.Hash())
}

func (s *ContentSubgraph) fill(n *Node) {
	n.ContentStreamID = s.contentStreamID
	n.DimensionSpacePoint = s.point
}

func (s *ContentSubgraph) queryNodes(ctx context.Context, b *sqlBuilder) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows, s.fill)
}

func (s *ContentSubgraph) queryNode(ctx context.Context, b *sqlBuilder) (*Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, b.String(), b.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.fill(n)
	return n, nil
}

func (s *ContentSubgraph) count(ctx context.Context, b *sqlBuilder) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, b.String(), b.args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FindNodeByID returns the node of the aggregate visible in this subgraph.
func (s *ContentSubgraph) FindNodeByID(ctx context.Context, id ir.NodeAggregateID) (*Node, error) {
	var b sqlBuilder
	b.write("SELECT " + nodeColumns)
	s.from(&b)
	b.write(" AND n.node_aggregate_id = ?", id)
	s.visible(&b, "n")
	b.write(" LIMIT 1")
	n, err := s.queryNode(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find node %s: %w", id, err)
	}
	return n, nil
}

// FindRootNodeByType returns the root node of the given type.
func (s *ContentSubgraph) FindRootNodeByType(ctx context.Context, name ir.NodeTypeName) (*Node, error) {
	var b sqlBuilder
	b.write("SELECT " + nodeColumns)
	s.from(&b)
	b.write(" AND h.parent_relation_anchor_point = ? AND n.node_type_name = ?", ir.RootRelationAnchorPoint, name)
	s.visible(&b, "n")
	b.write(" ORDER BY n.node_aggregate_id LIMIT 1")
	n, err := s.queryNode(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find root node %s: %w", name, err)
	}
	return n, nil
}

func (s *ContentSubgraph) childQuery(b *sqlBuilder, parent *Node, types NodeTypeCriteria) {
	s.from(b)
	b.write(" AND h.parent_relation_anchor_point = ?", parent.anchor)
	s.visible(b, "n")
	b.nodeTypes(s.nodeTypes, "n", types)
}

// FindChildNodes returns the children of parent in hierarchy order, or in
// the filter's ordering.
func (s *ContentSubgraph) FindChildNodes(ctx context.Context, parentID ir.NodeAggregateID, f FindChildNodesFilter) ([]*Node, error) {
	parent, err := s.FindNodeByID(ctx, parentID)
	if err != nil || parent == nil {
		return []*Node{}, err
	}

	var b sqlBuilder
	b.write("SELECT " + nodeColumns)
	s.childQuery(&b, parent, f.NodeTypes)
	if err := b.criteria("n.properties", f.PropertyValue); err != nil {
		return nil, fmt.Errorf("find child nodes of %s: %w", parentID, err)
	}
	b.write(" ORDER BY ")
	compiler := querysql.NewSQLCompiler("n.properties")
	for _, o := range f.Ordering {
		term, params := compiler.OrderBy(o.Property, o.Descending)
		b.write(term+", ", params...)
	}
	b.write("c.key ASC")
	b.paginate(f.Pagination)

	nodes, err := s.queryNodes(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find child nodes of %s: %w", parentID, err)
	}
	return nodes, nil
}

// CountChildNodes counts the children FindChildNodes would return without
// pagination.
func (s *ContentSubgraph) CountChildNodes(ctx context.Context, parentID ir.NodeAggregateID, f CountChildNodesFilter) (int, error) {
	parent, err := s.FindNodeByID(ctx, parentID)
	if err != nil || parent == nil {
		return 0, err
	}
	var b sqlBuilder
	b.write("SELECT COUNT(*)")
	s.childQuery(&b, parent, f.NodeTypes)
	if err := b.criteria("n.properties", f.PropertyValue); err != nil {
		return 0, fmt.Errorf("count child nodes of %s: %w", parentID, err)
	}
	n, err := s.count(ctx, &b)
	if err != nil {
		return 0, fmt.Errorf("count child nodes of %s: %w", parentID, err)
	}
	return n, nil
}

// FindParentNode returns the parent of child, or nil for root nodes.
func (s *ContentSubgraph) FindParentNode(ctx context.Context, childID ir.NodeAggregateID) (*Node, error) {
	var b sqlBuilder
	b.write("SELECT " + nodeColumns)
	b.write(`
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node ch ON ch.relation_anchor_point = c.value
		JOIN node n ON n.relation_anchor_point = h.parent_relation_anchor_point
		WHERE h.content_stream_id = ? AND h.dimension_space_point_hash = ?
		AND ch.node_aggregate_id = ?`, s.contentStreamID, s.point.Hash(), childID)
	s.visible(&b, "ch")
	s.visible(&b, "n")
	b.write(" LIMIT 1")
	n, err := s.queryNode(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find parent of %s: %w", childID, err)
	}
	return n, nil
}

func (s *ContentSubgraph) findChildNodeByName(ctx context.Context, parent *Node, name ir.NodeName) (*Node, error) {
	var b sqlBuilder
	b.write("SELECT " + nodeColumns)
	s.childQuery(&b, parent, NodeTypeCriteria{})
	b.write(" AND n.node_name = ? LIMIT 1", name)
	return s.queryNode(ctx, &b)
}

// FindNodeByPath follows named children from start.
func (s *ContentSubgraph) FindNodeByPath(ctx context.Context, path NodePath, start ir.NodeAggregateID) (*Node, error) {
	node, err := s.FindNodeByID(ctx, start)
	if err != nil || node == nil {
		return nil, err
	}
	return s.walk(ctx, node, path)
}

// FindNodeByAbsolutePath resolves a path from the root node of its type.
func (s *ContentSubgraph) FindNodeByAbsolutePath(ctx context.Context, path AbsoluteNodePath) (*Node, error) {
	root, err := s.FindRootNodeByType(ctx, path.RootNodeTypeName)
	if err != nil || root == nil {
		return nil, err
	}
	return s.walk(ctx, root, path.Path)
}

func (s *ContentSubgraph) walk(ctx context.Context, node *Node, path NodePath) (*Node, error) {
	for _, name := range path {
		child, err := s.findChildNodeByName(ctx, node, name)
		if err != nil {
			return nil, fmt.Errorf("find node by path %s: %w", path, err)
		}
		if child == nil {
			return nil, nil
		}
		node = child
	}
	return node, nil
}

// RetrieveNodePath returns the absolute path of a node. Every node on the
// way up must be named.
func (s *ContentSubgraph) RetrieveNodePath(ctx context.Context, id ir.NodeAggregateID) (AbsoluteNodePath, error) {
	node, err := s.FindNodeByID(ctx, id)
	if err != nil {
		return AbsoluteNodePath{}, err
	}
	if node == nil {
		return AbsoluteNodePath{}, fmt.Errorf("retrieve path of %s: %w", id, ErrNodeNotFound)
	}

	var reversed NodePath
	for {
		parent, err := s.FindParentNode(ctx, node.AggregateID)
		if err != nil {
			return AbsoluteNodePath{}, err
		}
		if parent == nil {
			break
		}
		if node.Name == "" {
			return AbsoluteNodePath{}, fmt.Errorf("retrieve path of %s: node %s has no name", id, node.AggregateID)
		}
		reversed = append(reversed, node.Name)
		node = parent
	}

	path := make(NodePath, len(reversed))
	for i, name := range reversed {
		path[len(reversed)-1-i] = name
	}
	return AbsoluteNodePath{RootNodeTypeName: node.NodeTypeName, Path: path}, nil
}

// tree writes a recursive CTE "tree(anchor, parent_anchor, level, sort_key)"
// holding entry and its visible descendants. sort_key orders rows
// depth-first in hierarchy order.
func (s *ContentSubgraph) tree(b *sqlBuilder, entry ir.NodeAggregateID, maxLevels int, types NodeTypeCriteria) {
	if maxLevels <= 0 {
		maxLevels = 1 << 30
	}
	b.write(`
		WITH RECURSIVE tree(anchor, parent_anchor, level, sort_key) AS (
			SELECT n.relation_anchor_point, '', 0, ''`)
	s.from(b)
	b.write(" AND n.node_aggregate_id = ?", entry)
	s.visible(b, "n")
	b.write(`
			UNION ALL
			SELECT n.relation_anchor_point, t.anchor, t.level + 1, t.sort_key || printf('/%08d', c.key)
			FROM tree t
			JOIN hierarchy_hyperrelation h ON h.parent_relation_anchor_point = t.anchor
			JOIN json_each(h.child_relation_anchor_points) c
			JOIN node n ON n.relation_anchor_point = c.value
			WHERE h.content_stream_id = ? AND h.dimension_space_point_hash = ? AND t.level < ?`,
		s.contentStreamID, s.point.Hash(), maxLevels)
	s.visible(b, "n")
	b.nodeTypes(s.nodeTypes, "n", types)
	b.write(`
		)`)
}

// FindSubtree returns entry with its descendants up to MaxLevels, or nil
// if entry is not visible.
func (s *ContentSubgraph) FindSubtree(ctx context.Context, entry ir.NodeAggregateID, f FindSubtreeFilter) (*Subtree, error) {
	var b sqlBuilder
	s.tree(&b, entry, f.MaxLevels, f.NodeTypes)
	b.write(`
		SELECT t.parent_anchor, t.level, ` + nodeColumns + `
		FROM tree t JOIN node n ON n.relation_anchor_point = t.anchor
		ORDER BY t.sort_key`)

	rows, err := s.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("find subtree of %s: %w", entry, err)
	}
	defer rows.Close()

	var root *Subtree
	byAnchor := make(map[ir.RelationAnchorPoint]*Subtree)
	for rows.Next() {
		var (
			parentAnchor ir.RelationAnchorPoint
			level        int
		)
		n, err := scanNode(rows, &parentAnchor, &level)
		if err != nil {
			return nil, fmt.Errorf("find subtree of %s: %w", entry, err)
		}
		s.fill(n)
		st := &Subtree{Node: n, Level: level, Children: []*Subtree{}}
		byAnchor[n.anchor] = st
		if level == 0 {
			root = st
			continue
		}
		if parent, ok := byAnchor[parentAnchor]; ok {
			parent.Children = append(parent.Children, st)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find subtree of %s: %w", entry, err)
	}
	return root, nil
}

// FindDescendantNodes returns every visible descendant of entry matching
// the filter, depth-first in hierarchy order.
func (s *ContentSubgraph) FindDescendantNodes(ctx context.Context, entry ir.NodeAggregateID, f FindDescendantNodesFilter) ([]*Node, error) {
	var b sqlBuilder
	s.tree(&b, entry, 0, NodeTypeCriteria{})
	b.write(`
		SELECT ` + nodeColumns + `
		FROM tree t JOIN node n ON n.relation_anchor_point = t.anchor
		WHERE t.level > 0`)
	b.nodeTypes(s.nodeTypes, "n", f.NodeTypes)
	if err := b.criteria("n.properties", f.PropertyValue); err != nil {
		return nil, fmt.Errorf("find descendants of %s: %w", entry, err)
	}
	b.write(" ORDER BY t.sort_key")
	b.paginate(f.Pagination)

	nodes, err := s.queryNodes(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find descendants of %s: %w", entry, err)
	}
	return nodes, nil
}

// CountDescendantNodes counts what FindDescendantNodes would return
// without pagination.
func (s *ContentSubgraph) CountDescendantNodes(ctx context.Context, entry ir.NodeAggregateID, f CountDescendantNodesFilter) (int, error) {
	var b sqlBuilder
	s.tree(&b, entry, 0, NodeTypeCriteria{})
	b.write(`
		SELECT COUNT(*)
		FROM tree t JOIN node n ON n.relation_anchor_point = t.anchor
		WHERE t.level > 0`)
	b.nodeTypes(s.nodeTypes, "n", f.NodeTypes)
	if err := b.criteria("n.properties", f.PropertyValue); err != nil {
		return 0, fmt.Errorf("count descendants of %s: %w", entry, err)
	}
	n, err := s.count(ctx, &b)
	if err != nil {
		return 0, fmt.Errorf("count descendants of %s: %w", entry, err)
	}
	return n, nil
}

// FindSucceedingSiblingNodes returns the siblings after sibling, closest
// first.
func (s *ContentSubgraph) FindSucceedingSiblingNodes(ctx context.Context, sibling ir.NodeAggregateID, f FindSiblingNodesFilter) ([]*Node, error) {
	return s.findSiblings(ctx, sibling, f, ">", "ASC")
}

// FindPrecedingSiblingNodes returns the siblings before sibling, closest
// first.
func (s *ContentSubgraph) FindPrecedingSiblingNodes(ctx context.Context, sibling ir.NodeAggregateID, f FindSiblingNodesFilter) ([]*Node, error) {
	return s.findSiblings(ctx, sibling, f, "<", "DESC")
}

func (s *ContentSubgraph) findSiblings(ctx context.Context, sibling ir.NodeAggregateID, f FindSiblingNodesFilter, cmp, dir string) ([]*Node, error) {
	var b sqlBuilder
	b.write("SELECT " + nodeColumns)
	b.write(`
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) sc
		JOIN node s ON s.relation_anchor_point = sc.value
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND h.dimension_space_point_hash = ?
		AND s.node_aggregate_id = ? AND c.key `+cmp+` sc.key`,
		s.contentStreamID, s.point.Hash(), sibling)
	s.visible(&b, "s")
	s.visible(&b, "n")
	b.nodeTypes(s.nodeTypes, "n", f.NodeTypes)
	if err := b.criteria("n.properties", f.PropertyValue); err != nil {
		return nil, fmt.Errorf("find siblings of %s: %w", sibling, err)
	}
	b.write(" ORDER BY c.key " + dir)
	b.paginate(f.Pagination)

	nodes, err := s.queryNodes(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find siblings of %s: %w", sibling, err)
	}
	return nodes, nil
}

// FindReferences returns the outgoing references of a node whose targets
// are visible in this subgraph, by name and position.
func (s *ContentSubgraph) FindReferences(ctx context.Context, source ir.NodeAggregateID, f FindReferencesFilter) ([]Reference, error) {
	node, err := s.FindNodeByID(ctx, source)
	if err != nil || node == nil {
		return []Reference{}, err
	}

	var b sqlBuilder
	b.write(`SELECT r.name, r.properties, ` + nodeColumns + `
		FROM reference_relation r
		JOIN node n ON n.node_aggregate_id = r.target_node_aggregate_id
		WHERE r.source_relation_anchor_point = ?`, node.anchor)
	s.inSubgraph(&b, "n")
	if err := s.referenceFilter(&b, f); err != nil {
		return nil, fmt.Errorf("find references of %s: %w", source, err)
	}
	b.write(" ORDER BY r.name, r.position")
	b.paginate(f.Pagination)

	refs, err := s.queryReferences(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find references of %s: %w", source, err)
	}
	return refs, nil
}

// FindBackReferences returns the references pointing at target from nodes
// visible in this subgraph.
func (s *ContentSubgraph) FindBackReferences(ctx context.Context, target ir.NodeAggregateID, f FindBackReferencesFilter) ([]Reference, error) {
	node, err := s.FindNodeByID(ctx, target)
	if err != nil || node == nil {
		return []Reference{}, err
	}

	var b sqlBuilder
	b.write(`SELECT r.name, r.properties, ` + nodeColumns + `
		FROM reference_relation r
		JOIN node n ON n.relation_anchor_point = r.source_relation_anchor_point
		WHERE r.target_node_aggregate_id = ?`, target)
	s.inSubgraph(&b, "n")
	if err := s.referenceFilter(&b, f); err != nil {
		return nil, fmt.Errorf("find back references of %s: %w", target, err)
	}
	b.write(" ORDER BY r.name, n.node_aggregate_id, r.position")
	b.paginate(f.Pagination)

	refs, err := s.queryReferences(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("find back references of %s: %w", target, err)
	}
	return refs, nil
}

func (s *ContentSubgraph) referenceFilter(b *sqlBuilder, f FindReferencesFilter) error {
	if f.ReferenceName != "" {
		b.write(" AND r.name = ?", f.ReferenceName)
	}
	s.visible(b, "n")
	b.nodeTypes(s.nodeTypes, "n", f.NodeTypes)
	if err := b.criteria("n.properties", f.PropertyValue); err != nil {
		return err
	}
	return b.criteria("r.properties", f.ReferencePropertyValue)
}

func (s *ContentSubgraph) queryReferences(ctx context.Context, b *sqlBuilder) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []Reference{}
	for rows.Next() {
		var name, properties string
		n, err := scanNode(rows, &name, &properties)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		s.fill(n)
		props, err := ir.UnmarshalProperties(properties)
		if err != nil {
			return nil, err
		}
		refs = append(refs, Reference{Node: n, Name: name, Properties: props})
	}
	return refs, rows.Err()
}
