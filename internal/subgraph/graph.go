package subgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
)

// ContentGraph finds node aggregates within a content stream.
type ContentGraph struct {
	db        Querier
	nodeTypes *nodetype.Manager
}

// NewContentGraph creates a finder over the projection tables in db.
// nodeTypes is used to expand node type filters to subtypes; it may be nil.
func NewContentGraph(db Querier, nodeTypes *nodetype.Manager) *ContentGraph {
	return &ContentGraph{db: db, nodeTypes: nodeTypes}
}

// NodeTypeManager returns the manager used for node type filters.
func (g *ContentGraph) NodeTypeManager() *nodetype.Manager {
	return g.nodeTypes
}

// Subgraph returns the view of cs at p.
func (g *ContentGraph) Subgraph(cs ir.ContentStreamID, p dimension.DimensionSpacePoint, v VisibilityConstraints) *ContentSubgraph {
	return NewContentSubgraph(g.db, g.nodeTypes, cs, p, v)
}

// FindNodeAggregateByID returns the aggregate, or nil if cs has no node of
// it.
func (g *ContentGraph) FindNodeAggregateByID(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID) (*NodeAggregate, error) {
	aggs, err := g.aggregatesByIDs(ctx, cs, []ir.NodeAggregateID{id})
	if err != nil {
		return nil, fmt.Errorf("find node aggregate %s: %w", id, err)
	}
	if len(aggs) == 0 {
		return nil, nil
	}
	return aggs[0], nil
}

// FindRootNodeAggregateByType returns the root aggregate of a type, or nil.
func (g *ContentGraph) FindRootNodeAggregateByType(ctx context.Context, cs ir.ContentStreamID, name ir.NodeTypeName) (*NodeAggregate, error) {
	var b sqlBuilder
	b.write(`SELECT DISTINCT n.node_aggregate_id
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND h.parent_relation_anchor_point = ? AND n.node_type_name = ?
		ORDER BY n.node_aggregate_id`, cs, ir.RootRelationAnchorPoint, name)
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find root node aggregate %s: %w", name, err)
	}
	if len(aggs) == 0 {
		return nil, nil
	}
	return aggs[0], nil
}

// FindRootNodeAggregates returns every root aggregate, sorted by id.
func (g *ContentGraph) FindRootNodeAggregates(ctx context.Context, cs ir.ContentStreamID) ([]*NodeAggregate, error) {
	var b sqlBuilder
	b.write(`SELECT DISTINCT n.node_aggregate_id
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND h.parent_relation_anchor_point = ?
		ORDER BY n.node_aggregate_id`, cs, ir.RootRelationAnchorPoint)
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find root node aggregates: %w", err)
	}
	return aggs, nil
}

// FindNodeAggregatesByType returns the aggregates of exactly this type.
func (g *ContentGraph) FindNodeAggregatesByType(ctx context.Context, cs ir.ContentStreamID, name ir.NodeTypeName) ([]*NodeAggregate, error) {
	var b sqlBuilder
	b.write(`SELECT DISTINCT n.node_aggregate_id
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND n.node_type_name = ?
		ORDER BY n.node_aggregate_id`, cs, name)
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find node aggregates of type %s: %w", name, err)
	}
	return aggs, nil
}

// FindParentNodeAggregates returns the aggregates that are a parent of
// child in at least one dimension space point.
func (g *ContentGraph) FindParentNodeAggregates(ctx context.Context, cs ir.ContentStreamID, child ir.NodeAggregateID) ([]*NodeAggregate, error) {
	var b sqlBuilder
	b.write(`SELECT DISTINCT p.node_aggregate_id
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node ch ON ch.relation_anchor_point = c.value
		JOIN node p ON p.relation_anchor_point = h.parent_relation_anchor_point
		WHERE h.content_stream_id = ? AND ch.node_aggregate_id = ?
		ORDER BY p.node_aggregate_id`, cs, child)
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find parents of %s: %w", child, err)
	}
	return aggs, nil
}

func (g *ContentGraph) childQuery(b *sqlBuilder, cs ir.ContentStreamID, parent ir.NodeAggregateID) {
	b.write(`SELECT DISTINCT ch.node_aggregate_id
		FROM hierarchy_hyperrelation h
		JOIN node p ON p.relation_anchor_point = h.parent_relation_anchor_point
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node ch ON ch.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND p.node_aggregate_id = ?`, cs, parent)
}

// FindChildNodeAggregates returns the aggregates that are a child of parent
// in at least one dimension space point, sorted by id.
func (g *ContentGraph) FindChildNodeAggregates(ctx context.Context, cs ir.ContentStreamID, parent ir.NodeAggregateID) ([]*NodeAggregate, error) {
	var b sqlBuilder
	g.childQuery(&b, cs, parent)
	b.write(" ORDER BY ch.node_aggregate_id")
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find children of %s: %w", parent, err)
	}
	return aggs, nil
}

// FindTetheredChildNodeAggregates returns the tethered children of parent.
func (g *ContentGraph) FindTetheredChildNodeAggregates(ctx context.Context, cs ir.ContentStreamID, parent ir.NodeAggregateID) ([]*NodeAggregate, error) {
	var b sqlBuilder
	g.childQuery(&b, cs, parent)
	b.write(" AND ch.classification = ? ORDER BY ch.node_aggregate_id", ir.ClassificationTethered)
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find tethered children of %s: %w", parent, err)
	}
	return aggs, nil
}

// FindChildNodeAggregateByName returns the child of parent named name, or
// nil.
func (g *ContentGraph) FindChildNodeAggregateByName(ctx context.Context, cs ir.ContentStreamID, parent ir.NodeAggregateID, name ir.NodeName) (*NodeAggregate, error) {
	var b sqlBuilder
	g.childQuery(&b, cs, parent)
	b.write(" AND ch.node_name = ? ORDER BY ch.node_aggregate_id", name)
	aggs, err := g.aggregatesWhere(ctx, cs, &b)
	if err != nil {
		return nil, fmt.Errorf("find child %s of %s: %w", name, parent, err)
	}
	if len(aggs) == 0 {
		return nil, nil
	}
	return aggs[0], nil
}

// FindParentNodeAggregateByChildOriginDimensionSpacePoint returns the
// parent of child's variant at origin, as seen at origin itself.
func (g *ContentGraph) FindParentNodeAggregateByChildOriginDimensionSpacePoint(
	ctx context.Context,
	cs ir.ContentStreamID,
	child ir.NodeAggregateID,
	origin dimension.OriginDimensionSpacePoint,
) (*NodeAggregate, error) {
	var parent ir.NodeAggregateID
	err := g.db.QueryRowContext(ctx, `
		SELECT p.node_aggregate_id
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node ch ON ch.relation_anchor_point = c.value
		JOIN node p ON p.relation_anchor_point = h.parent_relation_anchor_point
		WHERE h.content_stream_id = ? AND h.dimension_space_point_hash = ?
		AND ch.node_aggregate_id = ? AND ch.origin_dimension_space_point_hash = ?
		LIMIT 1`, cs, origin.Hash(), child, origin.Hash()).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find parent of %s at %s: %w", child, origin, err)
	}
	return g.FindNodeAggregateByID(ctx, cs, parent)
}

// FindDimensionSpacePointsByOccupiedChildNodeName returns the points among
// points where a child of parent other than except is named name.
func (g *ContentGraph) FindDimensionSpacePointsByOccupiedChildNodeName(
	ctx context.Context,
	cs ir.ContentStreamID,
	parent ir.NodeAggregateID,
	name ir.NodeName,
	points dimension.DimensionSpacePointSet,
	except ir.NodeAggregateID,
) (dimension.DimensionSpacePointSet, error) {
	hashes := points.Hashes()
	if len(hashes) == 0 {
		return dimension.NewDimensionSpacePointSet(), nil
	}
	var b sqlBuilder
	b.write(`SELECT DISTINCT h.dimension_space_point
		FROM hierarchy_hyperrelation h
		JOIN node p ON p.relation_anchor_point = h.parent_relation_anchor_point
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node ch ON ch.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND p.node_aggregate_id = ? AND ch.node_name = ?
		AND ch.node_aggregate_id != ?`, cs, parent, name, except)
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}
	b.write(" AND h.dimension_space_point_hash IN ("+placeholders(len(hashes))+")", args...)

	rows, err := g.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return dimension.DimensionSpacePointSet{}, fmt.Errorf("find points occupied by name %s: %w", name, err)
	}
	defer rows.Close()

	var occupied []dimension.DimensionSpacePoint
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return dimension.DimensionSpacePointSet{}, err
		}
		p, err := dimension.ParseDimensionSpacePoint(raw)
		if err != nil {
			return dimension.DimensionSpacePointSet{}, err
		}
		occupied = append(occupied, p)
	}
	return dimension.NewDimensionSpacePointSet(occupied...), rows.Err()
}

// FindAncestorNodeAggregateIDs returns every aggregate above id in any
// dimension space point.
func (g *ContentGraph) FindAncestorNodeAggregateIDs(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID) (map[ir.NodeAggregateID]bool, error) {
	rows, err := g.db.QueryContext(ctx, `
		WITH RECURSIVE ancestors(id) AS (
			SELECT ?
			UNION
			SELECT p.node_aggregate_id
			FROM ancestors a
			JOIN node ch ON ch.node_aggregate_id = a.id
			JOIN hierarchy_hyperrelation h ON h.content_stream_id = ?
			JOIN json_each(h.child_relation_anchor_points) c ON c.value = ch.relation_anchor_point
			JOIN node p ON p.relation_anchor_point = h.parent_relation_anchor_point
		)
		SELECT id FROM ancestors WHERE id != ?`, id, cs, id)
	if err != nil {
		return nil, fmt.Errorf("find ancestors of %s: %w", id, err)
	}
	defer rows.Close()

	ancestors := make(map[ir.NodeAggregateID]bool)
	for rows.Next() {
		var a ir.NodeAggregateID
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		ancestors[a] = true
	}
	return ancestors, rows.Err()
}

// aggregatesWhere loads the aggregates whose ids the query selects.
func (g *ContentGraph) aggregatesWhere(ctx context.Context, cs ir.ContentStreamID, b *sqlBuilder) ([]*NodeAggregate, error) {
	rows, err := g.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	var ids []ir.NodeAggregateID
	for rows.Next() {
		var id ir.NodeAggregateID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return g.aggregatesByIDs(ctx, cs, ids)
}

// aggregatesByIDs loads full aggregates, in the order of ids.
func (g *ContentGraph) aggregatesByIDs(ctx context.Context, cs ir.ContentStreamID, ids []ir.NodeAggregateID) ([]*NodeAggregate, error) {
	if len(ids) == 0 {
		return []*NodeAggregate{}, nil
	}
	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}

	var b sqlBuilder
	b.write(`SELECT h.dimension_space_point, `+nodeColumns+`
		FROM hierarchy_hyperrelation h
		JOIN json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ?`, cs)
	b.write(" AND n.node_aggregate_id IN ("+placeholders(len(ids))+")", idArgs...)
	b.write(" ORDER BY n.node_aggregate_id, n.origin_dimension_space_point_hash, h.dimension_space_point_hash")

	rows, err := g.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[ir.NodeAggregateID]*aggregateBuilder)
	for rows.Next() {
		var covered string
		n, err := scanNode(rows, &covered)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate node: %w", err)
		}
		n.ContentStreamID = cs
		n.DimensionSpacePoint = n.OriginDimensionSpacePoint.ToDimensionSpacePoint()
		p, err := dimension.ParseDimensionSpacePoint(covered)
		if err != nil {
			return nil, err
		}
		ab, ok := byID[n.AggregateID]
		if !ok {
			ab = newAggregateBuilder(cs, n)
			byID[n.AggregateID] = ab
		}
		ab.add(n, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	disabled, err := g.disabledPoints(ctx, cs, idArgs)
	if err != nil {
		return nil, err
	}

	out := make([]*NodeAggregate, 0, len(ids))
	for _, id := range ids {
		if ab, ok := byID[id]; ok {
			out = append(out, ab.build(disabled[id]))
		}
	}
	return out, nil
}

// disabledPoints returns, per aggregate, the hashes of points at which the
// aggregate itself was disabled.
func (g *ContentGraph) disabledPoints(ctx context.Context, cs ir.ContentStreamID, ids []any) (map[ir.NodeAggregateID]map[string]bool, error) {
	args := append([]any{cs}, ids...)
	rows, err := g.db.QueryContext(ctx, `
		SELECT origin_node_aggregate_id, dimension_space_point_hash
		FROM restriction_hyperrelation
		WHERE content_stream_id = ? AND origin_node_aggregate_id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("load restrictions: %w", err)
	}
	defer rows.Close()

	out := make(map[ir.NodeAggregateID]map[string]bool)
	for rows.Next() {
		var (
			id   ir.NodeAggregateID
			hash string
		)
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(map[string]bool)
		}
		out[id][hash] = true
	}
	return out, rows.Err()
}

type aggregateBuilder struct {
	agg      *NodeAggregate
	occupied []dimension.OriginDimensionSpacePoint
	covered  []dimension.DimensionSpacePoint
	coverage map[string][]dimension.DimensionSpacePoint
}

func newAggregateBuilder(cs ir.ContentStreamID, first *Node) *aggregateBuilder {
	return &aggregateBuilder{
		agg: &NodeAggregate{
			ContentStreamID:     cs,
			ID:                  first.AggregateID,
			NodeTypeName:        first.NodeTypeName,
			NodeName:            first.Name,
			Classification:      first.Classification,
			nodesByOrigin:       make(map[string]*Node),
			coverageByOccupant:  make(map[string]dimension.DimensionSpacePointSet),
			occupationByCovered: make(map[string]dimension.OriginDimensionSpacePoint),
		},
		coverage: make(map[string][]dimension.DimensionSpacePoint),
	}
}

func (ab *aggregateBuilder) add(n *Node, covered dimension.DimensionSpacePoint) {
	originHash := n.OriginDimensionSpacePoint.Hash()
	if _, ok := ab.agg.nodesByOrigin[originHash]; !ok {
		ab.agg.nodesByOrigin[originHash] = n
		ab.occupied = append(ab.occupied, n.OriginDimensionSpacePoint)
	}
	ab.covered = append(ab.covered, covered)
	ab.coverage[originHash] = append(ab.coverage[originHash], covered)
	ab.agg.occupationByCovered[covered.Hash()] = n.OriginDimensionSpacePoint
}

func (ab *aggregateBuilder) build(disabled map[string]bool) *NodeAggregate {
	a := ab.agg
	a.OccupiedDimensionSpacePoints = dimension.NewOriginSet(ab.occupied...)
	a.CoveredDimensionSpacePoints = dimension.NewDimensionSpacePointSet(ab.covered...)
	for hash, points := range ab.coverage {
		a.coverageByOccupant[hash] = dimension.NewDimensionSpacePointSet(points...)
	}
	var disabledPoints []dimension.DimensionSpacePoint
	for _, p := range ab.covered {
		if disabled[p.Hash()] {
			disabledPoints = append(disabledPoints, p)
		}
	}
	a.DisabledDimensionSpacePoints = dimension.NewDimensionSpacePointSet(disabledPoints...)
	return a
}
