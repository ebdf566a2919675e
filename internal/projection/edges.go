package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
)

// errNodeNotFound is returned by anchor lookups. Folds that tolerate missing
// nodes check for it with errors.Is.
var errNodeNotFound = errors.New("node not found in projection")

// applier folds one event into the projection tables inside tx.
//
// Anchors minted while applying an event derive from its sequence number,
// so replaying the log produces identical rows.
type applier struct {
	tx      *sql.Tx
	seq     int64
	anchors int
}

func (a *applier) newAnchor() ir.RelationAnchorPoint {
	a.anchors++
	return ir.RelationAnchorPoint(fmt.Sprintf("%d-%d", a.seq, a.anchors))
}

func (a *applier) exec(ctx context.Context, query string, args ...any) error {
	_, err := a.tx.ExecContext(ctx, query, args...)
	return err
}

// queryStrings collects a single text column. Rows are closed before
// returning since the connection is shared with the following statements.
func (a *applier) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := a.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// edge is one hierarchy hyperrelation: the ordered children of a parent
// anchor in one dimension space point.
type edge struct {
	parent   ir.RelationAnchorPoint
	point    dimension.DimensionSpacePoint
	children []ir.RelationAnchorPoint
}

func (e *edge) indexOf(anchor ir.RelationAnchorPoint) int {
	for i, c := range e.children {
		if c == anchor {
			return i
		}
	}
	return -1
}

// insertBefore inserts anchor before the given sibling, or appends it when
// the sibling is empty or not a child of this edge.
func (e *edge) insertBefore(anchor, before ir.RelationAnchorPoint) {
	if e.indexOf(anchor) >= 0 {
		return
	}
	i := -1
	if before != "" {
		i = e.indexOf(before)
	}
	if i < 0 {
		e.children = append(e.children, anchor)
		return
	}
	e.children = append(e.children, "")
	copy(e.children[i+1:], e.children[i:])
	e.children[i] = anchor
}

func (e *edge) remove(anchor ir.RelationAnchorPoint) bool {
	i := e.indexOf(anchor)
	if i < 0 {
		return false
	}
	e.children = append(e.children[:i], e.children[i+1:]...)
	return true
}

func (e *edge) replace(old, anchor ir.RelationAnchorPoint) {
	if i := e.indexOf(old); i >= 0 {
		e.children[i] = anchor
	}
}

// loadEdge returns the edge below parent at p. A missing row yields an edge
// without children.
func (a *applier) loadEdge(ctx context.Context, cs ir.ContentStreamID, parent ir.RelationAnchorPoint, p dimension.DimensionSpacePoint) (*edge, error) {
	e := &edge{parent: parent, point: p}
	var raw string
	err := a.tx.QueryRowContext(ctx, `
		SELECT child_relation_anchor_points FROM hierarchy_hyperrelation
		WHERE content_stream_id = ? AND parent_relation_anchor_point = ? AND dimension_space_point_hash = ?`,
		cs, parent, p.Hash()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load edge below %s: %w", parent, err)
	}
	if err := json.Unmarshal([]byte(raw), &e.children); err != nil {
		return nil, fmt.Errorf("decode edge below %s: %w", parent, err)
	}
	return e, nil
}

// saveEdge writes the edge, deleting the row once it has no children.
func (a *applier) saveEdge(ctx context.Context, cs ir.ContentStreamID, e *edge) error {
	if len(e.children) == 0 {
		err := a.exec(ctx, `
			DELETE FROM hierarchy_hyperrelation
			WHERE content_stream_id = ? AND parent_relation_anchor_point = ? AND dimension_space_point_hash = ?`,
			cs, e.parent, e.point.Hash())
		if err != nil {
			return fmt.Errorf("delete edge below %s: %w", e.parent, err)
		}
		return nil
	}
	data, err := json.Marshal(e.children)
	if err != nil {
		return err
	}
	err = a.exec(ctx, `
		INSERT INTO hierarchy_hyperrelation VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (content_stream_id, parent_relation_anchor_point, dimension_space_point_hash)
		DO UPDATE SET child_relation_anchor_points = excluded.child_relation_anchor_points`,
		cs, e.parent, e.point.Hash(), e.point.String(), string(data))
	if err != nil {
		return fmt.Errorf("save edge below %s: %w", e.parent, err)
	}
	return nil
}

// edgesContaining returns every edge of cs that lists anchor as a child.
func (a *applier) edgesContaining(ctx context.Context, cs ir.ContentStreamID, anchor ir.RelationAnchorPoint) ([]*edge, error) {
	rows, err := a.tx.QueryContext(ctx, `
		SELECT h.parent_relation_anchor_point, h.dimension_space_point, h.child_relation_anchor_points
		FROM hierarchy_hyperrelation h
		WHERE h.content_stream_id = ?
		  AND EXISTS (SELECT 1 FROM json_each(h.child_relation_anchor_points) c WHERE c.value = ?)
		ORDER BY h.parent_relation_anchor_point, h.dimension_space_point_hash`, cs, anchor)
	if err != nil {
		return nil, fmt.Errorf("find edges of %s: %w", anchor, err)
	}
	defer rows.Close()

	var edges []*edge
	for rows.Next() {
		var parent, point, children string
		if err := rows.Scan(&parent, &point, &children); err != nil {
			return nil, err
		}
		p, err := dimension.ParseDimensionSpacePoint(point)
		if err != nil {
			return nil, err
		}
		e := &edge{parent: ir.RelationAnchorPoint(parent), point: p}
		if err := json.Unmarshal([]byte(children), &e.children); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// anchorByOrigin finds the node of an aggregate at an origin that is
// visible somewhere in cs.
func (a *applier) anchorByOrigin(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID, origin dimension.OriginDimensionSpacePoint) (ir.RelationAnchorPoint, error) {
	var anchor string
	err := a.tx.QueryRowContext(ctx, `
		SELECT n.relation_anchor_point
		FROM hierarchy_hyperrelation h, json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND n.node_aggregate_id = ? AND n.origin_dimension_space_point_hash = ?
		LIMIT 1`, cs, id, origin.Hash()).Scan(&anchor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s at origin %s: %w", id, origin, errNodeNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find %s at origin %s: %w", id, origin, err)
	}
	return ir.RelationAnchorPoint(anchor), nil
}

// anchorCovering finds the node of an aggregate covering p in cs, together
// with its parent anchor.
func (a *applier) anchorCovering(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID, p dimension.DimensionSpacePoint) (anchor, parent ir.RelationAnchorPoint, err error) {
	var anchorRaw, parentRaw string
	err = a.tx.QueryRowContext(ctx, `
		SELECT n.relation_anchor_point, h.parent_relation_anchor_point
		FROM hierarchy_hyperrelation h, json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND h.dimension_space_point_hash = ? AND n.node_aggregate_id = ?
		LIMIT 1`, cs, p.Hash(), id).Scan(&anchorRaw, &parentRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%s covering %s: %w", id, p, errNodeNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("find %s covering %s: %w", id, p, err)
	}
	return ir.RelationAnchorPoint(anchorRaw), ir.RelationAnchorPoint(parentRaw), nil
}

// aggregateOf returns the aggregate id stored at anchor.
func (a *applier) aggregateOf(ctx context.Context, anchor ir.RelationAnchorPoint) (ir.NodeAggregateID, error) {
	var id string
	err := a.tx.QueryRowContext(ctx, `SELECT node_aggregate_id FROM node WHERE relation_anchor_point = ?`, anchor).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("anchor %s: %w", anchor, errNodeNotFound)
	}
	if err != nil {
		return "", err
	}
	return ir.NodeAggregateID(id), nil
}

// writable returns an anchor of the node that only cs sees. A node row
// shared with another content stream is copied first, together with its
// references, and cs is rewired to the copy.
func (a *applier) writable(ctx context.Context, cs ir.ContentStreamID, anchor ir.RelationAnchorPoint) (ir.RelationAnchorPoint, error) {
	var shared bool
	err := a.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM hierarchy_hyperrelation h, json_each(h.child_relation_anchor_points) c
			WHERE c.value = ? AND h.content_stream_id != ?
		)`, anchor, cs).Scan(&shared)
	if err != nil {
		return "", fmt.Errorf("check sharing of %s: %w", anchor, err)
	}
	if !shared {
		return anchor, nil
	}

	copied := a.newAnchor()
	if err := a.copyNode(ctx, anchor, copied, nil); err != nil {
		return "", err
	}

	edges, err := a.edgesContaining(ctx, cs, anchor)
	if err != nil {
		return "", err
	}
	for _, e := range edges {
		e.replace(anchor, copied)
		if err := a.saveEdge(ctx, cs, e); err != nil {
			return "", err
		}
	}
	err = a.exec(ctx, `
		UPDATE hierarchy_hyperrelation SET parent_relation_anchor_point = ?
		WHERE content_stream_id = ? AND parent_relation_anchor_point = ?`, copied, cs, anchor)
	if err != nil {
		return "", fmt.Errorf("rewire children of %s: %w", anchor, err)
	}
	return copied, nil
}

// copyNode duplicates a node row and its outgoing references under a new
// anchor. A non-nil origin replaces the copy's origin.
func (a *applier) copyNode(ctx context.Context, from, to ir.RelationAnchorPoint, origin *dimension.OriginDimensionSpacePoint) error {
	var err error
	if origin == nil {
		err = a.exec(ctx, `
			INSERT INTO node
			SELECT ?, node_aggregate_id, origin_dimension_space_point, origin_dimension_space_point_hash,
			       node_type_name, classification, node_name, properties
			FROM node WHERE relation_anchor_point = ?`, to, from)
	} else {
		err = a.exec(ctx, `
			INSERT INTO node
			SELECT ?, node_aggregate_id, ?, ?, node_type_name, classification, node_name, properties
			FROM node WHERE relation_anchor_point = ?`, to, origin.String(), origin.Hash(), from)
	}
	if err != nil {
		return fmt.Errorf("copy node %s: %w", from, err)
	}
	err = a.exec(ctx, `
		INSERT INTO reference_relation
		SELECT ?, name, position, target_node_aggregate_id, properties
		FROM reference_relation WHERE source_relation_anchor_point = ?`, to, from)
	if err != nil {
		return fmt.Errorf("copy references of %s: %w", from, err)
	}
	return nil
}

// subtree returns the anchors below and including anchor at p, pre-order.
func (a *applier) subtree(ctx context.Context, cs ir.ContentStreamID, anchor ir.RelationAnchorPoint, p dimension.DimensionSpacePoint) ([]ir.RelationAnchorPoint, error) {
	result := []ir.RelationAnchorPoint{anchor}
	for i := 0; i < len(result); i++ {
		e, err := a.loadEdge(ctx, cs, result[i], p)
		if err != nil {
			return nil, err
		}
		result = append(result, e.children...)
	}
	return result, nil
}

// subtreeAggregates returns the sorted aggregate ids of the subtree below
// and including anchor at p.
func (a *applier) subtreeAggregates(ctx context.Context, cs ir.ContentStreamID, anchor ir.RelationAnchorPoint, p dimension.DimensionSpacePoint) ([]ir.NodeAggregateID, error) {
	anchors, err := a.subtree(ctx, cs, anchor, p)
	if err != nil {
		return nil, err
	}
	ids := make([]ir.NodeAggregateID, 0, len(anchors))
	for _, anc := range anchors {
		id, err := a.aggregateOf(ctx, anc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return mergeIDs(nil, ids), nil
}

// mergeIDs returns the sorted union of both lists.
func mergeIDs(base, add []ir.NodeAggregateID) []ir.NodeAggregateID {
	seen := make(map[ir.NodeAggregateID]bool, len(base)+len(add))
	var result []ir.NodeAggregateID
	for _, list := range [][]ir.NodeAggregateID{base, add} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				result = append(result, id)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func withoutIDs(base, drop []ir.NodeAggregateID) []ir.NodeAggregateID {
	dropped := make(map[ir.NodeAggregateID]bool, len(drop))
	for _, id := range drop {
		dropped[id] = true
	}
	var result []ir.NodeAggregateID
	for _, id := range base {
		if !dropped[id] {
			result = append(result, id)
		}
	}
	return result
}

type restriction struct {
	origin   ir.NodeAggregateID
	affected []ir.NodeAggregateID
}

func (a *applier) restrictionsAt(ctx context.Context, cs ir.ContentStreamID, p dimension.DimensionSpacePoint) ([]restriction, error) {
	rows, err := a.tx.QueryContext(ctx, `
		SELECT origin_node_aggregate_id, affected_node_aggregate_ids
		FROM restriction_hyperrelation
		WHERE content_stream_id = ? AND dimension_space_point_hash = ?
		ORDER BY origin_node_aggregate_id`, cs, p.Hash())
	if err != nil {
		return nil, fmt.Errorf("load restrictions: %w", err)
	}
	defer rows.Close()
	var result []restriction
	for rows.Next() {
		var origin, affected string
		if err := rows.Scan(&origin, &affected); err != nil {
			return nil, err
		}
		r := restriction{origin: ir.NodeAggregateID(origin)}
		if err := json.Unmarshal([]byte(affected), &r.affected); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (a *applier) saveRestriction(ctx context.Context, cs ir.ContentStreamID, p dimension.DimensionSpacePoint, r restriction) error {
	data, err := json.Marshal(r.affected)
	if err != nil {
		return err
	}
	err = a.exec(ctx, `
		INSERT INTO restriction_hyperrelation VALUES (?, ?, ?, ?)
		ON CONFLICT (content_stream_id, dimension_space_point_hash, origin_node_aggregate_id)
		DO UPDATE SET affected_node_aggregate_ids = excluded.affected_node_aggregate_ids`,
		cs, p.Hash(), r.origin, string(data))
	if err != nil {
		return fmt.Errorf("save restriction of %s: %w", r.origin, err)
	}
	return nil
}

// inheritRestrictions adds ids to every restriction at p that already hides
// parent.
func (a *applier) inheritRestrictions(ctx context.Context, cs ir.ContentStreamID, p dimension.DimensionSpacePoint, parent ir.NodeAggregateID, ids []ir.NodeAggregateID) error {
	restrictions, err := a.restrictionsAt(ctx, cs, p)
	if err != nil {
		return err
	}
	for _, r := range restrictions {
		if r.origin != parent && !containsID(r.affected, parent) {
			continue
		}
		r.affected = mergeIDs(r.affected, ids)
		if err := a.saveRestriction(ctx, cs, p, r); err != nil {
			return err
		}
	}
	return nil
}

// detachRestrictions removes ids from restrictions at p that originate
// outside of them. Restrictions originating within ids stay intact.
func (a *applier) detachRestrictions(ctx context.Context, cs ir.ContentStreamID, p dimension.DimensionSpacePoint, ids []ir.NodeAggregateID) error {
	restrictions, err := a.restrictionsAt(ctx, cs, p)
	if err != nil {
		return err
	}
	for _, r := range restrictions {
		if containsID(ids, r.origin) {
			continue
		}
		remaining := withoutIDs(r.affected, ids)
		if len(remaining) == len(r.affected) {
			continue
		}
		r.affected = remaining
		if err := a.saveRestriction(ctx, cs, p, r); err != nil {
			return err
		}
	}
	return nil
}

// dropRestrictions removes ids from every restriction at p, deleting the
// restrictions originating at one of them.
func (a *applier) dropRestrictions(ctx context.Context, cs ir.ContentStreamID, p dimension.DimensionSpacePoint, ids []ir.NodeAggregateID) error {
	restrictions, err := a.restrictionsAt(ctx, cs, p)
	if err != nil {
		return err
	}
	for _, r := range restrictions {
		if containsID(ids, r.origin) {
			err := a.exec(ctx, `
				DELETE FROM restriction_hyperrelation
				WHERE content_stream_id = ? AND dimension_space_point_hash = ? AND origin_node_aggregate_id = ?`,
				cs, p.Hash(), r.origin)
			if err != nil {
				return fmt.Errorf("delete restriction of %s: %w", r.origin, err)
			}
			continue
		}
		remaining := withoutIDs(r.affected, ids)
		if len(remaining) == len(r.affected) {
			continue
		}
		r.affected = remaining
		if err := a.saveRestriction(ctx, cs, p, r); err != nil {
			return err
		}
	}
	return nil
}

func containsID(ids []ir.NodeAggregateID, id ir.NodeAggregateID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// collectGarbage deletes node rows no hierarchy edge points to, then the
// references and edges hanging off them.
func (a *applier) collectGarbage(ctx context.Context) error {
	statements := []string{
		`DELETE FROM node WHERE relation_anchor_point NOT IN (
			SELECT c.value FROM hierarchy_hyperrelation h, json_each(h.child_relation_anchor_points) c
		)`,
		`DELETE FROM reference_relation WHERE source_relation_anchor_point NOT IN (
			SELECT relation_anchor_point FROM node
		)`,
		`DELETE FROM hierarchy_hyperrelation WHERE parent_relation_anchor_point != 'ROOT'
			AND parent_relation_anchor_point NOT IN (SELECT relation_anchor_point FROM node)`,
	}
	for _, stmt := range statements {
		if err := a.exec(ctx, stmt); err != nil {
			return fmt.Errorf("collect garbage: %w", err)
		}
	}
	return nil
}
