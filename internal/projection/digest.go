package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/contentgraph/internal/ir"
)

// StateDigest hashes the logical content of every read model. Relation
// anchors are replaced by "<aggregate>@<origin hash>" so two projections of
// the same log digest equally however their rows were laid out.
func (p *Projection) StateDigest(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := digestState(ctx, p.store.DB())
	if err != nil {
		return "", fmt.Errorf("state digest: %w", err)
	}
	return ir.StateDigest(state)
}

func digestState(ctx context.Context, db *sql.DB) (map[string]any, error) {
	references := map[string][]any{}
	rows, err := queryText(ctx, db, `
		SELECT source_relation_anchor_point, name, position, target_node_aggregate_id, properties
		FROM reference_relation ORDER BY source_relation_anchor_point, name, position`)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		references[r[0]] = append(references[r[0]], strings.Join(r[1:], "|"))
	}

	type node struct {
		key  string
		desc map[string]any
	}
	nodes := map[string]node{}
	rows, err = queryText(ctx, db, `
		SELECT relation_anchor_point, node_aggregate_id, origin_dimension_space_point_hash,
		       node_type_name, classification, node_name, properties
		FROM node`)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		refs := references[r[0]]
		if refs == nil {
			refs = []any{}
		}
		nodes[r[0]] = node{
			key: r[1] + "@" + r[2],
			desc: map[string]any{
				"type":           r[3],
				"classification": r[4],
				"name":           r[5],
				"properties":     r[6],
				"references":     refs,
			},
		}
	}
	keyOf := func(anchor string) string {
		if n, ok := nodes[anchor]; ok {
			return n.key
		}
		return anchor
	}

	streams := map[string]any{}
	rows, err = queryText(ctx, db, `
		SELECT content_stream_id, source_content_stream_id, source_version, state, closed, removed, version
		FROM content_streams`)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		streams[r[0]] = map[string]any{
			"source":        r[1],
			"sourceVersion": r[2],
			"state":         r[3],
			"closed":        r[4],
			"removed":       r[5],
			"version":       r[6],
			"edges":         map[string]any{},
			"nodes":         map[string]any{},
			"restrictions":  map[string]any{},
		}
	}
	stream := func(cs string) map[string]any {
		s, ok := streams[cs].(map[string]any)
		if !ok {
			s = map[string]any{"edges": map[string]any{}, "nodes": map[string]any{}, "restrictions": map[string]any{}}
			streams[cs] = s
		}
		return s
	}

	rows, err = queryText(ctx, db, `
		SELECT content_stream_id, dimension_space_point_hash, parent_relation_anchor_point, child_relation_anchor_points
		FROM hierarchy_hyperrelation`)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		var children []string
		if err := json.Unmarshal([]byte(r[3]), &children); err != nil {
			return nil, err
		}
		s := stream(r[0])
		keys := make([]any, len(children))
		for i, child := range children {
			keys[i] = keyOf(child)
			if n, ok := nodes[child]; ok {
				s["nodes"].(map[string]any)[n.key] = n.desc
			}
		}
		s["edges"].(map[string]any)[keyOf(r[2])+"|"+r[1]] = keys
	}

	rows, err = queryText(ctx, db, `
		SELECT content_stream_id, dimension_space_point_hash, origin_node_aggregate_id, affected_node_aggregate_ids
		FROM restriction_hyperrelation`)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		stream(r[0])["restrictions"].(map[string]any)[r[2]+"|"+r[1]] = r[3]
	}

	workspaces := map[string]any{}
	rows, err = queryText(ctx, db, `
		SELECT workspace_name, base_workspace_name, title, description, owner, current_content_stream_id, status
		FROM workspaces`)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		workspaces[r[0]] = map[string]string{
			"base":          r[1],
			"title":         r[2],
			"description":   r[3],
			"owner":         r[4],
			"contentStream": r[5],
			"status":        r[6],
		}
	}

	return map[string]any{
		"contentStreams": streams,
		"workspaces":     workspaces,
	}, nil
}

// queryText reads every column as text.
func queryText(ctx context.Context, db *sql.DB, query string) ([][]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result [][]string
	for rows.Next() {
		row := make([]string, len(columns))
		dest := make([]any, len(columns))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
