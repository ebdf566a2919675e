package subgraph

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
	"github.com/roach88/contentgraph/internal/queryir"
	"github.com/roach88/contentgraph/internal/querysql"
)

// nodeColumns are the node row columns in scanNode order.
const nodeColumns = `n.relation_anchor_point, n.node_aggregate_id, n.origin_dimension_space_point,
	n.node_type_name, n.classification, n.node_name, n.properties`

// sqlBuilder keeps SQL text and its positional arguments in step.
type sqlBuilder struct {
	sb   strings.Builder
	args []any
}

func (b *sqlBuilder) write(sql string, args ...any) {
	b.sb.WriteString(sql)
	b.args = append(b.args, args...)
}

func (b *sqlBuilder) String() string {
	return b.sb.String()
}

// nodeTypes appends include/exclude conditions on alias.node_type_name.
func (b *sqlBuilder) nodeTypes(m *nodetype.Manager, alias string, c NodeTypeCriteria) {
	if len(c.Include) > 0 {
		names := expandNodeTypes(m, c.Include)
		b.write(fmt.Sprintf(" AND %s.node_type_name IN (%s)", alias, placeholders(len(names))), names...)
	}
	if len(c.Exclude) > 0 {
		names := expandNodeTypes(m, c.Exclude)
		b.write(fmt.Sprintf(" AND %s.node_type_name NOT IN (%s)", alias, placeholders(len(names))), names...)
	}
}

// criteria appends a compiled property criterion over column.
func (b *sqlBuilder) criteria(column string, c queryir.Criterion) error {
	if c == nil {
		return nil
	}
	where, params, err := querysql.NewSQLCompiler(column).Compile(c)
	if err != nil {
		return err
	}
	b.write(" AND ("+where+")", params...)
	return nil
}

func (b *sqlBuilder) paginate(p *Pagination) {
	if p == nil || (p.Limit <= 0 && p.Offset <= 0) {
		return
	}
	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	b.write(" LIMIT ? OFFSET ?", limit, p.Offset)
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

type scanner interface {
	Scan(dest ...any) error
}

// scanNode reads nodeColumns, preceded by any extra destinations.
func scanNode(row scanner, extra ...any) (*Node, error) {
	var (
		n                  Node
		origin, properties string
		classification     string
	)
	dest := append(extra, &n.anchor, &n.AggregateID, &origin, &n.NodeTypeName, &classification, &n.Name, &properties)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	point, err := dimension.ParseDimensionSpacePoint(origin)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.AggregateID, err)
	}
	n.OriginDimensionSpacePoint = dimension.OriginFromPoint(point)
	n.Classification = ir.NodeAggregateClassification(classification)
	n.Properties, err = ir.UnmarshalProperties(properties)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.AggregateID, err)
	}
	return &n, nil
}

func collectNodes(rows *sql.Rows, fill func(*Node)) ([]*Node, error) {
	defer rows.Close()
	nodes := []*Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		fill(n)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}
