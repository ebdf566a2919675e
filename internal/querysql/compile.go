package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/contentgraph/internal/queryir"
)

// SQLCompiler compiles property-value criteria to a parameterized SQLite
// WHERE fragment over a JSON properties column.
//
// CRITICAL: All values and JSON paths are parameterized (never interpolated).
// CRITICAL: Case-insensitive comparisons rely on the casefold SQL function
// that the store's driver installs on every connection.
type SQLCompiler struct {
	// PropertiesColumn is the SQL expression holding the serialized
	// property values, e.g. "n.properties".
	PropertiesColumn string
}

// NewSQLCompiler creates a compiler for the given properties column.
func NewSQLCompiler(column string) *SQLCompiler {
	return &SQLCompiler{PropertiesColumn: column}
}

// PropertyValuePath returns the JSON path of a property's raw value.
func PropertyValuePath(name string) string {
	return "$." + name + ".value"
}

// Compile converts a criterion to a WHERE fragment.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(criterion queryir.Criterion) (string, []any, error) {
	if criterion == nil {
		return "1 = 1", nil, nil
	}
	if err := queryir.Validate(criterion); err != nil {
		return "", nil, fmt.Errorf("invalid criteria: %w", err)
	}
	return c.compileCriterion(criterion)
}

// OrderBy returns an ORDER BY term sorting by a property value.
func (c *SQLCompiler) OrderBy(property string, descending bool) (string, []any) {
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	return fmt.Sprintf("json_extract(%s, ?) %s", c.PropertiesColumn, dir), []any{PropertyValuePath(property)}
}

func (c *SQLCompiler) compileCriterion(criterion queryir.Criterion) (string, []any, error) {
	switch crit := criterion.(type) {
	case queryir.Comparison:
		return c.compileComparison(crit)
	case *queryir.Comparison:
		return c.compileComparison(*crit)
	case queryir.And:
		return c.compileJunction(crit.Criteria, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(crit.Criteria, " OR ", "1 = 0")
	case queryir.Not:
		sql, params, err := c.compileCriterion(crit.Criterion)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported criterion type: %T", criterion)
	}
}

func (c *SQLCompiler) compileJunction(criteria []queryir.Criterion, sep, empty string) (string, []any, error) {
	if len(criteria) == 0 {
		return empty, nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, sub := range criteria {
		sql, params, err := c.compileCriterion(sub)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, sep), allParams, nil
}

// compileComparison compiles one comparison. A missing property yields
// NULL, which never matches; NOT keeps it unmatched as well.
func (c *SQLCompiler) compileComparison(cmp queryir.Comparison) (string, []any, error) {
	path := PropertyValuePath(cmp.PropertyName)
	value := cmp.Value
	extract := fmt.Sprintf("json_extract(%s, ?)", c.PropertiesColumn)
	placeholder := "?"

	if s, ok := value.(string); ok && !cmp.CaseSensitive {
		extract = "casefold(" + extract + ")"
		placeholder = "casefold(?)"
		value = s
	}

	switch cmp.Operator {
	case queryir.OpEquals:
		return extract + " = " + placeholder, []any{path, value}, nil
	case queryir.OpNotEquals:
		return fmt.Sprintf("json_extract(%s, ?) IS NOT NULL AND %s != %s", c.PropertiesColumn, extract, placeholder),
			[]any{path, path, value}, nil
	case queryir.OpGreaterThan, queryir.OpGreaterThanOrEqual, queryir.OpLessThan, queryir.OpLessThanOrEqual:
		return fmt.Sprintf("%s %s %s", extract, cmp.Operator, placeholder), []any{path, value}, nil
	}

	// String operators. The empty needle matches every string value.
	if value == "" {
		return fmt.Sprintf("json_type(%s, ?) = 'text'", c.PropertiesColumn), []any{path}, nil
	}
	switch cmp.Operator {
	case queryir.OpStartsWith:
		return fmt.Sprintf("instr(%s, %s) = 1", extract, placeholder), []any{path, value}, nil
	case queryir.OpContains:
		return fmt.Sprintf("instr(%s, %s) > 0", extract, placeholder), []any{path, value}, nil
	case queryir.OpEndsWith:
		return fmt.Sprintf("substr(%s, -length(%s)) = %s", extract, placeholder, placeholder),
			[]any{path, value, value}, nil
	}
	return "", nil, fmt.Errorf("unsupported operator: %s", cmp.Operator)
}
