package queryir

// Criterion is a filter over node property values.
//
// This is a sealed interface - only types in this package implement it.
type Criterion interface {
	criterionNode() // Marker method - seals interface to this package
}

// Operator is a comparison operator.
type Operator string

const (
	OpEquals             Operator = "="
	OpNotEquals          Operator = "!="
	OpStartsWith         Operator = "^="
	OpEndsWith           Operator = "$="
	OpContains           Operator = "*="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
)

// IsStringOnly reports whether the operator only applies to string values.
func (o Operator) IsStringOnly() bool {
	return o == OpStartsWith || o == OpEndsWith || o == OpContains
}

// IsOrdering reports whether the operator compares by order.
func (o Operator) IsOrdering() bool {
	return o == OpGreaterThan || o == OpGreaterThanOrEqual || o == OpLessThan || o == OpLessThanOrEqual
}

func (o Operator) valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpStartsWith, OpEndsWith, OpContains,
		OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	}
	return false
}

// Comparison compares one property's value with a literal.
//
// Value is a string, int64, float64 or bool. Nodes without the property
// never match, not even for OpNotEquals.
//
// The zero value of CaseSensitive means case-insensitive; use the
// constructors below to get the usual case-sensitive comparison.
type Comparison struct {
	PropertyName  string
	Operator      Operator
	Value         any
	CaseSensitive bool
}

func (Comparison) criterionNode() {}

// And matches when all criteria match. An empty And matches everything.
type And struct {
	Criteria []Criterion
}

func (And) criterionNode() {}

// Or matches when any criterion matches. An empty Or matches nothing.
type Or struct {
	Criteria []Criterion
}

func (Or) criterionNode() {}

// Not negates a criterion.
type Not struct {
	Criterion Criterion
}

func (Not) criterionNode() {}

func compare(name string, op Operator, value any) Comparison {
	return Comparison{PropertyName: name, Operator: op, Value: normalizeValue(value), CaseSensitive: true}
}

func Equals(name string, value any) Comparison    { return compare(name, OpEquals, value) }
func NotEquals(name string, value any) Comparison { return compare(name, OpNotEquals, value) }
func StartsWith(name, value string) Comparison    { return compare(name, OpStartsWith, value) }
func EndsWith(name, value string) Comparison      { return compare(name, OpEndsWith, value) }
func Contains(name, value string) Comparison      { return compare(name, OpContains, value) }
func GreaterThan(name string, value any) Comparison {
	return compare(name, OpGreaterThan, value)
}
func GreaterThanOrEqual(name string, value any) Comparison {
	return compare(name, OpGreaterThanOrEqual, value)
}
func LessThan(name string, value any) Comparison { return compare(name, OpLessThan, value) }
func LessThanOrEqual(name string, value any) Comparison {
	return compare(name, OpLessThanOrEqual, value)
}

// IgnoreCase returns a case-insensitive copy of c.
func (c Comparison) IgnoreCase() Comparison {
	c.CaseSensitive = false
	return c
}

// AllOf combines criteria with AND, flattening nested Ands.
func AllOf(criteria ...Criterion) Criterion {
	var flat []Criterion
	for _, c := range criteria {
		if and, ok := c.(And); ok {
			flat = append(flat, and.Criteria...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return And{Criteria: flat}
}

// AnyOf combines criteria with OR, flattening nested Ors.
func AnyOf(criteria ...Criterion) Criterion {
	var flat []Criterion
	for _, c := range criteria {
		if or, ok := c.(Or); ok {
			flat = append(flat, or.Criteria...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return Or{Criteria: flat}
}

// Negate wraps c in Not, unwrapping double negation.
func Negate(c Criterion) Criterion {
	if not, ok := c.(Not); ok {
		return not.Criterion
	}
	return Not{Criterion: c}
}

// normalizeValue widens Go integer and float kinds to int64 and float64.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	}
	return v
}
