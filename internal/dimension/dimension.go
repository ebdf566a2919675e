package dimension

import (
	"fmt"
	"sort"
	"strings"
)

// ValueConfig declares one dimension value and, optionally, the value it
// falls back to.
type ValueConfig struct {
	Value          string
	Generalization string // "" for a root value
}

// ContentDimensionValue is one node of a dimension's value tree.
type ContentDimensionValue struct {
	Value           string
	Generalization  string
	Specializations []string
	Depth           int
}

// ContentDimension is a named axis of variation (e.g. language) whose
// values form a forest: every value has at most one generalization.
type ContentDimension struct {
	Name     string
	values   map[string]*ContentDimensionValue
	order    []string
	maxDepth int
}

// NewContentDimension builds a dimension from its declared values.
//
// Returns a *ConfigError if a value is declared twice, a generalization
// refers to an unknown value, or generalizations form a cycle.
func NewContentDimension(name string, configs []ValueConfig) (*ContentDimension, error) {
	if name == "" {
		return nil, &ConfigError{Message: "dimension name must not be empty"}
	}
	if len(configs) == 0 {
		return nil, &ConfigError{Dimension: name, Message: "dimension must declare at least one value"}
	}

	d := &ContentDimension{
		Name:   name,
		values: make(map[string]*ContentDimensionValue, len(configs)),
	}
	for _, c := range configs {
		if c.Value == "" {
			return nil, &ConfigError{Dimension: name, Message: "dimension value must not be empty"}
		}
		if _, exists := d.values[c.Value]; exists {
			return nil, &ConfigError{Dimension: name, Message: fmt.Sprintf("value %q declared twice", c.Value)}
		}
		d.values[c.Value] = &ContentDimensionValue{Value: c.Value, Generalization: c.Generalization}
		d.order = append(d.order, c.Value)
	}

	graph := make(generalizationGraph, len(configs))
	for _, c := range configs {
		graph[c.Value] = nil
		if c.Generalization == "" {
			continue
		}
		if _, ok := d.values[c.Generalization]; !ok {
			return nil, &ConfigError{
				Dimension: name,
				Message:   fmt.Sprintf("value %q generalizes to unknown value %q", c.Value, c.Generalization),
			}
		}
		graph[c.Value] = []string{c.Generalization}
	}
	if cycles := findCycles(graph); len(cycles) > 0 {
		return nil, &ConfigError{
			Dimension: name,
			Message:   fmt.Sprintf("generalization cycle: %s", strings.Join(cycles[0], " -> ")),
		}
	}

	for _, v := range d.order {
		value := d.values[v]
		if value.Generalization != "" {
			parent := d.values[value.Generalization]
			parent.Specializations = append(parent.Specializations, v)
		}
	}
	for _, v := range d.order {
		value := d.values[v]
		depth := 0
		for g := value.Generalization; g != ""; g = d.values[g].Generalization {
			depth++
		}
		value.Depth = depth
		if depth > d.maxDepth {
			d.maxDepth = depth
		}
	}

	return d, nil
}

// Values returns the values in declaration order.
func (d *ContentDimension) Values() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Value looks up a value.
func (d *ContentDimension) Value(v string) (*ContentDimensionValue, bool) {
	value, ok := d.values[v]
	return value, ok
}

// MaxDepth is the depth of the deepest value (roots have depth 0).
func (d *ContentDimension) MaxDepth() int {
	return d.maxDepth
}

// IsAncestorOrSelf reports whether ancestor is value itself or one of its
// (transitive) generalizations.
func (d *ContentDimension) IsAncestorOrSelf(ancestor, value string) bool {
	for v := value; v != ""; {
		if v == ancestor {
			return true
		}
		current, ok := d.values[v]
		if !ok {
			return false
		}
		v = current.Generalization
	}
	return false
}

// Source is the ordered catalog of content dimensions. Earlier dimensions
// have higher priority when weighing variants.
type Source struct {
	dimensions []*ContentDimension
	byName     map[string]*ContentDimension
}

// NewSource creates a dimension source. Dimension names must be unique.
func NewSource(dimensions ...*ContentDimension) (*Source, error) {
	s := &Source{byName: make(map[string]*ContentDimension, len(dimensions))}
	for _, d := range dimensions {
		if _, exists := s.byName[d.Name]; exists {
			return nil, &ConfigError{Dimension: d.Name, Message: "dimension declared twice"}
		}
		s.byName[d.Name] = d
		s.dimensions = append(s.dimensions, d)
	}
	return s, nil
}

// Dimensions returns the dimensions ordered by priority.
func (s *Source) Dimensions() []*ContentDimension {
	out := make([]*ContentDimension, len(s.dimensions))
	copy(out, s.dimensions)
	return out
}

// Dimension looks up a dimension by name.
func (s *Source) Dimension(name string) (*ContentDimension, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// AllowedSubspace returns the cartesian product of all dimension values.
// With no dimensions configured it contains only the empty point.
func (s *Source) AllowedSubspace() DimensionSpacePointSet {
	combinations := []map[string]string{{}}
	for _, d := range s.dimensions {
		var next []map[string]string
		for _, partial := range combinations {
			for _, v := range d.order {
				combined := make(map[string]string, len(partial)+1)
				for k, pv := range partial {
					combined[k] = pv
				}
				combined[d.Name] = v
				next = append(next, combined)
			}
		}
		combinations = next
	}

	points := make([]DimensionSpacePoint, len(combinations))
	for i, c := range combinations {
		points[i] = NewDimensionSpacePoint(c)
	}
	return NewDimensionSpacePointSet(points...)
}

// ValidatePoint checks that p assigns a known value to every dimension and
// nothing else.
func (s *Source) ValidatePoint(p DimensionSpacePoint) error {
	coordinates := p.Coordinates()
	if len(coordinates) != len(s.dimensions) {
		return &PointNotFoundError{Point: p, Reason: "coordinates do not match the configured dimensions"}
	}
	names := make([]string, 0, len(coordinates))
	for name := range coordinates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d, ok := s.byName[name]
		if !ok {
			return &PointNotFoundError{Point: p, Reason: fmt.Sprintf("unknown dimension %q", name)}
		}
		if _, ok := d.values[coordinates[name]]; !ok {
			return &PointNotFoundError{Point: p, Reason: fmt.Sprintf("unknown value %q in dimension %q", coordinates[name], name)}
		}
	}
	return nil
}
