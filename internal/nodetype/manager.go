package nodetype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/contentgraph/internal/ir"
)

// LoadError reports an invalid node type declaration.
type LoadError struct {
	NodeType ir.NodeTypeName
	Field    string
	Message  string
}

func (e *LoadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("node type %q: %s: %s", e.NodeType, e.Field, e.Message)
	}
	return fmt.Sprintf("node type %q: %s", e.NodeType, e.Message)
}

// NotFoundError is returned when a node type name is not configured.
type NotFoundError struct {
	Name ir.NodeTypeName
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node type %q not found", e.Name)
}

// Manager holds every resolved node type. It is built once from
// configuration and read-only thereafter.
type Manager struct {
	types map[ir.NodeTypeName]*NodeType
}

// NewManager resolves inheritance for the given declarations and validates
// the result. All errors found are reported together.
func NewManager(decls []Declaration) (*Manager, error) {
	byName := make(map[ir.NodeTypeName]Declaration, len(decls))
	var errs []error
	for _, d := range decls {
		if err := d.Name.Validate(); err != nil {
			errs = append(errs, &LoadError{NodeType: d.Name, Message: err.Error()})
			continue
		}
		if _, exists := byName[d.Name]; exists {
			errs = append(errs, &LoadError{NodeType: d.Name, Message: "declared twice"})
			continue
		}
		byName[d.Name] = d
	}

	for _, name := range sortedNames(byName) {
		for _, super := range byName[name].SuperTypes {
			if _, ok := byName[super]; !ok {
				errs = append(errs, &LoadError{
					NodeType: name,
					Field:    "superTypes",
					Message:  fmt.Sprintf("unknown super type %q", super),
				})
			}
		}
	}
	if len(errs) > 0 {
		return nil, joinLoadErrors(errs)
	}

	if cycle := findInheritanceCycle(byName); cycle != nil {
		names := make([]string, len(cycle))
		for i, n := range cycle {
			names[i] = string(n)
		}
		return nil, &LoadError{
			NodeType: cycle[0],
			Field:    "superTypes",
			Message:  "inheritance cycle: " + strings.Join(names, " -> "),
		}
	}

	m := &Manager{types: make(map[ir.NodeTypeName]*NodeType, len(byName))}
	for _, name := range sortedNames(byName) {
		m.resolve(name, byName)
	}

	for _, name := range sortedNames(byName) {
		errs = append(errs, m.validate(m.types[name])...)
	}
	if len(errs) > 0 {
		return nil, joinLoadErrors(errs)
	}
	return m, nil
}

func (m *Manager) resolve(name ir.NodeTypeName, decls map[ir.NodeTypeName]Declaration) *NodeType {
	if nt, ok := m.types[name]; ok {
		return nt
	}
	d := decls[name]
	nt := &NodeType{
		Name:           name,
		DeclaredSupers: append([]ir.NodeTypeName(nil), d.SuperTypes...),
		Abstract:       d.Abstract,
		Root:           d.Root,
		Properties:     make(map[string]PropertyDefinition),
		References:     make(map[string]ReferenceDefinition),
		Constraints:    make(map[string]bool),
		distances:      map[ir.NodeTypeName]int{name: 0},
	}

	// Super types merge in declaration order; later ones and the type's own
	// declaration override.
	for _, superName := range d.SuperTypes {
		super := m.resolve(superName, decls)
		nt.Root = nt.Root || super.Root
		for k, v := range super.Properties {
			nt.Properties[k] = v
		}
		for k, v := range super.References {
			nt.References[k] = v
		}
		for k, v := range super.Constraints {
			nt.Constraints[k] = v
		}
		for _, c := range super.TetheredChildren {
			nt.TetheredChildren = mergeTethered(nt.TetheredChildren, c)
		}
		for ancestor, distance := range super.distances {
			if current, ok := nt.distances[ancestor]; !ok || distance+1 < current {
				nt.distances[ancestor] = distance + 1
			}
		}
	}
	for k, v := range d.Properties {
		nt.Properties[k] = v
	}
	for k, v := range d.References {
		nt.References[k] = v
	}
	for k, v := range d.Constraints {
		nt.Constraints[k] = v
	}
	for _, c := range d.ChildNodes {
		nt.TetheredChildren = mergeTethered(nt.TetheredChildren, c)
	}

	m.types[name] = nt
	return nt
}

func mergeTethered(children []TetheredChild, c TetheredChild) []TetheredChild {
	for i, existing := range children {
		if existing.Name == c.Name {
			out := append([]TetheredChild(nil), children...)
			out[i] = c
			return out
		}
	}
	return append(children, c)
}

func (m *Manager) validate(nt *NodeType) []error {
	var errs []error
	for _, name := range nt.PropertyNames() {
		errs = append(errs, validateProperty(nt.Name, "properties."+name, nt.Properties[name])...)
	}

	refNames := make([]string, 0, len(nt.References))
	for name := range nt.References {
		refNames = append(refNames, name)
	}
	sort.Strings(refNames)
	for _, name := range refNames {
		ref := nt.References[name]
		field := "references." + name
		if !ref.Scope.IsValid() {
			errs = append(errs, &LoadError{NodeType: nt.Name, Field: field, Message: fmt.Sprintf("unknown scope %q", ref.Scope)})
		}
		if ref.MaxItems < 0 {
			errs = append(errs, &LoadError{NodeType: nt.Name, Field: field, Message: "maxItems must not be negative"})
		}
		for propName, prop := range ref.Properties {
			errs = append(errs, validateProperty(nt.Name, field+".properties."+propName, prop)...)
		}
	}

	for _, c := range nt.TetheredChildren {
		field := "childNodes." + string(c.Name)
		if err := c.Name.Validate(); err != nil {
			errs = append(errs, &LoadError{NodeType: nt.Name, Field: field, Message: err.Error()})
		}
		childType, ok := m.types[c.Type]
		if !ok {
			errs = append(errs, &LoadError{NodeType: nt.Name, Field: field, Message: fmt.Sprintf("unknown node type %q", c.Type)})
			continue
		}
		if childType.Abstract {
			errs = append(errs, &LoadError{NodeType: nt.Name, Field: field, Message: fmt.Sprintf("node type %q is abstract", c.Type)})
		}
	}
	return errs
}

func validateProperty(owner ir.NodeTypeName, field string, def PropertyDefinition) []error {
	var errs []error
	if !validPropertyTypes[def.Type] {
		errs = append(errs, &LoadError{NodeType: owner, Field: field, Message: fmt.Sprintf("unknown property type %q", def.Type)})
		return errs
	}
	if !def.Scope.IsValid() {
		errs = append(errs, &LoadError{NodeType: owner, Field: field, Message: fmt.Sprintf("unknown scope %q", def.Scope)})
	}
	if def.Default != nil {
		if _, err := ConvertValue(def.Type, def.Default); err != nil {
			errs = append(errs, &LoadError{NodeType: owner, Field: field, Message: "invalid default: " + err.Error()})
		}
	}
	return errs
}

// findInheritanceCycle returns the first super type cycle found, as a path
// that returns to its first type, or nil.
func findInheritanceCycle(decls map[ir.NodeTypeName]Declaration) []ir.NodeTypeName {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ir.NodeTypeName]int, len(decls))
	var path []ir.NodeTypeName

	var visit func(ir.NodeTypeName) []ir.NodeTypeName
	visit = func(name ir.NodeTypeName) []ir.NodeTypeName {
		switch state[name] {
		case visiting:
			for i, n := range path {
				if n == name {
					return append(append([]ir.NodeTypeName(nil), path[i:]...), name)
				}
			}
		case done:
			return nil
		}
		state[name] = visiting
		path = append(path, name)
		for _, super := range decls[name].SuperTypes {
			if cycle := visit(super); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range sortedNames(decls) {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}

func sortedNames(decls map[ir.NodeTypeName]Declaration) []ir.NodeTypeName {
	names := make([]ir.NodeTypeName, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// LoadErrors collects every problem found while loading node types.
type LoadErrors []error

func (e LoadErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e LoadErrors) Unwrap() []error {
	return e
}

func joinLoadErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return LoadErrors(errs)
}

// Get returns the node type with the given name.
func (m *Manager) Get(name ir.NodeTypeName) (*NodeType, error) {
	nt, ok := m.types[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return nt, nil
}

// Has reports whether a node type is configured.
func (m *Manager) Has(name ir.NodeTypeName) bool {
	_, ok := m.types[name]
	return ok
}

// All returns every node type sorted by name.
func (m *Manager) All() []*NodeType {
	out := make([]*NodeType, 0, len(m.types))
	for _, nt := range m.types {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SubTypes returns every non-abstract type that is of type name, including
// name itself.
func (m *Manager) SubTypes(name ir.NodeTypeName) []*NodeType {
	var out []*NodeType
	for _, nt := range m.All() {
		if !nt.Abstract && nt.IsOfType(name) {
			out = append(out, nt)
		}
	}
	return out
}
