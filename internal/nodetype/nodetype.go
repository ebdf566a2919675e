package nodetype

import (
	"sort"

	"github.com/roach88/contentgraph/internal/ir"
)

// PropertyScope decides which dimension variants of a node aggregate a
// property write reaches.
type PropertyScope string

const (
	// ScopeNode writes only to the origin the command names.
	ScopeNode PropertyScope = "node"
	// ScopeSpecializations writes to the origin and every occupied
	// specialization of it.
	ScopeSpecializations PropertyScope = "specializations"
	// ScopeNodeAggregate writes to every occupied origin.
	ScopeNodeAggregate PropertyScope = "nodeAggregate"
)

// ValidScopes lists the scopes accepted at load time.
var ValidScopes = []PropertyScope{ScopeNode, ScopeSpecializations, ScopeNodeAggregate}

// IsValid reports whether s is a known scope. The empty scope is valid and
// means ScopeNode.
func (s PropertyScope) IsValid() bool {
	if s == "" {
		return true
	}
	for _, v := range ValidScopes {
		if s == v {
			return true
		}
	}
	return false
}

// OrDefault returns ScopeNode for the empty scope.
func (s PropertyScope) OrDefault() PropertyScope {
	if s == "" {
		return ScopeNode
	}
	return s
}

// Property types understood by the converter.
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeBool     = "bool"
	TypeDateTime = "DateTime"
	TypeArray    = "array"
	TypeObject   = "object"
)

var validPropertyTypes = map[string]bool{
	TypeString: true, TypeInt: true, TypeFloat: true, TypeBool: true,
	TypeDateTime: true, TypeArray: true, TypeObject: true,
}

// PropertyDefinition declares one property of a node type or reference.
type PropertyDefinition struct {
	Type    string
	Scope   PropertyScope
	Default any
}

// ReferenceDefinition declares a named reference.
type ReferenceDefinition struct {
	Scope PropertyScope
	// MaxItems limits the number of targets; 0 means unlimited.
	MaxItems int
	// Constraints restrict target node types, keyed by type name or "*".
	Constraints map[string]bool
	Properties  map[string]PropertyDefinition
}

// TetheredChild declares a child node created together with its parent.
type TetheredChild struct {
	Name        ir.NodeName
	Type        ir.NodeTypeName
	Constraints map[string]bool
}

// Declaration is a node type as written in configuration, before
// inheritance is resolved.
type Declaration struct {
	Name        ir.NodeTypeName
	SuperTypes  []ir.NodeTypeName
	Abstract    bool
	Root        bool
	Properties  map[string]PropertyDefinition
	References  map[string]ReferenceDefinition
	ChildNodes  []TetheredChild
	Constraints map[string]bool
}

// NodeType is a resolved node type: everything inherited from super types
// is merged in.
type NodeType struct {
	Name             ir.NodeTypeName
	DeclaredSupers   []ir.NodeTypeName
	Abstract         bool
	Root             bool
	Properties       map[string]PropertyDefinition
	References       map[string]ReferenceDefinition
	TetheredChildren []TetheredChild
	Constraints      map[string]bool

	// distances maps this type and every super type to its inheritance
	// distance (0 for the type itself).
	distances map[ir.NodeTypeName]int
}

// IsOfType reports whether nt is name or inherits from it.
func (nt *NodeType) IsOfType(name ir.NodeTypeName) bool {
	_, ok := nt.distances[name]
	return ok
}

// PropertyNames returns the declared property names, sorted.
func (nt *NodeType) PropertyNames() []string {
	names := make([]string, 0, len(nt.Properties))
	for name := range nt.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Property looks up a property declaration.
func (nt *NodeType) Property(name string) (PropertyDefinition, bool) {
	def, ok := nt.Properties[name]
	return def, ok
}

// Reference looks up a reference declaration.
func (nt *NodeType) Reference(name string) (ReferenceDefinition, bool) {
	def, ok := nt.References[name]
	return def, ok
}

// TetheredChild looks up a tethered child declaration by name.
func (nt *NodeType) TetheredChild(name ir.NodeName) (TetheredChild, bool) {
	for _, c := range nt.TetheredChildren {
		if c.Name == name {
			return c, true
		}
	}
	return TetheredChild{}, false
}

// AllowsChild reports whether child may be created directly below a node
// of this type.
func (nt *NodeType) AllowsChild(child *NodeType) bool {
	return allowedByConstraints(child, nt.Constraints)
}

// AllowsGrandchild reports whether nodeType may be created below this
// type's tethered child childName. The tethered child's own declared
// constraints override those of its node type.
func (nt *NodeType) AllowsGrandchild(childName ir.NodeName, childType *NodeType, nodeType *NodeType) bool {
	tethered, ok := nt.TetheredChild(childName)
	if !ok {
		return false
	}
	constraints := make(map[string]bool, len(childType.Constraints)+len(tethered.Constraints))
	for k, v := range childType.Constraints {
		constraints[k] = v
	}
	for k, v := range tethered.Constraints {
		constraints[k] = v
	}
	return allowedByConstraints(nodeType, constraints)
}

// AllowsTarget reports whether target may be referenced through def.
func (def ReferenceDefinition) AllowsTarget(target *NodeType) bool {
	return allowedByConstraints(target, def.Constraints)
}

// allowedByConstraints resolves a constraint map for candidate.
//
// An empty map allows everything. An exact entry for the candidate's name
// wins; otherwise the closest constrained super type decides, with true
// winning ties only when strictly closer; otherwise "*" decides; otherwise
// the candidate is disallowed.
func allowedByConstraints(candidate *NodeType, constraints map[string]bool) bool {
	if len(constraints) == 0 {
		return true
	}
	if allowed, ok := constraints[string(candidate.Name)]; ok {
		return allowed
	}

	closestTrue, closestFalse := -1, -1
	for name, allowed := range constraints {
		if name == "*" {
			continue
		}
		distance, ok := candidate.distances[ir.NodeTypeName(name)]
		if !ok {
			continue
		}
		if allowed && (closestTrue == -1 || distance < closestTrue) {
			closestTrue = distance
		}
		if !allowed && (closestFalse == -1 || distance < closestFalse) {
			closestFalse = distance
		}
	}
	switch {
	case closestTrue != -1 && closestFalse != -1:
		return closestTrue < closestFalse
	case closestFalse != -1:
		return false
	case closestTrue != -1:
		return true
	}

	if allowed, ok := constraints["*"]; ok {
		return allowed
	}
	return false
}
