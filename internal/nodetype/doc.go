// Package nodetype holds the resolved node type schema: properties and
// their write scopes, references, tethered children and child constraints.
//
// Node types are declared in configuration (see internal/config) and
// resolved once by NewManager. Command handlers consult the Manager to
// validate structure and to convert property values before emitting events.
package nodetype
