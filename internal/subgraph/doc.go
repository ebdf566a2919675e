// Package subgraph is the read side of the content graph.
//
// ContentGraph answers questions about node aggregates within one content
// stream across all dimension space points; command handlers use it to
// check constraints. ContentSubgraph is a view of one content stream at one
// dimension space point, optionally hiding disabled nodes; it is what
// rendering and queries read.
//
// Both only read the hypergraph tables maintained by the projection
// package. Every query is parameterized and ordered deterministically.
package subgraph
