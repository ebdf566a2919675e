// Package projection folds the event log into the content graph tables.
//
// One catch-up projection maintains three read models in the same
// transaction per event:
//
//   - the hypergraph (node, hierarchy_hyperrelation, reference_relation,
//     restriction_hyperrelation), read by package subgraph;
//   - content stream lifecycle (content_streams);
//   - workspaces (workspaces), both read by package workspace.
//
// COPY ON WRITE:
//
// Forking a content stream copies only its hyperedges. Node rows stay
// shared between streams until one of them writes to a node; the writer
// then gets a private copy under a new relation anchor point.
//
// PROGRESS:
//
// The checkpoint "contentgraph" holds the last applied sequence number and
// is saved in each event's transaction, so a crash never applies an event
// twice. Anchors are derived from sequence numbers, so replaying the log
// after Reset rebuilds byte-identical tables.
package projection
