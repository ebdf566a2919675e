// Package store provides SQLite-backed durable storage for the content
// graph: the event log and the tables the projections fold it into.
//
// # Event log
//
//   - One append-only stream per content stream or workspace
//     ("ContentStream:<id>", "Workspace:<name>"), versions 0-based.
//   - A global sequence_number orders all events; projections track the
//     last sequence number they applied in projection_checkpoints.
//   - Append checks an ExpectedVersion (ANY, NO_STREAM, STREAM_EXISTS or an
//     exact version) inside its transaction and returns *ConcurrencyError
//     on mismatch.
//
// # Projection tables
//
// node, hierarchy_hyperrelation, reference_relation and
// restriction_hyperrelation hold the hypergraph; content_streams and
// workspaces hold the lifecycle read model. They are created here so a
// single schema version covers the whole database, and written only by
// internal/projection.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - casefold(text): SQL function for case-insensitive comparisons
package store
