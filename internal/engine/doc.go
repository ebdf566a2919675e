// Package engine is the command bus of the content repository.
//
// Engine.Handle runs a command handler against the projected state and
// appends the resulting events to the event store:
//
//  1. handler.Handle validates the command and returns the events plus the
//     stream and expected version they must be appended with
//  2. commands spanning several streams (publish, rebase, partial publish)
//     commit their intermediate steps through a Committer that appends and
//     then catches the projection up, so each step reads the previous one
//  3. the final events are appended; an expected-version conflict re-runs
//     the handler against fresh state, at most MaxRetries times
//  4. the projection is notified; CommandResult.Block waits until the
//     commit is visible to readers
//
// The event store's expected-version check is the only serialization
// point. There is no lock around Handle.
//
// A Registry holds the engines of a process by content repository id. It
// is built once at startup; Registry.Open wires store, cache, projection
// and metrics from config.Env.
package engine
