// Package event defines the domain events of the content graph.
//
// Events are meaningful occurrences in the past ("NodePropertiesWereSet"),
// named in the past tense and never changed once persisted. Each event is a
// plain struct; Encode and Decode move it to and from the JSON payload
// stored in the event store, using a fixed type registry.
//
// Node events belong to a content stream and implement Publishable, so a
// publish can copy them to the base workspace's stream unchanged except for
// the content stream id. Workspace events belong to the workspace's own
// stream.
package event
