// Package ir provides the shared value types of the content graph.
//
// This package contains identifiers, serialized property values and the
// canonical JSON + hashing functions used for content-addressed keys.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Identifiers are distinct string types, never bare strings
//   - Canonical JSON (RFC 8785) is the only input to identity hashes
//   - Hashes use SHA-256 with a versioned domain prefix
package ir
