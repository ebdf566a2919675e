// Package workspace reads the projected state of workspaces and content
// streams.
//
// Workspaces are named, user-facing branches of content. Each points at its
// current content stream; every workspace except the root one has a base
// workspace it publishes to and rebases onto.
//
// Content stream lifecycle:
//
//	CREATED → IN_USE_BY_WORKSPACE → REBASING → IN_USE_BY_WORKSPACE
//	                                         → REBASE_ERROR
//	        → NO_LONGER_IN_USE
//
// The tables are written by the projection package; this package only
// queries them.
package workspace
