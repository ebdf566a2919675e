// Package harness runs YAML scenarios against a content repository.
//
// A scenario names a config directory, lists setup commands that must
// succeed, flow commands that may expect a rejection, and assertions on
// the resulting subgraphs, workspaces and event log:
//
//	name: publish-page
//	config: ../../../config
//	setup:
//	  - command: CreateRootWorkspace
//	    args: {workspaceName: live, newContentStreamId: cs-live}
//	flow:
//	  - command: SetNodeProperties
//	    args: {workspaceName: live, nodeAggregateId: missing, ...}
//	    expect: {code: NOT_FOUND}
//	assertions:
//	  - type: children
//	    workspace: live
//	    point: {language: de}
//	    node: sites
//	    children: [home]
//
// Every run uses a fresh in-memory store and deterministic ids, so the
// event log of a scenario is stable and can be kept as a golden file.
package harness
