package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/config"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/projection"
	"github.com/roach88/contentgraph/internal/store"
	"github.com/roach88/contentgraph/internal/subgraph"
	"github.com/roach88/contentgraph/internal/testutil"
	"github.com/roach88/contentgraph/internal/workspace"
)

const (
	live ir.WorkspaceName = "live"
	user ir.WorkspaceName = "user-test"
)

var (
	mul = testutil.Point("mul")
	de  = testutil.Point("de")
	gsw = testutil.Point("gsw")
	en  = testutil.Point("en")
)

// testConfig is the example configuration plus Acme:Article, a document
// without tethered children.
const testConfig = `
dimensions: [{
	name: "language"
	values: [
		{value: "mul"},
		{value: "de", generalization: "mul"},
		{value: "gsw", generalization: "de"},
		{value: "en", generalization: "mul"},
	]
}]

nodeTypes: {
	"Acme:Sites": {
		root: true
		constraints: {"Acme:Document": true, "*": false}
	}
	"Acme:Content": {abstract: true}
	"Acme:Document": {
		abstract: true
		properties: {
			title: {type: "string"}
			uriPathSegment: {type: "string", scope: "specializations"}
			hidden: {type: "bool", scope: "nodeAggregate", default: false}
		}
		references: {
			related: {
				constraints: {"Acme:Document": true, "*": false}
			}
			author: {
				maxItems: 1
				properties: role: {type: "string"}
			}
		}
		constraints: {"Acme:Document": true, "*": false}
	}
	"Acme:ContentCollection": {
		constraints: {"Acme:Content": true, "*": false}
	}
	"Acme:Page": {
		superTypes: ["Acme:Document"]
		childNodes: main: {type: "Acme:ContentCollection"}
	}
	"Acme:Article": {
		superTypes: ["Acme:Document"]
	}
	"Acme:Text": {
		superTypes: ["Acme:Content"]
		properties: {
			text: {type: "string"}
			views: {type: "int", default: 0}
		}
		references: see: {scope: "nodeAggregate"}
	}
}
`

// testCommitter appends and then projects, like the engine does for
// intermediate steps.
type testCommitter struct {
	store      *store.Store
	projection *projection.Projection
	ids        command.IDGenerator
}

func (c testCommitter) Commit(ctx context.Context, out EventsToPublish) (store.CommitResult, error) {
	events, err := out.NewEvents(c.ids, "test")
	if err != nil {
		return store.CommitResult{}, err
	}
	res, err := c.store.Append(ctx, out.Stream, out.ExpectedVersion, events)
	if err != nil {
		return store.CommitResult{}, err
	}
	if len(events) > 0 {
		if err := c.projection.WaitFor(ctx, res.LastSequence); err != nil {
			return store.CommitResult{}, err
		}
	}
	return res, nil
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Store
	ids   *testutil.SequenceGenerator
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, errs := config.LoadString("handler_test.cue", testConfig)
	require.Empty(t, errs)

	s := testutil.OpenStore(t)
	p := projection.New(s)
	ids := testutil.NewSequenceGenerator("id")
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: s,
		ids:   ids,
		deps: Deps{
			Graph:          subgraph.NewContentGraph(s.DB(), repo.NodeTypes),
			Workspaces:     workspace.NewFinder(s.DB()),
			ContentStreams: workspace.NewContentStreamFinder(s.DB()),
			NodeTypes:      repo.NodeTypes,
			Variation:      repo.Graph,
			IDs:            ids,
			Events:         s,
			Committer:      testCommitter{store: s, projection: p, ids: ids},
			User:           "editor",
		},
	}
}

// newSiteFixture sets up "live" on cs-live with the root node "sites" and
// "user-test" on cs-user, based on live.
func newSiteFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.must(
		command.CreateRootWorkspace{WorkspaceName: live, Title: "Live", NewContentStreamID: "cs-live"},
		command.CreateRootNodeAggregateWithNode{WorkspaceName: live, NodeAggregateID: "sites", NodeTypeName: "Acme:Sites"},
		command.CreateWorkspace{WorkspaceName: user, BaseWorkspaceName: live, Title: "Test", NewContentStreamID: "cs-user"},
	)
	return f
}

// handle runs cmd and commits its events.
func (f *fixture) handle(cmd command.Command) error {
	_, err := f.deps.run(f.ctx, cmd)
	return err
}

func (f *fixture) must(cmds ...command.Command) {
	f.t.Helper()
	for _, cmd := range cmds {
		require.NoError(f.t, f.handle(cmd), cmd.CommandType())
	}
}

func (f *fixture) requireReason(err error, reason string) {
	f.t.Helper()
	require.Error(f.t, err)
	require.Equal(f.t, reason, Reason(err), err.Error())
}

func page(ws ir.WorkspaceName, id, parent ir.NodeAggregateID, name ir.NodeName, origin dimension.DimensionSpacePoint, props map[string]any) command.CreateNodeAggregateWithNode {
	return command.CreateNodeAggregateWithNode{
		WorkspaceName:             ws,
		NodeAggregateID:           id,
		NodeTypeName:              "Acme:Page",
		OriginDimensionSpacePoint: dimension.OriginFromPoint(origin),
		ParentNodeAggregateID:     parent,
		NodeName:                  name,
		InitialPropertyValues:     props,
	}
}

func text(ws ir.WorkspaceName, id, parent ir.NodeAggregateID, origin dimension.DimensionSpacePoint, value string) command.CreateNodeAggregateWithNode {
	return command.CreateNodeAggregateWithNode{
		WorkspaceName:             ws,
		NodeAggregateID:           id,
		NodeTypeName:              "Acme:Text",
		OriginDimensionSpacePoint: dimension.OriginFromPoint(origin),
		ParentNodeAggregateID:     parent,
		InitialPropertyValues:     map[string]any{"text": value},
	}
}

func setProperties(ws ir.WorkspaceName, id ir.NodeAggregateID, origin dimension.DimensionSpacePoint, values map[string]any) command.SetNodeProperties {
	return command.SetNodeProperties{
		WorkspaceName:             ws,
		NodeAggregateID:           id,
		OriginDimensionSpacePoint: dimension.OriginFromPoint(origin),
		PropertyValues:            values,
	}
}

func mainOf(id ir.NodeAggregateID) ir.NodeAggregateID {
	return ir.TetheredNodeAggregateID(id, "main")
}

func (f *fixture) workspace(name ir.WorkspaceName) *workspace.Workspace {
	f.t.Helper()
	ws, err := f.deps.Workspaces.FindByName(f.ctx, name)
	require.NoError(f.t, err)
	return ws
}

func (f *fixture) contentStream(id ir.ContentStreamID) *workspace.ContentStream {
	f.t.Helper()
	cs, err := f.deps.ContentStreams.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, cs, "content stream %s", id)
	return cs
}

func (f *fixture) streamOf(name ir.WorkspaceName) ir.ContentStreamID {
	f.t.Helper()
	ws := f.workspace(name)
	require.NotNil(f.t, ws, "workspace %s", name)
	return ws.CurrentContentStreamID
}

func (f *fixture) aggregate(ws ir.WorkspaceName, id ir.NodeAggregateID) *subgraph.NodeAggregate {
	f.t.Helper()
	agg, err := f.deps.Graph.FindNodeAggregateByID(f.ctx, f.streamOf(ws), id)
	require.NoError(f.t, err)
	return agg
}

func (f *fixture) subgraph(ws ir.WorkspaceName, p dimension.DimensionSpacePoint) *subgraph.ContentSubgraph {
	return f.deps.Graph.Subgraph(f.streamOf(ws), p, subgraph.Frontend)
}

func (f *fixture) node(ws ir.WorkspaceName, p dimension.DimensionSpacePoint, id ir.NodeAggregateID) *subgraph.Node {
	f.t.Helper()
	n, err := f.subgraph(ws, p).FindNodeByID(f.ctx, id)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) children(ws ir.WorkspaceName, p dimension.DimensionSpacePoint, parent ir.NodeAggregateID) []ir.NodeAggregateID {
	f.t.Helper()
	nodes, err := f.subgraph(ws, p).FindChildNodes(f.ctx, parent, subgraph.FindChildNodesFilter{})
	require.NoError(f.t, err)
	out := []ir.NodeAggregateID{}
	for _, n := range nodes {
		out = append(out, n.AggregateID)
	}
	return out
}

func (f *fixture) references(ws ir.WorkspaceName, p dimension.DimensionSpacePoint, source ir.NodeAggregateID, name string) []ir.NodeAggregateID {
	f.t.Helper()
	refs, err := f.subgraph(ws, p).FindReferences(f.ctx, source, subgraph.FindReferencesFilter{ReferenceName: name})
	require.NoError(f.t, err)
	out := []ir.NodeAggregateID{}
	for _, r := range refs {
		out = append(out, r.Node.AggregateID)
	}
	return out
}
