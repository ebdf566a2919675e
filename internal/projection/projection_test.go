package projection

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/cache"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/store"
	"github.com/roach88/contentgraph/internal/subgraph"
	"github.com/roach88/contentgraph/internal/testutil"
	"github.com/roach88/contentgraph/internal/workspace"
)

const (
	liveCS ir.ContentStreamID = "cs-live"
	userCS ir.ContentStreamID = "cs-user"
)

var (
	de  = testutil.Point("de")
	gsw = testutil.Point("gsw")
	en  = testutil.Point("en")
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	proj   *Projection
	graph  *subgraph.ContentGraph
	events int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	s := testutil.OpenStore(t)
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: s,
		proj:  New(s, opts...),
		graph: subgraph.NewContentGraph(s.DB(), testutil.ContentRepository(t).NodeTypes),
	}
}

// record appends events to a stream without projecting them.
func (f *fixture) record(stream string, events ...event.Event) store.CommitResult {
	f.t.Helper()
	batch := make([]store.NewEvent, len(events))
	for i, e := range events {
		payload, err := event.Encode(e)
		require.NoError(f.t, err)
		f.events++
		batch[i] = store.NewEvent{
			ID:      fmt.Sprintf("event-%d", f.events),
			Type:    string(e.EventType()),
			Payload: payload,
		}
	}
	result, err := f.store.Append(f.ctx, stream, store.ExpectAny(), batch)
	require.NoError(f.t, err)
	return result
}

// apply appends events to a stream and catches the projection up.
func (f *fixture) apply(stream string, events ...event.Event) {
	f.t.Helper()
	f.record(stream, events...)
	_, err := f.proj.CatchUp(f.ctx)
	require.NoError(f.t, err)
}

func (f *fixture) node(cs ir.ContentStreamID, p dimension.DimensionSpacePoint, id ir.NodeAggregateID) *subgraph.Node {
	f.t.Helper()
	n, err := f.graph.Subgraph(cs, p, subgraph.WithoutRestrictions).FindNodeByID(f.ctx, id)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) visible(cs ir.ContentStreamID, p dimension.DimensionSpacePoint, id ir.NodeAggregateID) bool {
	f.t.Helper()
	n, err := f.graph.Subgraph(cs, p, subgraph.Frontend).FindNodeByID(f.ctx, id)
	require.NoError(f.t, err)
	return n != nil
}

func (f *fixture) children(cs ir.ContentStreamID, p dimension.DimensionSpacePoint, parent ir.NodeAggregateID) []ir.NodeAggregateID {
	f.t.Helper()
	nodes, err := f.graph.Subgraph(cs, p, subgraph.WithoutRestrictions).FindChildNodes(f.ctx, parent, subgraph.FindChildNodesFilter{})
	require.NoError(f.t, err)
	ids := make([]ir.NodeAggregateID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.AggregateID
	}
	return ids
}

func (f *fixture) count(query string, args ...any) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.store.DB().QueryRowContext(f.ctx, query, args...).Scan(&n))
	return n
}

func csStream(cs ir.ContentStreamID) string { return event.ContentStreamStreamName(cs) }

func title(s string) ir.SerializedPropertyValues {
	return ir.SerializedPropertyValues{"title": {Value: s, Type: "string"}}
}

func created(id, parent ir.NodeAggregateID, origin dimension.DimensionSpacePoint, covered ...dimension.DimensionSpacePoint) event.NodeAggregateWithNodeWasCreated {
	return event.NodeAggregateWithNodeWasCreated{
		ContentStreamID:             liveCS,
		NodeAggregateID:             id,
		NodeTypeName:                "Acme:Page",
		OriginDimensionSpacePoint:   dimension.OriginFromPoint(origin),
		CoveredDimensionSpacePoints: dimension.NewDimensionSpacePointSet(covered...),
		ParentNodeAggregateID:       parent,
		NodeName:                    ir.NodeName(id),
		InitialPropertyValues:       title(string(id)),
		NodeAggregateClassification: ir.ClassificationRegular,
	}
}

// seed projects a live workspace holding, in "de" and "gsw":
//
//	sites
//	└── home
//	    ├── contact
//	    └── about
func seed(t *testing.T, opts ...Option) *fixture {
	f := newFixture(t, opts...)
	f.apply(csStream(liveCS),
		event.ContentStreamWasCreated{ContentStreamID: liveCS},
	)
	f.apply(event.WorkspaceStreamName(ir.LiveWorkspaceName),
		event.RootWorkspaceWasCreated{WorkspaceName: ir.LiveWorkspaceName, Title: "Live", NewContentStreamID: liveCS},
	)

	contact := created("contact", "home", de, de, gsw)
	contact.SucceedingSiblingNodeAggregateID = "about"
	f.apply(csStream(liveCS),
		event.RootNodeAggregateWithNodeWasCreated{
			ContentStreamID:             liveCS,
			NodeAggregateID:             "sites",
			NodeTypeName:                "Acme:Sites",
			CoveredDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de, gsw, en),
			NodeAggregateClassification: ir.ClassificationRoot,
		},
		created("home", "sites", de, de, gsw),
		created("about", "home", de, de, gsw),
		contact,
	)
	return f
}

func forkUser(f *fixture) {
	f.t.Helper()
	version, err := f.store.StreamVersion(f.ctx, csStream(liveCS))
	require.NoError(f.t, err)
	f.apply(csStream(userCS),
		event.ContentStreamWasForked{NewContentStreamID: userCS, SourceContentStreamID: liveCS, VersionOfSourceContentStream: version},
	)
	f.apply(event.WorkspaceStreamName("user-test"),
		event.WorkspaceWasCreated{WorkspaceName: "user-test", BaseWorkspaceName: ir.LiveWorkspaceName, Owner: "alice", NewContentStreamID: userCS},
	)
}

func TestCreation_OrderAndCoverage(t *testing.T) {
	f := seed(t)

	assert.Equal(t, []ir.NodeAggregateID{"contact", "about"}, f.children(liveCS, de, "home"))
	assert.Equal(t, []ir.NodeAggregateID{"contact", "about"}, f.children(liveCS, gsw, "home"))
	assert.Nil(t, f.node(liveCS, en, "home"))
	assert.NotNil(t, f.node(liveCS, en, "sites"))

	home := f.node(liveCS, gsw, "home")
	require.NotNil(t, home)
	assert.True(t, home.OriginDimensionSpacePoint.Equal(dimension.OriginFromPoint(de)))
	assert.Equal(t, "home", home.Property("title"))

	checkpoint, err := f.proj.Checkpoint(f.ctx)
	require.NoError(t, err)
	head, err := f.store.HeadSequence(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, head, checkpoint)
}

func TestSetProperties_CopyOnWriteAcrossFork(t *testing.T) {
	f := seed(t)
	forkUser(f)
	assert.Equal(t, 1, f.count(`SELECT COUNT(*) FROM node WHERE node_aggregate_id = 'home'`))

	f.apply(csStream(userCS), event.NodePropertiesWereSet{
		ContentStreamID:              userCS,
		NodeAggregateID:              "home",
		OriginDimensionSpacePoint:    dimension.OriginFromPoint(de),
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de, gsw),
		PropertyValues:               ir.SerializedPropertyValues{"title": {Value: "Home!", Type: "string"}, "views": {Value: int64(1), Type: "int"}},
	})

	assert.Equal(t, "home", f.node(liveCS, de, "home").Property("title"))
	assert.Equal(t, "Home!", f.node(userCS, de, "home").Property("title"))
	assert.Equal(t, "Home!", f.node(userCS, gsw, "home").Property("title"))
	assert.Equal(t, 2, f.count(`SELECT COUNT(*) FROM node WHERE node_aggregate_id = 'home'`))

	// the copy keeps its children in the forked stream
	assert.Equal(t, []ir.NodeAggregateID{"contact", "about"}, f.children(userCS, de, "home"))

	f.apply(csStream(userCS), event.NodePropertiesWereSet{
		ContentStreamID:              userCS,
		NodeAggregateID:              "home",
		OriginDimensionSpacePoint:    dimension.OriginFromPoint(de),
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de, gsw),
		PropertiesToUnset:            []string{"views"},
	})
	home := f.node(userCS, de, "home")
	assert.Nil(t, home.Property("views"))
	assert.Equal(t, "Home!", home.Property("title"))
	assert.Equal(t, 2, f.count(`SELECT COUNT(*) FROM node WHERE node_aggregate_id = 'home'`), "unshared rows are written in place")
}

func TestSetReferences_ReplacesNamedReferences(t *testing.T) {
	f := seed(t)
	forkUser(f)

	set := func(targets ...ir.NodeAggregateID) {
		refs := make([]event.SerializedReference, len(targets))
		for i, target := range targets {
			refs[i] = event.SerializedReference{TargetNodeAggregateID: target}
		}
		f.apply(csStream(userCS), event.NodeReferencesWereSet{
			ContentStreamID:                          userCS,
			SourceNodeAggregateID:                    "about",
			AffectedSourceOriginDimensionSpacePoints: dimension.NewOriginSet(dimension.OriginFromPoint(de)),
			ReferenceName:                            "related",
			References:                               refs,
		})
	}
	set("contact", "home")
	set("home")

	refs, err := f.graph.Subgraph(userCS, de, subgraph.Frontend).FindReferences(f.ctx, "about", subgraph.FindReferencesFilter{})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, ir.NodeAggregateID("home"), refs[0].Node.AggregateID)

	live, err := f.graph.Subgraph(liveCS, de, subgraph.Frontend).FindReferences(f.ctx, "about", subgraph.FindReferencesFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestRemoveNodeAggregate_CollectsGarbage(t *testing.T) {
	f := seed(t)

	f.apply(csStream(liveCS), event.NodeAggregateWasRemoved{
		ContentStreamID:                      liveCS,
		NodeAggregateID:                      "home",
		AffectedOccupiedDimensionSpacePoints: dimension.NewOriginSet(dimension.OriginFromPoint(de)),
		AffectedCoveredDimensionSpacePoints:  dimension.NewDimensionSpacePointSet(de, gsw),
	})

	assert.Nil(t, f.node(liveCS, de, "home"))
	assert.Nil(t, f.node(liveCS, gsw, "about"))
	assert.Empty(t, f.children(liveCS, de, "sites"))
	assert.Equal(t, 1, f.count(`SELECT COUNT(*) FROM node`), "only the root node remains")
	assert.Equal(t, 3, f.count(`SELECT COUNT(*) FROM hierarchy_hyperrelation`), "only root edges remain")
}

func TestRemoveNodeAggregate_PartialCoverageKeepsRows(t *testing.T) {
	f := seed(t)

	f.apply(csStream(liveCS), event.NodeAggregateWasRemoved{
		ContentStreamID:                     liveCS,
		NodeAggregateID:                     "about",
		AffectedCoveredDimensionSpacePoints: dimension.NewDimensionSpacePointSet(gsw),
	})

	assert.Nil(t, f.node(liveCS, gsw, "about"))
	assert.NotNil(t, f.node(liveCS, de, "about"))
	assert.Equal(t, 1, f.count(`SELECT COUNT(*) FROM node WHERE node_aggregate_id = 'about'`))
}

func TestRemoveContentStream_DropsUnsharedRows(t *testing.T) {
	f := seed(t)
	forkUser(f)
	f.apply(csStream(userCS), event.NodePropertiesWereSet{
		ContentStreamID:              userCS,
		NodeAggregateID:              "about",
		OriginDimensionSpacePoint:    dimension.OriginFromPoint(de),
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de, gsw),
		PropertyValues:               title("Über uns"),
	})
	assert.Equal(t, 2, f.count(`SELECT COUNT(*) FROM node WHERE node_aggregate_id = 'about'`))

	f.apply(csStream(userCS), event.ContentStreamWasRemoved{ContentStreamID: userCS})

	assert.Equal(t, 1, f.count(`SELECT COUNT(*) FROM node WHERE node_aggregate_id = 'about'`))
	assert.Equal(t, 0, f.count(`SELECT COUNT(*) FROM hierarchy_hyperrelation WHERE content_stream_id = ?`, userCS))
	assert.Equal(t, "about", f.node(liveCS, de, "about").Property("title"))

	cs, err := workspace.NewContentStreamFinder(f.store.DB()).FindByID(f.ctx, userCS)
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.True(t, cs.Removed)
}

func TestDisableEnable_RestrictsSubtree(t *testing.T) {
	f := seed(t)

	f.apply(csStream(liveCS), event.NodeAggregateWasDisabled{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "home",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de),
	})
	assert.False(t, f.visible(liveCS, de, "home"))
	assert.False(t, f.visible(liveCS, de, "about"))
	assert.True(t, f.visible(liveCS, gsw, "about"))

	// nodes created below a disabled node are hidden too
	f.apply(csStream(liveCS), created("imprint", "home", de, de, gsw))
	assert.False(t, f.visible(liveCS, de, "imprint"))
	assert.True(t, f.visible(liveCS, gsw, "imprint"))

	f.apply(csStream(liveCS), event.NodeAggregateWasEnabled{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "home",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de),
	})
	assert.True(t, f.visible(liveCS, de, "imprint"))
	assert.Equal(t, 0, f.count(`SELECT COUNT(*) FROM restriction_hyperrelation`))
}

func TestMove_ChangesParentPerPoint(t *testing.T) {
	f := seed(t)

	f.apply(csStream(liveCS), event.NodeAggregateWasMoved{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "contact",
		NewParentNodeAggregateID:     "sites",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de),
	})
	assert.Equal(t, []ir.NodeAggregateID{"home", "contact"}, f.children(liveCS, de, "sites"))
	assert.Equal(t, []ir.NodeAggregateID{"about"}, f.children(liveCS, de, "home"))
	assert.Equal(t, []ir.NodeAggregateID{"contact", "about"}, f.children(liveCS, gsw, "home"))

	f.apply(csStream(liveCS), event.NodeAggregateWasMoved{
		ContentStreamID:                     liveCS,
		NodeAggregateID:                     "about",
		NewSucceedingSiblingNodeAggregateID: "contact",
		AffectedDimensionSpacePoints:        dimension.NewDimensionSpacePointSet(gsw),
	})
	assert.Equal(t, []ir.NodeAggregateID{"about", "contact"}, f.children(liveCS, gsw, "home"))
}

func TestMove_IntoDisabledParentInheritsRestriction(t *testing.T) {
	f := seed(t)
	f.apply(csStream(liveCS), event.NodeAggregateWasDisabled{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "about",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de),
	})

	f.apply(csStream(liveCS), event.NodeAggregateWasMoved{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "contact",
		NewParentNodeAggregateID:     "about",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de),
	})
	assert.False(t, f.visible(liveCS, de, "contact"))

	f.apply(csStream(liveCS), event.NodeAggregateWasMoved{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "contact",
		NewParentNodeAggregateID:     "home",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de),
	})
	assert.True(t, f.visible(liveCS, de, "contact"))
	assert.False(t, f.visible(liveCS, de, "about"))
}

func TestSpecializationVariant_TakesOverCoverage(t *testing.T) {
	f := seed(t)

	f.apply(csStream(liveCS), event.NodeSpecializationVariantWasCreated{NodeVariantWasCreated: event.NodeVariantWasCreated{
		ContentStreamID: liveCS,
		NodeAggregateID: "home",
		SourceOrigin:    dimension.OriginFromPoint(de),
		TargetOrigin:    dimension.OriginFromPoint(gsw),
		Coverage:        dimension.NewDimensionSpacePointSet(gsw),
	}})

	home := f.node(liveCS, gsw, "home")
	require.NotNil(t, home)
	assert.True(t, home.OriginDimensionSpacePoint.Equal(dimension.OriginFromPoint(gsw)))
	assert.True(t, f.node(liveCS, de, "home").OriginDimensionSpacePoint.Equal(dimension.OriginFromPoint(de)))
	assert.Equal(t, []ir.NodeAggregateID{"contact", "about"}, f.children(liveCS, gsw, "home"))

	parent, err := f.graph.Subgraph(liveCS, gsw, subgraph.WithoutRestrictions).FindParentNode(f.ctx, "about")
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.True(t, parent.OriginDimensionSpacePoint.Equal(dimension.OriginFromPoint(gsw)))
}

func TestPeerVariant_InsertsIntoParentOfPeer(t *testing.T) {
	f := seed(t)
	peer := func(id ir.NodeAggregateID) event.NodePeerVariantWasCreated {
		return event.NodePeerVariantWasCreated{NodeVariantWasCreated: event.NodeVariantWasCreated{
			ContentStreamID: liveCS,
			NodeAggregateID: id,
			SourceOrigin:    dimension.OriginFromPoint(de),
			TargetOrigin:    dimension.OriginFromPoint(en),
			Coverage:        dimension.NewDimensionSpacePointSet(en),
		}}
	}

	f.apply(csStream(liveCS), peer("home"), peer("about"), peer("contact"))

	assert.Equal(t, []ir.NodeAggregateID{"home"}, f.children(liveCS, en, "sites"))
	assert.Equal(t, []ir.NodeAggregateID{"contact", "about"}, f.children(liveCS, en, "home"), "peers keep the source order")
	assert.Equal(t, "about", f.node(liveCS, en, "about").Property("title"))
}

func TestRenameAndRetype_CopyOnWrite(t *testing.T) {
	f := seed(t)
	forkUser(f)

	f.apply(csStream(userCS),
		event.NodeAggregateNameWasChanged{ContentStreamID: userCS, NodeAggregateID: "about", NewNodeName: "about-us"},
		event.NodeAggregateTypeWasChanged{ContentStreamID: userCS, NodeAggregateID: "about", NewNodeTypeName: "Acme:Document"},
	)

	user := f.node(userCS, de, "about")
	assert.Equal(t, ir.NodeName("about-us"), user.Name)
	assert.Equal(t, ir.NodeTypeName("Acme:Document"), user.NodeTypeName)
	live := f.node(liveCS, de, "about")
	assert.Equal(t, ir.NodeName("about"), live.Name)
	assert.Equal(t, ir.NodeTypeName("Acme:Page"), live.NodeTypeName)
}

func TestWorkspaceLifecycle(t *testing.T) {
	f := seed(t)
	forkUser(f)
	finder := workspace.NewFinder(f.store.DB())
	streams := workspace.NewContentStreamFinder(f.store.DB())

	status := func(name ir.WorkspaceName) workspace.Status {
		t.Helper()
		ws, err := finder.FindByName(f.ctx, name)
		require.NoError(t, err)
		require.NotNil(t, ws)
		return ws.Status
	}
	state := func(cs ir.ContentStreamID) workspace.State {
		t.Helper()
		s, err := streams.FindByID(f.ctx, cs)
		require.NoError(t, err)
		require.NotNil(t, s)
		return s.State
	}

	assert.Equal(t, workspace.StatusUpToDate, status("user-test"))
	assert.Equal(t, workspace.StateInUseByWorkspace, state(userCS))

	f.apply(csStream(liveCS), created("imprint", "home", de, de, gsw))
	assert.Equal(t, workspace.StatusOutdated, status("user-test"))
	assert.Equal(t, workspace.StatusUpToDate, status(ir.LiveWorkspaceName))

	f.apply(csStream("cs-candidate"),
		event.ContentStreamWasForked{NewContentStreamID: "cs-candidate", SourceContentStreamID: liveCS, VersionOfSourceContentStream: 5},
	)
	f.apply(event.WorkspaceStreamName("user-test"),
		event.WorkspaceRebaseWasStarted{WorkspaceName: "user-test", CandidateContentStreamID: "cs-candidate"},
	)
	assert.Equal(t, workspace.StateRebasing, state("cs-candidate"))
	f.apply(event.WorkspaceStreamName("user-test"),
		event.WorkspaceRebaseFailed{WorkspaceName: "user-test", CandidateContentStreamID: "cs-candidate", PreviousContentStreamID: userCS},
	)
	assert.Equal(t, workspace.StatusOutdatedConflict, status("user-test"))
	assert.Equal(t, workspace.StateRebaseError, state("cs-candidate"))

	f.apply(csStream("cs-rebased"),
		event.ContentStreamWasForked{NewContentStreamID: "cs-rebased", SourceContentStreamID: liveCS, VersionOfSourceContentStream: 5},
	)
	f.apply(event.WorkspaceStreamName("user-test"),
		event.WorkspaceWasRebased{WorkspaceName: "user-test", NewContentStreamID: "cs-rebased", PreviousContentStreamID: userCS},
	)
	ws, err := finder.FindByName(f.ctx, "user-test")
	require.NoError(t, err)
	assert.Equal(t, workspace.StatusUpToDate, ws.Status)
	assert.Equal(t, ir.ContentStreamID("cs-rebased"), ws.CurrentContentStreamID)
	assert.Equal(t, workspace.StateNoLongerInUse, state(userCS))
	assert.Equal(t, workspace.StateInUseByWorkspace, state("cs-rebased"))
	assert.NotNil(t, f.node("cs-rebased", de, "imprint"))

	f.apply(event.WorkspaceStreamName("user-test"),
		event.WorkspaceWasRenamed{WorkspaceName: "user-test", Title: "Review", Description: "for review"},
		event.WorkspaceOwnerWasChanged{WorkspaceName: "user-test", NewOwner: "bob"},
	)
	ws, err = finder.FindByName(f.ctx, "user-test")
	require.NoError(t, err)
	assert.Equal(t, "Review", ws.Title)
	assert.Equal(t, ir.UserID("bob"), ws.Owner)

	f.apply(event.WorkspaceStreamName("user-test"), event.WorkspaceWasRemoved{WorkspaceName: "user-test"})
	ws, err = finder.FindByName(f.ctx, "user-test")
	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestContentStreamVersionAndClosing(t *testing.T) {
	f := seed(t)
	streams := workspace.NewContentStreamFinder(f.store.DB())

	cs, err := streams.FindByID(f.ctx, liveCS)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cs.Version)

	f.apply(csStream(liveCS), event.ContentStreamWasClosed{ContentStreamID: liveCS})
	cs, err = streams.FindByID(f.ctx, liveCS)
	require.NoError(t, err)
	assert.True(t, cs.Closed)
	assert.Equal(t, int64(5), cs.Version)

	f.apply(csStream(liveCS), event.ContentStreamWasReopened{ContentStreamID: liveCS, PreviousState: string(workspace.StateInUseByWorkspace)})
	cs, err = streams.FindByID(f.ctx, liveCS)
	require.NoError(t, err)
	assert.False(t, cs.Closed)
	assert.Equal(t, workspace.StateInUseByWorkspace, cs.State)
}

func TestReset_ReplayIsDeterministic(t *testing.T) {
	f := seed(t)
	forkUser(f)
	f.apply(csStream(userCS), event.NodePropertiesWereSet{
		ContentStreamID:              userCS,
		NodeAggregateID:              "home",
		OriginDimensionSpacePoint:    dimension.OriginFromPoint(de),
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de, gsw),
		PropertyValues:               title("Start"),
	})
	f.apply(csStream(liveCS), event.NodeAggregateWasDisabled{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "about",
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(gsw),
	})

	before, err := f.proj.StateDigest(f.ctx)
	require.NoError(t, err)
	var anchors []string
	rows, err := f.store.DB().QueryContext(f.ctx, `SELECT relation_anchor_point FROM node ORDER BY 1`)
	require.NoError(t, err)
	for rows.Next() {
		var a string
		require.NoError(t, rows.Scan(&a))
		anchors = append(anchors, a)
	}
	require.NoError(t, rows.Close())

	require.NoError(t, f.proj.Reset(f.ctx))
	checkpoint, err := f.proj.Checkpoint(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), checkpoint)
	assert.Equal(t, 0, f.count(`SELECT COUNT(*) FROM node`))

	applied, err := f.proj.CatchUp(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.events, applied)

	after, err := f.proj.StateDigest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	var replayed []string
	rows, err = f.store.DB().QueryContext(f.ctx, `SELECT relation_anchor_point FROM node ORDER BY 1`)
	require.NoError(t, err)
	for rows.Next() {
		var a string
		require.NoError(t, rows.Scan(&a))
		replayed = append(replayed, a)
	}
	require.NoError(t, rows.Close())
	assert.Equal(t, anchors, replayed)
}

func TestStateDigest_ChangesWithContent(t *testing.T) {
	f := seed(t)
	before, err := f.proj.StateDigest(f.ctx)
	require.NoError(t, err)

	f.apply(csStream(liveCS), event.NodePropertiesWereSet{
		ContentStreamID:              liveCS,
		NodeAggregateID:              "about",
		OriginDimensionSpacePoint:    dimension.OriginFromPoint(de),
		AffectedDimensionSpacePoints: dimension.NewDimensionSpacePointSet(de, gsw),
		PropertyValues:               title("About us"),
	})
	after, err := f.proj.StateDigest(f.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestWaitFor(t *testing.T) {
	f := seed(t)
	result := f.record(csStream(liveCS), created("imprint", "home", de, de))

	require.NoError(t, f.proj.WaitFor(f.ctx, result.LastSequence))
	assert.NotNil(t, f.node(liveCS, de, "imprint"))

	err := f.proj.WaitFor(f.ctx, result.LastSequence+10)
	assert.ErrorContains(t, err, "log ends at")
}

func TestProcessedEvents_SkipsApplyButAdvances(t *testing.T) {
	processed := cache.NewMemory(cache.DefaultTTL)
	f := seed(t, WithProcessedEvents(processed))

	result := f.record(csStream(liveCS), created("imprint", "home", de, de))
	_, err := processed.MarkProcessed(f.ctx, fmt.Sprintf("event-%d", f.events))
	require.NoError(t, err)

	_, err = f.proj.CatchUp(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, f.node(liveCS, de, "imprint"))
	checkpoint, err := f.proj.Checkpoint(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, result.LastSequence, checkpoint)
}

func TestCatchUp_FailsOnMissingParent(t *testing.T) {
	f := newFixture(t)
	f.record(csStream(liveCS),
		event.ContentStreamWasCreated{ContentStreamID: liveCS},
		created("orphan", "nowhere", de, de),
	)

	applied, err := f.proj.CatchUp(f.ctx)
	require.Error(t, err)
	assert.Equal(t, 1, applied)
	assert.ErrorContains(t, err, "NodeAggregateWithNodeWasCreated")

	checkpoint, err := f.proj.Checkpoint(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), checkpoint, "the failing event is not checkpointed")
}
