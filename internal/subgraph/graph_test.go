package subgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/testutil"
)

func TestFindNodeAggregateByID(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	about, err := g.FindNodeAggregateByID(ctx, testCS, "about")
	require.NoError(t, err)
	require.NotNil(t, about)

	assert.Equal(t, ir.NodeTypeName("Acme:Page"), about.NodeTypeName)
	assert.Equal(t, ir.NodeName("about"), about.NodeName)
	assert.True(t, about.Occupies(testutil.Origin("de")))
	assert.True(t, about.Occupies(testutil.Origin("en")))
	assert.False(t, about.Occupies(testutil.Origin("gsw")))
	assert.True(t, about.Covers(en))
	assert.Len(t, about.Nodes(), 2)

	deNode := about.NodeByOccupied(testutil.Origin("de"))
	require.NotNil(t, deNode)
	assert.Equal(t, "About us", deNode.Property("title"))

	origin, ok := about.OccupationByCovered(en)
	require.True(t, ok)
	assert.True(t, origin.Equal(testutil.Origin("en")))
	assert.True(t, about.CoverageByOccupant(testutil.Origin("de")).Equal(dimension.NewDimensionSpacePointSet(de)))
	assert.Equal(t, "About", about.NodeByCovered(en).Property("title"))

	contact, err := g.FindNodeAggregateByID(ctx, testCS, "contact")
	require.NoError(t, err)
	assert.True(t, contact.IsDisabledIn(de))
	assert.False(t, contact.IsDisabledIn(en))
	assert.True(t, contact.CoverageByOccupant(testutil.Origin("de")).Equal(dimension.NewDimensionSpacePointSet(de, en)))

	missing, err := g.FindNodeAggregateByID(ctx, testCS, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	other, err := g.FindNodeAggregateByID(ctx, "other-stream", "about")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestAggregateRelations(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	root, err := g.FindRootNodeAggregateByType(ctx, testCS, "Acme:Sites")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.True(t, root.IsRoot())

	roots, err := g.FindRootNodeAggregates(ctx, testCS)
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"sites"}, aggregateIDs(roots))

	pages, err := g.FindNodeAggregatesByType(ctx, testCS, "Acme:Page")
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about", "contact", "home"}, aggregateIDs(pages))

	children, err := g.FindChildNodeAggregates(ctx, testCS, "home")
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about", "contact", "main"}, aggregateIDs(children))

	tethered, err := g.FindTetheredChildNodeAggregates(ctx, testCS, "home")
	require.NoError(t, err)
	require.Equal(t, []ir.NodeAggregateID{"main"}, aggregateIDs(tethered))
	assert.True(t, tethered[0].IsTethered())

	main, err := g.FindChildNodeAggregateByName(ctx, testCS, "home", "main")
	require.NoError(t, err)
	require.NotNil(t, main)
	assert.Equal(t, ir.NodeAggregateID("main"), main.ID)

	parents, err := g.FindParentNodeAggregates(ctx, testCS, "about")
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"home"}, aggregateIDs(parents))

	parent, err := g.FindParentNodeAggregateByChildOriginDimensionSpacePoint(ctx, testCS, "about", testutil.Origin("en"))
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, ir.NodeAggregateID("home"), parent.ID)

	ancestors, err := g.FindAncestorNodeAggregateIDs(ctx, testCS, "intro")
	require.NoError(t, err)
	assert.Equal(t, map[ir.NodeAggregateID]bool{"main": true, "home": true, "sites": true}, ancestors)
}

func TestFindDimensionSpacePointsByOccupiedChildNodeName(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	both := dimension.NewDimensionSpacePointSet(de, en)

	occupied, err := g.FindDimensionSpacePointsByOccupiedChildNodeName(ctx, testCS, "home", "about", both, "")
	require.NoError(t, err)
	assert.True(t, occupied.Equal(both))

	occupied, err = g.FindDimensionSpacePointsByOccupiedChildNodeName(ctx, testCS, "home", "about", both, "about")
	require.NoError(t, err)
	assert.True(t, occupied.IsEmpty())

	occupied, err = g.FindDimensionSpacePointsByOccupiedChildNodeName(ctx, testCS, "home", "about", dimension.NewDimensionSpacePointSet(en), "")
	require.NoError(t, err)
	assert.True(t, occupied.Equal(dimension.NewDimensionSpacePointSet(en)))
}
