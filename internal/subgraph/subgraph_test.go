package subgraph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/queryir"
)

func TestFindNodeByID_Visibility(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	frontendDE := g.Subgraph(testCS, de, Frontend)
	home, err := frontendDE.FindNodeByID(ctx, "home")
	require.NoError(t, err)
	require.NotNil(t, home)
	assert.Equal(t, ir.NodeName("home"), home.Name)
	assert.Equal(t, "Home", home.Property("title"))
	assert.True(t, home.DimensionSpacePoint.Equal(de))
	assert.Equal(t, testCS, home.ContentStreamID)

	contact, err := frontendDE.FindNodeByID(ctx, "contact")
	require.NoError(t, err)
	assert.Nil(t, contact, "disabled in de")

	contact, err = g.Subgraph(testCS, de, WithoutRestrictions).FindNodeByID(ctx, "contact")
	require.NoError(t, err)
	assert.NotNil(t, contact)

	contact, err = g.Subgraph(testCS, en, Frontend).FindNodeByID(ctx, "contact")
	require.NoError(t, err)
	assert.NotNil(t, contact)

	about, err := g.Subgraph(testCS, en, Frontend).FindNodeByID(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "About", about.Property("title"))
	assert.True(t, about.OriginDimensionSpacePoint.ToDimensionSpacePoint().Equal(en))

	missing, err := frontendDE.FindNodeByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	views, err := frontendDE.FindNodeByID(ctx, "intro")
	require.NoError(t, err)
	assert.Equal(t, int64(3), views.Property("views"))
}

func TestFindChildNodes(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	children, err := g.Subgraph(testCS, de, Frontend).FindChildNodes(ctx, "home", FindChildNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"main", "about"}, ids(children))

	sg := g.Subgraph(testCS, en, Frontend)
	children, err = sg.FindChildNodes(ctx, "home", FindChildNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"main", "about", "contact"}, ids(children))

	children, err = sg.FindChildNodes(ctx, "home", FindChildNodesFilter{
		NodeTypes: NodeTypeCriteria{Include: []ir.NodeTypeName{"Acme:Document"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about", "contact"}, ids(children), "subtypes match")

	children, err = sg.FindChildNodes(ctx, "home", FindChildNodesFilter{
		NodeTypes: NodeTypeCriteria{Exclude: []ir.NodeTypeName{"Acme:Document"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"main"}, ids(children))

	children, err = sg.FindChildNodes(ctx, "home", FindChildNodesFilter{
		PropertyValue: queryir.MustParse("title ^=~ 'ab'"),
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about"}, ids(children))

	children, err = sg.FindChildNodes(ctx, "home", FindChildNodesFilter{
		Ordering: []OrderingField{{Property: "title", Descending: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"contact", "about", "main"}, ids(children))

	children, err = sg.FindChildNodes(ctx, "home", FindChildNodesFilter{Pagination: &Pagination{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about"}, ids(children))

	count, err := sg.CountChildNodes(ctx, "home", CountChildNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	children, err = sg.FindChildNodes(ctx, "nope", FindChildNodesFilter{})
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestFindChildNodes_InvalidCriteria(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Subgraph(testCS, en, Frontend).FindChildNodes(context.Background(), "home", FindChildNodesFilter{
		PropertyValue: queryir.Equals("no such", "x"),
	})
	assert.ErrorContains(t, err, "invalid property name")
}

func TestFindParentNode(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	sg := g.Subgraph(testCS, de, Frontend)

	parent, err := sg.FindParentNode(ctx, "about")
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, ir.NodeAggregateID("home"), parent.AggregateID)

	parent, err = sg.FindParentNode(ctx, "sites")
	require.NoError(t, err)
	assert.Nil(t, parent, "root nodes have no parent")

	parent, err = sg.FindParentNode(ctx, "contact")
	require.NoError(t, err)
	assert.Nil(t, parent, "child is hidden")
}

func TestPaths(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	sg := g.Subgraph(testCS, de, Frontend)

	node, err := sg.FindNodeByPath(ctx, NodePath{"home", "about"}, "sites")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, ir.NodeAggregateID("about"), node.AggregateID)

	node, err = sg.FindNodeByPath(ctx, NodePath{"home", "contact"}, "sites")
	require.NoError(t, err)
	assert.Nil(t, node)

	path, err := ParseNodePath("/home/main/intro/")
	require.NoError(t, err)
	node, err = sg.FindNodeByAbsolutePath(ctx, AbsoluteNodePath{RootNodeTypeName: "Acme:Sites", Path: path})
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, ir.NodeAggregateID("intro"), node.AggregateID)

	abs, err := sg.RetrieveNodePath(ctx, "intro")
	require.NoError(t, err)
	assert.Equal(t, "/<Acme:Sites>/home/main/intro", abs.String())

	abs, err = sg.RetrieveNodePath(ctx, "sites")
	require.NoError(t, err)
	assert.Equal(t, "/<Acme:Sites>", abs.String())

	_, err = sg.RetrieveNodePath(ctx, "contact")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = ParseNodePath("home/Not Valid")
	assert.Error(t, err)
}

func renderSubtree(st *Subtree) string {
	var b strings.Builder
	var walk func(*Subtree)
	walk = func(s *Subtree) {
		b.WriteString(strings.Repeat("  ", s.Level) + string(s.Node.AggregateID) + "\n")
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(st)
	return b.String()
}

func TestFindSubtree(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	tree, err := g.Subgraph(testCS, en, Frontend).FindSubtree(ctx, "sites", FindSubtreeFilter{})
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "sites\n  home\n    main\n      intro\n    about\n    contact\n", renderSubtree(tree))

	tree, err = g.Subgraph(testCS, de, Frontend).FindSubtree(ctx, "home", FindSubtreeFilter{MaxLevels: 1})
	require.NoError(t, err)
	assert.Equal(t, "home\n  main\n  about\n", renderSubtree(tree))

	tree, err = g.Subgraph(testCS, en, Frontend).FindSubtree(ctx, "home", FindSubtreeFilter{
		NodeTypes: NodeTypeCriteria{Exclude: []ir.NodeTypeName{"Acme:ContentCollection"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "home\n  about\n  contact\n", renderSubtree(tree), "excluded nodes prune their subtree")

	tree, err = g.Subgraph(testCS, de, Frontend).FindSubtree(ctx, "contact", FindSubtreeFilter{})
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestFindDescendantNodes(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	sg := g.Subgraph(testCS, en, Frontend)

	nodes, err := sg.FindDescendantNodes(ctx, "sites", FindDescendantNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"home", "main", "intro", "about", "contact"}, ids(nodes))

	nodes, err = sg.FindDescendantNodes(ctx, "sites", FindDescendantNodesFilter{
		PropertyValue: queryir.Contains("title", "o"),
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"home", "about", "contact"}, ids(nodes))

	nodes, err = sg.FindDescendantNodes(ctx, "sites", FindDescendantNodesFilter{
		NodeTypes:  NodeTypeCriteria{Include: []ir.NodeTypeName{"Acme:Content"}},
		Pagination: &Pagination{Limit: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"intro"}, ids(nodes))

	count, err := sg.CountDescendantNodes(ctx, "home", CountDescendantNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = g.Subgraph(testCS, de, Frontend).CountDescendantNodes(ctx, "home", CountDescendantNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSiblings(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	sg := g.Subgraph(testCS, en, Frontend)

	nodes, err := sg.FindSucceedingSiblingNodes(ctx, "main", FindSiblingNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about", "contact"}, ids(nodes))

	nodes, err = sg.FindPrecedingSiblingNodes(ctx, "contact", FindSiblingNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about", "main"}, ids(nodes), "closest first")

	nodes, err = sg.FindSucceedingSiblingNodes(ctx, "main", FindSiblingNodesFilter{Pagination: &Pagination{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about"}, ids(nodes))

	nodes, err = g.Subgraph(testCS, de, Frontend).FindSucceedingSiblingNodes(ctx, "main", FindSiblingNodesFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeAggregateID{"about"}, ids(nodes))
}

func TestReferences(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	refs, err := g.Subgraph(testCS, de, Frontend).FindReferences(ctx, "about", FindReferencesFilter{})
	require.NoError(t, err)
	require.Len(t, refs, 1, "contact is hidden in de")
	assert.Equal(t, ir.NodeAggregateID("home"), refs[0].Node.AggregateID)
	assert.Equal(t, "related", refs[0].Name)
	assert.Equal(t, int64(2), refs[0].Properties.Value("weight"))

	refs, err = g.Subgraph(testCS, de, WithoutRestrictions).FindReferences(ctx, "about", FindReferencesFilter{})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, ir.NodeAggregateID("contact"), refs[0].Node.AggregateID)

	refs, err = g.Subgraph(testCS, de, WithoutRestrictions).FindReferences(ctx, "about", FindReferencesFilter{
		ReferencePropertyValue: queryir.GreaterThan("weight", 1),
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, ir.NodeAggregateID("home"), refs[0].Node.AggregateID)

	refs, err = g.Subgraph(testCS, de, Frontend).FindReferences(ctx, "about", FindReferencesFilter{ReferenceName: "author"})
	require.NoError(t, err)
	assert.Empty(t, refs)

	back, err := g.Subgraph(testCS, en, Frontend).FindBackReferences(ctx, "home", FindBackReferencesFilter{})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, ir.NodeAggregateID("about"), back[0].Node.AggregateID)
	assert.Equal(t, "About", back[0].Node.Property("title"), "source variant of en")

	back, err = g.Subgraph(testCS, en, Frontend).FindBackReferences(ctx, "contact", FindBackReferencesFilter{})
	require.NoError(t, err)
	assert.Empty(t, back, "only the de variant references contact")
}
