package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
)

func origin(lang string) dimension.OriginDimensionSpacePoint {
	return dimension.NewOriginDimensionSpacePoint(map[string]string{"language": lang})
}

func TestFlatMap_RestoresPointsAndNestedValues(t *testing.T) {
	cmd, err := NewCreateNodeAggregateWithNode("user-test", "text-1", "Acme:Text", origin("de"), "page-1")
	require.NoError(t, err)
	cmd = cmd.WithNodeName("intro").WithInitialPropertyValues(map[string]any{"text": "Hallo", "views": 3})

	flat, err := ToFlatMap(cmd)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"language": "de"}, flat["originDimensionSpacePoint"])

	restored, err := FromFlatMap(cmd.CommandType(), flat)
	require.NoError(t, err)

	created, ok := restored.(CreateNodeAggregateWithNode)
	require.True(t, ok)
	assert.True(t, created.OriginDimensionSpacePoint.Equal(origin("de")))
	assert.Equal(t, ir.NodeName("intro"), created.NodeName)
	assert.Equal(t, "Hallo", created.InitialPropertyValues["text"])
	assert.Equal(t, float64(3), created.InitialPropertyValues["views"])
}

func TestFlatMap_PartialPublishSelectors(t *testing.T) {
	cmd := DiscardIndividualNodesFromWorkspace{
		WorkspaceName: "user-test",
		NodesToDiscard: []event.NodeRef{
			{NodeAggregateID: "a", DimensionSpacePoint: dimension.NewDimensionSpacePoint(map[string]string{"language": "en"})},
			{NodeAggregateID: "b"},
		},
	}
	flat, err := ToFlatMap(cmd)
	require.NoError(t, err)

	restored, err := FromFlatMap(cmd.CommandType(), flat)
	require.NoError(t, err)
	refs := restored.(DiscardIndividualNodesFromWorkspace).NodesToDiscard
	require.Len(t, refs, 2)
	assert.Equal(t, "en", refs[0].DimensionSpacePoint.Coordinate("language"))
	assert.Empty(t, refs[1].DimensionSpacePoint.Coordinates())
}

func TestFromFlatMap_Errors(t *testing.T) {
	_, err := FromFlatMap("TeleportNode", map[string]any{})
	assert.ErrorContains(t, err, "unknown command type")

	_, err = FromFlatMap("SetNodeProperties", map[string]any{
		"workspaceName":   "user-test",
		"nodeAggregateId": "a",
		"originDimensionSpacePoint": map[string]any{
			"language": 7,
		},
		"propertyValues": map[string]any{"title": "x"},
	})
	assert.ErrorContains(t, err, "coordinate must be a string")

	_, err = FromFlatMap("SetNodeProperties", map[string]any{
		"workspaceName":   "user-test",
		"nodeAggregateId": "a",
	})
	assert.ErrorContains(t, err, "no property values")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr string
	}{
		{
			name:    "self parent",
			cmd:     CreateNodeAggregateWithNode{WorkspaceName: "live", NodeAggregateID: "a", NodeTypeName: "T", ParentNodeAggregateID: "a"},
			wantErr: "its own parent",
		},
		{
			name:    "bad node name",
			cmd:     ChangeNodeAggregateName{WorkspaceName: "live", NodeAggregateID: "a", NewNodeName: "Not Valid"},
			wantErr: "invalid node name",
		},
		{
			name:    "bad strategy",
			cmd:     RemoveNodeAggregate{WorkspaceName: "live", NodeAggregateID: "a", Strategy: "someVariants"},
			wantErr: "invalid node variant selection strategy",
		},
		{
			name:    "move without target",
			cmd:     MoveNodeAggregate{WorkspaceName: "live", NodeAggregateID: "a", Strategy: MoveScatter},
			wantErr: "needs a new parent",
		},
		{
			name:    "own base",
			cmd:     CreateWorkspace{WorkspaceName: "live", BaseWorkspaceName: "live"},
			wantErr: "its own base",
		},
		{
			name:    "empty selection",
			cmd:     PublishIndividualNodesFromWorkspace{WorkspaceName: "user-test"},
			wantErr: "at least one node",
		},
		{
			name:    "same variant origin",
			cmd:     CreateNodeVariant{WorkspaceName: "live", NodeAggregateID: "a", SourceOrigin: origin("de"), TargetOrigin: origin("de")},
			wantErr: "source and target origin",
		},
		{
			name: "valid rebase",
			cmd:  RebaseWorkspace{WorkspaceName: "user-test", Strategy: RebaseForce},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMatchesNodeRef(t *testing.T) {
	set := SetNodeProperties{WorkspaceName: "ws", NodeAggregateID: "a", OriginDimensionSpacePoint: origin("de"), PropertyValues: map[string]any{"x": 1}}

	assert.True(t, set.MatchesNodeRef(event.NodeRef{NodeAggregateID: "a"}))
	assert.True(t, set.MatchesNodeRef(event.NodeRef{NodeAggregateID: "a", DimensionSpacePoint: origin("de").ToDimensionSpacePoint()}))
	assert.False(t, set.MatchesNodeRef(event.NodeRef{NodeAggregateID: "a", DimensionSpacePoint: origin("en").ToDimensionSpacePoint()}))
	assert.False(t, set.MatchesNodeRef(event.NodeRef{NodeAggregateID: "b"}))

	rename := ChangeNodeAggregateName{WorkspaceName: "ws", NodeAggregateID: "a", NewNodeName: "x"}
	assert.True(t, rename.MatchesNodeRef(event.NodeRef{NodeAggregateID: "a", DimensionSpacePoint: origin("en").ToDimensionSpacePoint()}))

	refs := []event.NodeRef{{NodeAggregateID: "z"}, {NodeAggregateID: "a"}}
	assert.True(t, MatchesAny(set, refs))
}

func TestCopyNodesRecursively_MappingAndMatching(t *testing.T) {
	snapshot := NodeSubtreeSnapshot{
		NodeAggregateID: "page",
		NodeTypeName:    "Acme:Page",
		ChildNodes: []NodeSubtreeSnapshot{
			{NodeAggregateID: "main", NodeTypeName: "Acme:ContentCollection", ChildNodes: []NodeSubtreeSnapshot{
				{NodeAggregateID: "text", NodeTypeName: "Acme:Text"},
			}},
		},
	}
	assert.Equal(t, []ir.NodeAggregateID{"page", "main", "text"}, snapshot.AggregateIDs())

	cmd := CopyNodesRecursively{
		WorkspaceName:               "user-test",
		NodeTreeToInsert:            snapshot,
		TargetDimensionSpacePoint:   origin("de"),
		TargetParentNodeAggregateID: "sites",
		NodeAggregateIDMapping:      map[string]ir.NodeAggregateID{"page": "page-copy", "main": "main-copy"},
	}
	assert.ErrorContains(t, cmd.Validate(), `no new id mapped for copied node "text"`)

	cmd.NodeAggregateIDMapping["text"] = "text-copy"
	require.NoError(t, cmd.Validate())
	assert.True(t, cmd.MatchesNodeRef(event.NodeRef{NodeAggregateID: "page-copy"}))
	assert.False(t, cmd.MatchesNodeRef(event.NodeRef{NodeAggregateID: "page"}))

	flat, err := ToFlatMap(cmd)
	require.NoError(t, err)
	restored, err := FromFlatMap(cmd.CommandType(), flat)
	require.NoError(t, err)
	tree := restored.(CopyNodesRecursively).NodeTreeToInsert
	assert.Equal(t, []ir.NodeAggregateID{"page", "main", "text"}, tree.AggregateIDs())
}

func TestTypesAreRegistered(t *testing.T) {
	types := Types()
	assert.Contains(t, types, "CopyNodesRecursively")
	assert.Contains(t, types, "PublishWorkspace")
	assert.Len(t, types, 27)
}
