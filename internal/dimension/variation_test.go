package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func languageGraph(t *testing.T) *VariationGraph {
	t.Helper()
	source, err := NewSource(languageDimension(t))
	require.NoError(t, err)
	return NewVariationGraph(source)
}

func point(language, market string) DimensionSpacePoint {
	return NewDimensionSpacePoint(map[string]string{"language": language, "market": market})
}

func twoDimensionGraph(t *testing.T) *VariationGraph {
	t.Helper()
	language, err := NewContentDimension("language", []ValueConfig{
		{Value: "mul"},
		{Value: "de", Generalization: "mul"},
	})
	require.NoError(t, err)
	market, err := NewContentDimension("market", []ValueConfig{
		{Value: "world"},
		{Value: "ch", Generalization: "world"},
	})
	require.NoError(t, err)
	source, err := NewSource(language, market)
	require.NoError(t, err)
	return NewVariationGraph(source)
}

func TestVariationGraph_SpecializationSet(t *testing.T) {
	g := languageGraph(t)

	tests := []struct {
		name     string
		origin   DimensionSpacePoint
		include  bool
		excluded DimensionSpacePointSet
		want     DimensionSpacePointSet
	}{
		{
			name:    "with origin",
			origin:  lang("de"),
			include: true,
			want:    NewDimensionSpacePointSet(lang("de"), lang("gsw")),
		},
		{
			name:   "without origin",
			origin: lang("mul"),
			want:   NewDimensionSpacePointSet(lang("de"), lang("gsw"), lang("en")),
		},
		{
			name:     "excluded subtree",
			origin:   lang("mul"),
			include:  true,
			excluded: NewDimensionSpacePointSet(lang("gsw")),
			want:     NewDimensionSpacePointSet(lang("mul"), lang("de"), lang("en")),
		},
		{
			name:    "leaf",
			origin:  lang("fr"),
			include: true,
			want:    NewDimensionSpacePointSet(lang("fr")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.SpecializationSet(tt.origin, tt.include, tt.excluded)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestVariationGraph_SpecializationSetOutsideSubspace(t *testing.T) {
	g := languageGraph(t)

	_, err := g.SpecializationSet(lang("xx"), true, DimensionSpacePointSet{})
	require.Error(t, err)
	assert.True(t, IsPointNotFound(err))
}

func TestVariationGraph_Generalizations(t *testing.T) {
	g := languageGraph(t)

	assert.True(t, g.IndexedGeneralizations(lang("gsw")).Equal(NewDimensionSpacePointSet(lang("de"), lang("mul"))))
	assert.True(t, g.IndexedGeneralizations(lang("mul")).IsEmpty())
	assert.True(t, g.IndexedSpecializations(lang("de")).Equal(NewDimensionSpacePointSet(lang("gsw"))))

	primary, ok := g.PrimaryGeneralization(lang("gsw"))
	require.True(t, ok)
	assert.True(t, primary.Equal(lang("de")))

	_, ok = g.PrimaryGeneralization(lang("mul"))
	assert.False(t, ok)

	assert.True(t, g.RootGeneralizations().Equal(NewDimensionSpacePointSet(lang("mul"), lang("fr"))))
}

func TestVariationGraph_WeightedGeneralizations(t *testing.T) {
	g := languageGraph(t)

	weighted := g.WeightedGeneralizations(lang("gsw"))
	require.Len(t, weighted, 2)
	assert.True(t, weighted[0].Point.Equal(lang("de")))
	assert.Equal(t, 1, weighted[0].Weight)
	assert.True(t, weighted[1].Point.Equal(lang("mul")))
	assert.Equal(t, 2, weighted[1].Weight)

	specials := g.WeightedSpecializations(lang("mul"))
	require.Len(t, specials, 3)
	assert.Equal(t, 2, specials[2].Weight)
	assert.True(t, specials[2].Point.Equal(lang("gsw")))

	assert.Nil(t, g.WeightedGeneralizations(lang("xx")))
}

func TestVariationGraph_VariantType(t *testing.T) {
	g := languageGraph(t)

	assert.Equal(t, VariantTypeSame, g.VariantType(lang("de"), lang("de")))
	assert.Equal(t, VariantTypeGeneralization, g.VariantType(lang("de"), lang("gsw")))
	assert.Equal(t, VariantTypeSpecialization, g.VariantType(lang("gsw"), lang("mul")))
	assert.Equal(t, VariantTypePeer, g.VariantType(lang("en"), lang("de")))
	assert.Equal(t, VariantTypePeer, g.VariantType(lang("fr"), lang("mul")))
}

func TestVariationGraph_PriorityDecidesPrimaryGeneralization(t *testing.T) {
	g := twoDimensionGraph(t)

	// Both (mul, ch) and (de, world) are direct generalizations of (de, ch);
	// dropping the lower-priority market costs less than dropping language.
	primary, ok := g.PrimaryGeneralization(point("de", "ch"))
	require.True(t, ok)
	assert.True(t, primary.Equal(point("de", "world")))

	generalizations := g.IndexedGeneralizations(point("de", "ch"))
	assert.True(t, generalizations.Equal(NewDimensionSpacePointSet(
		point("mul", "ch"), point("de", "world"), point("mul", "world"),
	)))

	weighted := g.WeightedGeneralizations(point("de", "ch"))
	require.Len(t, weighted, 3)
	assert.True(t, weighted[0].Point.Equal(point("de", "world")))
	assert.True(t, weighted[2].Point.Equal(point("mul", "world")))

	assert.Equal(t, VariantTypePeer, g.VariantType(point("mul", "ch"), point("de", "world")))
	assert.True(t, g.RootGeneralizations().Equal(NewDimensionSpacePointSet(point("mul", "world"))))
}

func TestVariationGraph_EveryChainEndsAtRoot(t *testing.T) {
	g := twoDimensionGraph(t)
	roots := g.RootGeneralizations()

	for _, p := range g.DimensionSpacePoints().Points() {
		current := p
		for steps := 0; ; steps++ {
			require.Less(t, steps, 10, "fallback chain from %s does not terminate", p)
			next, ok := g.PrimaryGeneralization(current)
			if !ok {
				break
			}
			current = next
		}
		assert.True(t, roots.Contains(current), "chain from %s ended at non-root %s", p, current)
	}
}

func TestVariationGraph_Dimensionless(t *testing.T) {
	source, err := NewSource()
	require.NoError(t, err)
	g := NewVariationGraph(source)

	assert.True(t, g.Contains(EmptyPoint()))
	set, err := g.SpecializationSet(EmptyPoint(), true, DimensionSpacePointSet{})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.True(t, g.RootGeneralizations().Contains(EmptyPoint()))
}
