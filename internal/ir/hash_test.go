package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionSpacePointHashDeterminism(t *testing.T) {
	a := DimensionSpacePointHash(map[string]string{"language": "de", "market": "ch"})
	b := DimensionSpacePointHash(map[string]string{"market": "ch", "language": "de"})

	assert.Equal(t, a, b, "key order must not influence the hash")
	assert.Len(t, a, 64, "SHA-256 hex is 64 characters")
}

func TestDimensionSpacePointHashChangesWithCoordinates(t *testing.T) {
	de := DimensionSpacePointHash(map[string]string{"language": "de"})
	en := DimensionSpacePointHash(map[string]string{"language": "en"})
	other := DimensionSpacePointHash(map[string]string{"locale": "de"})

	assert.NotEqual(t, de, en)
	assert.NotEqual(t, de, other)
}

func TestDimensionSpacePointHashEmpty(t *testing.T) {
	assert.Equal(t, DimensionSpacePointHash(nil), DimensionSpacePointHash(map[string]string{}))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "ab" + 0x00 + "c" must differ from "a" + 0x00 + "bc"
	h1 := hashWithDomain("ab", []byte("c"))
	h2 := hashWithDomain("a", []byte("bc"))
	assert.NotEqual(t, h1, h2)
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{"language":"de"}`)
	assert.NotEqual(t,
		hashWithDomain(DomainDimensionSpacePoint, data),
		hashWithDomain(DomainStateDigest, data),
	)
}

func TestTetheredNodeAggregateID(t *testing.T) {
	id1 := TetheredNodeAggregateID("page-1", "main")
	id2 := TetheredNodeAggregateID("page-1", "main")
	id3 := TetheredNodeAggregateID("page-2", "main")
	id4 := TetheredNodeAggregateID("page-1", "footer")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id1, id4)
	assert.Len(t, string(id1), 32)
	require.NoError(t, id1.Validate())
}

func TestStateDigest(t *testing.T) {
	d1, err := StateDigest(map[string]any{"nodes": []any{"a", "b"}})
	require.NoError(t, err)
	d2, err := StateDigest(map[string]any{"nodes": []any{"b", "a"}})
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2, "array order is significant")

	_, err = hex.DecodeString(d1)
	assert.NoError(t, err)

	_, err = StateDigest(map[string]any{"bad": 1.5})
	assert.Error(t, err)
}
