package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator_Sequence(t *testing.T) {
	gen := NewSequenceGenerator("cs")

	assert.Equal(t, "cs-0001", gen.Generate())
	assert.Equal(t, "cs-0002", gen.Generate())
	assert.Equal(t, 2, gen.Count())

	gen.Reset()
	assert.Equal(t, "cs-0001", gen.Generate())
}

func TestSequenceGenerator_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-0001", NewSequenceGenerator("").Generate())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceGenerator("t")

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, dup := seen.LoadOrStore(gen.Generate(), true)
				assert.False(t, dup)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, gen.Count())
}

func TestContentRepository_LoadsExampleConfig(t *testing.T) {
	repo := ContentRepository(t)
	assert.True(t, repo.Graph.Contains(Point("gsw")))
	assert.True(t, repo.NodeTypes.Has("Acme:Page"))
}
