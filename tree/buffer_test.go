package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/utils/unittest"
)

func TestBufferAddAndLookup(t *testing.T) {
	buffer := NewBlockBuffer(8)

	block := unittest.BlockFixture()
	require.NoError(t, buffer.Add(block))
	require.Equal(t, 1, buffer.Len())

	byHash, ok := buffer.ByHash(block.Hash())
	require.True(t, ok)
	assert.Equal(t, block, byHash)

	children := buffer.Children(block.ParentHash())
	require.Len(t, children, 1)
	assert.Equal(t, block, children[0])

	// re-adding is a no-op
	require.NoError(t, buffer.Add(block))
	assert.Equal(t, 1, buffer.Len())
}

func TestBufferSiblings(t *testing.T) {
	buffer := NewBlockBuffer(8)

	parent := unittest.HeaderFixture()
	left := unittest.BlockWithParentFixture(parent)
	right := unittest.BlockWithParentFixture(parent)
	require.NoError(t, buffer.Add(left))
	require.NoError(t, buffer.Add(right))

	children := buffer.Children(parent.Hash())
	assert.Len(t, children, 2)

	buffer.Remove(left.Hash())
	children = buffer.Children(parent.Hash())
	require.Len(t, children, 1)
	assert.Equal(t, right.Hash(), children[0].Hash())
}

// TestBufferEvictsOldestFirst checks the FIFO eviction policy at capacity.
func TestBufferEvictsOldestFirst(t *testing.T) {
	buffer := NewBlockBuffer(2)

	first := unittest.BlockFixture()
	second := unittest.BlockFixture()
	third := unittest.BlockFixture()

	require.NoError(t, buffer.Add(first))
	require.NoError(t, buffer.Add(second))
	require.NoError(t, buffer.Add(third))

	require.Equal(t, 2, buffer.Len())
	_, ok := buffer.ByHash(first.Hash())
	assert.False(t, ok, "oldest block should have been evicted")
	_, ok = buffer.ByHash(second.Hash())
	assert.True(t, ok)
	_, ok = buffer.ByHash(third.Hash())
	assert.True(t, ok)
}

// TestBufferEvictionSkipsRemoved checks that eviction skips order entries
// whose block was already removed explicitly.
func TestBufferEvictionSkipsRemoved(t *testing.T) {
	buffer := NewBlockBuffer(2)

	first := unittest.BlockFixture()
	second := unittest.BlockFixture()
	require.NoError(t, buffer.Add(first))
	require.NoError(t, buffer.Add(second))

	buffer.Remove(first.Hash())
	require.Equal(t, 1, buffer.Len())

	third := unittest.BlockFixture()
	fourth := unittest.BlockFixture()
	require.NoError(t, buffer.Add(third))
	require.NoError(t, buffer.Add(fourth))

	require.Equal(t, 2, buffer.Len())
	_, ok := buffer.ByHash(second.Hash())
	assert.False(t, ok, "second should be the one evicted")
	_, ok = buffer.ByHash(third.Hash())
	assert.True(t, ok)
	_, ok = buffer.ByHash(fourth.Hash())
	assert.True(t, ok)
}

func TestBufferPruneBelowOrAt(t *testing.T) {
	buffer := NewBlockBuffer(8)

	parent := unittest.HeaderFixture()
	chain := unittest.ChainFixture(4, parent)
	for _, block := range chain {
		require.NoError(t, buffer.Add(block))
	}

	cutoff := chain[1].Number()
	buffer.PruneBelowOrAt(cutoff)

	require.Equal(t, 2, buffer.Len())
	for _, block := range chain {
		_, ok := buffer.ByHash(block.Hash())
		assert.Equal(t, block.Number() > cutoff, ok)
	}
}
