package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/utils/unittest"
)

func TestBlockIDTags(t *testing.T) {
	assert.True(t, chain.Latest().IsLatest())
	assert.True(t, chain.Pending().IsPending())
	assert.True(t, chain.Finalized().IsFinalized())
	assert.True(t, chain.Earliest().IsEarliest())

	assert.False(t, chain.Latest().IsPending())
	assert.False(t, chain.ByNumber(7).IsLatest())
}

func TestBlockIDNumberAndHash(t *testing.T) {
	number, ok := chain.ByNumber(7).AsNumber()
	require.True(t, ok)
	assert.Equal(t, uint64(7), number)
	_, ok = chain.Latest().AsNumber()
	assert.False(t, ok)

	hash := unittest.HashFixture()
	got, ok := chain.ByHash(hash).AsHash()
	require.True(t, ok)
	assert.Equal(t, hash, got)
	_, ok = chain.ByNumber(7).AsHash()
	assert.False(t, ok)
}
