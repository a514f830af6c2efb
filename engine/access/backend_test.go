package access

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
	"github.com/tcoratger/reth/utils/unittest"
)

type stubChain struct {
	tip       chain.NumHash
	finalized uint64
	hashes    map[uint64]common.Hash
	pending   *chain.SealedBlockWithSenders
	receipts  []*types.Receipt
}

func (s *stubChain) CanonicalTip() chain.NumHash  { return s.tip }
func (s *stubChain) FinalizedBlockNumber() uint64 { return s.finalized }

func (s *stubChain) CanonicalHashByNumber(number uint64) (common.Hash, error) {
	hash, ok := s.hashes[number]
	if !ok {
		return common.Hash{}, storage.ErrNotFound
	}
	return hash, nil
}

func (s *stubChain) PendingBlock() (*chain.SealedBlockWithSenders, bool) {
	return s.pending, s.pending != nil
}

func (s *stubChain) PendingBlockAndReceipts() (*chain.SealedBlockWithSenders, []*types.Receipt, bool) {
	if s.pending == nil {
		return nil, nil, false
	}
	return s.pending, s.receipts, true
}

func (s *stubChain) SideChainBlockByHash(hash common.Hash) (*chain.SealedBlockWithSenders, bool) {
	return nil, false
}

// countingCache serves blocks from a map and can force a number of misses
// per hash, to simulate a reorg racing the read.
type countingCache struct {
	blocks map[common.Hash]*chain.SealedBlock
	misses map[common.Hash]int
	calls  int
}

func newCountingCache() *countingCache {
	return &countingCache{
		blocks: make(map[common.Hash]*chain.SealedBlock),
		misses: make(map[common.Hash]int),
	}
}

func (c *countingCache) SealedBlock(hash common.Hash) (*chain.SealedBlock, error) {
	c.calls++
	if c.misses[hash] > 0 {
		c.misses[hash]--
		return nil, storage.ErrNotFound
	}
	block, ok := c.blocks[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return block, nil
}

func (c *countingCache) BlockAndReceipts(hash common.Hash) (*chain.SealedBlock, []*types.Receipt, error) {
	block, err := c.SealedBlock(hash)
	if err != nil {
		return nil, nil, err
	}
	return block, nil, nil
}

func harness(t *testing.T) (*Backend, *stubChain, *countingCache) {
	block := unittest.BlockFixture()
	chainReader := &stubChain{
		tip:    block.NumHash(),
		hashes: map[uint64]common.Hash{block.Number(): block.Hash()},
	}
	cache := newCountingCache()
	cache.blocks[block.Hash()] = block
	backend := NewBackend(zerolog.Nop(), chainReader, cache, time.Millisecond)
	return backend, chainReader, cache
}

func TestBlockByHash(t *testing.T) {
	backend, chainReader, cache := harness(t)
	hash := chainReader.tip.Hash

	block, err := backend.BlockByID(context.Background(), chain.ByHash(hash))
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, hash, block.Hash())
	assert.Equal(t, 1, cache.calls)

	// an unknown hash is absence, not an error, and does not retry
	cache.calls = 0
	block, err = backend.BlockByID(context.Background(), chain.ByHash(unittest.HashFixture()))
	require.NoError(t, err)
	assert.Nil(t, block)
	assert.Equal(t, 1, cache.calls)
}

// TestLatestRetriesOnceOnMiss pins the reorg race contract: a latest-tag
// read that misses re-resolves and retries exactly once.
func TestLatestRetriesOnceOnMiss(t *testing.T) {
	backend, chainReader, cache := harness(t)
	hash := chainReader.tip.Hash
	cache.misses[hash] = 1

	block, err := backend.BlockByID(context.Background(), chain.Latest())
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, hash, block.Hash())
	assert.Equal(t, 2, cache.calls)
}

// TestLatestGivesUpAfterSecondMiss checks there is never a third attempt.
func TestLatestGivesUpAfterSecondMiss(t *testing.T) {
	backend, chainReader, cache := harness(t)
	cache.misses[chainReader.tip.Hash] = 10

	block, err := backend.BlockByID(context.Background(), chain.Latest())
	require.NoError(t, err)
	assert.Nil(t, block)
	assert.Equal(t, 2, cache.calls)
}

// TestNumberMissDoesNotRetry checks that only tip-relative identifiers get
// the retry: an explicit number either exists or it does not.
func TestNumberMissDoesNotRetry(t *testing.T) {
	backend, chainReader, cache := harness(t)
	number := chainReader.tip.Number
	cache.misses[chainReader.tip.Hash] = 1

	block, err := backend.BlockByID(context.Background(), chain.ByNumber(number))
	require.NoError(t, err)
	assert.Nil(t, block)
	assert.Equal(t, 1, cache.calls)

	// a number above the tip is plain absence
	block, err = backend.BlockByID(context.Background(), chain.ByNumber(number+100))
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestFinalizedResolvesThroughIndex(t *testing.T) {
	backend, chainReader, cache := harness(t)
	finalized := unittest.BlockFixture()
	chainReader.finalized = finalized.Number()
	chainReader.hashes[finalized.Number()] = finalized.Hash()
	cache.blocks[finalized.Hash()] = finalized

	block, err := backend.BlockByID(context.Background(), chain.Finalized())
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, finalized.Hash(), block.Hash())
}

// TestFinalizedMissDoesNotRetry pins the retry scope to the latest tag: a
// finalized-tag miss answers absence after a single read.
func TestFinalizedMissDoesNotRetry(t *testing.T) {
	backend, chainReader, cache := harness(t)
	finalized := unittest.BlockFixture()
	chainReader.finalized = finalized.Number()
	chainReader.hashes[finalized.Number()] = finalized.Hash()
	cache.blocks[finalized.Hash()] = finalized
	cache.misses[finalized.Hash()] = 1

	block, err := backend.BlockByID(context.Background(), chain.Finalized())
	require.NoError(t, err)
	assert.Nil(t, block)
	assert.Equal(t, 1, cache.calls)
}

func TestPendingServedFromTree(t *testing.T) {
	backend, chainReader, cache := harness(t)
	pending := unittest.WithSenders(unittest.BlockFixture())
	chainReader.pending = pending

	block, err := backend.BlockByID(context.Background(), chain.Pending())
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, pending.Hash(), block.Hash())
	assert.Equal(t, 0, cache.calls, "pending blocks never touch the store")

	// without a pending block, the tag falls back to the latest block
	chainReader.pending = nil
	block, err = backend.BlockByID(context.Background(), chain.Pending())
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, chainReader.tip.Hash, block.Hash())
}

func TestBlockTransactionCount(t *testing.T) {
	backend, chainReader, _ := harness(t)

	count, ok, err := backend.BlockTransactionCount(context.Background(), chain.ByHash(chainReader.tip.Hash))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0), count)

	_, ok, err = backend.BlockTransactionCount(context.Background(), chain.ByHash(unittest.HashFixture()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOmmers(t *testing.T) {
	backend, chainReader, _ := harness(t)

	ommers, err := backend.Ommers(context.Background(), chain.ByHash(chainReader.tip.Hash))
	require.NoError(t, err)
	assert.Empty(t, ommers)

	// pending blocks have no uncles post-merge
	ommers, err = backend.Ommers(context.Background(), chain.Pending())
	require.NoError(t, err)
	require.NotNil(t, ommers)
	assert.Empty(t, ommers)

	ommer, err := backend.OmmerByIndex(context.Background(), chain.ByHash(chainReader.tip.Hash), 0)
	require.NoError(t, err)
	assert.Nil(t, ommer)
}
