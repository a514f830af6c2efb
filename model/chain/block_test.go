package chain_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/utils/unittest"
)

func TestSealComputesHashOnce(t *testing.T) {
	header := unittest.HeaderFixture()
	header.TxHash = types.EmptyTxsHash
	header.UncleHash = types.EmptyUncleHash
	block := types.NewBlockWithHeader(header)

	sealed := chain.Seal(block)
	assert.Equal(t, block.Hash(), sealed.Hash())
	assert.Equal(t, header.Number.Uint64(), sealed.Number())
	assert.Equal(t, header.ParentHash, sealed.ParentHash())

	numHash := sealed.NumHash()
	assert.Equal(t, sealed.Number(), numHash.Number)
	assert.Equal(t, sealed.Hash(), numHash.Hash)

	parentNumHash := sealed.ParentNumHash()
	assert.Equal(t, sealed.Number()-1, parentNumHash.Number)
	assert.Equal(t, header.ParentHash, parentNumHash.Hash)
}

func TestSealWithHashSkipsComputation(t *testing.T) {
	block := unittest.BlockFixture()
	fake := unittest.HashFixture()

	sealed := chain.SealWithHash(block.Block(), fake)
	assert.Equal(t, fake, sealed.Hash())
}

func TestSealedBlockWithSendersCountMismatch(t *testing.T) {
	block := unittest.BlockFixture()

	// the fixture block has no transactions, so one sender is one too many
	_, err := chain.NewSealedBlockWithSenders(block, []common.Address{unittest.AddressFixture()})
	require.Error(t, err)

	withSenders, err := chain.NewSealedBlockWithSenders(block, nil)
	require.NoError(t, err)
	assert.Equal(t, block.Hash(), withSenders.Hash())
}
