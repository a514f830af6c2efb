package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NumHash pairs a block number with the hash of the block at that number.
// It is the compact reference used for chain tips and fork points.
type NumHash struct {
	Number uint64
	Hash   common.Hash
}

func (n NumHash) String() string {
	return fmt.Sprintf("#%d (%x)", n.Number, n.Hash[:4])
}

// SealedBlock is an immutable block whose hash has been computed exactly once
// and travels with the block. All identity comparisons in the tree go through
// the sealed hash, never through (number, parent), since competing blocks at
// equal height are expected.
type SealedBlock struct {
	block *types.Block
	hash  common.Hash
}

// Seal computes the hash of the given block and wraps it as a SealedBlock.
func Seal(block *types.Block) *SealedBlock {
	return &SealedBlock{
		block: block,
		hash:  block.Hash(),
	}
}

// SealWithHash wraps a block with an already known hash, skipping the header
// hash computation. The caller guarantees the hash belongs to the block.
func SealWithHash(block *types.Block, hash common.Hash) *SealedBlock {
	return &SealedBlock{
		block: block,
		hash:  hash,
	}
}

func (b *SealedBlock) Hash() common.Hash       { return b.hash }
func (b *SealedBlock) Number() uint64          { return b.block.NumberU64() }
func (b *SealedBlock) ParentHash() common.Hash { return b.block.ParentHash() }

// NumHash returns the (number, hash) reference of this block.
func (b *SealedBlock) NumHash() NumHash {
	return NumHash{Number: b.Number(), Hash: b.hash}
}

// ParentNumHash returns the (number, hash) reference of the parent block.
// Calling this on the genesis block is invalid; the tree guards the genesis
// boundary before resolving parents.
func (b *SealedBlock) ParentNumHash() NumHash {
	return NumHash{Number: b.Number() - 1, Hash: b.ParentHash()}
}

func (b *SealedBlock) Header() *types.Header            { return b.block.Header() }
func (b *SealedBlock) Transactions() types.Transactions { return b.block.Transactions() }
func (b *SealedBlock) Uncles() []*types.Header          { return b.block.Uncles() }
func (b *SealedBlock) Block() *types.Block              { return b.block }

func (b *SealedBlock) String() string {
	return b.NumHash().String()
}

// SealedBlockWithSenders extends a sealed block with the recovered sender
// addresses of its transactions, index-aligned with Transactions().
type SealedBlockWithSenders struct {
	*SealedBlock
	Senders []common.Address
}

// NewSealedBlockWithSenders pairs a sealed block with its recovered senders.
// The number of senders must match the number of transactions.
func NewSealedBlockWithSenders(block *SealedBlock, senders []common.Address) (*SealedBlockWithSenders, error) {
	if len(senders) != len(block.Transactions()) {
		return nil, fmt.Errorf("sender count (%d) does not match transaction count (%d)",
			len(senders), len(block.Transactions()))
	}
	return &SealedBlockWithSenders{
		SealedBlock: block,
		Senders:     senders,
	}, nil
}
