// Package unittest provides test fixtures and helpers shared across the
// test suites. Fixtures produce structurally valid, randomized values;
// tests override only the fields they assert on.
package unittest

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
)

// HashFixture returns a random 32-byte hash.
func HashFixture() common.Hash {
	var hash common.Hash
	_, _ = rand.Read(hash[:])
	return hash
}

// AddressFixture returns a random 20-byte address.
func AddressFixture() common.Address {
	var addr common.Address
	_, _ = rand.Read(addr[:])
	return addr
}

// KeyFixture returns a fresh secp256k1 private key.
func KeyFixture() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}

// HeaderFixture returns a header at a random low height with randomized
// ancestry.
func HeaderFixture() *types.Header {
	header := &types.Header{
		ParentHash: HashFixture(),
		Root:       HashFixture(),
		Number:     big.NewInt(int64(randUint64() % 1000)),
		GasLimit:   30_000_000,
		Time:       1700000000,
		Difficulty: big.NewInt(0),
		BaseFee:    big.NewInt(1_000_000_000),
	}
	return header
}

// GenesisFixture returns an empty-bodied block at height zero, suitable for
// bootstrapping a store.
func GenesisFixture() *chain.SealedBlock {
	header := HeaderFixture()
	header.Number = big.NewInt(0)
	header.ParentHash = common.Hash{}
	return SealedBlock(header)
}

// HeaderWithParentFixture returns a header that is a valid direct child of
// the given parent under the post-merge rules.
func HeaderWithParentFixture(parent *types.Header) *types.Header {
	return &types.Header{
		ParentHash: parent.Hash(),
		Root:       HashFixture(),
		Number:     new(big.Int).Add(parent.Number, big.NewInt(1)),
		GasLimit:   parent.GasLimit,
		Time:       parent.Time + 12,
		Difficulty: big.NewInt(0),
		BaseFee:    big.NewInt(1_000_000_000),
	}
}

// BlockFixture returns a sealed block with an empty body around a random
// header.
func BlockFixture() *chain.SealedBlock {
	return SealedBlock(HeaderFixture())
}

// BlockWithParentFixture returns an empty-bodied sealed block that is a
// valid direct child of the given parent.
func BlockWithParentFixture(parent *types.Header) *chain.SealedBlock {
	return SealedBlock(HeaderWithParentFixture(parent))
}

// SealedBlock wraps a header into an empty-bodied sealed block with the
// body commitments set accordingly.
func SealedBlock(header *types.Header) *chain.SealedBlock {
	header.TxHash = types.EmptyTxsHash
	header.UncleHash = types.EmptyUncleHash
	header.ReceiptHash = types.EmptyReceiptsHash
	return chain.Seal(types.NewBlockWithHeader(header))
}

// ChainFixture returns n empty-bodied blocks forming a contiguous chain on
// top of the given parent.
func ChainFixture(n int, parent *types.Header) []*chain.SealedBlock {
	blocks := make([]*chain.SealedBlock, 0, n)
	for i := 0; i < n; i++ {
		block := BlockWithParentFixture(parent)
		blocks = append(blocks, block)
		parent = block.Header()
	}
	return blocks
}

// WithSenders pairs a block with an empty sender list; the fixture blocks
// carry no transactions.
func WithSenders(block *chain.SealedBlock) *chain.SealedBlockWithSenders {
	withSenders, err := chain.NewSealedBlockWithSenders(block, nil)
	if err != nil {
		panic(err)
	}
	return withSenders
}

// AccountFixture returns a random account record.
func AccountFixture() *execution.Account {
	return &execution.Account{
		Nonce:    randUint64() % 100,
		Balance:  big.NewInt(int64(randUint64() % 1_000_000)),
		CodeHash: HashFixture(),
	}
}

// OutputFixture returns an execution output whose state root matches the
// block header and whose delta creates one random account.
func OutputFixture(block *chain.SealedBlock) *execution.Output {
	return &execution.Output{
		GasUsed:   block.Header().GasUsed,
		StateRoot: block.Header().Root,
		Delta: &execution.Delta{
			Accounts: []execution.AccountChange{
				{
					Address:  AddressFixture(),
					Previous: nil,
					Current:  AccountFixture(),
				},
			},
		},
	}
}

// OutputWithDelta returns an execution output for the block carrying the
// given delta.
func OutputWithDelta(block *chain.SealedBlock, delta *execution.Delta) *execution.Output {
	return &execution.Output{
		GasUsed:   block.Header().GasUsed,
		StateRoot: block.Header().Root,
		Delta:     delta,
	}
}

func randUint64() uint64 {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}
