// Package storage defines the contract between the blockchain tree and the
// persistent key-value store holding the canonical chain. Binary encodings
// are the store's concern; the tree consumes opaque read/write calls only.
package storage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
)

// HeaderReader provides read access to canonical chain headers and indices.
type HeaderReader interface {
	// HeaderByHash returns the stored header with the given hash,
	// canonical or not. ErrNotFound if unknown.
	HeaderByHash(hash common.Hash) (*types.Header, error)

	// CanonicalHash returns the hash of the canonical block at the given
	// height. ErrNotFound above the canonical tip.
	CanonicalHash(number uint64) (common.Hash, error)

	// CanonicalTip returns the (number, hash) of the current canonical tip.
	CanonicalTip() (chain.NumHash, error)

	// FinalizedBlockNumber returns the current finality boundary.
	FinalizedBlockNumber() (uint64, error)

	// TotalDifficulty returns the total difficulty accumulated up to and
	// including the block with the given hash.
	TotalDifficulty(hash common.Hash) (*big.Int, error)
}

// BlockReader provides read access to stored blocks and receipts.
type BlockReader interface {
	// BlockByHash returns the stored block with the given hash.
	BlockByHash(hash common.Hash) (*chain.SealedBlock, error)

	// ReceiptsByBlockHash returns the receipts of the block with the given
	// hash. Only canonical blocks have receipts stored.
	ReceiptsByBlockHash(hash common.Hash) ([]*types.Receipt, error)
}

// StateReader exposes the flat state at a given canonical block.
type StateReader interface {
	// StateAt returns a provider over the post-state of the canonical
	// block with the given hash. For past blocks the state is
	// reconstructed from change sets. ErrNotFound if the hash is not
	// canonical.
	StateAt(hash common.Hash) (execution.StateProvider, error)
}

// ChainWriter advances or unwinds the canonical chain. Each call is one
// atomic store transaction; the transaction is the unit of crash-atomicity,
// not any multi-block sequence built on top of it.
type ChainWriter interface {
	// CommitBlock appends the executed block to the canonical chain:
	// header, body, senders, receipts, state changes and per-block change
	// sets, canonical index and tip, all in one transaction. The block
	// must extend the current canonical tip.
	CommitBlock(block *chain.SealedBlockWithSenders, output *execution.Output) error

	// RevertBlock unwinds the canonical tip: restores the pre-block state
	// from change sets, removes the canonical index entry and moves the
	// tip to the parent, all in one transaction. It returns the removed
	// block together with its reconstructed execution output so the
	// caller can re-attach it as a side chain.
	RevertBlock(hash common.Hash) (*chain.SealedBlockWithSenders, *execution.Output, error)

	// SetFinalized advances the finality boundary.
	SetFinalized(number uint64) error
}

// Provider is the full storage collaborator surface consumed by the tree
// and the read-side accessors.
type Provider interface {
	HeaderReader
	BlockReader
	StateReader
	ChainWriter
}
