// Package execution defines the contract between the blockchain tree and
// the EVM execution engine. The tree never interprets opcode-level detail;
// it consumes execution as a single fallible call returning either a
// post-state output or an error classified as validation-caused vs internal.
package execution

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tcoratger/reth/model/chain"
)

// StateProvider is read access to the post-state of one specific block. The
// tree hands the executor the parent's post-state; implementations are
// backed either by the persistent store (canonical blocks) or by stacked
// side-chain deltas over a canonical base.
type StateProvider interface {
	// BlockHash returns the block whose post-state this provider exposes.
	BlockHash() common.Hash

	// StateRoot returns the state root of that post-state.
	StateRoot() (common.Hash, error)

	// Account returns the account record at the given address, or nil if
	// the account does not exist in this state.
	Account(addr common.Address) (*Account, error)

	// StorageSlot returns the value of the given storage slot; the zero
	// hash for unset slots.
	StorageSlot(addr common.Address, key common.Hash) (common.Hash, error)
}

// Output is the result of successfully executing and verifying one block.
type Output struct {
	Receipts  []*types.Receipt
	GasUsed   uint64
	StateRoot common.Hash
	Delta     *Delta
}

// Executor executes a block's transactions against its parent's post-state.
// From the tree's perspective this is an atomic, blocking step with no
// partial-result visibility; the implementation may parallelize internally.
//
// Errors returned must be classified: a ValidationError variant when the
// block is at fault (e.g. a state root mismatch after execution), anything
// else for internal failures (e.g. a database read error mid-execution).
type Executor interface {
	ExecuteAndVerify(block *chain.SealedBlockWithSenders, parent StateProvider) (*Output, error)
}
