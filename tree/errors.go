package tree

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tcoratger/reth/consensus"
	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
)

// BlockchainTreeError marks a failure of the tree's own bookkeeping: the
// block relates to the tracked structure in a way that makes the requested
// operation impossible. The set is closed; every variant lives in this
// package and implements the unexported marker.
type BlockchainTreeError interface {
	error
	blockchainTreeError()
}

// IsBlockchainTreeError returns whether the given error is (or wraps) a
// tree bookkeeping failure.
func IsBlockchainTreeError(err error) bool {
	var terr BlockchainTreeError
	return errors.As(err, &terr)
}

// PendingBlockIsFinalizedError indicates the block's number is at or below
// the finality boundary, so it can never become canonical.
type PendingBlockIsFinalizedError struct {
	LastFinalized uint64
}

func (e PendingBlockIsFinalizedError) Error() string {
	return fmt.Sprintf("block is at or below the finalized height %d", e.LastFinalized)
}

func (PendingBlockIsFinalizedError) blockchainTreeError() {}

// IsPendingBlockIsFinalizedError returns whether the given error is (or
// wraps) a rejection of a block at or below the finality boundary.
func IsPendingBlockIsFinalizedError(err error) bool {
	var ferr PendingBlockIsFinalizedError
	return errors.As(err, &ferr)
}

// BlockSideChainIDConsistencyError indicates the tree's block-to-chain index
// references a side chain that does not exist. This is an internal
// bookkeeping invariant violation, never the block's fault.
type BlockSideChainIDConsistencyError struct {
	ChainID ChainID
}

func (e BlockSideChainIDConsistencyError) Error() string {
	return fmt.Sprintf("side chain id %d is not consistent with the tree state", e.ChainID)
}

func (BlockSideChainIDConsistencyError) blockchainTreeError() {}

// CanonicalChainHeaderError indicates a canonical header that the tree
// expected to be present could not be loaded.
type CanonicalChainHeaderError struct {
	BlockHash common.Hash
}

func (e CanonicalChainHeaderError) Error() string {
	return fmt.Sprintf("canonical chain header %x is missing", e.BlockHash)
}

func (CanonicalChainHeaderError) blockchainTreeError() {}

// BlockNumberNotFoundInChainError indicates no tracked block carries the
// given number.
type BlockNumberNotFoundInChainError struct {
	Number uint64
}

func (e BlockNumberNotFoundInChainError) Error() string {
	return fmt.Sprintf("block number %d not found in chain", e.Number)
}

func (BlockNumberNotFoundInChainError) blockchainTreeError() {}

// BlockHashNotFoundInChainError indicates no tracked block carries the given
// hash.
type BlockHashNotFoundInChainError struct {
	BlockHash common.Hash
}

func (e BlockHashNotFoundInChainError) Error() string {
	return fmt.Sprintf("block hash %x not found in chain", e.BlockHash)
}

func (BlockHashNotFoundInChainError) blockchainTreeError() {}

// IsBlockHashNotFoundError returns whether the given error is (or wraps) a
// lookup miss for a block hash the tree does not track.
func IsBlockHashNotFoundError(err error) bool {
	var herr BlockHashNotFoundInChainError
	return errors.As(err, &herr)
}

// BlockBufferingFailedError indicates a disconnected block could not be
// admitted to the buffer.
type BlockBufferingFailedError struct {
	BlockHash common.Hash
}

func (e BlockBufferingFailedError) Error() string {
	return fmt.Sprintf("block %x could not be buffered", e.BlockHash)
}

func (BlockBufferingFailedError) blockchainTreeError() {}

// GenesisBlockHasNoParentError indicates an attempt to resolve the parent
// state of the genesis block.
type GenesisBlockHasNoParentError struct{}

func (GenesisBlockHasNoParentError) Error() string {
	return "genesis block has no parent"
}

func (GenesisBlockHasNoParentError) blockchainTreeError() {}

// CanonicalValidationError indicates canonicalization failed because a block
// on the requested chain is invalid. The block is at fault.
type CanonicalValidationError struct {
	err error
}

func NewCanonicalValidationError(err error) error {
	return CanonicalValidationError{err: err}
}

func (e CanonicalValidationError) Error() string {
	return fmt.Sprintf("canonicalization rejected an invalid block: %s", e.err)
}

func (e CanonicalValidationError) Unwrap() error {
	return e.err
}

// IsCanonicalValidationError returns whether the given error is (or wraps) a
// block-at-fault canonicalization failure.
func IsCanonicalValidationError(err error) bool {
	var verr CanonicalValidationError
	return errors.As(err, &verr)
}

// CanonicalCommitError indicates the commit phase of a canonicalization
// failed partway. The store may hold a partially applied chain, so the error
// is fatal for the tree's in-memory view.
type CanonicalCommitError struct {
	err error
}

func NewCanonicalCommitError(err error) error {
	return CanonicalCommitError{err: err}
}

func (e CanonicalCommitError) Error() string {
	return fmt.Sprintf("failed to commit canonical chain: %s", e.err)
}

func (e CanonicalCommitError) Unwrap() error {
	return e.err
}

// CanonicalRevertError indicates the revert phase of a canonicalization
// failed partway, leaving the store between two canonical states. Fatal.
type CanonicalRevertError struct {
	err error
}

func NewCanonicalRevertError(err error) error {
	return CanonicalRevertError{err: err}
}

func (e CanonicalRevertError) Error() string {
	return fmt.Sprintf("failed to revert canonical chain: %s", e.err)
}

func (e CanonicalRevertError) Unwrap() error {
	return e.err
}

// IsFatalCanonicalError returns whether the given canonicalization error
// leaves the persistent store in a state the tree can no longer reason
// about. Only commit-phase and revert-phase failures qualify; everything
// else is recoverable.
func IsFatalCanonicalError(err error) bool {
	var commitErr CanonicalCommitError
	if errors.As(err, &commitErr) {
		return true
	}
	var revertErr CanonicalRevertError
	return errors.As(err, &revertErr)
}

// OptimisticTargetRevertError indicates the requested canonicalization
// target sits below a block that was only optimistically synced, so the
// pipeline must unwind before the target can become canonical.
type OptimisticTargetRevertError struct {
	Number uint64
}

func (e OptimisticTargetRevertError) Error() string {
	return fmt.Sprintf("retry canonicalization once the pipeline unwound to block %d", e.Number)
}

// OptimisticRevertBlockNumber returns the block number to unwind to when the
// given error is an optimistic-sync revert request.
func OptimisticRevertBlockNumber(err error) (uint64, bool) {
	var oerr OptimisticTargetRevertError
	if errors.As(err, &oerr) {
		return oerr.Number, true
	}
	return 0, false
}

// InsertErrorKind classifies why a block insertion failed. The kind drives
// the caller's policy: whether to penalize the peer that sent the block,
// and whether the failure can implicate the chain's state root.
type InsertErrorKind int

const (
	// KindSenderRecovery: a transaction signature could not be recovered.
	KindSenderRecovery InsertErrorKind = iota + 1
	// KindConsensus: the block failed stateless consensus validation.
	KindConsensus
	// KindExecution: the execution engine rejected or failed on the block.
	KindExecution
	// KindTree: the tree's bookkeeping rejected the block.
	KindTree
	// KindProvider: the persistent store failed during insertion.
	KindProvider
	// KindInternal: an unclassified internal failure.
	KindInternal
	// KindCanonical: a canonicalization triggered by the insertion failed.
	KindCanonical
)

func (k InsertErrorKind) String() string {
	switch k {
	case KindSenderRecovery:
		return "sender_recovery"
	case KindConsensus:
		return "consensus"
	case KindExecution:
		return "execution"
	case KindTree:
		return "tree"
	case KindProvider:
		return "provider"
	case KindInternal:
		return "internal"
	case KindCanonical:
		return "canonical"
	default:
		return "unknown"
	}
}

// InsertBlockError is the failure of one block insertion. It carries the
// rejected block back to the caller so ownership is never lost on the error
// path, plus the classified cause.
type InsertBlockError struct {
	block *chain.SealedBlock
	kind  InsertErrorKind
	err   error
}

func newInsertBlockError(block *chain.SealedBlock, kind InsertErrorKind, err error) *InsertBlockError {
	return &InsertBlockError{block: block, kind: kind, err: err}
}

// NewInsertSenderRecoveryError classifies a failed signer recovery. There is
// no underlying error to carry: recovery either yields an address or not.
func NewInsertSenderRecoveryError(block *chain.SealedBlock) *InsertBlockError {
	return newInsertBlockError(block, KindSenderRecovery, errors.New("failed to recover transaction senders"))
}

func NewInsertConsensusError(block *chain.SealedBlock, err error) *InsertBlockError {
	return newInsertBlockError(block, KindConsensus, err)
}

func NewInsertExecutionError(block *chain.SealedBlock, err error) *InsertBlockError {
	return newInsertBlockError(block, KindExecution, err)
}

func NewInsertTreeError(block *chain.SealedBlock, err BlockchainTreeError) *InsertBlockError {
	return newInsertBlockError(block, KindTree, err)
}

func NewInsertProviderError(block *chain.SealedBlock, err error) *InsertBlockError {
	return newInsertBlockError(block, KindProvider, err)
}

func NewInsertInternalError(block *chain.SealedBlock, err error) *InsertBlockError {
	return newInsertBlockError(block, KindInternal, err)
}

// NewInsertCanonicalError classifies a canonicalization failure observed
// while processing a block. The tree never canonicalizes during insertion
// itself; fork-choice drivers that chain MakeCanonical onto a successful
// insertion use this to carry the block through the combined error path.
func NewInsertCanonicalError(block *chain.SealedBlock, err error) *InsertBlockError {
	return newInsertBlockError(block, KindCanonical, err)
}

// Block returns the block whose insertion failed.
func (e *InsertBlockError) Block() *chain.SealedBlock {
	return e.block
}

// Kind returns the classified cause of the failure.
func (e *InsertBlockError) Kind() InsertErrorKind {
	return e.kind
}

func (e *InsertBlockError) Error() string {
	return fmt.Sprintf("failed to insert block %s (%s): %s", e.block, e.kind, e.err)
}

func (e *InsertBlockError) Unwrap() error {
	return e.err
}

// IsInvalidBlock returns whether the block itself is at fault, meaning the
// peer that sent it may be penalized. Infrastructure failures and ambiguous
// causes answer false.
func (e *InsertBlockError) IsInvalidBlock() bool {
	switch e.kind {
	case KindSenderRecovery, KindConsensus:
		return true
	case KindExecution:
		// only validation-category execution failures implicate the block
		return execution.IsValidationError(e.err)
	case KindTree:
		// a block below the finality boundary can never become canonical;
		// every other bookkeeping failure is the tree's problem
		return IsPendingBlockIsFinalizedError(e.err)
	case KindCanonical:
		return IsCanonicalValidationError(e.err)
	default:
		return false
	}
}

// IsStateRootError returns whether the failure was a state root mismatch,
// wherever it was detected: by the executor, during canonicalization, or by
// the persistent store.
func (e *InsertBlockError) IsStateRootError() bool {
	switch e.kind {
	case KindExecution, KindCanonical:
		return execution.IsStateRootError(e.err)
	case KindProvider:
		return storage.IsStateRootMismatchError(e.err)
	default:
		return false
	}
}

// IsFatal returns whether the failure leaves the persistent store between
// two canonical states. Only a canonicalization that failed mid-commit or
// mid-revert qualifies.
func (e *InsertBlockError) IsFatal() bool {
	return e.kind == KindCanonical && IsFatalCanonicalError(e.err)
}

// IsTreeError returns whether the tree's bookkeeping rejected the block.
func (e *InsertBlockError) IsTreeError() bool {
	return e.kind == KindTree
}

// IsConsensusError returns whether the block failed consensus validation.
func (e *InsertBlockError) IsConsensusError() bool {
	return e.kind == KindConsensus
}

// IsExecutionError returns whether the execution engine rejected or failed
// on the block.
func (e *InsertBlockError) IsExecutionError() bool {
	return e.kind == KindExecution
}

// IsInternal returns whether the failure was an unclassified internal one.
func (e *InsertBlockError) IsInternal() bool {
	return e.kind == KindInternal
}

// IsBlockPreMerge returns whether execution rejected the block for carrying
// pre-merge attributes.
func (e *InsertBlockError) IsBlockPreMerge() bool {
	return e.kind == KindExecution && execution.IsBlockPreMergeError(e.err)
}

// AsTreeError returns the tree bookkeeping failure behind the error, if any.
func (e *InsertBlockError) AsTreeError() (BlockchainTreeError, bool) {
	var terr BlockchainTreeError
	ok := errors.As(e.err, &terr)
	return terr, ok
}

// AsConsensusError returns the consensus rule violation behind the error,
// if any.
func (e *InsertBlockError) AsConsensusError() (consensus.Error, bool) {
	var cerr consensus.Error
	ok := errors.As(e.err, &cerr)
	return cerr, ok
}

// AsExecutionError returns the executor failure behind the error, if the
// insertion failed during execution.
func (e *InsertBlockError) AsExecutionError() (error, bool) {
	if e.kind != KindExecution {
		return nil, false
	}
	return e.err, true
}

// IsInsertBlockError returns the typed insertion failure wrapped in the
// given error, if any.
func IsInsertBlockError(err error) (*InsertBlockError, bool) {
	var ierr *InsertBlockError
	if errors.As(err, &ierr) {
		return ierr, true
	}
	return nil, false
}
