package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/consensus"
	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/storage"
	"github.com/tcoratger/reth/utils/unittest"
)

// TestInsertBlockErrorOwnership checks that a failed insertion always hands
// the rejected block back through the error.
func TestInsertBlockErrorOwnership(t *testing.T) {
	block := unittest.BlockFixture()
	err := NewInsertConsensusError(block, errors.New("bad header"))
	require.Equal(t, block, err.Block())
	require.Equal(t, KindConsensus, err.Kind())

	wrapped, ok := IsInsertBlockError(err)
	require.True(t, ok)
	assert.Equal(t, block, wrapped.Block())
}

// TestIsInvalidBlock pins the peer-penalty classification of every failure
// kind: only failures provably caused by the block answer true.
func TestIsInvalidBlock(t *testing.T) {
	block := unittest.BlockFixture()

	cases := []struct {
		name    string
		err     *InsertBlockError
		invalid bool
	}{
		{
			name:    "sender recovery",
			err:     NewInsertSenderRecoveryError(block),
			invalid: true,
		},
		{
			name:    "consensus",
			err:     NewInsertConsensusError(block, errors.New("bad header")),
			invalid: true,
		},
		{
			name:    "execution validation",
			err:     NewInsertExecutionError(block, execution.StateRootDiffError{}),
			invalid: true,
		},
		{
			name:    "execution internal",
			err:     NewInsertExecutionError(block, execution.NewInternalErrorf("db read failed")),
			invalid: false,
		},
		{
			name:    "tree finalized boundary",
			err:     NewInsertTreeError(block, PendingBlockIsFinalizedError{LastFinalized: 10}),
			invalid: true,
		},
		{
			name:    "tree hash not found",
			err:     NewInsertTreeError(block, BlockHashNotFoundInChainError{BlockHash: block.Hash()}),
			invalid: false,
		},
		{
			name:    "tree id consistency",
			err:     NewInsertTreeError(block, BlockSideChainIDConsistencyError{ChainID: 7}),
			invalid: false,
		},
		{
			name:    "provider",
			err:     NewInsertProviderError(block, errors.New("disk failure")),
			invalid: false,
		},
		{
			name:    "internal",
			err:     NewInsertInternalError(block, errors.New("broken invariant")),
			invalid: false,
		},
		{
			name:    "canonical validation",
			err:     NewInsertCanonicalError(block, NewCanonicalValidationError(errors.New("bad block on fork"))),
			invalid: true,
		},
		{
			name:    "canonical commit",
			err:     NewInsertCanonicalError(block, NewCanonicalCommitError(errors.New("disk full"))),
			invalid: false,
		},
		{
			name:    "canonical tree",
			err:     NewInsertCanonicalError(block, BlockHashNotFoundInChainError{BlockHash: block.Hash()}),
			invalid: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.invalid, tc.err.IsInvalidBlock())
		})
	}
}

// TestIsStateRootError pins the state-root detection across all three
// layers that can notice the mismatch.
func TestIsStateRootError(t *testing.T) {
	block := unittest.BlockFixture()

	cases := []struct {
		name      string
		err       *InsertBlockError
		stateRoot bool
	}{
		{
			name:      "execution state root",
			err:       NewInsertExecutionError(block, execution.StateRootDiffError{}),
			stateRoot: true,
		},
		{
			name:      "execution other validation",
			err:       NewInsertExecutionError(block, execution.GasUsedMismatchError{}),
			stateRoot: false,
		},
		{
			name:      "canonical wrapped state root",
			err:       NewInsertCanonicalError(block, NewCanonicalValidationError(execution.StateRootDiffError{})),
			stateRoot: true,
		},
		{
			name:      "provider state root on apply",
			err:       NewInsertProviderError(block, storage.StateRootMismatchError{}),
			stateRoot: true,
		},
		{
			name:      "provider state root on unwind",
			err:       NewInsertProviderError(block, storage.UnwindStateRootMismatchError{}),
			stateRoot: true,
		},
		{
			name:      "provider other",
			err:       NewInsertProviderError(block, errors.New("disk failure")),
			stateRoot: false,
		},
		{
			name:      "consensus",
			err:       NewInsertConsensusError(block, errors.New("bad header")),
			stateRoot: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.stateRoot, tc.err.IsStateRootError())
		})
	}
}

// TestInsertErrorKindPredicates pins the single-branch membership
// predicates of the failure kinds.
func TestInsertErrorKindPredicates(t *testing.T) {
	block := unittest.BlockFixture()

	cases := []struct {
		name      string
		err       *InsertBlockError
		tree      bool
		consensus bool
		execution bool
		internal  bool
	}{
		{
			name: "tree",
			err:  NewInsertTreeError(block, PendingBlockIsFinalizedError{LastFinalized: 10}),
			tree: true,
		},
		{
			name:      "consensus",
			err:       NewInsertConsensusError(block, consensus.GasLimitError{GasLimit: 1}),
			consensus: true,
		},
		{
			name:      "execution",
			err:       NewInsertExecutionError(block, execution.StateRootDiffError{}),
			execution: true,
		},
		{
			name:     "internal",
			err:      NewInsertInternalError(block, errors.New("broken invariant")),
			internal: true,
		},
		{
			name: "provider",
			err:  NewInsertProviderError(block, errors.New("disk failure")),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.tree, tc.err.IsTreeError())
			assert.Equal(t, tc.consensus, tc.err.IsConsensusError())
			assert.Equal(t, tc.execution, tc.err.IsExecutionError())
			assert.Equal(t, tc.internal, tc.err.IsInternal())
		})
	}
}

// TestInsertErrorIsFatal checks that only a canonicalization that failed
// mid-commit or mid-revert marks the insertion failure fatal.
func TestInsertErrorIsFatal(t *testing.T) {
	block := unittest.BlockFixture()

	assert.True(t, NewInsertCanonicalError(block, NewCanonicalCommitError(errors.New("disk full"))).IsFatal())
	assert.True(t, NewInsertCanonicalError(block, NewCanonicalRevertError(errors.New("disk full"))).IsFatal())

	assert.False(t, NewInsertCanonicalError(block, NewCanonicalValidationError(errors.New("bad block"))).IsFatal())
	assert.False(t, NewInsertProviderError(block, errors.New("disk failure")).IsFatal())
	assert.False(t, NewInsertExecutionError(block, execution.StateRootDiffError{}).IsFatal())
}

func TestInsertErrorIsBlockPreMerge(t *testing.T) {
	block := unittest.BlockFixture()

	preMerge := NewInsertExecutionError(block, execution.BlockPreMergeError{Hash: block.Hash()})
	assert.True(t, preMerge.IsBlockPreMerge())
	assert.True(t, preMerge.IsInvalidBlock())

	assert.False(t, NewInsertExecutionError(block, execution.StateRootDiffError{}).IsBlockPreMerge())
	assert.False(t, NewInsertInternalError(block, errors.New("broken invariant")).IsBlockPreMerge())
}

// TestInsertErrorExtraction checks the typed cause extraction on the
// insertion failure.
func TestInsertErrorExtraction(t *testing.T) {
	block := unittest.BlockFixture()

	terr := NewInsertTreeError(block, PendingBlockIsFinalizedError{LastFinalized: 10})
	tree, ok := terr.AsTreeError()
	require.True(t, ok)
	assert.Equal(t, PendingBlockIsFinalizedError{LastFinalized: 10}, tree)
	_, ok = terr.AsConsensusError()
	assert.False(t, ok)

	cerr := NewInsertConsensusError(block, consensus.GasLimitError{GasLimit: 1})
	violation, ok := cerr.AsConsensusError()
	require.True(t, ok)
	assert.Equal(t, consensus.GasLimitError{GasLimit: 1}, violation)
	_, ok = cerr.AsExecutionError()
	assert.False(t, ok)

	eerr := NewInsertExecutionError(block, execution.GasUsedMismatchError{Got: 1, Expected: 2})
	cause, ok := eerr.AsExecutionError()
	require.True(t, ok)
	assert.ErrorAs(t, cause, &execution.GasUsedMismatchError{})
	_, ok = eerr.AsTreeError()
	assert.False(t, ok)
}

// TestFatalCanonicalErrors checks that only mid-phase commit and revert
// failures are fatal; everything else is recoverable.
func TestFatalCanonicalErrors(t *testing.T) {
	assert.True(t, IsFatalCanonicalError(NewCanonicalCommitError(errors.New("disk full"))))
	assert.True(t, IsFatalCanonicalError(NewCanonicalRevertError(errors.New("disk full"))))

	assert.False(t, IsFatalCanonicalError(NewCanonicalValidationError(errors.New("bad block"))))
	assert.False(t, IsFatalCanonicalError(BlockHashNotFoundInChainError{}))
	assert.False(t, IsFatalCanonicalError(OptimisticTargetRevertError{Number: 42}))
	assert.False(t, IsFatalCanonicalError(errors.New("anything else")))
}

// TestOptimisticRevertBlockNumber checks the unwind-target extraction.
func TestOptimisticRevertBlockNumber(t *testing.T) {
	number, ok := OptimisticRevertBlockNumber(OptimisticTargetRevertError{Number: 42})
	require.True(t, ok)
	assert.Equal(t, uint64(42), number)

	_, ok = OptimisticRevertBlockNumber(NewCanonicalCommitError(errors.New("disk full")))
	assert.False(t, ok)
}

// TestTreeErrorSetIsClosed checks that the tree-error marker matches every
// variant and nothing else.
func TestTreeErrorSetIsClosed(t *testing.T) {
	variants := []error{
		PendingBlockIsFinalizedError{LastFinalized: 1},
		BlockSideChainIDConsistencyError{ChainID: 1},
		CanonicalChainHeaderError{},
		BlockNumberNotFoundInChainError{Number: 1},
		BlockHashNotFoundInChainError{},
		BlockBufferingFailedError{},
		GenesisBlockHasNoParentError{},
	}
	for _, variant := range variants {
		assert.True(t, IsBlockchainTreeError(variant), "%T", variant)
	}
	assert.False(t, IsBlockchainTreeError(errors.New("unrelated")))
	assert.False(t, IsBlockchainTreeError(storage.ErrNotFound))
}
