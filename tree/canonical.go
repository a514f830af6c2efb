package tree

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
)

// CanonOutcome is the result of a successful canonicalization.
type CanonOutcome struct {
	// AlreadyCanonical: the target was canonical before the call; nothing
	// moved.
	AlreadyCanonical bool
	// Head is the (number, hash) of the canonical tip after the call.
	Head chain.NumHash
	// Committed is the number of side-chain blocks persisted.
	Committed int
	// Reverted is the number of previously canonical blocks unwound.
	Reverted int
}

// commitSegment is one side-chain prefix to persist: the blocks of the
// chain up to and including position idx.
type commitSegment struct {
	chain *SideChain
	idx   int
}

// MakeCanonical promotes the fork ending at the given block to the
// canonical chain: previously canonical blocks above the fork base are
// reverted, the fork's blocks are committed, and the reverted blocks are
// re-attached as a side chain. Each block moves in its own atomic store
// transaction; a failure mid-phase is fatal (see IsFatalCanonicalError)
// because the store then sits between two canonical states.
func (t *BlockchainTree) MakeCanonical(hash common.Hash) (*CanonOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// already canonical: nothing to move
	header, err := t.provider.HeaderByHash(hash)
	if err == nil {
		canonical, cerr := t.isCanonicalHash(hash, header.Number.Uint64())
		if cerr != nil {
			return nil, fmt.Errorf("could not check canonical index: %w", cerr)
		}
		if canonical {
			return &CanonOutcome{
				AlreadyCanonical: true,
				Head:             t.canonical.tipNumHash(),
			}, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("could not load target header: %w", err)
	}

	if _, ok := t.state.blockByHash(hash); !ok {
		return nil, BlockHashNotFoundInChainError{BlockHash: hash}
	}

	base, segments, err := t.collectCommitSegments(hash)
	if err != nil {
		return nil, err
	}

	// a fork branching at or below the finality boundary can never win
	if finalized := t.canonical.finalizedHeight(); base.Number < finalized {
		return nil, PendingBlockIsFinalizedError{LastFinalized: finalized}
	}

	// the base must sit on the stored canonical chain
	baseHash, err := t.provider.CanonicalHash(base.Number)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, BlockNumberNotFoundInChainError{Number: base.Number}
	}
	if err != nil {
		return nil, fmt.Errorf("could not resolve canonical base: %w", err)
	}
	if baseHash != base.Hash {
		return nil, CanonicalChainHeaderError{BlockHash: base.Hash}
	}

	// reverting into optimistically synced territory needs a pipeline
	// unwind first
	if t.optimisticTarget != nil && base.Number < *t.optimisticTarget {
		return nil, OptimisticTargetRevertError{Number: base.Number}
	}

	reverted, err := t.revertCanonicalAbove(base)
	if err != nil {
		return nil, err
	}

	committed, err := t.commitSegments(segments)
	if err != nil {
		return nil, err
	}

	target := segments[len(segments)-1].chain.Block(segments[len(segments)-1].idx)
	head := target.NumHash()

	// bookkeeping: drop committed prefixes from the arena, keep split
	// remainders as forks of the new canonical chain
	for _, segment := range segments {
		removed, hasRemainder := segment.chain.SplitAt(segment.idx)
		t.state.unindexEntries(removed)
		if !hasRemainder {
			delete(t.state.chains, segment.chain.ID())
		}
	}

	// the losing canonical blocks become an ordinary side chain
	if len(reverted) > 0 {
		c := NewSideChain(t.state.allocateChainID(), base, reverted[0].block, reverted[0].output)
		for _, entry := range reverted[1:] {
			err = c.Extend(entry.block, entry.output)
			if err != nil {
				return nil, fmt.Errorf("could not re-attach reverted blocks: %w", err)
			}
		}
		t.state.insertChain(c)
		t.metrics.Reorg(len(reverted))
	}

	t.canonical.setTip(head)
	t.metrics.CanonicalHeight(head.Number)
	t.metrics.BlocksCommitted(committed)
	t.metrics.SideChains(len(t.state.chains))

	t.log.Info().
		Hex("block_id", head.Hash.Bytes()).
		Uint64("height", head.Number).
		Int("committed", committed).
		Int("reverted", len(reverted)).
		Msg("canonical chain extended")

	return &CanonOutcome{
		Head:      head,
		Committed: committed,
		Reverted:  len(reverted),
	}, nil
}

// collectCommitSegments walks fork points from the target block down to the
// canonical chain and returns the chain prefixes to commit, oldest first,
// plus the canonical base they fork from.
func (t *BlockchainTree) collectCommitSegments(hash common.Hash) (chain.NumHash, []commitSegment, error) {
	var segments []commitSegment
	point := chain.NumHash{Hash: hash}
	for {
		c, err := t.state.chainByBlockHash(point.Hash)
		if err != nil {
			if IsBlockHashNotFoundError(err) {
				break
			}
			return chain.NumHash{}, nil, err
		}
		idx, ok := c.IndexOf(point.Hash)
		if !ok {
			return chain.NumHash{}, nil, BlockSideChainIDConsistencyError{ChainID: c.ID()}
		}
		segments = append(segments, commitSegment{chain: c, idx: idx})
		point = c.ForkPoint()
	}

	// reverse into commit order
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return point, segments, nil
}

// revertCanonicalAbove unwinds the canonical chain down to the base, one
// block per store transaction, newest first. The unwound blocks are
// returned oldest first for re-attachment.
func (t *BlockchainTree) revertCanonicalAbove(base chain.NumHash) ([]chainEntry, error) {
	var reverted []chainEntry
	for cur := t.canonical.tipNumHash(); cur.Number > base.Number; {
		block, output, err := t.provider.RevertBlock(cur.Hash)
		if err != nil {
			return nil, NewCanonicalRevertError(err)
		}
		t.canonical.removeHeader(cur.Hash, cur.Number)
		reverted = append(reverted, chainEntry{block: block, output: output})
		cur = block.ParentNumHash()
	}

	// oldest first
	for i, j := 0, len(reverted)-1; i < j; i, j = i+1, j-1 {
		reverted[i], reverted[j] = reverted[j], reverted[i]
	}
	return reverted, nil
}

// commitSegments persists the collected chain prefixes, one block per store
// transaction, oldest first.
func (t *BlockchainTree) commitSegments(segments []commitSegment) (int, error) {
	committed := 0
	for _, segment := range segments {
		for i := 0; i <= segment.idx; i++ {
			block := segment.chain.Block(i)
			err := t.provider.CommitBlock(block, segment.chain.Output(i))
			if err != nil {
				return committed, NewCanonicalCommitError(err)
			}
			t.canonical.addHeader(block.Hash(), block.Header())
			committed++
		}
	}
	return committed, nil
}

// UpdateFinalized advances the finality boundary: the store records it,
// forks that can no longer win are discarded, and buffered blocks below it
// are dropped.
func (t *BlockchainTree) UpdateFinalized(number uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if number < t.canonical.finalizedHeight() {
		return fmt.Errorf("finality boundary cannot move backwards: %d < %d",
			number, t.canonical.finalizedHeight())
	}

	err := t.provider.SetFinalized(number)
	if err != nil {
		return fmt.Errorf("could not persist finalized height: %w", err)
	}
	t.canonical.setFinalized(number)

	for _, id := range t.state.tipsBelowOrAt(number) {
		t.state.removeChain(id)
	}
	t.buffer.PruneBelowOrAt(number)

	t.metrics.FinalizedHeight(number)
	t.metrics.SideChains(len(t.state.chains))
	t.metrics.BufferedBlocks(t.buffer.Len())

	t.log.Debug().Uint64("height", number).Msg("finality boundary advanced")
	return nil
}

// SetOptimisticSyncTarget marks the given height as optimistically synced:
// canonicalizations that would revert below it are refused with an
// optimistic-revert error until the mark is cleared.
func (t *BlockchainTree) SetOptimisticSyncTarget(number uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.optimisticTarget = &number
}

// ClearOptimisticSyncTarget removes the optimistic-sync mark.
func (t *BlockchainTree) ClearOptimisticSyncTarget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.optimisticTarget = nil
}
