package tree

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
)

// chainEntry pairs an executed side-chain block with its execution output.
// The output's delta is what lets descendants execute against in-memory
// state and what the canonicalization engine eventually persists.
type chainEntry struct {
	block  *chain.SealedBlockWithSenders
	output *execution.Output
}

// SideChain is one contiguous, fully executed fork segment. Its fork point
// names the block it descends from, which is either canonical or a block
// inside another side chain.
type SideChain struct {
	id        ChainID
	forkPoint chain.NumHash
	entries   []chainEntry
}

// NewSideChain creates a side chain holding a single executed block that
// descends from the given fork point.
func NewSideChain(id ChainID, forkPoint chain.NumHash, block *chain.SealedBlockWithSenders, output *execution.Output) *SideChain {
	return &SideChain{
		id:        id,
		forkPoint: forkPoint,
		entries:   []chainEntry{{block: block, output: output}},
	}
}

func (c *SideChain) ID() ChainID {
	return c.id
}

// ForkPoint returns the (number, hash) of the block this chain descends
// from.
func (c *SideChain) ForkPoint() chain.NumHash {
	return c.forkPoint
}

func (c *SideChain) Len() int {
	return len(c.entries)
}

// Tip returns the (number, hash) of the last block of the chain.
func (c *SideChain) Tip() chain.NumHash {
	return c.entries[len(c.entries)-1].block.NumHash()
}

// First returns the first block of the chain.
func (c *SideChain) First() *chain.SealedBlockWithSenders {
	return c.entries[0].block
}

// IndexOf returns the position of the block with the given hash.
func (c *SideChain) IndexOf(hash common.Hash) (int, bool) {
	for i, entry := range c.entries {
		if entry.block.Hash() == hash {
			return i, true
		}
	}
	return 0, false
}

// Block returns the block at the given position.
func (c *SideChain) Block(i int) *chain.SealedBlockWithSenders {
	return c.entries[i].block
}

// Output returns the execution output of the block at the given position.
func (c *SideChain) Output(i int) *execution.Output {
	return c.entries[i].output
}

// BlockByHash returns the block with the given hash, if the chain holds it.
func (c *SideChain) BlockByHash(hash common.Hash) (*chain.SealedBlockWithSenders, bool) {
	i, ok := c.IndexOf(hash)
	if !ok {
		return nil, false
	}
	return c.entries[i].block, true
}

// Extend appends an executed block to the tip of the chain. The block must
// be the direct child of the current tip.
func (c *SideChain) Extend(block *chain.SealedBlockWithSenders, output *execution.Output) error {
	tip := c.Tip()
	if block.ParentHash() != tip.Hash {
		return fmt.Errorf("block %s does not extend chain tip %s", block, tip)
	}
	if block.Number() != tip.Number+1 {
		return fmt.Errorf("block number %d does not follow chain tip %s", block.Number(), tip)
	}
	c.entries = append(c.entries, chainEntry{block: block, output: output})
	return nil
}

// SplitAt removes and returns the blocks up to and including position i.
// The remaining suffix, if any, stays on the chain with its fork point moved
// to the last removed block. Returns whether a suffix remains.
func (c *SideChain) SplitAt(i int) ([]chainEntry, bool) {
	removed := c.entries[:i+1]
	remainder := c.entries[i+1:]
	if len(remainder) == 0 {
		c.entries = nil
		return removed, false
	}
	c.forkPoint = removed[len(removed)-1].block.NumHash()
	c.entries = append([]chainEntry(nil), remainder...)
	return removed, true
}

// StateProviderOver returns a provider exposing the post-state of the block
// at position upTo, reading through the chain's deltas down to the given
// base provider. The base must expose the post-state of the fork point.
func (c *SideChain) StateProviderOver(base execution.StateProvider, upTo int) execution.StateProvider {
	return &sideChainStateProvider{
		base:    base,
		entries: c.entries[:upTo+1],
	}
}

// sideChainStateProvider resolves reads against stacked per-block deltas,
// newest first, falling through to the base provider when no delta touches
// the requested key.
type sideChainStateProvider struct {
	base    execution.StateProvider
	entries []chainEntry
}

var _ execution.StateProvider = (*sideChainStateProvider)(nil)

func (s *sideChainStateProvider) BlockHash() common.Hash {
	return s.entries[len(s.entries)-1].block.Hash()
}

func (s *sideChainStateProvider) StateRoot() (common.Hash, error) {
	return s.entries[len(s.entries)-1].block.Header().Root, nil
}

func (s *sideChainStateProvider) Account(addr common.Address) (*execution.Account, error) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		delta := s.entries[i].output.Delta
		if delta == nil {
			continue
		}
		if change, ok := delta.AccountChange(addr); ok {
			return change.Current.Copy(), nil
		}
	}
	return s.base.Account(addr)
}

func (s *sideChainStateProvider) StorageSlot(addr common.Address, key common.Hash) (common.Hash, error) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		delta := s.entries[i].output.Delta
		if delta == nil {
			continue
		}
		if change, ok := delta.StorageChange(addr, key); ok {
			return change.Current, nil
		}
	}
	return s.base.StorageSlot(addr, key)
}
