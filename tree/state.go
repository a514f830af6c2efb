package tree

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/tcoratger/reth/model/chain"
)

// ChainID identifies one tracked side chain. IDs are allocated from a
// monotonic counter and are never reused, so a stale ID held across a
// canonicalization can never silently alias a different chain.
type ChainID uint64

// treeState is the in-memory arena of tracked side chains plus the index
// from block hash to owning chain. All access is serialized by the tree's
// lock.
type treeState struct {
	nextChainID  ChainID
	chains       map[ChainID]*SideChain
	blockToChain map[common.Hash]ChainID
}

func newTreeState() *treeState {
	return &treeState{
		nextChainID:  1,
		chains:       make(map[ChainID]*SideChain),
		blockToChain: make(map[common.Hash]ChainID),
	}
}

func (s *treeState) allocateChainID() ChainID {
	id := s.nextChainID
	s.nextChainID++
	return id
}

// insertChain registers a new side chain and indexes its blocks.
func (s *treeState) insertChain(c *SideChain) {
	s.chains[c.id] = c
	for i := 0; i < c.Len(); i++ {
		s.blockToChain[c.Block(i).Hash()] = c.id
	}
}

// chainByBlockHash returns the side chain holding the block with the given
// hash. A dangling index entry is a bookkeeping invariant violation and is
// reported as such.
func (s *treeState) chainByBlockHash(hash common.Hash) (*SideChain, error) {
	id, ok := s.blockToChain[hash]
	if !ok {
		return nil, BlockHashNotFoundInChainError{BlockHash: hash}
	}
	c, ok := s.chains[id]
	if !ok {
		return nil, BlockSideChainIDConsistencyError{ChainID: id}
	}
	return c, nil
}

// blockByHash returns the tracked block with the given hash, if any side
// chain holds it.
func (s *treeState) blockByHash(hash common.Hash) (*chain.SealedBlockWithSenders, bool) {
	c, err := s.chainByBlockHash(hash)
	if err != nil {
		return nil, false
	}
	return c.BlockByHash(hash)
}

// indexBlock records which chain owns the block with the given hash.
func (s *treeState) indexBlock(hash common.Hash, id ChainID) {
	s.blockToChain[hash] = id
}

// removeChain drops a side chain and all of its index entries. The chain ID
// is retired, never recycled.
func (s *treeState) removeChain(id ChainID) {
	c, ok := s.chains[id]
	if !ok {
		return
	}
	for i := 0; i < c.Len(); i++ {
		delete(s.blockToChain, c.Block(i).Hash())
	}
	delete(s.chains, id)
}

// unindexEntries drops the block index entries of a committed chain prefix.
func (s *treeState) unindexEntries(entries []chainEntry) {
	for _, entry := range entries {
		delete(s.blockToChain, entry.block.Hash())
	}
}

// tipsBelowOrAt returns the IDs of chains whose tip is at or below the given
// height; used to discard forks that can no longer become canonical.
func (s *treeState) tipsBelowOrAt(height uint64) []ChainID {
	var stale []ChainID
	for id, c := range s.chains {
		if c.Tip().Number <= height {
			stale = append(stale, id)
		}
	}
	return stale
}
