package tree

import (
	"fmt"

	"github.com/ef-ds/deque"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tcoratger/reth/model/chain"
)

// BlockBuffer holds disconnected blocks: blocks whose parent is neither
// canonical nor on any tracked side chain. Blocks wait here unvalidated and
// unexecuted until their parent arrives. The buffer is capacity-bounded and
// evicts the oldest block first.
type BlockBuffer struct {
	capacity uint

	blocks   map[common.Hash]*chain.SealedBlock
	children map[common.Hash]map[common.Hash]struct{}

	// insertion order for FIFO eviction; stale hashes are skipped lazily
	order *deque.Deque
}

func NewBlockBuffer(capacity uint) *BlockBuffer {
	return &BlockBuffer{
		capacity: capacity,
		blocks:   make(map[common.Hash]*chain.SealedBlock),
		children: make(map[common.Hash]map[common.Hash]struct{}),
		order:    deque.New(),
	}
}

// Add admits a block to the buffer, evicting the oldest buffered block if
// the buffer is full. Re-adding a buffered block is a no-op.
func (b *BlockBuffer) Add(block *chain.SealedBlock) error {
	hash := block.Hash()
	if _, ok := b.blocks[hash]; ok {
		return nil
	}
	for uint(len(b.blocks)) >= b.capacity {
		if !b.evictOldest() {
			return fmt.Errorf("buffer full with no evictable block")
		}
	}
	b.blocks[hash] = block
	siblings, ok := b.children[block.ParentHash()]
	if !ok {
		siblings = make(map[common.Hash]struct{})
		b.children[block.ParentHash()] = siblings
	}
	siblings[hash] = struct{}{}
	b.order.PushBack(hash)
	return nil
}

// ByHash returns the buffered block with the given hash.
func (b *BlockBuffer) ByHash(hash common.Hash) (*chain.SealedBlock, bool) {
	block, ok := b.blocks[hash]
	return block, ok
}

// Children returns the buffered blocks whose parent is the given hash.
func (b *BlockBuffer) Children(parent common.Hash) []*chain.SealedBlock {
	siblings, ok := b.children[parent]
	if !ok {
		return nil
	}
	blocks := make([]*chain.SealedBlock, 0, len(siblings))
	for hash := range siblings {
		if block, ok := b.blocks[hash]; ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// Remove drops the block with the given hash from the buffer.
func (b *BlockBuffer) Remove(hash common.Hash) {
	block, ok := b.blocks[hash]
	if !ok {
		return
	}
	delete(b.blocks, hash)
	b.unlinkChild(block.ParentHash(), hash)
}

// PruneBelowOrAt drops every buffered block at or below the given height;
// those blocks sit under the finality boundary and can never connect.
func (b *BlockBuffer) PruneBelowOrAt(height uint64) {
	for hash, block := range b.blocks {
		if block.Number() <= height {
			delete(b.blocks, hash)
			b.unlinkChild(block.ParentHash(), hash)
		}
	}
}

// Len returns the number of buffered blocks.
func (b *BlockBuffer) Len() int {
	return len(b.blocks)
}

func (b *BlockBuffer) unlinkChild(parent common.Hash, hash common.Hash) {
	siblings, ok := b.children[parent]
	if !ok {
		return
	}
	delete(siblings, hash)
	if len(siblings) == 0 {
		delete(b.children, parent)
	}
}

// evictOldest pops insertion-order entries until it drops one block that is
// still buffered. Returns false once the order queue is exhausted.
func (b *BlockBuffer) evictOldest() bool {
	for {
		front, ok := b.order.PopFront()
		if !ok {
			return false
		}
		hash := front.(common.Hash)
		if _, ok := b.blocks[hash]; !ok {
			continue
		}
		b.Remove(hash)
		return true
	}
}
