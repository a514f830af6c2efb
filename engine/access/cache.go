// Package access serves read-only block queries over the canonical chain
// and the pending fork structure. It is the only consumer-facing surface;
// everything it returns is either cached, stored, or tracked in memory.
package access

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
)

// BlockCache loads blocks and receipts by hash, caching aggressively. A
// miss surfaces the store's not-found error unchanged so callers can
// distinguish absence from failure.
type BlockCache interface {
	SealedBlock(hash common.Hash) (*chain.SealedBlock, error)
	BlockAndReceipts(hash common.Hash) (*chain.SealedBlock, []*types.Receipt, error)
}

// BlocksCache is a read-through LRU over the persistent block store.
type BlocksCache struct {
	reader   storage.BlockReader
	blocks   *lru.Cache // block hash -> *chain.SealedBlock
	receipts *lru.Cache // block hash -> []*types.Receipt
}

var _ BlockCache = (*BlocksCache)(nil)

func NewBlocksCache(reader storage.BlockReader, size int) (*BlocksCache, error) {
	blocks, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	receipts, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &BlocksCache{
		reader:   reader,
		blocks:   blocks,
		receipts: receipts,
	}, nil
}

func (c *BlocksCache) SealedBlock(hash common.Hash) (*chain.SealedBlock, error) {
	if cached, ok := c.blocks.Get(hash); ok {
		return cached.(*chain.SealedBlock), nil
	}
	block, err := c.reader.BlockByHash(hash)
	if err != nil {
		return nil, err
	}
	c.blocks.Add(hash, block)
	return block, nil
}

func (c *BlocksCache) BlockAndReceipts(hash common.Hash) (*chain.SealedBlock, []*types.Receipt, error) {
	block, err := c.SealedBlock(hash)
	if err != nil {
		return nil, nil, err
	}
	if cached, ok := c.receipts.Get(hash); ok {
		return block, cached.([]*types.Receipt), nil
	}
	receipts, err := c.reader.ReceiptsByBlockHash(hash)
	if err != nil {
		return nil, nil, err
	}
	c.receipts.Add(hash, receipts)
	return block, receipts, nil
}

// Evict drops a block from the cache; called when a reorg removes it from
// the canonical chain.
func (c *BlocksCache) Evict(hash common.Hash) {
	c.blocks.Remove(hash)
	c.receipts.Remove(hash)
}
