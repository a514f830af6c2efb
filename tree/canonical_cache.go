package tree

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"

	"github.com/tcoratger/reth/model/chain"
)

// canonicalCache mirrors the hot tail of the canonical chain in memory: the
// tip, the finality boundary, and a bounded window of recent headers. Parent
// resolution and read-side lookups hit this window before touching the
// persistent store. All access is serialized by the tree's lock.
type canonicalCache struct {
	headers *lru.Cache // block hash -> *types.Header
	hashes  *lru.Cache // block number -> block hash

	tip       chain.NumHash
	finalized uint64
}

func newCanonicalCache(size int) (*canonicalCache, error) {
	headers, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	hashes, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &canonicalCache{
		headers: headers,
		hashes:  hashes,
	}, nil
}

func (c *canonicalCache) setTip(tip chain.NumHash) {
	c.tip = tip
}

func (c *canonicalCache) tipNumHash() chain.NumHash {
	return c.tip
}

func (c *canonicalCache) setFinalized(height uint64) {
	c.finalized = height
}

func (c *canonicalCache) finalizedHeight() uint64 {
	return c.finalized
}

func (c *canonicalCache) addHeader(hash common.Hash, header *types.Header) {
	c.headers.Add(hash, header)
	c.hashes.Add(header.Number.Uint64(), hash)
}

func (c *canonicalCache) headerByHash(hash common.Hash) (*types.Header, bool) {
	cached, ok := c.headers.Get(hash)
	if !ok {
		return nil, false
	}
	return cached.(*types.Header), true
}

func (c *canonicalCache) hashByNumber(number uint64) (common.Hash, bool) {
	cached, ok := c.hashes.Get(number)
	if !ok {
		return common.Hash{}, false
	}
	return cached.(common.Hash), true
}

// removeHeader evicts a block that left the canonical chain in a reorg.
func (c *canonicalCache) removeHeader(hash common.Hash, number uint64) {
	c.headers.Remove(hash)
	if cached, ok := c.hashes.Get(number); ok && cached.(common.Hash) == hash {
		c.hashes.Remove(number)
	}
}
