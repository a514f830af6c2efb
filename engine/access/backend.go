package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
)

// ChainReader is the live fork-structure surface the backend queries:
// canonical boundaries plus pending (not yet canonical) blocks.
type ChainReader interface {
	CanonicalTip() chain.NumHash
	FinalizedBlockNumber() uint64
	CanonicalHashByNumber(number uint64) (common.Hash, error)
	PendingBlock() (*chain.SealedBlockWithSenders, bool)
	PendingBlockAndReceipts() (*chain.SealedBlockWithSenders, []*types.Receipt, bool)
	SideChainBlockByHash(hash common.Hash) (*chain.SealedBlockWithSenders, bool)
}

// Backend answers block queries addressed by tag, number or hash. Absence
// is not an error: an unknown block answers (nil, nil).
//
// Tag resolution and the subsequent cache read are not one atomic step: a
// reorg can drop the resolved hash in between. A latest-resolved miss is
// therefore re-resolved and retried exactly once before reporting absence;
// every other identifier answers its first miss immediately.
type Backend struct {
	log        zerolog.Logger
	chain      ChainReader
	cache      BlockCache
	retryDelay time.Duration
}

func NewBackend(log zerolog.Logger, chain ChainReader, cache BlockCache, retryDelay time.Duration) *Backend {
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	return &Backend{
		log:        log.With().Str("component", "access_backend").Logger(),
		chain:      chain,
		cache:      cache,
		retryDelay: retryDelay,
	}
}

// BlockByID returns the block addressed by the given identifier, or nil if
// no such block exists.
func (b *Backend) BlockByID(ctx context.Context, id chain.BlockID) (*chain.SealedBlock, error) {
	if id.IsPending() {
		if pending, ok := b.chain.PendingBlock(); ok {
			return pending.SealedBlock, nil
		}
		// no pending block tracked: fall through to the canonical tip
		id = chain.Latest()
	}

	var block *chain.SealedBlock
	err := b.withLatestRetry(ctx, id, func() error {
		hash, ok, err := b.resolveHash(id)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		block, err = b.cache.SealedBlock(hash)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return block, nil
}

// BlockAndReceipts returns the block addressed by the identifier together
// with its execution receipts, or (nil, nil, nil) if no such block exists.
func (b *Backend) BlockAndReceipts(ctx context.Context, id chain.BlockID) (*chain.SealedBlock, []*types.Receipt, error) {
	if id.IsPending() {
		if pending, receipts, ok := b.chain.PendingBlockAndReceipts(); ok {
			return pending.SealedBlock, receipts, nil
		}
		id = chain.Latest()
	}

	var (
		block    *chain.SealedBlock
		receipts []*types.Receipt
	)
	err := b.withLatestRetry(ctx, id, func() error {
		hash, ok, err := b.resolveHash(id)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
		block, receipts, err = b.cache.BlockAndReceipts(hash)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return block, receipts, nil
}

// BlockTransactionCount returns the number of transactions in the block
// addressed by the identifier. The second return is false if no such block
// exists.
func (b *Backend) BlockTransactionCount(ctx context.Context, id chain.BlockID) (uint64, bool, error) {
	block, err := b.BlockByID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if block == nil {
		return 0, false, nil
	}
	return uint64(len(block.Transactions())), true, nil
}

// Ommers returns the uncle headers of the block addressed by the
// identifier, or nil if no such block exists. Pending blocks answer an
// empty set: post-merge there are no pending uncles.
func (b *Backend) Ommers(ctx context.Context, id chain.BlockID) ([]*types.Header, error) {
	if id.IsPending() {
		return []*types.Header{}, nil
	}
	block, err := b.BlockByID(ctx, id)
	if err != nil || block == nil {
		return nil, err
	}
	return block.Uncles(), nil
}

// OmmerByIndex returns the uncle header at the given position, or nil if
// the block or the position does not exist.
func (b *Backend) OmmerByIndex(ctx context.Context, id chain.BlockID, index int) (*types.Header, error) {
	ommers, err := b.Ommers(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ommers) {
		return nil, nil
	}
	return ommers[index], nil
}

// withLatestRetry runs the read, retrying exactly once on a not-found
// result for the latest tag. A second miss is reported as-is; a miss for
// any other identifier never retries.
func (b *Backend) withLatestRetry(ctx context.Context, id chain.BlockID, read func() error) error {
	retryable := id.IsLatest()
	backoff := retry.WithMaxRetries(1, retry.NewConstant(b.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := read()
		if err == nil {
			return nil
		}
		if retryable && errors.Is(err, storage.ErrNotFound) {
			b.log.Debug().Str("block_id", id.String()).Msg("tip moved under read, retrying once")
			return retry.RetryableError(err)
		}
		return err
	})
}

// resolveHash maps an identifier to a block hash. The second return is
// false when the identifier addresses nothing, e.g. a number above the tip.
func (b *Backend) resolveHash(id chain.BlockID) (common.Hash, bool, error) {
	switch {
	case id.IsLatest():
		return b.chain.CanonicalTip().Hash, true, nil
	case id.IsFinalized():
		return b.canonicalHash(b.chain.FinalizedBlockNumber())
	case id.IsEarliest():
		return b.canonicalHash(0)
	default:
		if hash, ok := id.AsHash(); ok {
			return hash, true, nil
		}
		number, ok := id.AsNumber()
		if !ok {
			return common.Hash{}, false, fmt.Errorf("unresolvable block identifier %s", id)
		}
		return b.canonicalHash(number)
	}
}

func (b *Backend) canonicalHash(number uint64) (common.Hash, bool, error) {
	hash, err := b.chain.CanonicalHashByNumber(number)
	if errors.Is(err, storage.ErrNotFound) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, err
	}
	return hash, true, nil
}
