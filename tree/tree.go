// Package tree tracks all live forks of the chain in memory and decides,
// together with its persistent store, which fork is canonical. Disconnected
// blocks wait in a bounded buffer; connected blocks are validated, executed
// against their parent's post-state and attached as side chains; a separate
// canonicalization step promotes one fork to the stored canonical chain.
package tree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/tcoratger/reth/consensus"
	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
)

// Attachment describes where a newly inserted block connects to the tracked
// structure.
type Attachment int

const (
	// AttachmentCanonical: the block's fork attaches at the canonical tip,
	// so it is a candidate extension of the canonical chain.
	AttachmentCanonical Attachment = iota + 1
	// AttachmentHistoricalFork: the block's fork attaches below the
	// canonical tip.
	AttachmentHistoricalFork
)

func (a Attachment) String() string {
	switch a {
	case AttachmentCanonical:
		return "canonical"
	case AttachmentHistoricalFork:
		return "historical_fork"
	default:
		return "unknown"
	}
}

// InsertStatus is the coarse result of one block insertion.
type InsertStatus int

const (
	// StatusValid: the block was validated, executed and attached to a
	// side chain.
	StatusValid InsertStatus = iota + 1
	// StatusDisconnected: the block's ancestry is incomplete; it waits in
	// the buffer.
	StatusDisconnected
)

// InsertOutcome is the non-error result of one block insertion. A buffered
// block is a non-error outcome: nothing is known about its validity yet.
type InsertOutcome struct {
	Status      InsertStatus
	AlreadySeen bool

	// Attachment is set for StatusValid.
	Attachment Attachment

	// MissingAncestor is set for StatusDisconnected: the closest ancestor
	// that is neither tracked nor buffered.
	MissingAncestor chain.NumHash
}

// Config tunes the tree's bounded structures.
type Config struct {
	// BufferCapacity bounds the number of disconnected blocks held.
	BufferCapacity uint
	// CanonicalWindow sizes the in-memory window of recent canonical
	// headers used for parent resolution.
	CanonicalWindow int
	// SenderRecoveryWorkers bounds the parallelism of transaction signer
	// recovery.
	SenderRecoveryWorkers int
}

func DefaultConfig() Config {
	return Config{
		BufferCapacity:        256,
		CanonicalWindow:       256,
		SenderRecoveryWorkers: 4,
	}
}

type Option func(*Config)

func WithBufferCapacity(capacity uint) Option {
	return func(cfg *Config) {
		cfg.BufferCapacity = capacity
	}
}

func WithCanonicalWindow(size int) Option {
	return func(cfg *Config) {
		cfg.CanonicalWindow = size
	}
}

func WithSenderRecoveryWorkers(workers int) Option {
	return func(cfg *Config) {
		cfg.SenderRecoveryWorkers = workers
	}
}

// BlockchainTree is the single writer over the fork structure. One lock
// serializes insertions and canonicalizations; read-side accessors take the
// same lock shared.
type BlockchainTree struct {
	mu      sync.RWMutex
	log     zerolog.Logger
	metrics *Metrics
	cfg     Config

	provider  storage.Provider
	validator consensus.Validator
	executor  execution.Executor
	signer    types.Signer

	state     *treeState
	buffer    *BlockBuffer
	canonical *canonicalCache

	// optimisticTarget, when set, is the height of an optimistically
	// synced block that has not been fully validated yet. Reverting at or
	// below it requires a pipeline unwind first.
	optimisticTarget *uint64
}

// NewBlockchainTree wires the tree to its collaborators. The persistent
// store must already be bootstrapped; the current tip and finality boundary
// are loaded from it.
func NewBlockchainTree(
	log zerolog.Logger,
	metrics *Metrics,
	provider storage.Provider,
	validator consensus.Validator,
	executor execution.Executor,
	chainConfig *params.ChainConfig,
	opts ...Option,
) (*BlockchainTree, error) {

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	canonical, err := newCanonicalCache(cfg.CanonicalWindow)
	if err != nil {
		return nil, fmt.Errorf("could not initialize canonical window: %w", err)
	}

	tip, err := provider.CanonicalTip()
	if err != nil {
		return nil, fmt.Errorf("could not load canonical tip: %w", err)
	}
	finalized, err := provider.FinalizedBlockNumber()
	if err != nil {
		return nil, fmt.Errorf("could not load finalized height: %w", err)
	}
	tipHeader, err := provider.HeaderByHash(tip.Hash)
	if err != nil {
		return nil, fmt.Errorf("could not load tip header: %w", err)
	}

	canonical.setTip(tip)
	canonical.setFinalized(finalized)
	canonical.addHeader(tip.Hash, tipHeader)

	t := &BlockchainTree{
		log:       log.With().Str("component", "blockchain_tree").Logger(),
		metrics:   metrics,
		cfg:       cfg,
		provider:  provider,
		validator: validator,
		executor:  executor,
		signer:    types.LatestSigner(chainConfig),
		state:     newTreeState(),
		buffer:    NewBlockBuffer(cfg.BufferCapacity),
		canonical: canonical,
	}
	t.metrics.CanonicalHeight(tip.Number)
	t.metrics.FinalizedHeight(finalized)
	return t, nil
}

// InsertBlock validates, executes and attaches one block. A failure is
// always a *InsertBlockError carrying the block back to the caller; a block
// with incomplete ancestry is buffered, which is not an error.
func (t *BlockchainTree) InsertBlock(block *chain.SealedBlock) (*InsertOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	outcome, err := t.insertBlock(block)
	if err != nil {
		var ierr *InsertBlockError
		if errors.As(err, &ierr) && ierr.IsInvalidBlock() {
			t.metrics.BlockInvalid()
		}
		return nil, err
	}

	t.metrics.BufferedBlocks(t.buffer.Len())
	t.metrics.SideChains(len(t.state.chains))
	return outcome, nil
}

func (t *BlockchainTree) insertBlock(block *chain.SealedBlock) (*InsertOutcome, error) {

	// a block the tree already tracks is reported as seen, not re-processed
	if outcome, ok := t.knownBlockOutcome(block); ok {
		return outcome, nil
	}

	// the genesis block is bootstrapped directly into the store; it has no
	// parent to resolve
	if block.Number() == 0 {
		return nil, NewInsertTreeError(block, GenesisBlockHasNoParentError{})
	}

	// a block at or below the finality boundary can never become
	// canonical, regardless of its content
	if finalized := t.canonical.finalizedHeight(); block.Number() <= finalized {
		return nil, NewInsertTreeError(block, PendingBlockIsFinalizedError{LastFinalized: finalized})
	}

	parent, location, err := t.resolveParent(block)
	if err != nil {
		return nil, err
	}
	if location == parentUnknown {
		err = t.buffer.Add(block)
		if err != nil {
			return nil, NewInsertTreeError(block, BlockBufferingFailedError{BlockHash: block.Hash()})
		}
		t.log.Debug().
			Hex("block_id", block.Hash().Bytes()).
			Uint64("height", block.Number()).
			Msg("block buffered, ancestry incomplete")
		return &InsertOutcome{
			Status:          StatusDisconnected,
			MissingAncestor: t.missingAncestor(block),
		}, nil
	}

	err = t.validator.ValidateHeader(block.Header(), parent)
	if err != nil {
		return nil, NewInsertConsensusError(block, err)
	}
	err = t.validator.ValidateBlock(block)
	if err != nil {
		return nil, NewInsertConsensusError(block, err)
	}

	senders, err := t.recoverSenders(block)
	if err != nil {
		return nil, NewInsertSenderRecoveryError(block)
	}
	withSenders, err := chain.NewSealedBlockWithSenders(block, senders)
	if err != nil {
		return nil, NewInsertInternalError(block, err)
	}

	parentPoint := block.ParentNumHash()
	parentState, err := t.stateProviderAt(parentPoint)
	if err != nil {
		return nil, NewInsertProviderError(block, err)
	}

	output, err := t.executor.ExecuteAndVerify(withSenders, parentState)
	if err != nil {
		return nil, NewInsertExecutionError(block, err)
	}

	attachment, err := t.attach(withSenders, output, location)
	if err != nil {
		return nil, err
	}

	t.metrics.BlockInserted()
	t.log.Debug().
		Hex("block_id", block.Hash().Bytes()).
		Uint64("height", block.Number()).
		Str("attachment", attachment.String()).
		Msg("block attached")

	t.promoteBufferedChildren(block.Hash())

	return &InsertOutcome{
		Status:     StatusValid,
		Attachment: attachment,
	}, nil
}

// parentLocation says where a block's parent was found.
type parentLocation int

const (
	parentUnknown parentLocation = iota
	parentCanonical
	parentSideChain
)

// knownBlockOutcome reports blocks the tree already tracks: canonical,
// on a side chain, or buffered.
func (t *BlockchainTree) knownBlockOutcome(block *chain.SealedBlock) (*InsertOutcome, bool) {
	hash := block.Hash()

	if _, ok := t.state.blockByHash(hash); ok {
		attachment := t.attachmentOf(hash)
		return &InsertOutcome{Status: StatusValid, AlreadySeen: true, Attachment: attachment}, true
	}

	canonical, err := t.isCanonicalHash(hash, block.Number())
	if err == nil && canonical {
		return &InsertOutcome{Status: StatusValid, AlreadySeen: true, Attachment: AttachmentCanonical}, true
	}

	if _, ok := t.buffer.ByHash(hash); ok {
		return &InsertOutcome{
			Status:          StatusDisconnected,
			AlreadySeen:     true,
			MissingAncestor: t.missingAncestor(block),
		}, true
	}
	return nil, false
}

// resolveParent locates the parent of the block: on the canonical chain, on
// a side chain, or nowhere known. For tracked parents the parent header is
// returned for stateless validation.
func (t *BlockchainTree) resolveParent(block *chain.SealedBlock) (*types.Header, parentLocation, error) {
	parentHash := block.ParentHash()

	if header, ok := t.canonical.headerByHash(parentHash); ok {
		return header, parentCanonical, nil
	}

	if parent, ok := t.state.blockByHash(parentHash); ok {
		return parent.Header(), parentSideChain, nil
	}

	header, err := t.provider.HeaderByHash(parentHash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, parentUnknown, nil
	}
	if err != nil {
		return nil, parentUnknown, NewInsertProviderError(block, err)
	}
	canonicalHash, err := t.provider.CanonicalHash(header.Number.Uint64())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, parentUnknown, nil
	}
	if err != nil {
		return nil, parentUnknown, NewInsertProviderError(block, err)
	}
	if canonicalHash != parentHash {
		// stored but no longer canonical and not tracked: treat as unknown
		return nil, parentUnknown, nil
	}
	t.canonical.addHeader(parentHash, header)
	return header, parentCanonical, nil
}

// missingAncestor walks the buffered ancestry of the block up to the first
// ancestor the buffer does not hold.
func (t *BlockchainTree) missingAncestor(block *chain.SealedBlock) chain.NumHash {
	lowest := block
	for {
		parent, ok := t.buffer.ByHash(lowest.ParentHash())
		if !ok {
			return lowest.ParentNumHash()
		}
		lowest = parent
	}
}

// recoverSenders derives the signer address of every transaction, in
// parallel. Any unrecoverable signature fails the block.
func (t *BlockchainTree) recoverSenders(block *chain.SealedBlock) ([]common.Address, error) {
	txs := block.Transactions()
	senders := make([]common.Address, len(txs))
	errs := make([]error, len(txs))

	pool := workerpool.New(t.cfg.SenderRecoveryWorkers)
	for i, tx := range txs {
		i, tx := i, tx
		pool.Submit(func() {
			senders[i], errs[i] = types.Sender(t.signer, tx)
		})
	}
	pool.StopWait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return senders, nil
}

// stateProviderAt resolves a provider over the post-state of the given
// block, stacking side-chain deltas over the canonical base when the block
// is not canonical. Fork points strictly descend toward the canonical
// chain, so the recursion terminates.
func (t *BlockchainTree) stateProviderAt(point chain.NumHash) (execution.StateProvider, error) {
	c, err := t.state.chainByBlockHash(point.Hash)
	if err != nil {
		if IsBlockHashNotFoundError(err) {
			return t.provider.StateAt(point.Hash)
		}
		return nil, err
	}
	idx, ok := c.IndexOf(point.Hash)
	if !ok {
		return nil, BlockSideChainIDConsistencyError{ChainID: c.ID()}
	}
	base, err := t.stateProviderAt(c.ForkPoint())
	if err != nil {
		return nil, err
	}
	return c.StateProviderOver(base, idx), nil
}

// attach places the executed block into the fork structure: extending its
// parent's chain when the parent is a chain tip, otherwise opening a new
// chain forking at the parent.
func (t *BlockchainTree) attach(block *chain.SealedBlockWithSenders, output *execution.Output, location parentLocation) (Attachment, error) {
	parentPoint := block.ParentNumHash()

	if location == parentSideChain {
		c, err := t.state.chainByBlockHash(parentPoint.Hash)
		if err != nil {
			return 0, NewInsertInternalError(block.SealedBlock, err)
		}
		if c.Tip().Hash == parentPoint.Hash {
			err = c.Extend(block, output)
			if err != nil {
				return 0, NewInsertInternalError(block.SealedBlock, err)
			}
			t.state.indexBlock(block.Hash(), c.ID())
			return t.attachmentOf(block.Hash()), nil
		}
	}

	// parent is canonical, or sits mid-chain: open a new fork
	c := NewSideChain(t.state.allocateChainID(), parentPoint, block, output)
	t.state.insertChain(c)
	return t.attachmentOf(block.Hash()), nil
}

// attachmentOf classifies how the fork holding the given block connects to
// the canonical chain: at the tip, or below it.
func (t *BlockchainTree) attachmentOf(hash common.Hash) Attachment {
	point := chain.NumHash{Hash: hash}
	for {
		c, err := t.state.chainByBlockHash(point.Hash)
		if err != nil {
			break
		}
		point = c.ForkPoint()
	}
	if point.Hash == t.canonical.tipNumHash().Hash {
		return AttachmentCanonical
	}
	return AttachmentHistoricalFork
}

// promoteBufferedChildren re-inserts every buffered block whose parent just
// got attached, recursively. Individual promotion failures discard the
// child but never fail the parent's insertion.
func (t *BlockchainTree) promoteBufferedChildren(parent common.Hash) {
	var merr *multierror.Error
	for _, child := range t.buffer.Children(parent) {
		t.buffer.Remove(child.Hash())
		_, err := t.insertBlock(child)
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		t.log.Warn().
			Hex("parent_id", parent.Bytes()).
			Err(err).
			Msg("discarded buffered children during promotion")
	}
}

// isCanonicalHash checks whether the hash names a canonical block, hitting
// the in-memory window before the store.
func (t *BlockchainTree) isCanonicalHash(hash common.Hash, number uint64) (bool, error) {
	if _, ok := t.canonical.headerByHash(hash); ok {
		return true, nil
	}
	canonicalHash, err := t.provider.CanonicalHash(number)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return canonicalHash == hash, nil
}

// CanonicalTip returns the (number, hash) of the canonical chain tip.
func (t *BlockchainTree) CanonicalTip() chain.NumHash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.canonical.tipNumHash()
}

// FinalizedBlockNumber returns the current finality boundary.
func (t *BlockchainTree) FinalizedBlockNumber() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.canonical.finalizedHeight()
}

// CanonicalHashByNumber resolves the canonical block hash at a height.
func (t *BlockchainTree) CanonicalHashByNumber(number uint64) (common.Hash, error) {
	t.mu.RLock()
	if hash, ok := t.canonical.hashByNumber(number); ok {
		t.mu.RUnlock()
		return hash, nil
	}
	t.mu.RUnlock()
	return t.provider.CanonicalHash(number)
}

// IsCanonical reports whether the block with the given hash and number sits
// on the stored canonical chain.
func (t *BlockchainTree) IsCanonical(hash common.Hash, number uint64) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isCanonicalHash(hash, number)
}

// SideChainCount returns the number of tracked side chains.
func (t *BlockchainTree) SideChainCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.state.chains)
}

// BufferedCount returns the number of buffered disconnected blocks.
func (t *BlockchainTree) BufferedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buffer.Len()
}

// SideChainBlockByHash returns the tracked non-canonical block with the
// given hash, if any.
func (t *BlockchainTree) SideChainBlockByHash(hash common.Hash) (*chain.SealedBlockWithSenders, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.blockByHash(hash)
}

// PendingBlock returns a block extending the canonical tip, if one is
// tracked. With several candidates the choice is arbitrary but stable for
// an unchanged tree.
func (t *BlockchainTree) PendingBlock() (*chain.SealedBlockWithSenders, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	block, _, ok := t.pendingEntry()
	return block, ok
}

// PendingBlockAndReceipts returns a block extending the canonical tip
// together with its execution receipts.
func (t *BlockchainTree) PendingBlockAndReceipts() (*chain.SealedBlockWithSenders, []*types.Receipt, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	block, output, ok := t.pendingEntry()
	if !ok {
		return nil, nil, false
	}
	return block, output.Receipts, true
}

func (t *BlockchainTree) pendingEntry() (*chain.SealedBlockWithSenders, *execution.Output, bool) {
	tip := t.canonical.tipNumHash()
	var (
		bestID ChainID
		best   *SideChain
	)
	for id, c := range t.state.chains {
		if c.ForkPoint().Hash != tip.Hash {
			continue
		}
		if best == nil || id < bestID {
			bestID, best = id, c
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best.Block(0), best.Output(0), true
}
