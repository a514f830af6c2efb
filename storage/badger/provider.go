// Package badger implements the persistent chain storage on top of a badger
// key-value store. Every mutation of the canonical chain happens inside a
// single badger transaction, which is the crash-atomicity unit relied on by
// the canonicalization engine.
package badger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
	"github.com/tcoratger/reth/storage/badger/operation"
)

// Provider is the badger-backed implementation of the storage collaborator.
type Provider struct {
	log zerolog.Logger
	db  *badger.DB
}

var _ storage.Provider = (*Provider)(nil)

func NewProvider(log zerolog.Logger, db *badger.DB) *Provider {
	return &Provider{
		log: log.With().Str("component", "chain_storage").Logger(),
		db:  db,
	}
}

// Bootstrap initializes the store with a genesis block: the genesis becomes
// both the canonical tip and the finality boundary.
func (p *Provider) Bootstrap(genesis *chain.SealedBlock) error {
	return p.db.Update(func(tx *badger.Txn) error {
		var tip chain.NumHash
		err := operation.RetrieveCanonicalTip(&tip)(tx)
		if err == nil {
			return storage.ErrAlreadyBootstrapped
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not check canonical tip: %w", err)
		}

		header := genesis.Header()
		err = operation.InsertHeader(genesis.Hash(), header)(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis header: %w", err)
		}
		err = operation.InsertBody(genesis.Hash(), blockBody(genesis))(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis body: %w", err)
		}
		err = operation.InsertSenders(genesis.Hash(), nil)(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis senders: %w", err)
		}

		td := new(big.Int)
		if header.Difficulty != nil {
			td.Set(header.Difficulty)
		}
		err = operation.InsertTotalDifficulty(genesis.Hash(), td.Bytes())(tx)
		if err != nil {
			return fmt.Errorf("could not insert genesis total difficulty: %w", err)
		}

		err = operation.IndexCanonicalHeight(genesis.Number(), genesis.Hash())(tx)
		if err != nil {
			return fmt.Errorf("could not index genesis height: %w", err)
		}
		err = operation.UpsertCanonicalTip(genesis.NumHash())(tx)
		if err != nil {
			return fmt.Errorf("could not set canonical tip: %w", err)
		}
		err = operation.UpsertFinalizedHeight(genesis.Number())(tx)
		if err != nil {
			return fmt.Errorf("could not set finalized height: %w", err)
		}
		return nil
	})
}

func (p *Provider) HeaderByHash(hash common.Hash) (*types.Header, error) {
	var header types.Header
	err := p.db.View(operation.RetrieveHeader(hash, &header))
	if err != nil {
		return nil, err
	}
	return &header, nil
}

func (p *Provider) CanonicalHash(number uint64) (common.Hash, error) {
	var hash common.Hash
	err := p.db.View(operation.LookupCanonicalHeight(number, &hash))
	if err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (p *Provider) CanonicalTip() (chain.NumHash, error) {
	var tip chain.NumHash
	err := p.db.View(operation.RetrieveCanonicalTip(&tip))
	if err != nil {
		return chain.NumHash{}, err
	}
	return tip, nil
}

func (p *Provider) FinalizedBlockNumber() (uint64, error) {
	var height uint64
	err := p.db.View(operation.RetrieveFinalizedHeight(&height))
	if err != nil {
		return 0, err
	}
	return height, nil
}

func (p *Provider) TotalDifficulty(hash common.Hash) (*big.Int, error) {
	var raw []byte
	err := p.db.View(operation.RetrieveTotalDifficulty(hash, &raw))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (p *Provider) BlockByHash(hash common.Hash) (*chain.SealedBlock, error) {
	var block *chain.SealedBlock
	err := p.db.View(func(tx *badger.Txn) error {
		var err error
		block, err = retrieveSealedBlock(tx, hash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Provider) ReceiptsByBlockHash(hash common.Hash) ([]*types.Receipt, error) {
	var receipts []*types.Receipt
	err := p.db.View(operation.RetrieveReceipts(hash, &receipts))
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// CommitBlock appends the executed block to the canonical chain in one
// transaction. The block must extend the current tip; the output's state
// root must match the header's commitment.
func (p *Provider) CommitBlock(block *chain.SealedBlockWithSenders, output *execution.Output) error {
	err := operation.RetryOnConflict(p.db.Update, func(tx *badger.Txn) error {
		var tip chain.NumHash
		err := operation.RetrieveCanonicalTip(&tip)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve canonical tip: %w", err)
		}
		if block.ParentHash() != tip.Hash {
			return fmt.Errorf("block %s does not extend canonical tip %s", block, tip)
		}

		header := block.Header()
		if output.StateRoot != header.Root {
			return storage.StateRootMismatchError{Got: output.StateRoot, Expected: header.Root}
		}

		err = operation.InsertHeader(block.Hash(), header)(tx)
		if err != nil {
			return fmt.Errorf("could not insert header: %w", err)
		}
		err = operation.InsertBody(block.Hash(), blockBody(block.SealedBlock))(tx)
		if err != nil {
			return fmt.Errorf("could not insert body: %w", err)
		}
		err = operation.InsertSenders(block.Hash(), block.Senders)(tx)
		if err != nil {
			return fmt.Errorf("could not insert senders: %w", err)
		}
		err = operation.InsertReceipts(block.Hash(), output.Receipts)(tx)
		if err != nil {
			return fmt.Errorf("could not insert receipts: %w", err)
		}

		var parentTD []byte
		err = operation.RetrieveTotalDifficulty(block.ParentHash(), &parentTD)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve parent total difficulty: %w", err)
		}
		td := new(big.Int).SetBytes(parentTD)
		if header.Difficulty != nil {
			td.Add(td, header.Difficulty)
		}
		err = operation.InsertTotalDifficulty(block.Hash(), td.Bytes())(tx)
		if err != nil {
			return fmt.Errorf("could not insert total difficulty: %w", err)
		}

		err = applyDelta(tx, block.Number(), output.Delta)
		if err != nil {
			return fmt.Errorf("could not apply state delta: %w", err)
		}

		err = operation.IndexCanonicalHeight(block.Number(), block.Hash())(tx)
		if err != nil {
			return fmt.Errorf("could not index canonical height: %w", err)
		}
		err = operation.UpsertCanonicalTip(block.NumHash())(tx)
		if err != nil {
			return fmt.Errorf("could not move canonical tip: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.log.Debug().
		Uint64("height", block.Number()).
		Hex("block_id", block.Hash().Bytes()).
		Msg("canonical block committed")
	return nil
}

// RevertBlock unwinds the canonical tip in one transaction and returns the
// removed block together with its reconstructed execution output.
func (p *Provider) RevertBlock(hash common.Hash) (*chain.SealedBlockWithSenders, *execution.Output, error) {
	var (
		reverted *chain.SealedBlockWithSenders
		output   *execution.Output
	)
	err := operation.RetryOnConflict(p.db.Update, func(tx *badger.Txn) error {
		var tip chain.NumHash
		err := operation.RetrieveCanonicalTip(&tip)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve canonical tip: %w", err)
		}
		if tip.Hash != hash {
			return fmt.Errorf("can only revert the canonical tip %s, got %x", tip, hash)
		}

		block, err := retrieveSealedBlock(tx, hash)
		if err != nil {
			return fmt.Errorf("could not retrieve block: %w", err)
		}
		var senders []common.Address
		err = operation.RetrieveSenders(hash, &senders)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve senders: %w", err)
		}
		var receipts []*types.Receipt
		err = operation.RetrieveReceipts(hash, &receipts)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve receipts: %w", err)
		}

		delta, err := unwindDelta(tx, tip.Number)
		if err != nil {
			return fmt.Errorf("could not unwind state delta: %w", err)
		}

		err = operation.RemoveReceipts(hash)(tx)
		if err != nil {
			return fmt.Errorf("could not remove receipts: %w", err)
		}
		err = operation.RemoveCanonicalHeight(tip.Number)(tx)
		if err != nil {
			return fmt.Errorf("could not remove canonical index: %w", err)
		}

		parent := chain.NumHash{Number: tip.Number - 1, Hash: block.ParentHash()}
		var parentHash common.Hash
		err = operation.LookupCanonicalHeight(parent.Number, &parentHash)(tx)
		if err != nil {
			return fmt.Errorf("could not look up parent height: %w", err)
		}
		if parentHash != parent.Hash {
			return fmt.Errorf("canonical index at height %d holds %x, expected parent %x",
				parent.Number, parentHash, parent.Hash)
		}
		err = operation.UpsertCanonicalTip(parent)(tx)
		if err != nil {
			return fmt.Errorf("could not move canonical tip: %w", err)
		}

		reverted, err = chain.NewSealedBlockWithSenders(block, senders)
		if err != nil {
			return fmt.Errorf("could not pair block with senders: %w", err)
		}
		output = &execution.Output{
			Receipts:  receipts,
			GasUsed:   block.Header().GasUsed,
			StateRoot: block.Header().Root,
			Delta:     delta,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p.log.Debug().
		Uint64("height", reverted.Number()).
		Hex("block_id", reverted.Hash().Bytes()).
		Msg("canonical block reverted")
	return reverted, output, nil
}

func (p *Provider) SetFinalized(number uint64) error {
	return operation.RetryOnConflict(p.db.Update, operation.UpsertFinalizedHeight(number))
}

// applyDelta writes the post-block state and the pre-block change sets.
func applyDelta(tx *badger.Txn, height uint64, delta *execution.Delta) error {
	if delta == nil {
		return nil
	}
	for _, change := range delta.Accounts {
		prev := operation.PrevAccount{Existed: change.Previous != nil}
		if change.Previous != nil {
			prev.Account = toStoredAccount(change.Previous)
		}
		err := operation.InsertAccountChange(height, change.Address, prev)(tx)
		if err != nil {
			return fmt.Errorf("could not record account change: %w", err)
		}
		if change.Current == nil {
			err = operation.RemoveAccount(change.Address)(tx)
		} else {
			err = operation.UpsertAccount(change.Address, toStoredAccount(change.Current))(tx)
		}
		if err != nil {
			return fmt.Errorf("could not apply account change: %w", err)
		}
	}
	for _, change := range delta.Storage {
		err := operation.InsertStorageChange(height, change.Address, change.Key, change.Previous)(tx)
		if err != nil {
			return fmt.Errorf("could not record storage change: %w", err)
		}
		if change.Current == (common.Hash{}) {
			err = operation.RemoveStorageSlot(change.Address, change.Key)(tx)
		} else {
			err = operation.UpsertStorageSlot(change.Address, change.Key, change.Current)(tx)
		}
		if err != nil {
			return fmt.Errorf("could not apply storage change: %w", err)
		}
	}
	return nil
}

// unwindDelta restores the pre-block state from the change sets of the
// given height, removes those change sets, and reconstructs the block's
// delta for re-attachment as a side chain.
func unwindDelta(tx *badger.Txn, height uint64) (*execution.Delta, error) {
	delta := &execution.Delta{}

	err := operation.ForEachAccountChange(height, func(addr common.Address, prev operation.PrevAccount) error {
		var current *execution.Account
		var stored operation.StoredAccount
		err := operation.RetrieveAccount(addr, &stored)(tx)
		if err == nil {
			current = fromStoredAccount(stored)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not read current account: %w", err)
		}

		var previous *execution.Account
		if prev.Existed {
			previous = fromStoredAccount(prev.Account)
		}
		delta.Accounts = append(delta.Accounts, execution.AccountChange{
			Address:  addr,
			Previous: previous,
			Current:  current,
		})
		return nil
	})(tx)
	if err != nil {
		return nil, err
	}

	err = operation.ForEachStorageChange(height, func(addr common.Address, slot common.Hash, prev common.Hash) error {
		var current common.Hash
		err := operation.RetrieveStorageSlot(addr, slot, &current)(tx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not read current slot: %w", err)
		}
		delta.Storage = append(delta.Storage, execution.StorageChange{
			Address:  addr,
			Key:      slot,
			Previous: prev,
			Current:  current,
		})
		return nil
	})(tx)
	if err != nil {
		return nil, err
	}

	// restore the pre-block values and drop the change sets
	for _, change := range delta.Accounts {
		var err error
		if change.Previous == nil {
			err = operation.RemoveAccount(change.Address)(tx)
		} else {
			err = operation.UpsertAccount(change.Address, toStoredAccount(change.Previous))(tx)
		}
		if err != nil {
			return nil, fmt.Errorf("could not restore account: %w", err)
		}
		err = operation.RemoveAccountChange(height, change.Address)(tx)
		if err != nil {
			return nil, fmt.Errorf("could not remove account change: %w", err)
		}
	}
	for _, change := range delta.Storage {
		var err error
		if change.Previous == (common.Hash{}) {
			err = operation.RemoveStorageSlot(change.Address, change.Key)(tx)
		} else {
			err = operation.UpsertStorageSlot(change.Address, change.Key, change.Previous)(tx)
		}
		if err != nil {
			return nil, fmt.Errorf("could not restore slot: %w", err)
		}
		err = operation.RemoveStorageChange(height, change.Address, change.Key)(tx)
		if err != nil {
			return nil, fmt.Errorf("could not remove storage change: %w", err)
		}
	}

	return delta, nil
}

func retrieveSealedBlock(tx *badger.Txn, hash common.Hash) (*chain.SealedBlock, error) {
	var header types.Header
	err := operation.RetrieveHeader(hash, &header)(tx)
	if err != nil {
		return nil, err
	}
	var body types.Body
	err = operation.RetrieveBody(hash, &body)(tx)
	if err != nil {
		return nil, err
	}
	block := types.NewBlockWithHeader(&header).WithBody(body.Transactions, body.Uncles)
	return chain.SealWithHash(block, hash), nil
}

func blockBody(block *chain.SealedBlock) *types.Body {
	return &types.Body{
		Transactions: block.Transactions(),
		Uncles:       block.Uncles(),
	}
}

func toStoredAccount(account *execution.Account) operation.StoredAccount {
	stored := operation.StoredAccount{
		Nonce:    account.Nonce,
		CodeHash: account.CodeHash,
	}
	if account.Balance != nil {
		stored.Balance = new(big.Int).Set(account.Balance)
	}
	return stored
}

func fromStoredAccount(stored operation.StoredAccount) *execution.Account {
	account := &execution.Account{
		Nonce:    stored.Nonce,
		CodeHash: stored.CodeHash,
	}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account
}
