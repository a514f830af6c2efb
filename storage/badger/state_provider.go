package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tcoratger/reth/execution"
	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
	"github.com/tcoratger/reth/storage/badger/operation"
)

// StateAt returns a provider over the post-state of the canonical block with
// the given hash. The tip state is read directly from the flat columns; past
// states are reconstructed by overlaying the change sets of the blocks above
// the requested height.
func (p *Provider) StateAt(hash common.Hash) (execution.StateProvider, error) {
	var (
		header types.Header
		tip    chain.NumHash
	)
	err := p.db.View(func(tx *badger.Txn) error {
		err := operation.RetrieveHeader(hash, &header)(tx)
		if err != nil {
			return err
		}
		number := header.Number.Uint64()
		var canonical common.Hash
		err = operation.LookupCanonicalHeight(number, &canonical)(tx)
		if err != nil {
			return err
		}
		if canonical != hash {
			return fmt.Errorf("block %x at height %d is not canonical: %w", hash, number, storage.ErrNotFound)
		}
		return operation.RetrieveCanonicalTip(&tip)(tx)
	})
	if err != nil {
		return nil, err
	}
	return &stateProvider{
		db:     p.db,
		hash:   hash,
		root:   header.Root,
		number: header.Number.Uint64(),
		tip:    tip.Number,
	}, nil
}

// stateProvider reads account and storage values as of a canonical block.
// A value at height N is the recorded pre-block value of the first change
// above N; absent any change, it is the current flat state.
type stateProvider struct {
	db     *badger.DB
	hash   common.Hash
	root   common.Hash
	number uint64
	tip    uint64
}

var _ execution.StateProvider = (*stateProvider)(nil)

func (s *stateProvider) BlockHash() common.Hash {
	return s.hash
}

func (s *stateProvider) StateRoot() (common.Hash, error) {
	return s.root, nil
}

func (s *stateProvider) Account(addr common.Address) (*execution.Account, error) {
	var account *execution.Account
	err := s.db.View(func(tx *badger.Txn) error {
		for height := s.number + 1; height <= s.tip; height++ {
			var prev operation.PrevAccount
			err := operation.RetrieveAccountChange(height, addr, &prev)(tx)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("could not read account change: %w", err)
			}
			if prev.Existed {
				account = fromStoredAccount(prev.Account)
			}
			return nil
		}
		var stored operation.StoredAccount
		err := operation.RetrieveAccount(addr, &stored)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read account: %w", err)
		}
		account = fromStoredAccount(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *stateProvider) StorageSlot(addr common.Address, key common.Hash) (common.Hash, error) {
	var value common.Hash
	err := s.db.View(func(tx *badger.Txn) error {
		for height := s.number + 1; height <= s.tip; height++ {
			var prev common.Hash
			err := operation.RetrieveStorageChange(height, addr, key, &prev)(tx)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("could not read storage change: %w", err)
			}
			value = prev
			return nil
		}
		err := operation.RetrieveStorageSlot(addr, key, &value)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read storage slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return value, nil
}
