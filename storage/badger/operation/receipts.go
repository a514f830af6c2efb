package operation

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// InsertReceipts stores the receipts of a block under the block hash, in
// their compact storage encoding.
func InsertReceipts(blockID common.Hash, receipts []*types.Receipt) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		stored := make([]*types.ReceiptForStorage, 0, len(receipts))
		for _, receipt := range receipts {
			stored = append(stored, (*types.ReceiptForStorage)(receipt))
		}
		val, err := rlp.EncodeToBytes(stored)
		if err != nil {
			return fmt.Errorf("could not encode receipts: %w", err)
		}
		return insertRaw(makePrefix(codeReceipts, blockID), val)(tx)
	}
}

// RetrieveReceipts loads the receipts of the block with the given hash.
func RetrieveReceipts(blockID common.Hash, receipts *[]*types.Receipt) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var val []byte
		err := retrieveRaw(makePrefix(codeReceipts, blockID), &val)(tx)
		if err != nil {
			return err
		}
		var stored []*types.ReceiptForStorage
		err = rlp.DecodeBytes(val, &stored)
		if err != nil {
			return fmt.Errorf("could not decode receipts: %w", err)
		}
		*receipts = make([]*types.Receipt, 0, len(stored))
		for _, receipt := range stored {
			*receipts = append(*receipts, (*types.Receipt)(receipt))
		}
		return nil
	}
}

// RemoveReceipts drops the receipts of the block with the given hash; used
// when the block leaves the canonical chain.
func RemoveReceipts(blockID common.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeReceipts, blockID))
}
