package operation

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// InsertBody stores a block body under the block hash, RLP-encoded.
func InsertBody(blockID common.Hash, body *types.Body) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		val, err := rlp.EncodeToBytes(body)
		if err != nil {
			return fmt.Errorf("could not encode body: %w", err)
		}
		return insertRaw(makePrefix(codeBody, blockID), val)(tx)
	}
}

// RetrieveBody loads the block body with the given block hash.
func RetrieveBody(blockID common.Hash, body *types.Body) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var val []byte
		err := retrieveRaw(makePrefix(codeBody, blockID), &val)(tx)
		if err != nil {
			return err
		}
		err = rlp.DecodeBytes(val, body)
		if err != nil {
			return fmt.Errorf("could not decode body: %w", err)
		}
		return nil
	}
}

// InsertSenders stores the recovered transaction senders of a block,
// index-aligned with the body's transactions.
func InsertSenders(blockID common.Hash, senders []common.Address) func(*badger.Txn) error {
	return upsert(makePrefix(codeSenders, blockID), senders)
}

// RetrieveSenders loads the recovered senders of a block.
func RetrieveSenders(blockID common.Hash, senders *[]common.Address) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSenders, blockID), senders)
}
