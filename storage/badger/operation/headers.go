package operation

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// InsertHeader stores a header under its block hash, RLP-encoded.
func InsertHeader(blockID common.Hash, header *types.Header) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		val, err := rlp.EncodeToBytes(header)
		if err != nil {
			return fmt.Errorf("could not encode header: %w", err)
		}
		return insertRaw(makePrefix(codeHeader, blockID), val)(tx)
	}
}

// RetrieveHeader loads the header with the given block hash.
func RetrieveHeader(blockID common.Hash, header *types.Header) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var val []byte
		err := retrieveRaw(makePrefix(codeHeader, blockID), &val)(tx)
		if err != nil {
			return err
		}
		err = rlp.DecodeBytes(val, header)
		if err != nil {
			return fmt.Errorf("could not decode header: %w", err)
		}
		return nil
	}
}

// IndexCanonicalHeight maps a canonical height to the hash of the block at
// that height.
func IndexCanonicalHeight(height uint64, blockID common.Hash) func(*badger.Txn) error {
	return upsert(makePrefix(codeCanonicalHeight, height), blockID)
}

// LookupCanonicalHeight resolves the canonical block hash at a height.
func LookupCanonicalHeight(height uint64, blockID *common.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCanonicalHeight, height), blockID)
}

// RemoveCanonicalHeight drops the canonical index entry at a height.
func RemoveCanonicalHeight(height uint64) func(*badger.Txn) error {
	return remove(makePrefix(codeCanonicalHeight, height))
}

// InsertTotalDifficulty stores the accumulated difficulty up to and
// including the block with the given hash.
func InsertTotalDifficulty(blockID common.Hash, td []byte) func(*badger.Txn) error {
	return insertRaw(makePrefix(codeTotalDifficulty, blockID), td)
}

// RetrieveTotalDifficulty loads the accumulated difficulty of a block.
func RetrieveTotalDifficulty(blockID common.Hash, td *[]byte) func(*badger.Txn) error {
	return retrieveRaw(makePrefix(codeTotalDifficulty, blockID), td)
}
