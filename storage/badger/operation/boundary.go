package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/tcoratger/reth/model/chain"
)

// UpsertCanonicalTip stores the (number, hash) of the canonical tip.
func UpsertCanonicalTip(tip chain.NumHash) func(*badger.Txn) error {
	return upsert(makePrefix(codeCanonicalTip), tip)
}

// RetrieveCanonicalTip loads the (number, hash) of the canonical tip.
func RetrieveCanonicalTip(tip *chain.NumHash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCanonicalTip), tip)
}

// UpsertFinalizedHeight stores the finality boundary.
func UpsertFinalizedHeight(height uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeFinalizedHeight), height)
}

// RetrieveFinalizedHeight loads the finality boundary.
func RetrieveFinalizedHeight(height *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFinalizedHeight), height)
}
