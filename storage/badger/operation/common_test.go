package operation

import (
	"encoding/binary"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/storage"
	"github.com/tcoratger/reth/utils/unittest"
)

func TestInsertRetrieveRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		key := makePrefix(codeCanonicalTip)
		entity := chain.NumHash{Number: 42, Hash: unittest.HashFixture()}

		err := db.Update(insert(key, entity))
		require.NoError(t, err)

		// a second insert under the same key is refused
		err = db.Update(insert(key, entity))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		// upsert overwrites
		entity.Number = 43
		err = db.Update(upsert(key, entity))
		require.NoError(t, err)

		var loaded chain.NumHash
		err = db.View(retrieve(key, &loaded))
		require.NoError(t, err)
		assert.Equal(t, entity, loaded)

		var present bool
		err = db.View(exists(key, &present))
		require.NoError(t, err)
		assert.True(t, present)

		err = db.Update(remove(key))
		require.NoError(t, err)
		err = db.View(retrieve(key, &loaded))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		// removing an absent key is a no-op
		err = db.Update(remove(key))
		require.NoError(t, err)
	})
}

// TestIteratePrefixOrder checks that big-endian height keys iterate in
// numeric order and that the iteration stays inside the prefix.
func TestIteratePrefixOrder(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		heights := []uint64{300, 2, 1000, 7}
		err := db.Update(func(tx *badger.Txn) error {
			for _, height := range heights {
				err := upsert(makePrefix(codeCanonicalHeight, height), unittest.HashFixture())(tx)
				if err != nil {
					return err
				}
			}
			// a neighboring code must not leak into the iteration
			return upsert(makePrefix(codeCanonicalTip), chain.NumHash{})(tx)
		})
		require.NoError(t, err)

		var seen []uint64
		err = db.View(iteratePrefix(makePrefix(codeCanonicalHeight), func(key []byte, val []byte) error {
			seen = append(seen, binary.BigEndian.Uint64(key[1:9]))
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 7, 300, 1000}, seen)
	})
}

// TestAccountChangeRoundTrip checks that the composite (height, address)
// key decodes back out during iteration.
func TestAccountChangeRoundTrip(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		addr := unittest.AddressFixture()
		prev := PrevAccount{Existed: true}
		prev.Account.Nonce = 9

		err := db.Update(InsertAccountChange(12, addr, prev))
		require.NoError(t, err)

		var loaded PrevAccount
		err = db.View(RetrieveAccountChange(12, addr, &loaded))
		require.NoError(t, err)
		assert.Equal(t, prev.Existed, loaded.Existed)
		assert.Equal(t, prev.Account.Nonce, loaded.Account.Nonce)

		found := false
		err = db.View(ForEachAccountChange(12, func(got common.Address, p PrevAccount) error {
			if got == addr {
				found = true
				assert.True(t, p.Existed)
			}
			return nil
		}))
		require.NoError(t, err)
		assert.True(t, found)

		// a different height sees nothing
		err = db.View(ForEachAccountChange(13, func(got common.Address, p PrevAccount) error {
			t.Fatalf("unexpected entry at height 13 for %x", got)
			return nil
		}))
		require.NoError(t, err)
	})
}
