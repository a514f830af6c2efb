package operation

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
)

// PrevAccount is the pre-block value of an account recorded in a change
// set. Existed distinguishes "account was absent" from the zero account.
type PrevAccount struct {
	Existed bool
	Account StoredAccount
}

// InsertAccountChange records the pre-block account value for (height,
// address). The (height, address) composite key keeps all change-set
// entries of one block adjacent and in address order.
func InsertAccountChange(height uint64, addr common.Address, prev PrevAccount) func(*badger.Txn) error {
	return upsert(makePrefix(codeAccountChange, height, addr), prev)
}

// RetrieveAccountChange loads the pre-block account value for (height,
// address).
func RetrieveAccountChange(height uint64, addr common.Address, prev *PrevAccount) func(*badger.Txn) error {
	return retrieve(makePrefix(codeAccountChange, height, addr), prev)
}

// RemoveAccountChange drops the change-set entry for (height, address).
func RemoveAccountChange(height uint64, addr common.Address) func(*badger.Txn) error {
	return remove(makePrefix(codeAccountChange, height, addr))
}

// ForEachAccountChange walks all account change-set entries of one block
// height, in address order.
func ForEachAccountChange(height uint64, handle func(addr common.Address, prev PrevAccount) error) func(*badger.Txn) error {
	prefix := makePrefix(codeAccountChange, height)
	return iteratePrefix(prefix, func(key []byte, val []byte) error {
		_, addr := accountChangeKey(key)
		var prev PrevAccount
		err := decode(val, &prev)
		if err != nil {
			return err
		}
		return handle(addr, prev)
	})
}

func accountChangeKey(key []byte) (uint64, common.Address) {
	height := binary.BigEndian.Uint64(key[1:9])
	var addr common.Address
	copy(addr[:], key[9:29])
	return height, addr
}

// InsertStorageChange records the pre-block value of a storage slot for
// (height, address, key). The zero hash means the slot was unset.
func InsertStorageChange(height uint64, addr common.Address, slot common.Hash, prev common.Hash) func(*badger.Txn) error {
	return upsert(makePrefix(codeStorageChange, height, addr, slot), prev)
}

// RetrieveStorageChange loads the pre-block slot value for (height,
// address, key).
func RetrieveStorageChange(height uint64, addr common.Address, slot common.Hash, prev *common.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeStorageChange, height, addr, slot), prev)
}

// RemoveStorageChange drops the change-set entry for (height, address,
// key).
func RemoveStorageChange(height uint64, addr common.Address, slot common.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeStorageChange, height, addr, slot))
}

// ForEachStorageChange walks all storage change-set entries of one block
// height.
func ForEachStorageChange(height uint64, handle func(addr common.Address, slot common.Hash, prev common.Hash) error) func(*badger.Txn) error {
	prefix := makePrefix(codeStorageChange, height)
	return iteratePrefix(prefix, func(key []byte, val []byte) error {
		_, addr, slot := storageChangeKey(key)
		var prev common.Hash
		err := decode(val, &prev)
		if err != nil {
			return err
		}
		return handle(addr, slot, prev)
	})
}

func storageChangeKey(key []byte) (uint64, common.Address, common.Hash) {
	height := binary.BigEndian.Uint64(key[1:9])
	var addr common.Address
	copy(addr[:], key[9:29])
	var slot common.Hash
	copy(slot[:], key[29:61])
	return height, addr, slot
}
