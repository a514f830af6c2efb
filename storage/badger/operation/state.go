package operation

import (
	"math/big"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
)

// StoredAccount is the flat account record kept in the state columns.
type StoredAccount struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash common.Hash
}

// UpsertAccount writes the current account record for an address.
func UpsertAccount(addr common.Address, account StoredAccount) func(*badger.Txn) error {
	return upsert(makePrefix(codeAccount, addr), account)
}

// RetrieveAccount loads the current account record for an address.
func RetrieveAccount(addr common.Address, account *StoredAccount) func(*badger.Txn) error {
	return retrieve(makePrefix(codeAccount, addr), account)
}

// RemoveAccount deletes the current account record for an address.
func RemoveAccount(addr common.Address) func(*badger.Txn) error {
	return remove(makePrefix(codeAccount, addr))
}

// UpsertStorageSlot writes the current value of a storage slot. A zero value
// should be removed instead, matching the convention that unset slots read
// as zero.
func UpsertStorageSlot(addr common.Address, key common.Hash, value common.Hash) func(*badger.Txn) error {
	return upsert(makePrefix(codeStorageSlot, addr, key), value)
}

// RetrieveStorageSlot loads the current value of a storage slot.
func RetrieveStorageSlot(addr common.Address, key common.Hash, value *common.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeStorageSlot, addr, key), value)
}

// RemoveStorageSlot deletes a storage slot record.
func RemoveStorageSlot(addr common.Address, key common.Hash) func(*badger.Txn) error {
	return remove(makePrefix(codeStorageSlot, addr, key))
}
