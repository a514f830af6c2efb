package execution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the flat account record tracked by the state layer.
type Account struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash common.Hash
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	cpy := &Account{
		Nonce:    a.Nonce,
		CodeHash: a.CodeHash,
	}
	if a.Balance != nil {
		cpy.Balance = new(big.Int).Set(a.Balance)
	}
	return cpy
}

// AccountChange records one account modified by a block: the value before
// the block (nil means the account did not exist) and the value after (nil
// means it was destroyed). The previous value is what the canonicalization
// engine persists as a change set so the block can be unwound.
type AccountChange struct {
	Address  common.Address
	Previous *Account
	Current  *Account
}

// StorageChange records one storage slot modified by a block, again with
// both the previous and the current value.
type StorageChange struct {
	Address  common.Address
	Key      common.Hash
	Previous common.Hash
	Current  common.Hash
}

// Delta is the post-execution state difference of a single block. Side
// chains carry one Delta per block so that forks can be executed against
// stacked in-memory state without touching the persistent store, and so the
// canonicalization engine can apply or unwind the block.
type Delta struct {
	Accounts []AccountChange
	Storage  []StorageChange
}

// AccountChange returns the change record for the given address, if the
// delta touches it.
func (d *Delta) AccountChange(addr common.Address) (AccountChange, bool) {
	for _, change := range d.Accounts {
		if change.Address == addr {
			return change, true
		}
	}
	return AccountChange{}, false
}

// StorageChange returns the change record for the given slot, if the delta
// touches it.
func (d *Delta) StorageChange(addr common.Address, key common.Hash) (StorageChange, bool) {
	for _, change := range d.Storage {
		if change.Address == addr && change.Key == key {
			return change, true
		}
	}
	return StorageChange{}, false
}
