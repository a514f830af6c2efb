package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	// Note: badger's ErrKeyNotFound never crosses the storage boundary;
	// every operation converts it to ErrNotFound.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when inserting a record under a key
	// that is already populated.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrAlreadyBootstrapped is returned when bootstrapping a store that
	// already holds a canonical chain.
	ErrAlreadyBootstrapped = errors.New("storage is already bootstrapped")
)

// StateRootMismatchError indicates the persistent store detected a state
// root inconsistency while applying a block. It duplicates the execution
// layer's state root error deliberately: the mismatch can be detected at
// either layer depending on when persistence verifies the root.
type StateRootMismatchError struct {
	Got      common.Hash
	Expected common.Hash
}

func (e StateRootMismatchError) Error() string {
	return fmt.Sprintf("state root mismatch on apply: got %x, expected %x", e.Got, e.Expected)
}

// UnwindStateRootMismatchError indicates a state root inconsistency detected
// while unwinding a block during a canonical revert.
type UnwindStateRootMismatchError struct {
	Got      common.Hash
	Expected common.Hash
}

func (e UnwindStateRootMismatchError) Error() string {
	return fmt.Sprintf("state root mismatch on unwind: got %x, expected %x", e.Got, e.Expected)
}

// IsStateRootMismatchError returns whether the given error is (or wraps) a
// state root inconsistency detected by the store, on apply or on unwind.
func IsStateRootMismatchError(err error) bool {
	var applyErr StateRootMismatchError
	if errors.As(err, &applyErr) {
		return true
	}
	var unwindErr UnwindStateRootMismatchError
	return errors.As(err, &unwindErr)
}
