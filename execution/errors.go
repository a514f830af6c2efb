package execution

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ValidationError marks an execution failure caused by the block itself, as
// opposed to an internal failure of the executor or its backing store. The
// set is closed: every variant lives in this package and implements the
// unexported marker.
//
// The insertion engine penalizes blocks for validation-category failures
// only; everything else is ambiguous fault and must not implement this
// interface.
type ValidationError interface {
	error
	validationError()
}

// IsValidationError returns whether the given error is (or wraps) a
// validation-category execution failure.
func IsValidationError(err error) bool {
	var verr ValidationError
	return errors.As(err, &verr)
}

// StateRootDiffError indicates the state root computed after executing the
// block does not match the root committed in the header.
type StateRootDiffError struct {
	Got      common.Hash
	Expected common.Hash
}

func (e StateRootDiffError) Error() string {
	return fmt.Sprintf("state root mismatch: got %x, expected %x", e.Got, e.Expected)
}

func (StateRootDiffError) validationError() {}

// IsStateRootError returns whether the given error is (or wraps) a state
// root mismatch detected during execution.
func IsStateRootError(err error) bool {
	var serr StateRootDiffError
	return errors.As(err, &serr)
}

// BlockPreMergeError indicates a block with pre-merge attributes was
// submitted after the merge transition.
type BlockPreMergeError struct {
	Hash common.Hash
}

func (e BlockPreMergeError) Error() string {
	return fmt.Sprintf("block %x is pre-merge", e.Hash)
}

func (BlockPreMergeError) validationError() {}

// IsBlockPreMergeError returns whether the given error is (or wraps) a
// pre-merge block rejection.
func IsBlockPreMergeError(err error) bool {
	var perr BlockPreMergeError
	return errors.As(err, &perr)
}

// GasUsedMismatchError indicates the cumulative gas consumed by execution
// differs from the gas used committed in the header.
type GasUsedMismatchError struct {
	Got      uint64
	Expected uint64
}

func (e GasUsedMismatchError) Error() string {
	return fmt.Sprintf("gas used mismatch: got %d, expected %d", e.Got, e.Expected)
}

func (GasUsedMismatchError) validationError() {}

// ReceiptRootDiffError indicates the receipt root computed from the
// execution receipts does not match the root committed in the header.
type ReceiptRootDiffError struct {
	Got      common.Hash
	Expected common.Hash
}

func (e ReceiptRootDiffError) Error() string {
	return fmt.Sprintf("receipt root mismatch: got %x, expected %x", e.Got, e.Expected)
}

func (ReceiptRootDiffError) validationError() {}

// InternalError wraps a lower-level failure of the executor that is not
// attributable to the block, such as a read failure of the backing state.
type InternalError struct {
	error
}

func NewInternalErrorf(msg string, args ...interface{}) error {
	return InternalError{error: fmt.Errorf(msg, args...)}
}

func (e InternalError) Unwrap() error {
	return e.error
}

// IsInternalError returns whether the given error is an internal executor
// failure.
func IsInternalError(err error) bool {
	var ierr InternalError
	return errors.As(err, &ierr)
}
