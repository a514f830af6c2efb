package consensus

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Error marks a violation of consensus rules by a block header or body.
// It is a closed set: every variant lives in this package and implements the
// unexported marker, so classification code can rely on membership here
// meaning "the block itself is at fault".
type Error interface {
	error
	consensusError()
}

// IsConsensusError returns whether the given error is (or wraps) a consensus
// rule violation.
func IsConsensusError(err error) bool {
	var cerr Error
	return errors.As(err, &cerr)
}

// HeaderNumberError indicates the block number does not follow the parent.
type HeaderNumberError struct {
	Number       uint64
	ParentNumber uint64
}

func (e HeaderNumberError) Error() string {
	return fmt.Sprintf("block number %d is not parent number %d + 1", e.Number, e.ParentNumber)
}

func (HeaderNumberError) consensusError() {}

// ParentHashMismatchError indicates the header's parent hash does not match
// the hash of the resolved parent.
type ParentHashMismatchError struct {
	Expected common.Hash
	Got      common.Hash
}

func (e ParentHashMismatchError) Error() string {
	return fmt.Sprintf("parent hash mismatch: expected %x, got %x", e.Expected, e.Got)
}

func (ParentHashMismatchError) consensusError() {}

// TimestampError indicates the block timestamp is not after the parent's.
type TimestampError struct {
	ParentTimestamp uint64
	Timestamp       uint64
}

func (e TimestampError) Error() string {
	return fmt.Sprintf("timestamp %d is not after parent timestamp %d", e.Timestamp, e.ParentTimestamp)
}

func (TimestampError) consensusError() {}

// GasLimitError indicates the gas limit is out of bounds or jumped too far
// from the parent's gas limit.
type GasLimitError struct {
	ParentGasLimit uint64
	GasLimit       uint64
}

func (e GasLimitError) Error() string {
	return fmt.Sprintf("invalid gas limit %d (parent gas limit %d)", e.GasLimit, e.ParentGasLimit)
}

func (GasLimitError) consensusError() {}

// GasUsedOverLimitError indicates the header claims more gas used than the
// block's gas limit allows.
type GasUsedOverLimitError struct {
	GasUsed  uint64
	GasLimit uint64
}

func (e GasUsedOverLimitError) Error() string {
	return fmt.Sprintf("gas used %d exceeds gas limit %d", e.GasUsed, e.GasLimit)
}

func (GasUsedOverLimitError) consensusError() {}

// BaseFeeMismatchError indicates the header base fee differs from the base
// fee derived from the parent per EIP-1559.
type BaseFeeMismatchError struct {
	Expected *big.Int
	Got      *big.Int
}

func (e BaseFeeMismatchError) Error() string {
	return fmt.Sprintf("base fee mismatch: expected %v, got %v", e.Expected, e.Got)
}

func (BaseFeeMismatchError) consensusError() {}

// NonZeroDifficultyError indicates a post-merge header carries a non-zero
// difficulty.
type NonZeroDifficultyError struct {
	Difficulty *big.Int
}

func (e NonZeroDifficultyError) Error() string {
	return fmt.Sprintf("post-merge header has non-zero difficulty %v", e.Difficulty)
}

func (NonZeroDifficultyError) consensusError() {}

// BodyTransactionRootError indicates the transactions in the body do not
// hash to the transaction root committed in the header.
type BodyTransactionRootError struct {
	Expected common.Hash
	Got      common.Hash
}

func (e BodyTransactionRootError) Error() string {
	return fmt.Sprintf("transaction root mismatch: header commits to %x, body hashes to %x", e.Expected, e.Got)
}

func (BodyTransactionRootError) consensusError() {}

// BodyOmmerRootError indicates the ommers in the body do not hash to the
// ommer root committed in the header.
type BodyOmmerRootError struct {
	Expected common.Hash
	Got      common.Hash
}

func (e BodyOmmerRootError) Error() string {
	return fmt.Sprintf("ommer root mismatch: header commits to %x, body hashes to %x", e.Expected, e.Got)
}

func (BodyOmmerRootError) consensusError() {}

// ExcessBlobGasError indicates the header's excess blob gas does not match
// the value derived from the parent per EIP-4844.
type ExcessBlobGasError struct {
	Expected uint64
	Got      uint64
}

func (e ExcessBlobGasError) Error() string {
	return fmt.Sprintf("excess blob gas mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (ExcessBlobGasError) consensusError() {}

// BlobGasUsedError indicates the header's blob gas used is inconsistent with
// the blob transactions in the body or exceeds the per-block cap.
type BlobGasUsedError struct {
	Expected uint64
	Got      uint64
}

func (e BlobGasUsedError) Error() string {
	return fmt.Sprintf("blob gas used mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (BlobGasUsedError) consensusError() {}
