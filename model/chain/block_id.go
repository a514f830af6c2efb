package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type blockTag int

const (
	tagLatest blockTag = iota
	tagPending
	tagFinalized
	tagEarliest
	tagNumber
	tagHash
)

// BlockID identifies the block a read-side query should resolve to: one of
// the moving tags (latest, pending, finalized, earliest), an explicit number
// on the canonical chain, or an explicit hash.
//
// The distinction between "latest" and everything else matters for the
// read-side retry contract: only a latest-resolved miss is ambiguous under a
// concurrent reorg and warrants a single retry.
type BlockID struct {
	tag    blockTag
	number uint64
	hash   common.Hash
}

func Latest() BlockID    { return BlockID{tag: tagLatest} }
func Pending() BlockID   { return BlockID{tag: tagPending} }
func Finalized() BlockID { return BlockID{tag: tagFinalized} }
func Earliest() BlockID  { return BlockID{tag: tagEarliest} }

func ByNumber(number uint64) BlockID {
	return BlockID{tag: tagNumber, number: number}
}

func ByHash(hash common.Hash) BlockID {
	return BlockID{tag: tagHash, hash: hash}
}

func (id BlockID) IsLatest() bool    { return id.tag == tagLatest }
func (id BlockID) IsPending() bool   { return id.tag == tagPending }
func (id BlockID) IsFinalized() bool { return id.tag == tagFinalized }
func (id BlockID) IsEarliest() bool  { return id.tag == tagEarliest }

// AsNumber returns the explicit block number, if the identifier carries one.
func (id BlockID) AsNumber() (uint64, bool) {
	return id.number, id.tag == tagNumber
}

// AsHash returns the explicit block hash, if the identifier carries one.
func (id BlockID) AsHash() (common.Hash, bool) {
	return id.hash, id.tag == tagHash
}

func (id BlockID) String() string {
	switch id.tag {
	case tagLatest:
		return "latest"
	case tagPending:
		return "pending"
	case tagFinalized:
		return "finalized"
	case tagEarliest:
		return "earliest"
	case tagNumber:
		return fmt.Sprintf("#%d", id.number)
	default:
		return id.hash.Hex()
	}
}
