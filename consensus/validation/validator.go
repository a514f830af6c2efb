// Package validation implements the post-merge header and body checks the
// tree runs before executing a block.
package validation

import (
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/tcoratger/reth/consensus"
	"github.com/tcoratger/reth/model/chain"
)

const minGasLimit = 5000

// HeaderValidator validates headers and bodies of post-merge blocks. Seal
// verification is the concern of the consensus layer and is not performed
// here.
type HeaderValidator struct {
	config *params.ChainConfig
}

var _ consensus.Validator = (*HeaderValidator)(nil)

func NewHeaderValidator(config *params.ChainConfig) *HeaderValidator {
	return &HeaderValidator{config: config}
}

func (v *HeaderValidator) ValidateHeader(header *types.Header, parent *types.Header) error {
	if header.Number.Uint64() != parent.Number.Uint64()+1 {
		return consensus.HeaderNumberError{
			Number:       header.Number.Uint64(),
			ParentNumber: parent.Number.Uint64(),
		}
	}
	if header.ParentHash != parent.Hash() {
		return consensus.ParentHashMismatchError{
			Expected: parent.Hash(),
			Got:      header.ParentHash,
		}
	}
	if header.Time <= parent.Time {
		return consensus.TimestampError{
			ParentTimestamp: parent.Time,
			Timestamp:       header.Time,
		}
	}
	if err := v.validateGasLimit(header, parent); err != nil {
		return err
	}
	if header.GasUsed > header.GasLimit {
		return consensus.GasUsedOverLimitError{
			GasUsed:  header.GasUsed,
			GasLimit: header.GasLimit,
		}
	}
	if header.Difficulty != nil && header.Difficulty.Sign() != 0 {
		return consensus.NonZeroDifficultyError{Difficulty: header.Difficulty}
	}
	if v.config.IsLondon(header.Number) {
		expected := eip1559.CalcBaseFee(v.config, parent)
		if header.BaseFee == nil || header.BaseFee.Cmp(expected) != 0 {
			return consensus.BaseFeeMismatchError{
				Expected: expected,
				Got:      header.BaseFee,
			}
		}
	}
	if err := v.validateBlobGas(header, parent); err != nil {
		return err
	}
	return nil
}

func (v *HeaderValidator) validateGasLimit(header *types.Header, parent *types.Header) error {
	if header.GasLimit < minGasLimit {
		return consensus.GasLimitError{
			ParentGasLimit: parent.GasLimit,
			GasLimit:       header.GasLimit,
		}
	}

	// the gas limit may move at most 1/1024 of the parent limit per block
	diff := int64(header.GasLimit) - int64(parent.GasLimit)
	if diff < 0 {
		diff = -diff
	}
	if uint64(diff) >= parent.GasLimit/1024 {
		return consensus.GasLimitError{
			ParentGasLimit: parent.GasLimit,
			GasLimit:       header.GasLimit,
		}
	}
	return nil
}

func (v *HeaderValidator) validateBlobGas(header *types.Header, parent *types.Header) error {
	if header.ExcessBlobGas == nil {
		return nil
	}

	var parentExcess, parentUsed uint64
	if parent.ExcessBlobGas != nil {
		parentExcess = *parent.ExcessBlobGas
	}
	if parent.BlobGasUsed != nil {
		parentUsed = *parent.BlobGasUsed
	}
	expected := chain.CalcExcessBlobGas(parentExcess, parentUsed)
	if *header.ExcessBlobGas != expected {
		return consensus.ExcessBlobGasError{
			Expected: expected,
			Got:      *header.ExcessBlobGas,
		}
	}
	if header.BlobGasUsed != nil && *header.BlobGasUsed > chain.MaxBlobGasPerBlock {
		return consensus.BlobGasUsedError{
			Expected: chain.MaxBlobGasPerBlock,
			Got:      *header.BlobGasUsed,
		}
	}
	return nil
}

func (v *HeaderValidator) ValidateBlock(block *chain.SealedBlock) error {
	header := block.Header()

	txRoot := types.DeriveSha(block.Transactions(), trie.NewStackTrie(nil))
	if txRoot != header.TxHash {
		return consensus.BodyTransactionRootError{
			Expected: header.TxHash,
			Got:      txRoot,
		}
	}

	ommerRoot := types.CalcUncleHash(block.Uncles())
	if ommerRoot != header.UncleHash {
		return consensus.BodyOmmerRootError{
			Expected: header.UncleHash,
			Got:      ommerRoot,
		}
	}

	if header.BlobGasUsed != nil {
		var blobGas uint64
		for _, tx := range block.Transactions() {
			blobGas += uint64(len(tx.BlobHashes())) * chain.BlobGasPerBlob
		}
		if blobGas != *header.BlobGasUsed {
			return consensus.BlobGasUsedError{
				Expected: blobGas,
				Got:      *header.BlobGasUsed,
			}
		}
	}
	return nil
}
