package validation

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcoratger/reth/consensus"
	"github.com/tcoratger/reth/model/chain"
	"github.com/tcoratger/reth/utils/unittest"
)

func validChild(config *params.ChainConfig, parent *types.Header) *types.Header {
	return &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, big.NewInt(1)),
		Time:       parent.Time + 12,
		GasLimit:   parent.GasLimit,
		Difficulty: big.NewInt(0),
		BaseFee:    eip1559.CalcBaseFee(config, parent),
	}
}

func TestValidateHeader(t *testing.T) {
	config := params.TestChainConfig
	validator := NewHeaderValidator(config)
	parent := unittest.HeaderFixture()

	t.Run("valid child passes", func(t *testing.T) {
		header := validChild(config, parent)
		require.NoError(t, validator.ValidateHeader(header, parent))
	})

	t.Run("wrong number", func(t *testing.T) {
		header := validChild(config, parent)
		header.Number.Add(header.Number, big.NewInt(1))
		err := validator.ValidateHeader(header, parent)
		require.Error(t, err)
		assert.True(t, consensus.IsConsensusError(err))
		assert.ErrorAs(t, err, &consensus.HeaderNumberError{})
	})

	t.Run("wrong parent hash", func(t *testing.T) {
		header := validChild(config, parent)
		header.ParentHash = unittest.HashFixture()
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.ParentHashMismatchError{})
	})

	t.Run("timestamp not after parent", func(t *testing.T) {
		header := validChild(config, parent)
		header.Time = parent.Time
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.TimestampError{})
	})

	t.Run("gas limit jump too large", func(t *testing.T) {
		header := validChild(config, parent)
		header.GasLimit = parent.GasLimit + parent.GasLimit/1024
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.GasLimitError{})
	})

	t.Run("gas limit below minimum", func(t *testing.T) {
		header := validChild(config, parent)
		header.GasLimit = 4999
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.GasLimitError{})
	})

	t.Run("gas used over limit", func(t *testing.T) {
		header := validChild(config, parent)
		header.GasUsed = header.GasLimit + 1
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.GasUsedOverLimitError{})
	})

	t.Run("non-zero difficulty", func(t *testing.T) {
		header := validChild(config, parent)
		header.Difficulty = big.NewInt(1)
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.NonZeroDifficultyError{})
	})

	t.Run("wrong base fee", func(t *testing.T) {
		header := validChild(config, parent)
		header.BaseFee.Add(header.BaseFee, big.NewInt(1))
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.BaseFeeMismatchError{})
	})

	t.Run("wrong excess blob gas", func(t *testing.T) {
		header := validChild(config, parent)
		excess := uint64(1)
		header.ExcessBlobGas = &excess
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.ExcessBlobGasError{})
	})

	t.Run("blob gas used over maximum", func(t *testing.T) {
		header := validChild(config, parent)
		excess := chain.CalcExcessBlobGas(0, 0)
		used := uint64(chain.MaxBlobGasPerBlock + chain.BlobGasPerBlob)
		header.ExcessBlobGas = &excess
		header.BlobGasUsed = &used
		err := validator.ValidateHeader(header, parent)
		assert.ErrorAs(t, err, &consensus.BlobGasUsedError{})
	})
}

func TestValidateBlock(t *testing.T) {
	validator := NewHeaderValidator(params.TestChainConfig)

	t.Run("empty body matches commitments", func(t *testing.T) {
		block := unittest.BlockFixture()
		require.NoError(t, validator.ValidateBlock(block))
	})

	t.Run("wrong transaction root", func(t *testing.T) {
		header := unittest.HeaderFixture()
		header.TxHash = unittest.HashFixture()
		header.UncleHash = types.EmptyUncleHash
		block := chain.Seal(types.NewBlockWithHeader(header))
		err := validator.ValidateBlock(block)
		assert.ErrorAs(t, err, &consensus.BodyTransactionRootError{})
	})

	t.Run("wrong ommer root", func(t *testing.T) {
		header := unittest.HeaderFixture()
		header.TxHash = types.EmptyTxsHash
		header.UncleHash = unittest.HashFixture()
		block := chain.Seal(types.NewBlockWithHeader(header))
		err := validator.ValidateBlock(block)
		assert.ErrorAs(t, err, &consensus.BodyOmmerRootError{})
	})

	t.Run("blob gas used mismatch", func(t *testing.T) {
		header := unittest.HeaderFixture()
		used := uint64(chain.BlobGasPerBlob)
		header.BlobGasUsed = &used
		block := unittest.SealedBlock(header)
		err := validator.ValidateBlock(block)
		assert.ErrorAs(t, err, &consensus.BlobGasUsedError{})
	})
}
