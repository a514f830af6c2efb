package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tcoratger/reth/model/chain"
)

func TestCalcExcessBlobGas(t *testing.T) {
	// consumption at or below the target decays the excess to zero
	assert.Equal(t, uint64(0), chain.CalcExcessBlobGas(0, 0))
	assert.Equal(t, uint64(0), chain.CalcExcessBlobGas(0, chain.TargetBlobGasPerBlock))
	assert.Equal(t, uint64(0), chain.CalcExcessBlobGas(chain.BlobGasPerBlob, chain.BlobGasPerBlob))

	// consumption above the target accumulates
	assert.Equal(t,
		chain.TargetBlobGasPerBlock,
		chain.CalcExcessBlobGas(chain.TargetBlobGasPerBlock, chain.TargetBlobGasPerBlock),
	)
	assert.Equal(t,
		uint64(3*chain.BlobGasPerBlob),
		chain.CalcExcessBlobGas(chain.MaxBlobGasPerBlock, 0),
	)
}
