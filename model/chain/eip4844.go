package chain

// Blob gas constants introduced with EIP-4844.
const (
	// BlobGasPerBlob is the amount of blob gas consumed by a single blob.
	BlobGasPerBlob uint64 = 131_072

	// TargetBlobGasPerBlock is the target blob gas consumption per block;
	// excess above the target raises the blob base fee.
	TargetBlobGasPerBlock uint64 = 3 * BlobGasPerBlob

	// MaxBlobGasPerBlock is the hard per-block cap on blob gas.
	MaxBlobGasPerBlock uint64 = 6 * BlobGasPerBlob
)

// CalcExcessBlobGas computes the excess blob gas for a block given its
// parent's excess blob gas and blob gas used. The excess decays towards zero
// whenever a block consumes less than the target.
func CalcExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed uint64) uint64 {
	excess := parentExcessBlobGas + parentBlobGasUsed
	if excess < TargetBlobGasPerBlock {
		return 0
	}
	return excess - TargetBlobGasPerBlock
}
