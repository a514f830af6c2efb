package consensus

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tcoratger/reth/model/chain"
)

// Validator checks blocks against consensus rules before they are executed.
// Implementations return a consensus Error (see errors.go) when the block is
// at fault; any other error is treated as internal by callers.
type Validator interface {
	// ValidateHeader checks the candidate header against its resolved parent.
	ValidateHeader(header *types.Header, parent *types.Header) error

	// ValidateBlock checks the block body against the commitments in its
	// header. It assumes ValidateHeader has already passed.
	ValidateBlock(block *chain.SealedBlock) error
}
