package operation

import (
	"github.com/fxamacker/cbor/v2"
)

// Bookkeeping records (indices, accounts, change sets) are encoded with
// CBOR. Consensus objects (headers, bodies, receipts) keep their canonical
// RLP encoding and go through insertRaw/retrieveRaw instead.

func encode(entity interface{}) ([]byte, error) {
	return cbor.Marshal(entity)
}

func decode(val []byte, entity interface{}) error {
	return cbor.Unmarshal(val, entity)
}
