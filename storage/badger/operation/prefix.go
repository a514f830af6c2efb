package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// block data, keyed by block hash
	codeHeader          = 1
	codeBody            = 2
	codeSenders         = 3
	codeReceipts        = 4
	codeTotalDifficulty = 5

	// canonical chain indices
	codeCanonicalHeight = 10 // height -> block hash
	codeCanonicalTip    = 11 // -> NumHash
	codeFinalizedHeight = 12 // -> height

	// flat state, keyed by address (and slot key)
	codeAccount     = 20
	codeStorageSlot = 21

	// per-block change sets, keyed by (height, address[, slot key]);
	// values are the pre-block records used for unwinding
	codeAccountChange = 30
	codeStorageChange = 31
)

// makePrefix composes a key from a code byte and a sequence of fixed-width
// segments. Heights are big-endian so lexicographic key order matches
// numeric order.
func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1, 1+8*len(keys))
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, keyPart(key)...)
	}
	return prefix
}

func keyPart(key interface{}) []byte {
	switch k := key.(type) {
	case uint64:
		part := make([]byte, 8)
		binary.BigEndian.PutUint64(part, k)
		return part
	case common.Hash:
		return k[:]
	case common.Address:
		return k[:]
	default:
		panic(fmt.Sprintf("unsupported key part type (%T)", key))
	}
}
