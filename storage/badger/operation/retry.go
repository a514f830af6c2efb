package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"
)

// RetryOnConflict reruns a transactional update for as long as badger
// reports an optimistic-concurrency conflict.
func RetryOnConflict(run func(func(*badger.Txn) error) error, op func(*badger.Txn) error) error {
	for {
		err := run(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
