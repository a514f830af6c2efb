package unittest

import (
	"os"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

func badgerDB(t testing.TB, dir string) *badger.DB {
	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

// RunWithBadgerDB runs the test against a badger database backed by a
// temporary directory that is cleaned up afterwards.
func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := badgerDB(t, dir)
		defer func() {
			require.NoError(t, db.Close())
		}()
		f(db)
	})
}

// RunWithTempDir runs the test with a temporary directory that is cleaned
// up afterwards.
func RunWithTempDir(t testing.TB, f func(string)) {
	dir, err := os.MkdirTemp("", "chain-test-")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.RemoveAll(dir))
	}()
	f(dir)
}
