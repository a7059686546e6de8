package testing

import (
	"testing"

	"github.com/marmos91/waverider/pkg/kv"
	"github.com/stretchr/testify/require"
)

// mustUpdate runs fn in a write transaction and fails the test on error.
func mustUpdate(t *testing.T, s kv.Store, fn func(kv.Txn) error) {
	t.Helper()
	require.NoError(t, s.Update(testContext(), fn), "Update should succeed")
}

// mustView runs fn in a read transaction and fails the test on error.
func mustView(t *testing.T, s kv.Store, fn func(kv.Txn) error) {
	t.Helper()
	require.NoError(t, s.View(testContext(), fn), "View should succeed")
}

// mustGet reads a string key.
func mustGet(t *testing.T, s kv.Store, key string) ([]byte, bool) {
	t.Helper()
	var (
		data  []byte
		found bool
	)
	mustView(t, s, func(tx kv.Txn) error {
		var err error
		data, found, err = tx.Get(key)
		return err
	})
	return data, found
}

// mustLRange reads a whole list.
func mustLRange(t *testing.T, s kv.Store, key string) []string {
	t.Helper()
	var items []string
	mustView(t, s, func(tx kv.Txn) error {
		var err error
		items, err = tx.LRange(key, 0, -1)
		return err
	})
	return items
}

// generateTestData creates deterministic test data of the given size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
