package testing

import (
	"testing"

	"github.com/marmos91/waverider/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHashTests executes hash operation tests.
func (suite *StoreTestSuite) RunHashTests(t *testing.T) {
	t.Run("HSet_HGetAll", suite.testHSetHGetAll)
	t.Run("HGet_Missing", suite.testHGetMissing)
	t.Run("HSetNX", suite.testHSetNX)
	t.Run("HIncrBy", suite.testHIncrBy)
	t.Run("HIncrBy_NotInteger", suite.testHIncrByNotInteger)
	t.Run("Hashes_DoNotBleed", suite.testHashesDoNotBleed)
}

func (suite *StoreTestSuite) testHSetHGetAll(t *testing.T) {
	s := suite.NewStore(t)
	fields := map[string]string{
		"type":             "text/plain",
		"len":              "42",
		"Content-Encoding": "gzip",
		"":                 "empty field name",
	}

	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.HSet("meta:1", fields)
	})

	mustView(t, s, func(tx kv.Txn) error {
		got, err := tx.HGetAll("meta:1")
		require.NoError(t, err)
		assert.Equal(t, fields, got)

		v, ok, err := tx.HGet("meta:1", "len")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "42", v)
		return nil
	})
}

func (suite *StoreTestSuite) testHGetMissing(t *testing.T) {
	s := suite.NewStore(t)

	mustView(t, s, func(tx kv.Txn) error {
		_, ok, err := tx.HGet("meta:1", "type")
		require.NoError(t, err)
		assert.False(t, ok)

		all, err := tx.HGetAll("meta:1")
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	})
}

func (suite *StoreTestSuite) testHSetNX(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		set, err := tx.HSetNX("server:", "id", "first")
		require.NoError(t, err)
		assert.True(t, set)
		return nil
	})
	mustUpdate(t, s, func(tx kv.Txn) error {
		set, err := tx.HSetNX("server:", "id", "second")
		require.NoError(t, err)
		assert.False(t, set)
		return nil
	})

	mustView(t, s, func(tx kv.Txn) error {
		v, _, err := tx.HGet("server:", "id")
		require.NoError(t, err)
		assert.Equal(t, "first", v)
		return nil
	})
}

func (suite *StoreTestSuite) testHIncrBy(t *testing.T) {
	s := suite.NewStore(t)

	for want := int64(1); want <= 3; want++ {
		mustUpdate(t, s, func(tx kv.Txn) error {
			n, err := tx.HIncrBy("id:", "content", 1)
			require.NoError(t, err)
			assert.Equal(t, want, n)
			return nil
		})
	}

	mustUpdate(t, s, func(tx kv.Txn) error {
		n, err := tx.HIncrBy("id:", "content", -2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
}

func (suite *StoreTestSuite) testHIncrByNotInteger(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.HSet("id:", map[string]string{"content": "abc"})
	})

	err := s.Update(testContext(), func(tx kv.Txn) error {
		_, err := tx.HIncrBy("id:", "content", 1)
		return err
	})
	assert.ErrorIs(t, err, kv.ErrNotInteger)
}

func (suite *StoreTestSuite) testHashesDoNotBleed(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		if err := tx.HSet("meta:1", map[string]string{"a": "1"}); err != nil {
			return err
		}
		return tx.HSet("meta:10", map[string]string{"b": "2"})
	})

	mustView(t, s, func(tx kv.Txn) error {
		got, err := tx.HGetAll("meta:1")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1"}, got)
		return nil
	})
}
