package testing

import (
	"testing"

	"github.com/marmos91/waverider/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListTests executes list operation tests.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("LPush_Order", suite.testLPushOrder)
	t.Run("LRange_Bounds", suite.testLRangeBounds)
	t.Run("LIndex", suite.testLIndex)
	t.Run("RPop", suite.testRPop)
	t.Run("RPop_Empty", suite.testRPopEmpty)
}

func (suite *StoreTestSuite) testLPushOrder(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		n, err := tx.LPush("url:h:/", "1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = tx.LPush("url:h:/", "2", "3")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		return nil
	})

	assert.Equal(t, []string{"3", "2", "1"}, mustLRange(t, s, "url:h:/"))
}

func (suite *StoreTestSuite) testLRangeBounds(t *testing.T) {
	s := suite.NewStore(t)
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.LPush("l", "e", "d", "c", "b", "a")
		return err
	})

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"a", "b", "c", "d", "e"}},
		{"prefix", 0, 1, []string{"a", "b"}},
		{"from keep", 2, -1, []string{"c", "d", "e"}},
		{"stop past end", 3, 100, []string{"d", "e"}},
		{"negative start", -2, -1, []string{"d", "e"}},
		{"start past end", 10, -1, []string{}},
		{"inverted", 3, 1, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustView(t, s, func(tx kv.Txn) error {
				got, err := tx.LRange("l", tt.start, tt.stop)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return nil
			})
		})
	}

	mustView(t, s, func(tx kv.Txn) error {
		got, err := tx.LRange("missing", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, got)
		return nil
	})
}

func (suite *StoreTestSuite) testLIndex(t *testing.T) {
	s := suite.NewStore(t)
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.LPush("l", "old", "new")
		return err
	})

	mustView(t, s, func(tx kv.Txn) error {
		v, ok, err := tx.LIndex("l", 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "new", v)

		v, ok, err = tx.LIndex("l", -1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "old", v)

		_, ok, err = tx.LIndex("l", 2)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = tx.LIndex("missing", 0)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}

func (suite *StoreTestSuite) testRPop(t *testing.T) {
	s := suite.NewStore(t)
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.LPush("l", "1", "2", "3")
		return err
	})

	mustUpdate(t, s, func(tx kv.Txn) error {
		v, ok, err := tx.RPop("l")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1", v)
		return nil
	})
	assert.Equal(t, []string{"3", "2"}, mustLRange(t, s, "l"))

	// Push after pop keeps positions consistent
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.LPush("l", "4")
		return err
	})
	assert.Equal(t, []string{"4", "3", "2"}, mustLRange(t, s, "l"))
}

func (suite *StoreTestSuite) testRPopEmpty(t *testing.T) {
	s := suite.NewStore(t)
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.LPush("l", "only")
		return err
	})

	mustUpdate(t, s, func(tx kv.Txn) error {
		_, ok, err := tx.RPop("l")
		require.NoError(t, err)
		assert.True(t, ok)

		_, ok, err = tx.RPop("l")
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := tx.LLen("l")
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
}
