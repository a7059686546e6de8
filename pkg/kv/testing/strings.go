package testing

import (
	"testing"

	"github.com/marmos91/waverider/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStringTests executes string operation tests.
func (suite *StoreTestSuite) RunStringTests(t *testing.T) {
	t.Run("Get_Missing", suite.testGetMissing)
	t.Run("Set_Get", suite.testSetGet)
	t.Run("Set_Empty", suite.testSetEmpty)
	t.Run("Set_Overwrite", suite.testSetOverwrite)
	t.Run("Append_Creates", suite.testAppendCreates)
	t.Run("Append_Large", suite.testAppendLarge)
	t.Run("GetRange", suite.testGetRange)
	t.Run("GetRange_Missing", suite.testGetRangeMissing)
	t.Run("InvalidKey", suite.testInvalidKey)
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	s := suite.NewStore(t)

	data, found := mustGet(t, s, "nope")
	assert.False(t, found)
	assert.Nil(t, data)
}

func (suite *StoreTestSuite) testSetGet(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.Set("cont:1", []byte("hello"))
	})

	data, found := mustGet(t, s, "cont:1")
	require.True(t, found)
	assert.Equal(t, []byte("hello"), data)
}

func (suite *StoreTestSuite) testSetEmpty(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.Set("cont:1", nil)
	})

	data, found := mustGet(t, s, "cont:1")
	require.True(t, found, "empty string should still exist")
	assert.Empty(t, data)
}

func (suite *StoreTestSuite) testSetOverwrite(t *testing.T) {
	s := suite.NewStore(t)
	big := generateTestData(200 * 1024)

	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.Set("k", big)
	})
	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.Set("k", []byte("short"))
	})

	data, found := mustGet(t, s, "k")
	require.True(t, found)
	assert.Equal(t, []byte("short"), data)
}

func (suite *StoreTestSuite) testAppendCreates(t *testing.T) {
	s := suite.NewStore(t)

	var total int64
	mustUpdate(t, s, func(tx kv.Txn) error {
		var err error
		if _, err = tx.Append("k", []byte("ab")); err != nil {
			return err
		}
		total, err = tx.Append("k", []byte("cd"))
		return err
	})

	assert.Equal(t, int64(4), total)
	data, _ := mustGet(t, s, "k")
	assert.Equal(t, []byte("abcd"), data)
}

func (suite *StoreTestSuite) testAppendLarge(t *testing.T) {
	s := suite.NewStore(t)
	data := generateTestData(700 * 1024)

	// Uneven chunks, one transaction each, crossing segment boundaries
	const chunk = 48 * 1024
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		mustUpdate(t, s, func(tx kv.Txn) error {
			_, err := tx.Append("big", data[off:end])
			return err
		})
	}

	var n int64
	mustView(t, s, func(tx kv.Txn) error {
		var err error
		n, _, err = tx.StrLen("big")
		return err
	})
	assert.Equal(t, int64(len(data)), n)

	got, found := mustGet(t, s, "big")
	require.True(t, found)
	assert.Equal(t, data, got)
}

func (suite *StoreTestSuite) testGetRange(t *testing.T) {
	s := suite.NewStore(t)
	data := generateTestData(300 * 1024)

	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.Append("k", data[:100*1024])
		return err
	})
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.Append("k", data[100*1024:])
		return err
	})

	tests := []struct {
		name   string
		offset int64
		n      int64
		want   []byte
	}{
		{"head", 0, 10, data[:10]},
		{"across segments", 60 * 1024, 80 * 1024, data[60*1024 : 140*1024]},
		{"tail short read", int64(len(data)) - 5, 100, data[len(data)-5:]},
		{"past end", int64(len(data)), 10, []byte{}},
		{"zero length", 5, 0, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			mustView(t, s, func(tx kv.Txn) error {
				var err error
				got, err = tx.GetRange("k", tt.offset, tt.n)
				return err
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func (suite *StoreTestSuite) testGetRangeMissing(t *testing.T) {
	s := suite.NewStore(t)

	mustView(t, s, func(tx kv.Txn) error {
		got, err := tx.GetRange("missing", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
		return nil
	})
}

func (suite *StoreTestSuite) testInvalidKey(t *testing.T) {
	s := suite.NewStore(t)

	err := s.Update(testContext(), func(tx kv.Txn) error {
		return tx.Set("", []byte("x"))
	})
	assert.ErrorIs(t, err, kv.ErrInvalidKey)
}
