package testing

import (
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/waverider/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTxnTests executes transaction semantics tests.
func (suite *StoreTestSuite) RunTxnTests(t *testing.T) {
	t.Run("Update_Rollback", suite.testUpdateRollback)
	t.Run("Multi_Exec", suite.testMultiExec)
	t.Run("Multi_AllOrNothing", suite.testMultiAllOrNothing)
	t.Run("Conflict_OnWatchedList", suite.testConflictOnWatchedList)
	t.Run("UpdateWithRetry_Counter", suite.testUpdateWithRetryCounter)
	t.Run("Del_AllTypes", suite.testDelAllTypes)
	t.Run("ReadYourWrites", suite.testReadYourWrites)
}

func (suite *StoreTestSuite) testUpdateRollback(t *testing.T) {
	s := suite.NewStore(t)
	boom := errors.New("boom")

	err := s.Update(testContext(), func(tx kv.Txn) error {
		if err := tx.Set("k", []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, found := mustGet(t, s, "k")
	assert.False(t, found, "failed update must not write")
}

func (suite *StoreTestSuite) testMultiExec(t *testing.T) {
	s := suite.NewStore(t)

	m := kv.NewMulti().
		HSet("meta:1", map[string]string{"type": "text/plain"}).
		LPush("url:h:/", "1").
		Set("cont:1", []byte("x"))
	assert.Equal(t, 3, m.Len())
	require.NoError(t, m.Exec(testContext(), s))

	assert.Equal(t, []string{"1"}, mustLRange(t, s, "url:h:/"))
	data, _ := mustGet(t, s, "cont:1")
	assert.Equal(t, []byte("x"), data)
}

func (suite *StoreTestSuite) testMultiAllOrNothing(t *testing.T) {
	s := suite.NewStore(t)

	err := kv.NewMulti().
		HSet("meta:1", map[string]string{"type": "text/plain"}).
		LPush("", "1").
		Exec(testContext(), s)
	assert.ErrorIs(t, err, kv.ErrInvalidKey)

	mustView(t, s, func(tx kv.Txn) error {
		all, err := tx.HGetAll("meta:1")
		require.NoError(t, err)
		assert.Empty(t, all, "first op must be rolled back")
		return nil
	})
}

func (suite *StoreTestSuite) testConflictOnWatchedList(t *testing.T) {
	s := suite.NewStore(t)
	mustUpdate(t, s, func(tx kv.Txn) error {
		_, err := tx.LPush("url:h:/", "1", "2", "3")
		return err
	})

	err := s.Update(testContext(), func(tx kv.Txn) error {
		ids, err := tx.LRange("url:h:/", 0, -1)
		if err != nil {
			return err
		}
		require.Len(t, ids, 3)

		// A writer sneaks in between the read and the commit
		mustUpdate(t, s, func(inner kv.Txn) error {
			_, err := inner.LPush("url:h:/", "4")
			return err
		})

		if _, _, err := tx.RPop("url:h:/"); err != nil {
			return err
		}
		return tx.Del("cont:1")
	})
	assert.ErrorIs(t, err, kv.ErrConflict)

	assert.Equal(t, []string{"4", "3", "2", "1"}, mustLRange(t, s, "url:h:/"),
		"the concurrent writer wins and the pruner applies nothing")
}

func (suite *StoreTestSuite) testUpdateWithRetryCounter(t *testing.T) {
	s := suite.NewStore(t)
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- kv.UpdateWithRetry(testContext(), s, 100, func(tx kv.Txn) error {
				_, err := tx.HIncrBy("id:", "content", 1)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	mustView(t, s, func(tx kv.Txn) error {
		v, _, err := tx.HGet("id:", "content")
		require.NoError(t, err)
		assert.Equal(t, "8", v)
		return nil
	})
}

func (suite *StoreTestSuite) testDelAllTypes(t *testing.T) {
	s := suite.NewStore(t)
	mustUpdate(t, s, func(tx kv.Txn) error {
		if err := tx.Set("a", generateTestData(100*1024)); err != nil {
			return err
		}
		if err := tx.HSet("b", map[string]string{"f": "v"}); err != nil {
			return err
		}
		_, err := tx.LPush("c", "1", "2")
		return err
	})

	mustUpdate(t, s, func(tx kv.Txn) error {
		return tx.Del("a", "b", "c", "never-existed")
	})

	_, found := mustGet(t, s, "a")
	assert.False(t, found)
	assert.Empty(t, mustLRange(t, s, "c"))
	mustView(t, s, func(tx kv.Txn) error {
		all, err := tx.HGetAll("b")
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	})
}

func (suite *StoreTestSuite) testReadYourWrites(t *testing.T) {
	s := suite.NewStore(t)

	mustUpdate(t, s, func(tx kv.Txn) error {
		require.NoError(t, tx.Set("k", []byte("v")))
		data, found, err := tx.Get("k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v"), data)
		return nil
	})
}
