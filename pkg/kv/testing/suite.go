package testing

import (
	"context"
	"testing"

	"github.com/marmos91/waverider/pkg/kv"
)

// StoreTestSuite is a test suite for kv.Store implementations.
// It tests the interface contract, not implementation details, so every
// backend is held to the same redis-like semantics.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) kv.Store {
//	            s := mystore.New()
//	            t.Cleanup(func() { _ = s.Close() })
//	            return s
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The factory is
	// responsible for registering cleanup on t.
	NewStore func(t *testing.T) kv.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Strings", suite.RunStringTests)
	t.Run("Hashes", suite.RunHashTests)
	t.Run("Lists", suite.RunListTests)
	t.Run("Transactions", suite.RunTxnTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
