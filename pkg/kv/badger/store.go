package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/kv"
)

// BadgerStore implements kv.Store on top of BadgerDB.
//
// BadgerDB provides serializable snapshot isolation with optimistic
// conflict detection, which maps directly onto the kv contract:
//   - View runs on a read-only snapshot
//   - Update tracks every key read and fails the commit with ErrConflict when
//     a concurrent transaction committed a write to one of them
//   - All writes of an Update become visible atomically
//
// Redis-like types are encoded onto plain badger keys (see keys.go). Strings
// are segmented so Append and GetRange never rewrite or load the whole
// value, which keeps streaming writes of large revisions linear.
//
// Thread Safety:
// Safe for concurrent use. The badger handle has its own MVCC and needs no
// extra locking.
type BadgerStore struct {
	db *badger.DB
}

// BadgerStoreConfig contains configuration for opening a BadgerDB store.
type BadgerStoreConfig struct {
	// DBPath is the directory where BadgerDB keeps its files.
	// Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs badger without touching disk. Data is lost on Close.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 256,
	// 8 when InMemory)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 128,
	// 0 when InMemory)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// BadgerOptions overrides everything above when non-nil.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// NewBadgerStore opens a BadgerDB store with the given configuration.
//
// Parameters:
//   - ctx: Context for cancellation (checked before opening)
//   - config: Path, mode and cache configuration
//
// Returns:
//   - *BadgerStore: Store ready for use
//   - error: Error if the database cannot be opened or context is cancelled
func NewBadgerStore(ctx context.Context, config BadgerStoreConfig) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		opts = defaultOptions(config)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", config.DBPath, err)
	}

	if config.InMemory {
		logger.Debug("BadgerDB opened in memory")
	} else {
		logger.Debug("BadgerDB opened at %s", config.DBPath)
	}

	return &BadgerStore{db: db}, nil
}

// NewInMemoryStore opens a throwaway in-memory store with small caches.
func NewInMemoryStore(ctx context.Context) (*BadgerStore, error) {
	return NewBadgerStore(ctx, BadgerStoreConfig{InMemory: true})
}

func defaultOptions(config BadgerStoreConfig) badger.Options {
	blockCacheMB := config.BlockCacheSizeMB
	indexCacheMB := config.IndexCacheSizeMB

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		// Small footprint: tests open many stores
		opts = opts.WithMemTableSize(16 << 20)
		if blockCacheMB == 0 {
			blockCacheMB = 8
		}
	} else {
		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithSyncWrites(config.SyncWrites)
		if blockCacheMB == 0 {
			blockCacheMB = 256
		}
		if indexCacheMB == 0 {
			indexCacheMB = 128
		}
	}

	// Segments are already gzip, block compression would only burn CPU
	opts = opts.WithCompression(options.None)
	opts = opts.WithLogger(nil)
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	return opts
}

// View implements kv.Store.
func (s *BadgerStore) View(ctx context.Context, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(t *badger.Txn) error {
		return fn(&txn{t: t})
	})
}

// Update implements kv.Store.
func (s *BadgerStore) Update(ctx context.Context, fn func(kv.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(t *badger.Txn) error {
		if err := fn(&txn{t: t}); err != nil {
			return err
		}
		// Last chance to abandon before commit
		return ctx.Err()
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("badger commit: %w", kv.ErrConflict)
	}
	return err
}

// Close closes the BadgerDB database and releases all resources.
//
// The close operation waits for pending transactions and flushes memtables.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// RunGC implements kv.GarbageCollector by rewriting one value log file
// whose dead share exceeds discardRatio. Pruned and deleted revisions leave
// such dead segments behind. In-memory stores have no value log.
func (s *BadgerStore) RunGC(discardRatio float64) (bool, error) {
	if s.db.Opts().InMemory {
		return false, nil
	}

	err := s.db.RunValueLogGC(discardRatio)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite):
		return false, nil
	default:
		return false, fmt.Errorf("value log gc: %w", err)
	}
}

// txn adapts a badger transaction to kv.Txn.
type txn struct {
	t *badger.Txn
}

var (
	_ kv.Store            = (*BadgerStore)(nil)
	_ kv.GarbageCollector = (*BadgerStore)(nil)
)

// get returns a copy of the raw value at key, or nil/false when missing.
func (x *txn) get(key []byte) ([]byte, bool, error) {
	item, err := x.t.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// keysWithPrefix collects every key under prefix. Values are not fetched.
// The iterator is closed before returning so callers may write afterwards.
func (x *txn) keysWithPrefix(prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := x.t.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// deleteKeys deletes every key, stopping at the first failure.
func (x *txn) deleteKeys(keys [][]byte) error {
	for _, k := range keys {
		if err := x.t.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Del implements kv.Txn.
func (x *txn) Del(keys ...string) error {
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}

		var doomed [][]byte
		doomed = append(doomed, stringHeaderKey(key), listMetaKey(key))
		doomed = append(doomed, x.keysWithPrefix(segmentPrefix(key))...)
		doomed = append(doomed, x.keysWithPrefix(hashPrefix(key))...)
		doomed = append(doomed, x.keysWithPrefix(listItemPrefix(key))...)

		if err := x.deleteKeys(doomed); err != nil {
			return fmt.Errorf("del %s: %w", key, err)
		}
	}
	return nil
}
