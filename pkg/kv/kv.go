// Package kv defines the backing store capability consumed by the content
// manager: redis-like strings, hashes and lists grouped into all-or-nothing
// transactions.
//
// Transactions are optimistic. Every key read inside an Update is watched;
// if another transaction commits a write to a watched key before this one
// commits, the commit fails with ErrConflict and none of its writes are
// applied. This is the watch-then-commit primitive the pruner relies on.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrConflict indicates the transaction lost an optimistic concurrency
	// race: a key it read was modified by a concurrent commit.
	ErrConflict = errors.New("transaction conflict")

	// ErrInvalidKey indicates a key or hash field that cannot be encoded
	// (empty, or containing a NUL byte).
	ErrInvalidKey = errors.New("invalid key")

	// ErrNotInteger indicates HIncrBy hit a field that does not hold an
	// integer.
	ErrNotInteger = errors.New("value is not an integer")
)

// Store is a transactional key-value store.
//
// Implementations must be safe for concurrent use. Txn values are only valid
// inside the callback they were passed to.
type Store interface {
	// View runs fn in a read-only snapshot.
	View(ctx context.Context, fn func(Txn) error) error

	// Update runs fn in a read-write transaction and commits it atomically.
	// If fn returns an error nothing is written. Returns an error wrapping
	// ErrConflict when a watched key changed underneath.
	Update(ctx context.Context, fn func(Txn) error) error

	// Close releases the store.
	Close() error
}

// GarbageCollector is implemented by stores that reclaim space freed by
// deletes in a separate pass, like badger's value log.
type GarbageCollector interface {
	// RunGC runs one collection round. rewrote reports whether it freed
	// anything, in which case another round may free more.
	RunGC(discardRatio float64) (rewrote bool, err error)
}

// Txn exposes the typed primitives available inside a transaction.
//
// Missing keys are not errors: lookups report presence with a boolean.
// List indexes follow redis conventions (negative counts from the tail,
// LRange stop is inclusive).
type Txn interface {
	// Strings

	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Append(key string, value []byte) (int64, error)
	GetRange(key string, offset, n int64) ([]byte, error)
	StrLen(key string) (int64, bool, error)

	// Hashes

	HGet(key, field string) (string, bool, error)
	HGetAll(key string) (map[string]string, error)
	HSet(key string, fields map[string]string) error
	HSetNX(key, field, value string) (bool, error)
	HIncrBy(key, field string, delta int64) (int64, error)

	// Lists

	LPush(key string, values ...string) (int64, error)
	LRange(key string, start, stop int64) ([]string, error)
	LIndex(key string, index int64) (string, bool, error)
	RPop(key string) (string, bool, error)
	LLen(key string) (int64, error)

	// Del removes keys of any type. Missing keys are ignored.
	Del(keys ...string) error
}

// Multi queues operations and commits them all-or-nothing with Exec.
//
//	err := kv.NewMulti().
//	    HSet("meta:12", fields).
//	    LPush("url:example.com:/", "12").
//	    Exec(ctx, store)
type Multi struct {
	ops []func(Txn) error
}

// NewMulti returns an empty queue.
func NewMulti() *Multi {
	return &Multi{}
}

// Queue appends an arbitrary operation.
func (m *Multi) Queue(op func(Txn) error) *Multi {
	m.ops = append(m.ops, op)
	return m
}

func (m *Multi) Set(key string, value []byte) *Multi {
	return m.Queue(func(tx Txn) error { return tx.Set(key, value) })
}

func (m *Multi) HSet(key string, fields map[string]string) *Multi {
	return m.Queue(func(tx Txn) error { return tx.HSet(key, fields) })
}

func (m *Multi) HSetNX(key, field, value string) *Multi {
	return m.Queue(func(tx Txn) error {
		_, err := tx.HSetNX(key, field, value)
		return err
	})
}

func (m *Multi) LPush(key string, values ...string) *Multi {
	return m.Queue(func(tx Txn) error {
		_, err := tx.LPush(key, values...)
		return err
	})
}

func (m *Multi) Del(keys ...string) *Multi {
	return m.Queue(func(tx Txn) error { return tx.Del(keys...) })
}

// Len returns the number of queued operations.
func (m *Multi) Len() int {
	return len(m.ops)
}

// Exec commits every queued operation in one transaction.
func (m *Multi) Exec(ctx context.Context, s Store) error {
	return s.Update(ctx, func(tx Txn) error {
		for i, op := range m.ops {
			if err := op(tx); err != nil {
				return fmt.Errorf("multi op %d: %w", i, err)
			}
		}
		return nil
	})
}

// UpdateWithRetry runs Update, retrying with jittered exponential backoff
// while the commit fails with ErrConflict. maxAttempts <= 0 retries until
// ctx is done; otherwise at most maxAttempts commits are tried and the last
// conflict is returned. fn must be safe to run more than once.
func UpdateWithRetry(ctx context.Context, s Store, maxAttempts int, fn func(Txn) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	// Bounded by ctx and maxAttempts, not by wall time
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if maxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(maxAttempts-1))
	}

	return backoff.Retry(func() error {
		err := s.Update(ctx, fn)
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

const (
	retryInitialInterval = 100 * time.Microsecond
	retryMaxInterval     = 10 * time.Millisecond
)
