package badger

import (
	"fmt"
	"strconv"

	"github.com/marmos91/waverider/pkg/kv"
)

// HGet implements kv.Txn.
func (x *txn) HGet(key, field string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	if err := validateField(field); err != nil {
		return "", false, err
	}

	val, ok, err := x.get(hashKey(key, field))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(val), true, nil
}

// HGetAll implements kv.Txn. A missing hash yields an empty map.
func (x *txn) HGetAll(key string) (map[string]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	prefix := hashPrefix(key)
	fields := make(map[string]string)

	for _, k := range x.keysWithPrefix(prefix) {
		val, ok, err := x.get(k)
		if err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", key, err)
		}
		if ok {
			fields[string(k[len(prefix):])] = string(val)
		}
	}
	return fields, nil
}

// HSet implements kv.Txn.
func (x *txn) HSet(key string, fields map[string]string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	for field, value := range fields {
		if err := validateField(field); err != nil {
			return err
		}
		if err := x.t.Set(hashKey(key, field), []byte(value)); err != nil {
			return fmt.Errorf("hset %s %s: %w", key, field, err)
		}
	}
	return nil
}

// HSetNX implements kv.Txn. Reports whether the field was written.
func (x *txn) HSetNX(key, field, value string) (bool, error) {
	_, exists, err := x.HGet(key, field)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := x.t.Set(hashKey(key, field), []byte(value)); err != nil {
		return false, fmt.Errorf("hsetnx %s %s: %w", key, field, err)
	}
	return true, nil
}

// HIncrBy implements kv.Txn.
//
// The read of the current value is watched by the transaction, so two
// concurrent increments cannot both commit: the loser gets ErrConflict and
// is expected to retry (see kv.UpdateWithRetry).
func (x *txn) HIncrBy(key, field string, delta int64) (int64, error) {
	current, exists, err := x.HGet(key, field)
	if err != nil {
		return 0, err
	}

	var n int64
	if exists {
		n, err = strconv.ParseInt(current, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hincrby %s %s: %w", key, field, kv.ErrNotInteger)
		}
	}

	n += delta
	if err := x.t.Set(hashKey(key, field), []byte(strconv.FormatInt(n, 10))); err != nil {
		return 0, fmt.Errorf("hincrby %s %s: %w", key, field, err)
	}
	return n, nil
}
