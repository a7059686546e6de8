package badger

import (
	"fmt"
)

// listBounds reads the [head, tail) window of a list. A missing list is an
// empty window at zero.
func (x *txn) listBounds(key string) (head, tail int64, err error) {
	raw, ok, err := x.get(listMetaKey(key))
	if err != nil || !ok {
		return 0, 0, err
	}
	if len(raw) != 16 {
		return 0, 0, fmt.Errorf("corrupt list header for %s", key)
	}
	return decodeInt64(raw[:8]), decodeInt64(raw[8:]), nil
}

func (x *txn) setListBounds(key string, head, tail int64) error {
	if head == tail {
		return x.t.Delete(listMetaKey(key))
	}
	raw := append(encodeInt64(head), encodeInt64(tail)...)
	return x.t.Set(listMetaKey(key), raw)
}

// normalize resolves a redis-style index against length n.
func normalize(index, n int64) int64 {
	if index < 0 {
		return index + n
	}
	return index
}

// LLen implements kv.Txn.
func (x *txn) LLen(key string) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}

	head, tail, err := x.listBounds(key)
	if err != nil {
		return 0, err
	}
	return tail - head, nil
}

// LPush implements kv.Txn. Values are pushed one at a time, so the last
// value ends up at the front, and the new length is returned.
func (x *txn) LPush(key string, values ...string) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}

	head, tail, err := x.listBounds(key)
	if err != nil {
		return 0, err
	}

	for _, v := range values {
		head--
		if err := x.t.Set(listItemKey(key, head), []byte(v)); err != nil {
			return 0, fmt.Errorf("lpush %s: %w", key, err)
		}
	}

	if err := x.setListBounds(key, head, tail); err != nil {
		return 0, fmt.Errorf("lpush %s: %w", key, err)
	}
	return tail - head, nil
}

// LIndex implements kv.Txn.
func (x *txn) LIndex(key string, index int64) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	head, tail, err := x.listBounds(key)
	if err != nil {
		return "", false, err
	}

	i := normalize(index, tail-head)
	if i < 0 || i >= tail-head {
		return "", false, nil
	}

	val, ok, err := x.get(listItemKey(key, head+i))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(val), true, nil
}

// LRange implements kv.Txn. Both bounds are inclusive.
func (x *txn) LRange(key string, start, stop int64) ([]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	head, tail, err := x.listBounds(key)
	if err != nil {
		return nil, err
	}

	n := tail - head
	start = max(normalize(start, n), 0)
	stop = min(normalize(stop, n), n-1)

	out := []string{}
	for i := start; i <= stop; i++ {
		val, ok, err := x.get(listItemKey(key, head+i))
		if err != nil {
			return nil, fmt.Errorf("lrange %s: %w", key, err)
		}
		if !ok {
			return nil, fmt.Errorf("lrange %s: missing element %d", key, i)
		}
		out = append(out, string(val))
	}
	return out, nil
}

// RPop implements kv.Txn.
func (x *txn) RPop(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	head, tail, err := x.listBounds(key)
	if err != nil {
		return "", false, err
	}
	if head == tail {
		return "", false, nil
	}

	tail--
	itemKey := listItemKey(key, tail)
	val, ok, err := x.get(itemKey)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, fmt.Errorf("rpop %s: missing tail element", key)
	}

	if err := x.t.Delete(itemKey); err != nil {
		return "", false, fmt.Errorf("rpop %s: %w", key, err)
	}
	if err := x.setListBounds(key, head, tail); err != nil {
		return "", false, fmt.Errorf("rpop %s: %w", key, err)
	}
	return string(val), true, nil
}
