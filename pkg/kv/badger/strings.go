package badger

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// StrLen implements kv.Txn.
func (x *txn) StrLen(key string) (int64, bool, error) {
	if err := validateKey(key); err != nil {
		return 0, false, err
	}

	raw, ok, err := x.get(stringHeaderKey(key))
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("corrupt string header for %s", key)
	}
	return decodeInt64(raw), true, nil
}

// Get implements kv.Txn.
func (x *txn) Get(key string) ([]byte, bool, error) {
	total, ok, err := x.StrLen(key)
	if err != nil || !ok {
		return nil, ok, err
	}

	data, err := x.readRange(key, 0, total, total)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// GetRange implements kv.Txn. It returns at most n bytes starting at offset;
// a short (or empty) result means the end of the string was reached.
func (x *txn) GetRange(key string, offset, n int64) ([]byte, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("invalid range %d+%d for %s", offset, n, key)
	}

	total, ok, err := x.StrLen(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte{}, nil
	}
	return x.readRange(key, offset, n, total)
}

// Set implements kv.Txn. Existing segments are replaced.
func (x *txn) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := x.deleteKeys(x.keysWithPrefix(segmentPrefix(key))); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	total, err := x.writeSegments(key, 0, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return x.t.Set(stringHeaderKey(key), encodeInt64(total))
}

// Append implements kv.Txn and returns the new total length.
func (x *txn) Append(key string, value []byte) (int64, error) {
	total, _, err := x.StrLen(key)
	if err != nil {
		return 0, err
	}

	total, err = x.writeSegments(key, total, value)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", key, err)
	}
	if err := x.t.Set(stringHeaderKey(key), encodeInt64(total)); err != nil {
		return 0, fmt.Errorf("append %s: %w", key, err)
	}
	return total, nil
}

// writeSegments stores value as segments starting at offset start and
// returns the offset just past the written bytes.
func (x *txn) writeSegments(key string, start int64, value []byte) (int64, error) {
	for len(value) > 0 {
		n := min(len(value), maxSegmentSize)
		// badger keeps a reference to the slice until commit
		chunk := bytes.Clone(value[:n])
		if err := x.t.Set(segmentKey(key, start), chunk); err != nil {
			return start, err
		}
		start += int64(n)
		value = value[n:]
	}
	return start, nil
}

type segment struct {
	start int64
	key   []byte
}

// readRange assembles bytes [offset, offset+n) of a string of length total.
func (x *txn) readRange(key string, offset, n, total int64) ([]byte, error) {
	end := min(offset+n, total)
	if offset >= end {
		return []byte{}, nil
	}

	first := x.segmentContaining(key, offset)
	segs, bound := x.segmentsFrom(key, first, end)
	if bound == 0 {
		bound = total
	}

	out := make([]byte, 0, end-offset)
	for i, s := range segs {
		segEnd := bound
		if i+1 < len(segs) {
			segEnd = segs[i+1].start
		}
		if segEnd <= offset {
			continue
		}

		val, ok, err := x.get(s.key)
		if err != nil {
			return nil, fmt.Errorf("read segment %d of %s: %w", s.start, key, err)
		}
		if !ok {
			return nil, fmt.Errorf("missing segment %d of %s", s.start, key)
		}

		lo := max(offset, s.start) - s.start
		hi := min(min(end, segEnd)-s.start, int64(len(val)))
		if lo < hi {
			out = append(out, val[lo:hi]...)
		}
	}
	return out, nil
}

// segmentContaining returns the start offset of the segment holding offset,
// found with a reverse seek so long strings are not scanned from the top.
func (x *txn) segmentContaining(key string, offset int64) int64 {
	prefix := segmentPrefix(key)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	opts.Reverse = true

	it := x.t.NewIterator(opts)
	defer it.Close()

	it.Seek(segmentKey(key, offset))
	if it.ValidForPrefix(prefix) {
		return segmentStart(it.Item().Key())
	}
	return 0
}

// segmentsFrom lists segments starting at or after from and before end. The
// second result is the start of the first segment at or past end, or 0 when
// there is none.
func (x *txn) segmentsFrom(key string, from, end int64) ([]segment, int64) {
	prefix := segmentPrefix(key)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := x.t.NewIterator(opts)
	defer it.Close()

	var segs []segment
	for it.Seek(segmentKey(key, from)); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		start := segmentStart(item.Key())
		if start >= end {
			return segs, start
		}
		segs = append(segs, segment{start: start, key: item.KeyCopy(nil)})
	}
	return segs, 0
}
