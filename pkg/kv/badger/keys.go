package badger

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/marmos91/waverider/pkg/kv"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB only knows byte keys and byte values, so each redis-like type is
// spread over one or more physical keys under a one-letter type prefix.
// Logical keys and hash fields must not contain NUL, which is the separator.
//
// Data Type        Prefix  Physical Key                         Value
// ===========================================================================
// String header    "s"     s\0<key>                             total length (u64 BE)
// String segment   "S"     S\0<key>\0<start offset u64 BE>      segment bytes
// Hash field       "h"     h\0<key>\0<field>                    field value
// List header      "l"     l\0<key>                             head, tail (i64 BE each)
// List item        "L"     L\0<key>\0<position, sign-flipped>   element
//
// Strings:
//   - A string is a run of segments keyed by their starting byte offset, so
//     Append writes one new segment and never rewrites existing bytes.
//   - The header holds the total length and is the only key Append reads,
//     so concurrent appenders conflict on it instead of interleaving.
//   - Segments are capped at maxSegmentSize to keep every value inline in
//     the LSM tree.
//
// Lists:
//   - Elements occupy positions [head, tail). LPush decrements head and
//     RPop decrements tail, so both ends are O(1).
//   - Positions are int64; flipping the sign bit makes the big-endian
//     encoding sort in numeric order.
//   - LPush and RPop both read the header, which makes it the watched key
//     for optimistic pruning.

const (
	prefixStringHeader = 's'
	prefixSegment      = 'S'
	prefixHash         = 'h'
	prefixListHeader   = 'l'
	prefixListItem     = 'L'

	sep = 0x00

	// maxSegmentSize bounds a single string segment
	maxSegmentSize = 64 * 1024
)

func validateKey(key string) error {
	if key == "" || strings.IndexByte(key, sep) >= 0 {
		return fmt.Errorf("%w: %q", kv.ErrInvalidKey, key)
	}
	return nil
}

func validateField(field string) error {
	if strings.IndexByte(field, sep) >= 0 {
		return fmt.Errorf("%w: hash field %q", kv.ErrInvalidKey, field)
	}
	return nil
}

func typed(prefix byte, key string) []byte {
	b := make([]byte, 0, len(key)+2)
	b = append(b, prefix, sep)
	return append(b, key...)
}

func stringHeaderKey(key string) []byte {
	return typed(prefixStringHeader, key)
}

func segmentPrefix(key string) []byte {
	return append(typed(prefixSegment, key), sep)
}

func segmentKey(key string, start int64) []byte {
	return binary.BigEndian.AppendUint64(segmentPrefix(key), uint64(start))
}

func segmentStart(physical []byte) int64 {
	return int64(binary.BigEndian.Uint64(physical[len(physical)-8:]))
}

func hashPrefix(key string) []byte {
	return append(typed(prefixHash, key), sep)
}

func hashKey(key, field string) []byte {
	return append(hashPrefix(key), field...)
}

func listMetaKey(key string) []byte {
	return typed(prefixListHeader, key)
}

func listItemPrefix(key string) []byte {
	return append(typed(prefixListItem, key), sep)
}

func listItemKey(key string, pos int64) []byte {
	return binary.BigEndian.AppendUint64(listItemPrefix(key), uint64(pos)^(1<<63))
}

func encodeInt64(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func decodeInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
