package stream

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/waverider/pkg/kv"
)

// WriteStream appends every chunk written to it onto a kv string key and
// counts the bytes accepted.
type WriteStream struct {
	ctx    context.Context
	store  kv.Store
	key    string
	n      int64
	closed bool
}

// NewWriteStream returns a writer appending to key.
func NewWriteStream(ctx context.Context, store kv.Store, key string) *WriteStream {
	return &WriteStream{ctx: ctx, store: store, key: key}
}

// Reset deletes whatever the key currently holds and zeroes the count.
func (ws *WriteStream) Reset() error {
	err := ws.store.Update(ws.ctx, func(tx kv.Txn) error {
		return tx.Del(ws.key)
	})
	if err != nil {
		return fmt.Errorf("reset %s: %w", ws.key, err)
	}
	ws.n = 0
	return nil
}

// Write implements io.Writer. Each call is one store append.
func (ws *WriteStream) Write(p []byte) (int, error) {
	if ws.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	err := ws.store.Update(ws.ctx, func(tx kv.Txn) error {
		_, err := tx.Append(ws.key, p)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", ws.key, err)
	}

	ws.n += int64(len(p))
	return len(p), nil
}

// Len returns the number of bytes appended so far.
func (ws *WriteStream) Len() int64 {
	return ws.n
}

// Close marks the stream finished. Appended bytes are already durable.
func (ws *WriteStream) Close() error {
	ws.closed = true
	return nil
}

var _ io.WriteCloser = (*WriteStream)(nil)
