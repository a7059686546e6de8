// Package stream adapts kv string keys to io.Reader and io.Writer.
//
// A ReadStream pulls fixed-size ranges and never loads a whole record; a
// WriteStream appends each chunk it receives. Both own their key for their
// lifetime and must not be shared between concurrent operations.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/waverider/pkg/kv"
)

// DefaultChunkSize is the range size fetched per store round-trip.
const DefaultChunkSize = 64 * 1024

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("stream closed")

// ReadStream is a pull-based reader over a kv string key.
//
// A ReadStream may be created before the key it reads is known: Read blocks
// until SetKey or Fail is called, then queued reads drain in order. The
// stream ends when a range comes back shorter than requested.
type ReadStream struct {
	ctx       context.Context
	store     kv.Store
	chunkSize int64

	resolveOnce sync.Once
	resolved    chan struct{}
	key         string
	failErr     error

	// mu serializes readers so chunks are consumed in cursor order
	mu     sync.Mutex
	cursor int64
	buf    []byte
	eof    bool
	closed bool
}

// NewReadStream returns a pending stream. Call SetKey or Fail to resolve it.
//
// Parameters:
//   - ctx: Bounds every store fetch and the wait for resolution
//   - store: Store holding the key
//   - chunkSize: Bytes per range request (DefaultChunkSize when <= 0)
func NewReadStream(ctx context.Context, store kv.Store, chunkSize int64) *ReadStream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ReadStream{
		ctx:       ctx,
		store:     store,
		chunkSize: chunkSize,
		resolved:  make(chan struct{}),
	}
}

// SetKey resolves the stream. Only the first SetKey or Fail takes effect.
func (rs *ReadStream) SetKey(key string) {
	rs.resolveOnce.Do(func() {
		rs.key = key
		close(rs.resolved)
	})
}

// Fail resolves the stream to an error; every Read returns err.
func (rs *ReadStream) Fail(err error) {
	rs.resolveOnce.Do(func() {
		rs.failErr = err
		close(rs.resolved)
	})
}

// Read implements io.Reader.
func (rs *ReadStream) Read(p []byte) (int, error) {
	select {
	case <-rs.resolved:
	case <-rs.ctx.Done():
		return 0, rs.ctx.Err()
	}
	if rs.failErr != nil {
		return 0, rs.failErr
	}
	if len(p) == 0 {
		return 0, nil
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.closed {
		return 0, ErrClosed
	}

	if len(rs.buf) == 0 {
		if rs.eof {
			return 0, io.EOF
		}
		if err := rs.fetch(); err != nil {
			return 0, err
		}
		if len(rs.buf) == 0 {
			return 0, io.EOF
		}
	}

	n := copy(p, rs.buf)
	rs.buf = rs.buf[n:]
	return n, nil
}

// fetch pulls the next range at the cursor. Caller holds mu.
func (rs *ReadStream) fetch() error {
	var chunk []byte
	err := rs.store.View(rs.ctx, func(tx kv.Txn) error {
		var err error
		chunk, err = tx.GetRange(rs.key, rs.cursor, rs.chunkSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("read %s at %d: %w", rs.key, rs.cursor, err)
	}

	rs.cursor += int64(len(chunk))
	rs.buf = chunk
	if int64(len(chunk)) < rs.chunkSize {
		rs.eof = true
	}
	return nil
}

// Close releases the stream. A pending stream is failed with ErrClosed.
func (rs *ReadStream) Close() error {
	rs.Fail(ErrClosed)

	rs.mu.Lock()
	rs.closed = true
	rs.buf = nil
	rs.mu.Unlock()
	return nil
}

var _ io.ReadCloser = (*ReadStream)(nil)
