package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/waverider/pkg/kv"
	"github.com/marmos91/waverider/pkg/kv/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) kv.Store {
	t.Helper()
	s, err := badger.NewInMemoryStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newReadStreamForKey returns a stream that is already resolved to key.
func newReadStreamForKey(ctx context.Context, store kv.Store, key string, chunkSize int64) *ReadStream {
	rs := NewReadStream(ctx, store, chunkSize)
	rs.SetKey(key)
	return rs
}

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func writeAll(t *testing.T, s kv.Store, key string, data []byte, chunk int) {
	t.Helper()
	ws := NewWriteStream(context.Background(), s, key)
	require.NoError(t, ws.Reset())
	for off := 0; off < len(data); off += chunk {
		_, err := ws.Write(data[off:min(off+chunk, len(data))])
		require.NoError(t, err)
	}
	require.NoError(t, ws.Close())
	assert.Equal(t, int64(len(data)), ws.Len())
}

func TestWriteStream_AppendsChunks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ws := NewWriteStream(ctx, s, "cont:1")
	require.NoError(t, ws.Reset())
	_, err := ws.Write([]byte("Hello "))
	require.NoError(t, err)
	_, err = ws.Write([]byte("World"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), ws.Len())

	require.NoError(t, s.View(ctx, func(tx kv.Txn) error {
		data, found, err := tx.Get("cont:1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Hello World", string(data))
		return nil
	}))
}

func TestWriteStream_ResetClearsExisting(t *testing.T) {
	s := newStore(t)
	writeAll(t, s, "cont:1", []byte("stale bytes"), 4)
	writeAll(t, s, "cont:1", []byte("new"), 4)

	rs := newReadStreamForKey(context.Background(), s, "cont:1", 0)
	got, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestWriteStream_WriteAfterClose(t *testing.T) {
	ws := NewWriteStream(context.Background(), newStore(t), "k")
	require.NoError(t, ws.Close())
	_, err := ws.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReadStream_ChunkBoundaries(t *testing.T) {
	s := newStore(t)

	tests := []struct {
		name      string
		size      int
		chunkSize int64
	}{
		{"empty", 0, 16},
		{"smaller than chunk", 10, 16},
		{"exact multiple", 64, 16},
		{"uneven", 100, 16},
		{"default chunk", 300 * 1024, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "cont:" + tt.name
			data := testData(tt.size)
			if tt.size > 0 {
				writeAll(t, s, key, data, 40*1024)
			}

			rs := newReadStreamForKey(context.Background(), s, key, tt.chunkSize)
			defer rs.Close()

			got, err := io.ReadAll(rs)
			require.NoError(t, err)
			assert.Equal(t, len(data), len(got))
			assert.True(t, bytes.Equal(data, got))
		})
	}
}

func TestReadStream_PendingUntilSetKey(t *testing.T) {
	s := newStore(t)
	writeAll(t, s, "cont:7", []byte("queued read"), 3)

	rs := NewReadStream(context.Background(), s, 4)

	var (
		wg  sync.WaitGroup
		got []byte
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err = io.ReadAll(rs)
	}()

	// The reader is blocked on resolution, not on the store
	time.Sleep(20 * time.Millisecond)
	rs.SetKey("cont:7")
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, "queued read", string(got))
}

func TestReadStream_Fail(t *testing.T) {
	rs := NewReadStream(context.Background(), newStore(t), 4)
	boom := errors.New("no such content")
	rs.Fail(boom)
	rs.SetKey("ignored")

	_, err := rs.Read(make([]byte, 4))
	assert.ErrorIs(t, err, boom)
}

func TestReadStream_ContextCancelledWhilePending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rs := NewReadStream(ctx, newStore(t), 4)
	cancel()

	_, err := rs.Read(make([]byte, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadStream_Close(t *testing.T) {
	s := newStore(t)
	writeAll(t, s, "k", []byte("abcdef"), 6)

	rs := newReadStreamForKey(context.Background(), s, "k", 2)
	buf := make([]byte, 2)
	_, err := rs.Read(buf)
	require.NoError(t, err)

	require.NoError(t, rs.Close())
	_, err = rs.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
}
