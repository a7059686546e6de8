package content

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/waverider/pkg/compress"
	"github.com/marmos91/waverider/pkg/digest"
	"github.com/marmos91/waverider/pkg/kv"
	"github.com/marmos91/waverider/pkg/stream"
)

// SetResult describes a committed revision. Digest and Length are over the
// stored (compressed) bytes.
type SetResult struct {
	Digest string
	Length int64
	ID     ContentID
}

type writeOutcome struct {
	res SetResult
	err error
}

// writeRun is the state of one write pipeline invocation. It is created per
// call and owned by that call's stages; nothing in it is shared with other
// writes.
//
// Stages:
//
//	src -> [compress] -> io.Pipe -> [persist: tee(digest) -> bufio -> WriteStream] -> commit
//
// Either stage may fail first. Every failure and the final success go
// through complete, which dispatches exactly one outcome.
type writeRun struct {
	m           *Manager
	key         string
	id          ContentID
	contentType string
	ext         map[string]string

	digester *digest.Digester
	sink     *stream.WriteStream

	done   atomic.Bool
	result chan writeOutcome
}

func newWriteRun(m *Manager, key string, id ContentID, contentType string, ext map[string]string) *writeRun {
	return &writeRun{
		m:           m,
		key:         key,
		id:          id,
		contentType: contentType,
		ext:         ext,
		digester:    digest.New(),
		result:      make(chan writeOutcome, 1),
	}
}

// complete records the outcome of the run. Only the first call wins.
func (r *writeRun) complete(res SetResult, err error) {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.result <- writeOutcome{res: res, err: err}
}

// execute runs the pipeline to completion and returns its single outcome.
// It waits for both stages to exit, so no goroutine outlives the call.
func (r *writeRun) execute(ctx context.Context, src io.Reader) (SetResult, error) {
	r.sink = stream.NewWriteStream(ctx, r.m.store, contentKey(r.id))

	// Ids are never reused, so there is nothing to clear in practice
	if err := r.sink.Reset(); err != nil {
		return SetResult{}, fmt.Errorf("content %s: %w: %w", r.id, ErrStoreIO, err)
	}

	pr, pw := io.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.compressStage(src, pw)
	}()
	go func() {
		defer wg.Done()
		r.persistStage(ctx, pr)
	}()
	wg.Wait()

	out := <-r.result
	return out.res, out.err
}

// compressStage gzips src into the pipe. A source failure is an upstream
// error; a pipe failure means persist already failed and reported it.
func (r *writeRun) compressStage(src io.Reader, pw *io.PipeWriter) {
	up := &upstreamReader{r: src}
	_, err := compress.Copy(pw, up)
	if err == nil {
		_ = pw.Close()
		return
	}

	if up.err != nil {
		err = fmt.Errorf("content %s: %w: %w", r.id, ErrUpstream, up.err)
		r.complete(SetResult{}, err)
	}
	_ = pw.CloseWithError(err)
}

// persistStage digests and appends compressed bytes as they arrive, then
// commits meta and index.
func (r *writeRun) persistStage(ctx context.Context, pr *io.PipeReader) {
	chunk := int(r.m.Settings().ReadChunkSize)
	buf := bufio.NewWriterSize(r.sink, chunk)

	_, err := io.Copy(buf, io.TeeReader(pr, r.digester))
	if err == nil {
		err = buf.Flush()
	}
	if err != nil {
		// Unblock the compressor if it is still writing
		_ = pr.CloseWithError(err)
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("content %s: %w: %w", r.id, ErrStoreIO, err)
		}
		r.complete(SetResult{}, err)
		return
	}
	_ = r.sink.Close()

	if digested, stored := r.digester.Len(), r.sink.Len(); digested != stored {
		r.complete(SetResult{}, fmt.Errorf("content %s: %w: digested %d bytes but stored %d", r.id, ErrStoreIO, digested, stored))
		return
	}

	res := SetResult{
		Digest: r.digester.Sum(),
		Length: r.sink.Len(),
		ID:     r.id,
	}

	if err := r.commit(ctx, res); err != nil {
		r.complete(SetResult{}, fmt.Errorf("commit %s as %s: %w: %w", r.key, r.id, ErrStoreIO, err))
		return
	}
	r.complete(res, nil)
}

// commit writes the meta record and pushes the id onto the revision index
// in one transaction. Conflicts come from other writers of the key and from
// prunes that committed first; the write wins by retrying until ctx is done.
func (r *writeRun) commit(ctx context.Context, res SetResult) error {
	fields := newMetaFields(r.contentType, res.Length, res.Digest, compress.Encoding, r.ext, time.Now())

	return kv.UpdateWithRetry(ctx, r.m.store, 0, func(tx kv.Txn) error {
		if err := tx.HSet(metaKey(r.id), fields); err != nil {
			return err
		}
		_, err := tx.LPush(indexKey(r.key), r.id.String())
		return err
	})
}

// upstreamReader remembers the first non-EOF error of the caller's reader so
// it can be told apart from downstream pipe errors.
type upstreamReader struct {
	r   io.Reader
	err error
}

func (u *upstreamReader) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)
	if err != nil && err != io.EOF && u.err == nil {
		u.err = err
	}
	return n, err
}

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
