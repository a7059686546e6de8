// Package content implements the versioned content manager.
//
// Every write allocates a fresh ContentID, streams the payload through gzip
// into cont:<id>, and then atomically records meta:<id> and pushes the id
// onto the key's revision index url:<key>. Old revisions past the configured
// retention are pruned with an optimistic transaction that always yields to
// concurrent writers.
//
// Data Model:
//
//	id:          hash    content -> last allocated ContentID
//	cont:<id>    string  gzip bytes of one revision
//	meta:<id>    hash    type, len, digest, Content-Encoding, mtime, ext...
//	url:<key>    list    ContentIDs, most recent first
//
// Thread Safety:
// Manager is safe for concurrent use. Each write owns a private run object;
// nothing in the pipeline is shared between invocations.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/archive"
	"github.com/marmos91/waverider/pkg/kv"
	"github.com/marmos91/waverider/pkg/render"
	"github.com/marmos91/waverider/pkg/stream"
)

// Settings are the runtime tunables of the manager.
type Settings struct {
	// Revisions is the number of revisions kept per key. 0 keeps all.
	Revisions int

	// ExpireSecs is the max-age advertised to HTTP caches.
	ExpireSecs int

	// ExpireTypesExcluded lists content types served without max-age.
	ExpireTypesExcluded []string

	// ReadChunkSize is the range size used by data streams.
	ReadChunkSize int64
}

// DefaultSettings returns the stock tunables.
func DefaultSettings() Settings {
	return Settings{
		Revisions:           5,
		ExpireSecs:          3600,
		ExpireTypesExcluded: []string{"text/html"},
		ReadChunkSize:       stream.DefaultChunkSize,
	}
}

func (s Settings) validate() error {
	if s.Revisions < 0 {
		return fmt.Errorf("%w: revisions %d", ErrInvalidSettings, s.Revisions)
	}
	if s.ExpireSecs < 0 {
		return fmt.Errorf("%w: expire secs %d", ErrInvalidSettings, s.ExpireSecs)
	}
	if s.ReadChunkSize < 0 {
		return fmt.Errorf("%w: read chunk size %d", ErrInvalidSettings, s.ReadChunkSize)
	}
	return nil
}

// Expires reports whether responses of contentType carry a max-age.
func (s Settings) Expires(contentType string) bool {
	return !slices.Contains(s.ExpireTypesExcluded, contentType)
}

// Renderer turns source documents into HTML.
type Renderer interface {
	Render(source []byte, sourceType string) (string, error)
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	Settings *Settings

	// MetaCacheSize is the number of meta records cached. 0 disables the
	// cache.
	MetaCacheSize int64

	Metrics  Metrics
	Archiver archive.Archiver
	Renderer Renderer
}

// Manager is the content manager.
type Manager struct {
	store    kv.Store
	metrics  Metrics
	archiver archive.Archiver
	renderer Renderer

	// metas caches parsed meta records by id. Entries are only trusted
	// for ids freshly resolved from a revision index, see cachedMeta.
	metas *ristretto.Cache[string, *Meta]

	mu       sync.RWMutex
	settings Settings
}

// NewManager creates a content manager over store.
//
// Parameters:
//   - store: Backing transactional store
//   - opts: Tunables and optional collaborators
//
// Returns:
//   - *Manager: Ready to use; call Close when done
//   - error: Invalid settings or cache construction failure
func NewManager(store kv.Store, opts Options) (*Manager, error) {
	if store == nil {
		panic("content: nil store")
	}

	settings := DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
		settings.ExpireTypesExcluded = slices.Clone(settings.ExpireTypesExcluded)
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if settings.ReadChunkSize == 0 {
		settings.ReadChunkSize = stream.DefaultChunkSize
	}

	m := &Manager{
		store:    store,
		metrics:  opts.Metrics,
		archiver: opts.Archiver,
		renderer: opts.Renderer,
		settings: settings,
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	if m.renderer == nil {
		m.renderer = render.NewRegistry()
	}

	if opts.MetaCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, *Meta]{
			NumCounters: opts.MetaCacheSize * 10,
			MaxCost:     opts.MetaCacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create meta cache: %w", err)
		}
		m.metas = cache
	}

	return m, nil
}

// Close releases the meta cache. The store belongs to the caller.
func (m *Manager) Close() error {
	if m.metas != nil {
		m.metas.Close()
	}
	return nil
}

// CKey builds the ContentKey for host and path.
func (m *Manager) CKey(host, path string) string {
	return CKey(host, path)
}

// Settings returns a copy of the current tunables.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.settings
	s.ExpireTypesExcluded = slices.Clone(s.ExpireTypesExcluded)
	return s
}

// SetSettings replaces the tunables.
func (m *Manager) SetSettings(s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	if s.ReadChunkSize == 0 {
		s.ReadChunkSize = stream.DefaultChunkSize
	}
	s.ExpireTypesExcluded = slices.Clone(s.ExpireTypesExcluded)

	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return nil
}

// SetRevisions changes how many revisions are kept per key. 0 keeps all.
func (m *Manager) SetRevisions(n int) error {
	s := m.Settings()
	s.Revisions = n
	return m.SetSettings(s)
}

// ReservedFields returns the meta fields the manager never stores as
// extension fields.
func (m *Manager) ReservedFields() []string {
	return slices.Clone(ReservedFields)
}

// NextContentID allocates a new ContentID.
//
// The increment runs in a transaction that watches the counter, so two
// allocations can never observe the same value: the loser of a race
// conflicts and retries, backing off, until ctx is done.
func (m *Manager) NextContentID(ctx context.Context) (ContentID, error) {
	var n int64
	err := kv.UpdateWithRetry(ctx, m.store, 0, func(tx kv.Txn) error {
		var err error
		n, err = tx.HIncrBy(IDCounterNS, ContentIDField, 1)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("allocate content id: %w: %w", ErrStoreIO, err)
	}
	return ContentID(n), nil
}

// resolve maps a reference to a ContentID. Keys resolve through the front
// of their revision index; anything else must parse as a literal id.
func resolve(tx kv.Txn, ref string) (id ContentID, fromIndex, found bool, err error) {
	if !IsKey(ref) {
		literal, perr := ParseContentID(ref)
		if perr != nil {
			return 0, false, false, nil
		}
		return literal, false, true, nil
	}

	front, ok, err := tx.LIndex(indexKey(ref), 0)
	if err != nil || !ok {
		return 0, true, false, err
	}
	id, err = ParseContentID(front)
	if err != nil {
		return 0, true, false, fmt.Errorf("revision index %s holds %q: %w", ref, front, err)
	}
	return id, true, true, nil
}

// GetData returns the stored (compressed) bytes of the revision ref points
// at. A missing revision is reported with found == false, not an error.
func (m *Manager) GetData(ctx context.Context, ref string) (data []byte, found bool, err error) {
	start := time.Now()
	defer func() { m.metrics.ObserveOperation("get_data", time.Since(start), err) }()

	err = m.store.View(ctx, func(tx kv.Txn) error {
		id, _, ok, err := resolve(tx, ref)
		if err != nil || !ok {
			return err
		}
		data, found, err = tx.Get(contentKey(id))
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get data %s: %w: %w", ref, ErrStoreIO, err)
	}

	if found {
		m.metrics.RecordBytes("read", int64(len(data)))
	}
	return data, found, nil
}

// GetDataStream returns a stream over the stored bytes of ref.
//
// The stream is returned before ref is resolved; reads block until
// resolution completes. An unresolvable ref ends the stream with
// ErrNotFound.
func (m *Manager) GetDataStream(ctx context.Context, ref string) *stream.ReadStream {
	rs := stream.NewReadStream(ctx, m.store, m.Settings().ReadChunkSize)

	go func() {
		var (
			id    ContentID
			found bool
		)
		err := m.store.View(ctx, func(tx kv.Txn) error {
			var err error
			id, _, found, err = resolve(tx, ref)
			if err != nil || !found {
				return err
			}
			_, found, err = tx.StrLen(contentKey(id))
			return err
		})

		switch {
		case err != nil:
			rs.Fail(fmt.Errorf("get data stream %s: %w: %w", ref, ErrStoreIO, err))
		case !found:
			rs.Fail(fmt.Errorf("content %s: %w", ref, ErrNotFound))
		default:
			rs.SetKey(contentKey(id))
		}
	}()

	return rs
}

// GetMeta returns the meta of the revision ref points at, with reserved
// fields filtered and mtime parsed.
func (m *Manager) GetMeta(ctx context.Context, ref string) (meta *Meta, found bool, err error) {
	start := time.Now()
	defer func() { m.metrics.ObserveOperation("get_meta", time.Since(start), err) }()

	err = m.store.View(ctx, func(tx kv.Txn) error {
		id, fromIndex, ok, err := resolve(tx, ref)
		if err != nil || !ok {
			return err
		}

		if fromIndex {
			if cached, hit := m.cachedMeta(id); hit {
				meta, found = cached, true
				return nil
			}
		}

		meta, found, err = readMeta(tx, id)
		if err == nil && found && fromIndex {
			m.cacheMeta(meta)
		}
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get meta %s: %w: %w", ref, ErrStoreIO, err)
	}
	if !found {
		return nil, false, nil
	}
	return meta.clone(), true, nil
}

func readMeta(tx kv.Txn, id ContentID) (*Meta, bool, error) {
	fields, err := tx.HGetAll(metaKey(id))
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	meta, err := parseMeta(id, fields)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

// cachedMeta looks up a meta record by id.
//
// Callers must only use it for ids they just resolved from a revision index
// inside the same snapshot: such an id is live, and meta records never change
// while live. A literal id may name a revision deleted after it was cached.
func (m *Manager) cachedMeta(id ContentID) (*Meta, bool) {
	if m.metas == nil {
		return nil, false
	}
	return m.metas.Get(id.String())
}

func (m *Manager) cacheMeta(meta *Meta) {
	if m.metas != nil {
		m.metas.Set(meta.ID.String(), meta.clone(), 1)
	}
}

func (m *Manager) evictMeta(ids ...ContentID) {
	if m.metas == nil {
		return
	}
	for _, id := range ids {
		m.metas.Del(id.String())
	}
}

// GetAllVersions returns the ContentIDs of key, most recent first.
func (m *Manager) GetAllVersions(ctx context.Context, key string) ([]ContentID, error) {
	var raw []string
	err := m.store.View(ctx, func(tx kv.Txn) error {
		var err error
		raw, err = tx.LRange(indexKey(key), 0, -1)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get versions %s: %w: %w", key, ErrStoreIO, err)
	}

	ids := make([]ContentID, 0, len(raw))
	for _, s := range raw {
		id, err := ParseContentID(s)
		if err != nil {
			return nil, fmt.Errorf("revision index %s holds %q: %w", key, s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Del removes every revision of key together with its index, atomically.
func (m *Manager) Del(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { m.metrics.ObserveOperation("del", time.Since(start), err) }()

	var removed []ContentID
	err = m.store.Update(ctx, func(tx kv.Txn) error {
		removed = removed[:0]
		raw, err := tx.LRange(indexKey(key), 0, -1)
		if err != nil {
			return err
		}
		for _, s := range raw {
			id, err := ParseContentID(s)
			if err != nil {
				return fmt.Errorf("revision index %s holds %q: %w", key, s, err)
			}
			if err := tx.Del(contentKey(id), metaKey(id)); err != nil {
				return err
			}
			removed = append(removed, id)
		}
		return tx.Del(indexKey(key))
	})
	if err != nil {
		return fmt.Errorf("del %s: %w: %w", key, ErrStoreIO, err)
	}

	m.evictMeta(removed...)
	logger.Debug("Deleted %s (%d revisions)", key, len(removed))
	return nil
}

// Set stores data as a new revision of key. It is the buffered form of
// SetStream and shares its pipeline, including its ext validation: an
// mtime in ext must be RFC 3339 or RFC 1123, otherwise ErrInvalidMeta is
// returned and nothing is stored.
func (m *Manager) Set(ctx context.Context, key string, data []byte, contentType string, ext map[string]string) (SetResult, error) {
	return m.SetStream(ctx, key, bytesReader(data), contentType, ext)
}

// SetStream stores everything read from src as a new revision of key.
//
// The payload is never buffered whole: it is compressed, digested and
// appended to the store chunk by chunk. Once the revision is committed,
// older revisions past the retention are pruned; prune failures are logged
// and never returned.
//
// An mtime in ext overrides the write time. It must parse as RFC 3339 or
// RFC 1123; anything else fails with ErrInvalidMeta before an id is
// allocated.
//
// Returns:
//   - SetResult: digest and length of the stored (compressed) bytes and the
//     new ContentID
//   - error: wrapping ErrInvalidMeta, ErrStoreIO or ErrUpstream
func (m *Manager) SetStream(ctx context.Context, key string, src io.Reader, contentType string, ext map[string]string) (res SetResult, err error) {
	start := time.Now()
	defer func() { m.metrics.ObserveOperation("set", time.Since(start), err) }()

	if err := validateExt(ext); err != nil {
		return SetResult{}, fmt.Errorf("set %s: %w", key, err)
	}

	// Step 1: Allocate the id
	id, err := m.NextContentID(ctx)
	if err != nil {
		return SetResult{}, err
	}

	// Step 2: Run the pipeline
	run := newWriteRun(m, key, id, contentType, ext)
	res, err = run.execute(ctx, src)
	if err != nil {
		logger.Debug("Write of %s as %s failed: %v", key, id, err)
		return SetResult{}, err
	}
	m.metrics.RecordBytes("write", res.Length)

	// Step 3: Best-effort prune
	if keep := m.Settings().Revisions; keep > 0 {
		if _, perr := m.PurgeVersions(ctx, key, keep); perr != nil {
			if errors.Is(perr, ErrPruneConflict) {
				logger.Debug("Prune of %s skipped: %v", key, perr)
			} else {
				logger.Warn("Prune of %s failed: %v", key, perr)
			}
		}
	}

	return res, nil
}
