package content

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/marmos91/waverider/pkg/compress"
	"github.com/marmos91/waverider/pkg/kv"
	"github.com/marmos91/waverider/pkg/render"
)

// HTMLType is the content type of rendered revisions.
const HTMLType = "text/html"

// SetFromSource renders source (e.g. markdown) to HTML and stores the HTML
// as a new revision of key. The meta gains sourceType and fragment.
//
// A source type with no renderer fails synchronously with an error matching
// render.ErrRendererNotFound; nothing is written.
func (m *Manager) SetFromSource(ctx context.Context, key string, source []byte, sourceType string, ext map[string]string) (res SetResult, err error) {
	start := time.Now()
	html, err := m.renderer.Render(source, sourceType)
	m.metrics.ObserveOperation("render", time.Since(start), err)
	if err != nil {
		return SetResult{}, err
	}

	fields := maps.Clone(ext)
	if fields == nil {
		fields = make(map[string]string)
	}
	fields[FieldSourceType] = sourceType
	fields[FieldFragment] = strconv.FormatBool(render.IsFragment(html))

	return m.Set(ctx, key, []byte(html), HTMLType, fields)
}

// SetFromSourceKey publishes the latest revision of srcKey under dstKey
// through the rendering path, recording srcKey and srcId provenance.
//
// A source that is itself a rendered revision (HTML carrying sourceType) is
// republished as is, so its HTML and its original sourceType survive.
func (m *Manager) SetFromSourceKey(ctx context.Context, dstKey, srcKey string) (SetResult, error) {
	var (
		meta  *Meta
		data  []byte
		found bool
	)
	err := m.store.View(ctx, func(tx kv.Txn) error {
		id, _, ok, err := resolve(tx, srcKey)
		if err != nil || !ok {
			return err
		}
		meta, found, err = readMeta(tx, id)
		if err != nil || !found {
			return err
		}
		data, found, err = tx.Get(contentKey(id))
		return err
	})
	if err != nil {
		return SetResult{}, fmt.Errorf("read source %s: %w: %w", srcKey, ErrStoreIO, err)
	}
	if !found {
		return SetResult{}, fmt.Errorf("source %s: %w", srcKey, ErrNotFound)
	}

	if meta.ContentEncoding == compress.Encoding {
		data, err = compress.Decompress(data)
		if err != nil {
			return SetResult{}, fmt.Errorf("source %s: %w", srcKey, err)
		}
	}

	fields := maps.Clone(meta.Ext)
	fields[FieldSrcKey] = srcKey
	fields[FieldSrcID] = meta.ID.String()

	if meta.Type == HTMLType && fields[FieldSourceType] != "" {
		return m.Set(ctx, dstKey, data, HTMLType, fields)
	}
	return m.SetFromSource(ctx, dstKey, data, meta.Type, fields)
}
