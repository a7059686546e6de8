package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/archive"
	"github.com/marmos91/waverider/pkg/kv"
)

// PurgeVersions removes every revision of key past the newest keep.
//
// The prune is one optimistic transaction: the revision index is read
// (and thereby watched), the tail past keep is popped, and each popped
// revision's content and meta are deleted. If a concurrent write pushes a
// new revision before the commit, the whole prune is discarded and
// ErrPruneConflict is returned. Writers always win; the next write prunes
// again.
//
// With an Archiver configured, each revision is archived before the commit.
// An archive failure abandons the prune.
//
// Parameters:
//   - key: ContentKey whose revisions are pruned
//   - keep: Revisions to keep; values < 1 make this a no-op
//
// Returns:
//   - int: Number of revisions removed
//   - error: ErrPruneConflict, or ErrStoreIO for store failures
func (m *Manager) PurgeVersions(ctx context.Context, key string, keep int) (pruned int, err error) {
	if keep < 1 {
		return 0, nil
	}

	start := time.Now()
	defer func() { m.metrics.ObserveOperation("prune", time.Since(start), err) }()

	var victims []ContentID
	err = m.store.Update(ctx, func(tx kv.Txn) error {
		victims = victims[:0]

		// Step 1: Snapshot the tail past keep (watched read)
		tail, err := tx.LRange(indexKey(key), int64(keep), -1)
		if err != nil {
			return err
		}
		if len(tail) == 0 {
			return nil
		}

		ids := make([]ContentID, 0, len(tail))
		for _, s := range tail {
			id, err := ParseContentID(s)
			if err != nil {
				return fmt.Errorf("revision index %s holds %q: %w", key, s, err)
			}
			ids = append(ids, id)
		}

		// Step 2: Archive before anything is deleted
		if m.archiver != nil {
			for _, id := range ids {
				if err := m.archiveRevision(ctx, tx, key, id); err != nil {
					return err
				}
			}
		}

		// Step 3: Pop from the tail and delete the records
		for range ids {
			if _, _, err := tx.RPop(indexKey(key)); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := tx.Del(contentKey(id), metaKey(id)); err != nil {
				return err
			}
		}

		victims = ids
		return nil
	})

	switch {
	case errors.Is(err, kv.ErrConflict):
		m.metrics.RecordPrune("conflict", 0)
		return 0, fmt.Errorf("prune %s: %w", key, ErrPruneConflict)
	case err != nil:
		m.metrics.RecordPrune("error", 0)
		return 0, fmt.Errorf("prune %s: %w: %w", key, ErrStoreIO, err)
	case len(victims) == 0:
		m.metrics.RecordPrune("noop", 0)
		return 0, nil
	}

	m.evictMeta(victims...)
	m.metrics.RecordPrune("pruned", len(victims))
	logger.Debug("Pruned %d revisions of %s (keep %d)", len(victims), key, keep)
	return len(victims), nil
}

func (m *Manager) archiveRevision(ctx context.Context, tx kv.Txn, key string, id ContentID) error {
	fields, err := tx.HGetAll(metaKey(id))
	if err != nil {
		return err
	}
	data, _, err := tx.Get(contentKey(id))
	if err != nil {
		return err
	}

	rev := archive.Revision{Key: key, ID: id.String(), Meta: fields, Data: data}
	if err := m.archiver.Put(ctx, rev); err != nil {
		return fmt.Errorf("archive %s: %w", rev.ObjectKey(), err)
	}
	return nil
}
