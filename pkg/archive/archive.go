// Package archive keeps copies of revisions before pruning deletes them.
//
// Archiving is optional. When an Archiver is configured the pruner hands it
// every revision it is about to remove; if any Put fails the prune cycle is
// abandoned and the revisions stay in the store.
package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Revision is one pruned revision: its stored (compressed) bytes and the
// raw meta field map.
type Revision struct {
	Key  string
	ID   string
	Meta map[string]string
	Data []byte
}

// ObjectKey returns the path a revision is archived under:
// <host>/<path>/<id>, with the leading slash of path dropped.
func (r Revision) ObjectKey() string {
	host, path, _ := strings.Cut(r.Key, ":")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return fmt.Sprintf("%s/%s", host, r.ID)
	}
	return fmt.Sprintf("%s/%s/%s", host, path, r.ID)
}

// Archiver stores revisions outside the content store.
//
// Put must be idempotent: a prune that loses its optimistic race is retried
// after the next write and may archive the same revision again.
type Archiver interface {
	Put(ctx context.Context, rev Revision) error
	Close() error
}

// MemoryArchiver keeps archived revisions in memory. Used in tests and when
// archive type is "memory".
type MemoryArchiver struct {
	mu   sync.RWMutex
	revs map[string]Revision
}

// NewMemoryArchiver returns an empty MemoryArchiver.
func NewMemoryArchiver() *MemoryArchiver {
	return &MemoryArchiver{revs: make(map[string]Revision)}
}

// Put implements Archiver.
func (a *MemoryArchiver) Put(ctx context.Context, rev Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revs[rev.ObjectKey()] = rev
	return nil
}

// Get returns the revision archived under objectKey.
func (a *MemoryArchiver) Get(objectKey string) (Revision, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rev, ok := a.revs[objectKey]
	return rev, ok
}

// Len returns the number of archived revisions.
func (a *MemoryArchiver) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.revs)
}

// Close implements Archiver.
func (a *MemoryArchiver) Close() error {
	return nil
}

var _ Archiver = (*MemoryArchiver)(nil)
