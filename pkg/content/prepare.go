package content

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/digest"
	"github.com/marmos91/waverider/pkg/kv"
)

// namespaces describes every key namespace; Prepare stores it so the
// database documents itself.
var namespaces = map[string]string{
	ContentNS:     "content bytes by content id (string)",
	MetaNS:        "meta data by content id (hash)",
	URLNS:         "revision index by <host>:<path>, most recent first (list)",
	SrcURLNS:      "source revision index by <host>:<path> (list, reserved)",
	IDCounterNS:   "id counters (hash)",
	NamespacesKey: "namespace registry (hash)",
	ServerKey:     "server info (hash)",
}

// serverIDLen is the length of the random server id.
const serverIDLen = 6

// Prepare seeds the namespace registry and the server id. It is safe to run
// any number of times: an existing server id is kept.
//
// Returns the server id in effect.
func (m *Manager) Prepare(ctx context.Context) (string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generate server id: %w", err)
	}
	candidate := digest.Sum(seed)[:serverIDLen]

	err := kv.NewMulti().
		HSet(NamespacesKey, namespaces).
		HSetNX(ServerKey, ServerIDField, candidate).
		Exec(ctx, m.store)
	if err != nil {
		return "", fmt.Errorf("prepare: %w: %w", ErrStoreIO, err)
	}

	var id string
	err = m.store.View(ctx, func(tx kv.Txn) error {
		var err error
		id, _, err = tx.HGet(ServerKey, ServerIDField)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("prepare: %w: %w", ErrStoreIO, err)
	}

	logger.Info("Database prepared (server id %s)", id)
	return id, nil
}
