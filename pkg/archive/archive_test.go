package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevision_ObjectKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"example.com:/docs/readme.md", "example.com/docs/readme.md/12"},
		{"example.com:/", "example.com/12"},
		{"example.com:", "example.com/12"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, Revision{Key: tt.key, ID: "12"}.ObjectKey())
		})
	}
}

func TestMemoryArchiver(t *testing.T) {
	a := NewMemoryArchiver()
	rev := Revision{
		Key:  "example.com:/a",
		ID:   "3",
		Meta: map[string]string{"type": "text/plain"},
		Data: []byte("gz"),
	}

	require.NoError(t, a.Put(context.Background(), rev))
	require.NoError(t, a.Put(context.Background(), rev), "Put is idempotent")
	assert.Equal(t, 1, a.Len())

	got, ok := a.Get("example.com/a/3")
	require.True(t, ok)
	assert.Equal(t, rev, got)
	assert.NoError(t, a.Close())
}

func TestMemoryArchiver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewMemoryArchiver().Put(ctx, Revision{Key: "h:/", ID: "1"}), context.Canceled)
}
