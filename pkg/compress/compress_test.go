package compress

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":  {},
		"small":  []byte("Hello World"),
		"binary": randomBytes(256 * 1024),
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			compressed, err := Compress(payload)
			require.NoError(t, err)
			assert.NotEmpty(t, compressed, "gzip always emits a header")

			plain, err := Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, len(payload), len(plain))
			assert.True(t, bytes.Equal(payload, plain))
		})
	}
}

func TestCopy_ReportsUncompressedLength(t *testing.T) {
	var buf bytes.Buffer
	n, err := Copy(&buf, bytes.NewReader(bytes.Repeat([]byte("a"), 10000)))
	require.NoError(t, err)

	assert.Equal(t, int64(10000), n)
	assert.Less(t, buf.Len(), 10000)
}

func TestCopy_PropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Copy(io.Discard, io.MultiReader(bytes.NewReader([]byte("abc")), errReader{boom}))

	assert.ErrorIs(t, err, boom)
}

func TestDecompress_Invalid(t *testing.T) {
	_, err := Decompress([]byte("not gzip"))
	assert.Error(t, err)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(b)
	return b
}
