// Package compress holds the compression stage of the write pipeline and the
// matching decompression used at the HTTP boundary. Stored revisions are
// always gzip; the encoding name doubles as the Content-Encoding value
// recorded in revision metadata.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Encoding is the Content-Encoding of every stored revision.
const Encoding = "gzip"

// Level is the gzip level used by the write pipeline.
const Level = gzip.DefaultCompression

// NewWriter returns a streaming compressor writing into w. The caller must
// Close it to flush the trailer; closing does not close w.
func NewWriter(w io.Writer) (io.WriteCloser, error) {
	gz, err := gzip.NewWriterLevel(w, Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return gz, nil
}

// Copy compresses everything read from src into dst and flushes the gzip
// trailer. It returns the number of uncompressed bytes consumed. Read errors
// from src are returned unwrapped so callers can classify them.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	gz, err := NewWriter(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(gz, src)
	if err != nil {
		_ = gz.Close()
		return n, err
	}

	if err := gz.Close(); err != nil {
		return n, fmt.Errorf("failed to flush gzip stream: %w", err)
	}
	return n, nil
}

// NewReader returns a streaming decompressor over r.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return gz, nil
}

// Compress is the one-shot form of Copy.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Copy(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress is the one-shot form of NewReader.
func Decompress(data []byte) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
