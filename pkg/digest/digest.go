// Package digest computes the content digests stored in revision metadata:
// sha1 over the stored bytes, encoded as standard base64.
package digest

import (
	"crypto/sha1"
	"encoding/base64"
	"hash"
)

// Sum returns the base64 sha1 digest of data.
func Sum(data []byte) string {
	sum := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Digester accumulates a running digest over everything written to it.
// It is an io.Writer so it can sit in a tee next to the persisting sink.
type Digester struct {
	h hash.Hash
	n int64
}

// New returns an empty Digester.
func New() *Digester {
	return &Digester{h: sha1.New()}
}

// Write never fails.
func (d *Digester) Write(p []byte) (int, error) {
	d.n += int64(len(p))
	return d.h.Write(p)
}

// Len returns the number of bytes digested so far.
func (d *Digester) Len() int64 {
	return d.n
}

// Sum returns the base64 digest of the bytes written so far without
// resetting the running state.
func (d *Digester) Sum() string {
	return base64.StdEncoding.EncodeToString(d.h.Sum(nil))
}
