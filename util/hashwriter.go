// Package util holds small helpers shared by the storage and server code.
package util

import (
	_ "crypto/sha256" // register the hash used by digest.Canonical
	"io"

	"github.com/opencontainers/go-digest"
)

// VerifyStreamDigest reads r to the end and compares the SHA-256 digest of
// what was read against goal, which is a hex encoded digest. The reader is not
// closed when finished.
func VerifyStreamDigest(r io.Reader, goal string) (bool, error) {
	hw := NewHashWriterPlain()
	_, err := io.Copy(hw, r)
	_, ok := hw.CheckDigest(goal)
	return ok, err
}

// A HashWriter wraps an io.Writer and also calculates the digest and length
// of the bytes written. Content addressed storage uses it to name content
// while the content is being streamed somewhere else.
type HashWriter struct {
	w        io.Writer // may be nil
	digester digest.Digester
	n        int64
}

// NewHashWriter returns a HashWriter wrapping w.
func NewHashWriter(w io.Writer) *HashWriter {
	return &HashWriter{
		w:        w,
		digester: digest.Canonical.Digester(),
	}
}

// NewHashWriterPlain return a HashWriter that does not wrap an output stream.
// It will just compute the digest of the data written to it.
func NewHashWriterPlain() *HashWriter {
	return NewHashWriter(nil)
}

// Write passes p to the wrapped writer, and then adds whatever was accepted
// to the digest.
func (hw *HashWriter) Write(p []byte) (int, error) {
	var n = len(p)
	var err error
	if hw.w != nil {
		n, err = hw.w.Write(p)
	}
	hw.digester.Hash().Write(p[:n])
	hw.n += int64(n)
	return n, err
}

// Digest returns the hex encoded digest of everything written so far.
func (hw *HashWriter) Digest() string {
	return hw.digester.Digest().Encoded()
}

// Size returns the number of bytes written so far.
func (hw *HashWriter) Size() int64 {
	return hw.n
}

// CheckDigest returns the digest for this writer, and compares it for
// equality with the goal digest passed in. If the goal is empty then it is
// treated as matching, and true is returned.
func (hw *HashWriter) CheckDigest(goal string) (string, bool) {
	computed := hw.Digest()
	return computed, goal == "" || goal == computed
}

// ValidDigest returns true if s has the form of a hex encoded SHA-256
// digest, that is, the form HashWriter.Digest returns.
func ValidDigest(s string) bool {
	return digest.NewDigestFromEncoded(digest.Canonical, s).Validate() == nil
}
