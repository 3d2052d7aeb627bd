// Package store provides the storages which keep resource content.
//
// The most important implementation is Compressed. It keeps each resource
// gzip encoded in a file whose path is derived from the digest of the
// uncompressed content, and gives back either the raw compressed bytes or a
// decompressing stream. The other storages (FileSystem, Memory, and S3) keep
// the content as-is and are the generic variants: the negotiating HTTP handler
// refuses to serve from them.
//
// Content is first written to a scratch file and then renamed into place once
// its digest is known. A reader will therefore either see the complete object
// or nothing at all, and concurrent imports never write to the same file.
package store
