/*
Package resource defines the data model shared by the storage, target,
catalog and server packages.

A Resource is an immutable blob of content identified by the SHA-256 digest
of its uncompressed bytes. Resources are grouped into Collections. Each
collection binds exactly one Storage, which keeps the bytes, and one Target,
which knows how the outside world reaches them.

Storages and targets come in two flavors: compressed and generic. A
compressed storage keeps gzip encoded bytes on disk and presents the
uncompressed bytes through Open. The negotiating HTTP handler will only
serve resources from collections whose storage AND target both report
Compressed() == true, since only then is it safe to hand the stored bytes to
a client with a "Content-Encoding: gzip" header.

Resources are created once at import time and are never altered afterwards.
Size always records the logical (uncompressed) length, whatever the storage
keeps on disk.
*/
package resource
