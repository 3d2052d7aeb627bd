package resource

import (
	"context"
	"io"
	"time"
)

// A Resource records the metadata for a single piece of content.
type Resource struct {
	Digest     string    // hex SHA-256 of the uncompressed content
	Size       int64     // logical size of the content, i.e. before compression
	MediaType  string    // e.g. "image/png"
	Filename   string    // advisory only. never used to locate content
	Collection string    // name of the collection the resource belongs to
	Created    time.Time // when the resource was imported
}

// A Storage keeps the content for resources. Items are immutable once
// imported, but they may be deleted.
//
// Open always returns the logical (uncompressed) content. StoredSize and
// OpenStored return the bytes exactly as they are kept by the storage. For a
// generic storage these are the same as the logical content. For a compressed
// storage they are the gzip encoded bytes.
//
// Absent content is reported by returning ErrNotFound, so callers can tell
// it apart from a real I/O failure with errors.Is.
type Storage interface {
	// Name identifies the storage in logs and configuration.
	Name() string

	// Compressed reports whether the stored bytes are gzip encoded.
	Compressed() bool

	// ImportTemporary moves the file at tempPath into the storage and
	// returns a new Resource for it. The file is removed on success and
	// left alone on failure.
	ImportTemporary(tempPath string, collection string) (*Resource, error)

	// Import copies the content of r into the storage.
	Import(r io.Reader, collection string) (*Resource, error)

	Open(res *Resource) (io.ReadCloser, error)
	StoredSize(res *Resource) (int64, error)
	OpenStored(res *Resource) (io.ReadCloser, error)

	// Delete removes the content of the given resource. It is not an error
	// if the content does not exist.
	Delete(res *Resource) error
}

// A Target computes the public URI for resources in a collection, and may
// also publish the resource content somewhere.
type Target interface {
	Name() string

	// Compressed reports whether the URIs this target hands out are served
	// by the negotiating handler, which may return gzip encoded content.
	Compressed() bool

	// PublicURI returns the externally reachable URI for res. Targets which
	// build URIs relative to the current request expect the base URI to be
	// available in ctx.
	PublicURI(ctx context.Context, res *Resource) (string, error)

	// PublicStaticURI returns the URI for a static, pre-published asset.
	PublicStaticURI(relativePath string) (string, error)

	PublishResource(res *Resource, c *Collection) error
	PublishCollection(c *Collection) error
	UnpublishResource(res *Resource) error
}

// A Collection binds a storage and a target together under a name.
type Collection struct {
	Name    string
	Storage Storage
	Target  Target
}

// Compressed is true if both the storage and the target of the collection
// are the compressed variants. Only then may stored bytes be served as-is
// with a gzip content encoding.
func (c *Collection) Compressed() bool {
	return c.Storage != nil && c.Target != nil &&
		c.Storage.Compressed() && c.Target.Compressed()
}

// A Catalog resolves digests and collection names. Both methods return nil
// if nothing matches.
type Catalog interface {
	ResourceByDigest(digest string) *Resource
	Collection(name string) *Collection
}
