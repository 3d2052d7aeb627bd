package store

import (
	"io"
	"log"
	"time"

	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/gzstore/resource"
)

// FileSystem implements a generic storage which keeps resource content
// uncompressed in files under a root directory. It uses the same sharded
// layout as Compressed, but without the compressed suffix, so both may share
// one root.
type FileSystem struct {
	root string
}

var (
	// make sure it implements the Storage interface
	_ resource.Storage = &FileSystem{}
)

// NewFileSystem creates a new FileSystem storage based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root: root}
}

// Name returns the location of this storage.
func (s *FileSystem) Name() string { return "file:" + s.root }

// Compressed is always false.
func (s *FileSystem) Compressed() bool { return false }

// ImportTemporary moves the content of the file at tempPath into the storage.
func (s *FileSystem) ImportTemporary(tempPath, collection string) (*resource.Resource, error) {
	return importTemporary(s, tempPath, collection)
}

// Import copies r into the storage.
func (s *FileSystem) Import(r io.Reader, collection string) (*resource.Resource, error) {
	scratch, hw, err := writeScratch(s.root, r, nil)
	if err != nil {
		return nil, err
	}
	d := hw.Digest()
	if err := install(scratch, plainPathFor(s.root, d)); err != nil {
		return nil, err
	}
	return &resource.Resource{
		Digest:     d,
		Size:       hw.Size(),
		Collection: collection,
		Created:    time.Now(),
	}, nil
}

// Open returns a reader for the content of res.
func (s *FileSystem) Open(res *resource.Resource) (io.ReadCloser, error) {
	d, err := digestOf(res)
	if err != nil {
		return nil, err
	}
	return openFile(plainPathFor(s.root, d))
}

// StoredSize returns the size of the file holding res.
func (s *FileSystem) StoredSize(res *resource.Resource) (int64, error) {
	d, err := digestOf(res)
	if err != nil {
		return 0, err
	}
	return statFile(plainPathFor(s.root, d))
}

// OpenStored is the same as Open.
func (s *FileSystem) OpenStored(res *resource.Resource) (io.ReadCloser, error) {
	return s.Open(res)
}

// Delete the content of res. It is not an error if the content doesn't
// exist.
func (s *FileSystem) Delete(res *resource.Resource) error {
	d, err := digestOf(res)
	if err != nil {
		return nil
	}
	return removeFile(plainPathFor(s.root, d))
}

// List returns a channel listing the digest of every file in this storage.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go walkTree(c, s.root, "", 0)
	return c
}

// logError records an error which cannot be returned to anyone.
func logError(err error) {
	log.Println(err)
	raven.CaptureError(err, nil)
}
