package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ndlib/gzstore/resource"
)

// Compressed is a storage which gzip compresses resource content before
// writing it to the file system. The digest and the logical size of a
// resource always refer to the uncompressed content.
//
// Content for digest d is kept at PathFor(root, d).
type Compressed struct {
	root string

	// Level is the gzip compression level used for new imports. Changing it
	// does not affect content already stored, and since digests are taken
	// over the uncompressed content it never changes where content is kept.
	Level int
}

var (
	_ resource.Storage = &Compressed{}

	gzipMagic = []byte{0x1f, 0x8b}
)

// minGzipSize is the size of a gzip header plus trailer. No valid gzip
// file can be shorter.
const minGzipSize = 18

// NewCompressed creates a new compressed storage based at the given root
// path. The root and its subdirectories are created as needed.
func NewCompressed(root string) *Compressed {
	return &Compressed{root: root, Level: gzip.DefaultCompression}
}

// Name returns the location of this storage.
func (c *Compressed) Name() string { return "gz:" + c.root }

// Root returns the root directory of this storage.
func (c *Compressed) Root() string { return c.root }

// Compressed is always true.
func (c *Compressed) Compressed() bool { return true }

// ImportTemporary compresses the file at tempPath into the storage and then
// deletes it. The returned resource has the size of the original file, not
// the size of the compressed file. If there is an error the temporary file is
// left in place so the import may be retried.
func (c *Compressed) ImportTemporary(tempPath, collection string) (*resource.Resource, error) {
	return importTemporary(c, tempPath, collection)
}

// Import compresses the content of r into the storage. The digest and size
// of the returned resource are computed over the uncompressed bytes read from
// r.
func (c *Compressed) Import(r io.Reader, collection string) (*resource.Resource, error) {
	scratch, hw, err := writeScratch(c.root, r, c.encoder)
	if err != nil {
		return nil, err
	}
	d := hw.Digest()
	if err := install(scratch, PathFor(c.root, d)); err != nil {
		return nil, err
	}
	return &resource.Resource{
		Digest:     d,
		Size:       hw.Size(),
		Collection: collection,
		Created:    time.Now(),
	}, nil
}

func (c *Compressed) encoder(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, c.Level)
}

// StoredSize returns the size of the compressed file for res. If there is no
// such file, resource.ErrNotFound is returned.
func (c *Compressed) StoredSize(res *resource.Resource) (int64, error) {
	d, err := digestOf(res)
	if err != nil {
		return 0, err
	}
	return statFile(PathFor(c.root, d))
}

// OpenStored returns a reader for the raw compressed content of res. If there
// is no such file, resource.ErrNotFound is returned. A file which is too short
// to be gzip data, which does not begin with the gzip magic number, or whose
// trailer disagrees with res.Size gives a storage fault wrapping
// resource.ErrCorrupt.
func (c *Compressed) OpenStored(res *resource.Resource) (io.ReadCloser, error) {
	return c.openChecked(res)
}

// Open returns a reader which decompresses the content of res. If there is no
// such file, resource.ErrNotFound is returned. The file is checked as for
// OpenStored and the gzip header is read before Open returns, so an empty,
// truncated or damaged file is reported here as a storage fault wrapping
// resource.ErrCorrupt instead of showing up as a short stream. Damage which
// leaves the header and trailer intact is reported by Read.
func (c *Compressed) Open(res *resource.Resource) (io.ReadCloser, error) {
	f, err := c.openChecked(res)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fault("open", f.Name(), fmt.Errorf("%w: %v", resource.ErrCorrupt, err))
	}
	return &gzipReadCloser{Reader: zr, f: f}, nil
}

// openChecked opens the compressed file for res and checks its framing.
// The last four bytes of a gzip file hold the uncompressed size modulo 2^32,
// which lets a file cut short be caught without decompressing it. That check
// is skipped when res.Size is zero, since callers holding only a digest
// don't know the size.
func (c *Compressed) openChecked(res *resource.Resource) (*os.File, error) {
	d, err := digestOf(res)
	if err != nil {
		return nil, err
	}
	path := PathFor(c.root, d)
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fault("stat", path, err)
	}
	var magic [2]byte
	if fi.Size() < minGzipSize {
		err = fmt.Errorf("%w: only %d bytes", resource.ErrCorrupt, fi.Size())
	} else if _, err = f.ReadAt(magic[:], 0); err == nil && !bytes.Equal(magic[:], gzipMagic) {
		err = fmt.Errorf("%w: bad magic %x", resource.ErrCorrupt, magic)
	} else if err == nil && res.Size > 0 {
		err = checkTrailer(f, fi.Size(), res.Size)
	}
	if err != nil {
		f.Close()
		return nil, fault("open", path, err)
	}
	return f, nil
}

// checkTrailer compares the size recorded in the trailer of the gzip file f,
// which is length bytes long, against size.
func checkTrailer(f *os.File, length, size int64) error {
	var trailer [4]byte
	if _, err := f.ReadAt(trailer[:], length-4); err != nil {
		return err
	}
	if got := binary.LittleEndian.Uint32(trailer[:]); got != uint32(size) {
		return fmt.Errorf("%w: trailer size %d, expected %d", resource.ErrCorrupt, got, uint32(size))
	}
	return nil
}

// Delete removes the compressed file for res. It is not an error if the file
// doesn't exist.
func (c *Compressed) Delete(res *resource.Resource) error {
	d, err := digestOf(res)
	if err != nil {
		return nil
	}
	return removeFile(PathFor(c.root, d))
}

// List returns a channel listing the digest of every compressed file in this
// storage. Plain files sharing the root are skipped.
func (c *Compressed) List() <-chan string {
	out := make(chan string)
	go walkTree(out, c.root, CompressedSuffix, 0)
	return out
}

// gzipReadCloser closes both the decompressor and the underlying file.
type gzipReadCloser struct {
	*gzip.Reader
	f io.Closer
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); err == nil {
		err = ferr
	}
	return err
}
