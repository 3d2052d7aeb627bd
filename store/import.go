package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/util"
)

// an encoder wraps the scratch file, e.g. with a gzip writer. Closing the
// returned writer must flush it, but must not close the scratch file.
type encoder func(w io.Writer) (io.WriteCloser, error)

// fault wraps err as a storage fault.
func fault(op, path string, err error) error {
	return errors.WithStack(&resource.StorageError{Op: op, Path: path, Err: err})
}

// importTemporary implements the ImportTemporary operation in terms of a
// storage's Import. The logical size is taken from the file system before
// anything is read. The temporary file is only removed if the import
// succeeded.
func importTemporary(s resource.Storage, tempPath, collection string) (*resource.Resource, error) {
	fi, err := os.Stat(tempPath)
	if err != nil {
		return nil, fault("stat", tempPath, err)
	}
	origSize := fi.Size()
	f, err := os.Open(tempPath)
	if err != nil {
		return nil, fault("open", tempPath, err)
	}
	res, err := s.Import(f, collection)
	f.Close()
	if err != nil {
		return nil, err
	}
	if res.Size != origSize {
		return nil, fault("import", tempPath,
			fmt.Errorf("file changed during import: read %d bytes, expected %d", res.Size, origSize))
	}
	if err := os.Remove(tempPath); err != nil {
		return nil, fault("remove", tempPath, err)
	}
	res.Size = origSize
	return res, nil
}

// writeScratch copies src into a new file in the scratch directory under
// root. The digest is computed over the bytes read from src, before they are
// passed to enc. Pass a nil enc to store the bytes as-is. It returns the path
// to the scratch file and the HashWriter holding the digest and logical size.
// On error the scratch file is removed.
func writeScratch(root string, src io.Reader, enc encoder) (string, *util.HashWriter, error) {
	dir := filepath.Join(root, scratchdir)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", nil, fault("mkdir", dir, err)
	}
	// each import gets its own scratch file, so imports running in parallel
	// never interleave their writes.
	f, err := os.CreateTemp(dir, "import-*")
	if err != nil {
		return "", nil, fault("create", dir, err)
	}
	name := f.Name()
	var w io.WriteCloser = nopCloser{f}
	if enc != nil {
		w, err = enc(f)
		if err != nil {
			f.Close()
			os.Remove(name)
			return "", nil, fault("compress", name, err)
		}
	}
	hw := util.NewHashWriter(w)
	_, err = io.Copy(hw, src)
	if err == nil {
		err = w.Close()
	}
	if err == nil {
		err = f.Chmod(0664)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return "", nil, fault("write", name, err)
	}
	return name, hw, nil
}

// install moves the scratch file to target, creating target's directory if
// needed. If target already exists the scratch file is dropped, since equal
// digests mean equal content.
func install(scratch, target string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0775); err != nil {
		os.Remove(scratch)
		return fault("mkdir", dir, err)
	}
	if _, err := os.Stat(target); err == nil {
		os.Remove(scratch)
		return nil
	}
	if err := os.Rename(scratch, target); err != nil {
		os.Remove(scratch)
		return fault("rename", target, err)
	}
	return nil
}

// openFile opens the given path for reading, translating a missing file into
// resource.ErrNotFound.
func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, resource.ErrNotFound
	} else if err != nil {
		return nil, fault("open", path, err)
	}
	return f, nil
}

// statFile returns the size of the given path, translating a missing file
// into resource.ErrNotFound.
func statFile(path string) (int64, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, resource.ErrNotFound
	} else if err != nil {
		return 0, fault("stat", path, err)
	}
	return fi.Size(), nil
}

// removeFile deletes path. It is not an error if path doesn't exist.
func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fault("remove", path, err)
	}
	return nil
}

// digestOf validates the digest of res, so it is safe to turn into a path.
func digestOf(res *resource.Resource) (string, error) {
	if res == nil || !util.ValidDigest(res.Digest) {
		return "", resource.ErrNotFound
	}
	return res.Digest, nil
}

// Perform depth first walk of file tree at root, emitting the digest of every
// file ending in suffix on channel out. Only the files two directories down
// are considered, e.g. "ab/cd/abcd...". The scratch directory is skipped.
//
// If level is 0, the channel is closed when the function exits.
func walkTree(out chan<- string, root string, suffix string, level int) {
	if level == 0 {
		defer close(out)
	}
	f, err := os.Open(root)
	if err != nil {
		logError(err)
		return
	}
	defer f.Close()
	for {
		entries, err := f.Readdir(1000)
		if err == io.EOF {
			return
		} else if err != nil {
			// we have no other way of passing this error back
			logError(err)
			return
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				if level < 2 && !(level == 0 && name == scratchdir) {
					walkTree(out, filepath.Join(root, name), suffix, level+1)
				}
				continue
			}
			if level != 2 {
				continue
			}
			if suffix != "" {
				if !strings.HasSuffix(name, suffix) {
					continue
				}
				name = strings.TrimSuffix(name, suffix)
			}
			if util.ValidDigest(name) {
				out <- name
			}
		}
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
