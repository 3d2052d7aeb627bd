package store

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/util"
)

// Memory implements a simple in-memory generic storage. It is intended
// mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string][]byte
}

var (
	// ensure Memory satisfies the Storage interface
	_ resource.Storage = &Memory{}
)

// NewMemory returns a new, empty memory storage.
func NewMemory() *Memory {
	return &Memory{store: make(map[string][]byte)}
}

// Name returns "memory:".
func (ms *Memory) Name() string { return "memory:" }

// Compressed is always false.
func (ms *Memory) Compressed() bool { return false }

// ImportTemporary reads the file at tempPath into memory and deletes it.
func (ms *Memory) ImportTemporary(tempPath, collection string) (*resource.Resource, error) {
	return importTemporary(ms, tempPath, collection)
}

// Import reads r into memory.
func (ms *Memory) Import(r io.Reader, collection string) (*resource.Resource, error) {
	var buf = new(bytes.Buffer)
	hw := util.NewHashWriter(buf)
	if _, err := io.Copy(hw, r); err != nil {
		return nil, fault("write", "memory", err)
	}
	d := hw.Digest()
	ms.m.Lock()
	ms.store[d] = buf.Bytes()
	ms.m.Unlock()
	return &resource.Resource{
		Digest:     d,
		Size:       hw.Size(),
		Collection: collection,
		Created:    time.Now(),
	}, nil
}

// Open returns a reader for the content of res.
func (ms *Memory) Open(res *resource.Resource) (io.ReadCloser, error) {
	b, ok := ms.lookup(res)
	if !ok {
		return nil, resource.ErrNotFound
	}
	// the slices are never written to after being stored, so readers may
	// share them.
	return io.NopCloser(bytes.NewReader(b)), nil
}

// StoredSize returns the length of the content of res.
func (ms *Memory) StoredSize(res *resource.Resource) (int64, error) {
	b, ok := ms.lookup(res)
	if !ok {
		return 0, resource.ErrNotFound
	}
	return int64(len(b)), nil
}

// OpenStored is the same as Open.
func (ms *Memory) OpenStored(res *resource.Resource) (io.ReadCloser, error) {
	return ms.Open(res)
}

func (ms *Memory) lookup(res *resource.Resource) ([]byte, bool) {
	if res == nil {
		return nil, false
	}
	ms.m.RLock()
	b, ok := ms.store[res.Digest]
	ms.m.RUnlock()
	return b, ok
}

// Delete the content of res. It is not an error if it is not in the
// storage.
func (ms *Memory) Delete(res *resource.Resource) error {
	if res == nil {
		return nil
	}
	ms.m.Lock()
	delete(ms.store, res.Digest)
	ms.m.Unlock()
	return nil
}

// Dump writes a listing of the contents of the storage to the given writer.
// This is intended for testing and debugging.
func (ms *Memory) Dump(w io.Writer) {
	ms.m.RLock()
	for k, v := range ms.store {
		s := v
		if len(s) > 300 {
			s = s[:50]
		}
		fmt.Fprintf(w, "%s: %s\n", k, string(s))
	}
	ms.m.RUnlock()
}
