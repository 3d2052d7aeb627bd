// Package catalog keeps track of the collections and of the resources
// imported into them. It is the resource manager the HTTP server and the
// command line tools sit on top of.
package catalog

import (
	"bufio"
	"context"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/gzstore/resource"
)

// sniffLen is how much content is examined to guess a media type.
const sniffLen = 512

// Catalog is a registry of collections together with an index of the
// resources in them. It is safe for concurrent use.
type Catalog struct {
	index Index

	m           sync.RWMutex
	collections map[string]*resource.Collection
}

var _ resource.Catalog = &Catalog{}

// Meta is the caller supplied information for a new resource.
type Meta struct {
	Collection string
	Filename   string
	MediaType  string // guessed from the filename or content if empty
}

// New returns an empty catalog recording resources in the given index.
func New(index Index) *Catalog {
	return &Catalog{
		index:       index,
		collections: make(map[string]*resource.Collection),
	}
}

// AddCollection registers c, replacing any collection with the same name,
// and asks its target to publish it.
func (cat *Catalog) AddCollection(c *resource.Collection) error {
	if c.Name == "" || c.Storage == nil || c.Target == nil {
		return errors.Errorf("collection %q is incomplete", c.Name)
	}
	if err := c.Target.PublishCollection(c); err != nil {
		return errors.Wrapf(err, "collection %s", c.Name)
	}
	cat.m.Lock()
	cat.collections[c.Name] = c
	cat.m.Unlock()
	return nil
}

// Collection returns the collection with the given name, or nil.
func (cat *Catalog) Collection(name string) *resource.Collection {
	cat.m.RLock()
	defer cat.m.RUnlock()
	return cat.collections[name]
}

// Collections returns the names of every registered collection, sorted.
func (cat *Catalog) Collections() []string {
	cat.m.RLock()
	result := make([]string, 0, len(cat.collections))
	for name := range cat.collections {
		result = append(result, name)
	}
	cat.m.RUnlock()
	sort.Strings(result)
	return result
}

// ResourceByDigest returns the resource with the given digest, or nil.
func (cat *Catalog) ResourceByDigest(digest string) *resource.Resource {
	return cat.index.Lookup(digest)
}

// Digests lists the digests of the resources in the named collection.
func (cat *Catalog) Digests(collection string) ([]string, error) {
	if cat.Collection(collection) == nil {
		return nil, resource.ErrNotFound
	}
	return cat.index.ByCollection(collection)
}

// ImportTemporary moves the file at tempPath into the storage of the
// collection named in meta. The file is removed on success. On failure it
// is left in place so the caller may retry or clean up.
func (cat *Catalog) ImportTemporary(tempPath string, meta Meta) (*resource.Resource, error) {
	c := cat.Collection(meta.Collection)
	if c == nil {
		return nil, resource.ErrNotFound
	}
	if meta.MediaType == "" {
		meta.MediaType = sniffFile(tempPath, meta.Filename)
	}
	res, err := c.Storage.ImportTemporary(tempPath, c.Name)
	if err != nil {
		return nil, err
	}
	return res, cat.finish(res, c, meta)
}

// Import copies the content of r into the collection named in meta.
func (cat *Catalog) Import(r io.Reader, meta Meta) (*resource.Resource, error) {
	c := cat.Collection(meta.Collection)
	if c == nil {
		return nil, resource.ErrNotFound
	}
	if meta.MediaType == "" {
		br := bufio.NewReaderSize(r, sniffLen)
		head, _ := br.Peek(sniffLen)
		meta.MediaType = guessType(meta.Filename, head)
		r = br
	}
	res, err := c.Storage.Import(r, c.Name)
	if err != nil {
		return nil, err
	}
	return res, cat.finish(res, c, meta)
}

// finish records a freshly imported resource and publishes it. If either
// step fails the import is rolled back, so no stored file is left without
// an index entry.
func (cat *Catalog) finish(res *resource.Resource, c *resource.Collection, meta Meta) error {
	res.Filename = meta.Filename
	res.MediaType = meta.MediaType
	prior := cat.index.Lookup(res.Digest)
	err := cat.index.Set(res)
	if err != nil {
		err = errors.Wrapf(err, "index %s", res.Digest)
	} else if err = c.Target.PublishResource(res, c); err != nil {
		err = errors.Wrapf(err, "publish %s", res.Digest)
	}
	if err != nil {
		logError(err)
		cat.rollback(res, c, prior)
	}
	return err
}

// rollback undoes a failed import of res into c. prior is what the index
// held for the digest before the import. Content which was already in c
// before the import is left alone.
func (cat *Catalog) rollback(res *resource.Resource, c *resource.Collection, prior *resource.Resource) {
	var err error
	switch {
	case prior == nil:
		if err = c.Storage.Delete(res); err == nil {
			err = cat.index.Delete(res.Digest)
		}
	case prior.Collection == c.Name:
		err = cat.index.Set(prior)
	default:
		if err = c.Storage.Delete(res); err == nil {
			err = cat.index.Set(prior)
		}
	}
	if err != nil {
		logError(errors.Wrapf(err, "rollback %s", res.Digest))
	}
}

// Delete removes the resource with the given digest from its storage, its
// target, and the index.
func (cat *Catalog) Delete(digest string) error {
	res := cat.index.Lookup(digest)
	if res == nil {
		return resource.ErrNotFound
	}
	if c := cat.Collection(res.Collection); c != nil {
		if err := c.Target.UnpublishResource(res); err != nil {
			return errors.Wrapf(err, "unpublish %s", digest)
		}
		if err := c.Storage.Delete(res); err != nil {
			return err
		}
	}
	return cat.index.Delete(digest)
}

// PublicURI returns the URI the target of the resource's collection hands
// out for it.
func (cat *Catalog) PublicURI(ctx context.Context, res *resource.Resource) (string, error) {
	c := cat.Collection(res.Collection)
	if c == nil {
		return "", resource.ErrNotFound
	}
	return c.Target.PublicURI(ctx, res)
}

// PublishCollection republishes every resource of the named collection.
// It is used to populate a new or wiped target. It returns the number of
// resources published.
func (cat *Catalog) PublishCollection(name string) (int, error) {
	c := cat.Collection(name)
	if c == nil {
		return 0, resource.ErrNotFound
	}
	if err := c.Target.PublishCollection(c); err != nil {
		return 0, err
	}
	digests, err := cat.index.ByCollection(name)
	if err != nil {
		return 0, err
	}
	var n int
	for _, d := range digests {
		res := cat.index.Lookup(d)
		if res == nil {
			continue
		}
		if err := c.Target.PublishResource(res, c); err != nil {
			return n, errors.Wrapf(err, "publish %s", d)
		}
		n++
	}
	return n, nil
}

// guessType returns a media type for content with the given filename and
// first bytes. The extension wins over the content.
func guessType(filename string, head []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return http.DetectContentType(head)
}

func sniffFile(path, filename string) string {
	var head []byte
	if f, err := os.Open(path); err == nil {
		head = make([]byte, sniffLen)
		n, _ := io.ReadFull(f, head)
		head = head[:n]
		f.Close()
	}
	return guessType(filename, head)
}

func logError(err error) {
	log.Println(err)
	raven.CaptureError(err, nil)
}
