// Package client talks to a gzstore server over its HTTP API.
package client

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/ndlib/gzstore/util"
)

// Exported errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrNotAuthorized    = errors.New("access denied")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrServerError      = errors.New("server error")
)

// A Connection represents a connection with a gzstore server.
// It can be shared between multiple goroutines.
type Connection struct {
	// The server this connection is to, e.g. "http://localhost:15000"
	Hostname string
	Token    string

	// how many times to try an upload which fails with a server error.
	// defaults to 3
	Retries int

	once   sync.Once
	client *http.Client
}

// Info is what the server knows about a resource.
type Info struct {
	Digest     string
	Size       int64
	StoredSize int64
	MediaType  string
	Filename   string
	Collection string
	URI        string
}

// Upload sends the content of r to the server as a new resource in the
// given collection. The returned Info has the public URI of the resource.
func (c *Connection) Upload(collection, filename string, r io.Reader) (Info, error) {
	return c.upload(collection, filename, "", r)
}

// UploadFile uploads the file at path. The digest of the file is sent
// along so the server can verify the upload. Uploads failing with a server
// error are retried.
func (c *Connection) UploadFile(collection, path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	hw := util.NewHashWriterPlain()
	if _, err := io.Copy(hw, f); err != nil {
		return Info{}, err
	}
	retries := c.Retries
	if retries <= 0 {
		retries = 3
	}
	var info Info
	for i := 0; i < retries; i++ {
		if _, err = f.Seek(0, io.SeekStart); err != nil {
			return Info{}, err
		}
		// the transport closes the request body, and f is needed for
		// the next attempt
		info, err = c.upload(collection, filepath.Base(path), hw.Digest(), io.NopCloser(f))
		if !errors.Is(err, ErrServerError) {
			break
		}
		log.Printf("upload %s: %s. retrying", path, err)
		time.Sleep(time.Duration(i) * 100 * time.Millisecond)
	}
	return info, err
}

func (c *Connection) upload(collection, filename, digest string, r io.Reader) (Info, error) {
	path := c.Hostname + "/upload/" + url.PathEscape(collection) +
		"?filename=" + url.QueryEscape(filename)
	req, err := http.NewRequest("POST", path, r)
	if err != nil {
		return Info{}, err
	}
	if digest != "" {
		req.Header.Set("X-Upload-Sha256", digest)
	}
	resp, err := c.do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 201:
		v, err := jason.NewObjectFromReader(resp.Body)
		if err != nil {
			return Info{}, err
		}
		return infoFrom(v), nil
	case 412:
		return Info{}, ErrChecksumMismatch
	}
	return Info{}, statusError(resp.StatusCode)
}

// Info returns the metadata for the resource with the given digest.
func (c *Connection) Info(digest string) (Info, error) {
	v, err := c.doJasonGet("/resource/" + digest)
	if err != nil {
		return Info{}, err
	}
	return infoFrom(v), nil
}

func infoFrom(v *jason.Object) Info {
	var result Info
	result.Digest, _ = v.GetString("digest")
	result.Size, _ = v.GetInt64("size")
	result.StoredSize, _ = v.GetInt64("stored_size")
	result.MediaType, _ = v.GetString("media_type")
	result.Filename, _ = v.GetString("filename")
	result.Collection, _ = v.GetString("collection")
	result.URI, _ = v.GetString("uri")
	return result
}

// Delete removes the resource with the given digest from the server.
func (c *Connection) Delete(digest string) error {
	req, err := http.NewRequest("DELETE", c.Hostname+"/resource/"+digest, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode == 204 {
		return nil
	}
	return statusError(resp.StatusCode)
}

// Download copies the body of the resource at uri to w. If gzip is true
// the request advertises gzip support, and the bytes written may be gzip
// encoded. Nothing is decoded here. The returned string is the content
// encoding of what was written, either "gzip" or "".
func (c *Connection) Download(uri string, w io.Writer, gzip bool) (string, error) {
	if strings.HasPrefix(uri, "/") {
		uri = c.Hostname + uri
	}
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return "", err
	}
	if gzip {
		req.Header.Set("Accept-Encoding", "gzip")
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", statusError(resp.StatusCode)
	}
	_, err = io.Copy(w, resp.Body)
	return resp.Header.Get("Content-Encoding"), err
}

func (c *Connection) doJasonGet(path string) (*jason.Object, error) {
	req, err := http.NewRequest("GET", c.Hostname+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		return jason.NewObjectFromReader(resp.Body)
	}
	return nil, statusError(resp.StatusCode)
}

func statusError(status int) error {
	switch {
	case status == 404:
		return ErrNotFound
	case status == 401 || status == 403:
		return ErrNotAuthorized
	case status >= 500:
		return fmt.Errorf("%w: received status %d", ErrServerError, status)
	}
	return fmt.Errorf("received status %d", status)
}

// do performs an http request using our client with a timeout. The
// timeout is arbitrary, and is just there so we don't hang indefinitely
// should the server never close the connection.
//
// Automatic decompression is turned off so Download hands back exactly the
// bytes the server sent.
func (c *Connection) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Add("X-Api-Key", c.Token)
	}
	c.once.Do(func() {
		c.client = &http.Client{
			Timeout:   10 * time.Minute, // arbitrary
			Transport: &http.Transport{DisableCompression: true},
		}
	})
	return c.client.Do(req)
}
