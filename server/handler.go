package server

import (
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/gzstore/resource"
)

// Outcome says what became of a request given to the Handler.
type Outcome int

const (
	// NotMine means the request is not for a resource and should be passed
	// on to the next stage of the pipeline. Nothing has been written.
	NotMine Outcome = iota

	// Handled means a complete response has been written.
	Handled

	// Failed means the request was for a resource but it could not be
	// served. Nothing has been written, and Err says why.
	Failed
)

// Result is returned by Handler.Serve.
type Result struct {
	Outcome Outcome
	Err     error
}

var (
	servedCounts = expvar.NewMap("gzstore.served")
)

// Handler serves resource content from collections having a compressed
// storage and a compressed target. Paths look like
//
//	/<Prefix>/<digest>/<filename>
//
// and only the digest is used. Clients accepting gzip get the stored bytes
// as is with a gzip Content-Encoding. Everyone else gets the content
// decompressed on the fly.
type Handler struct {
	Prefix  string // without leading or trailing slashes, e.g. "res"
	Catalog resource.Catalog
}

// NewHandler returns a Handler serving paths under prefix.
func NewHandler(prefix string, catalog resource.Catalog) *Handler {
	return &Handler{
		Prefix:  strings.Trim(prefix, "/"),
		Catalog: catalog,
	}
}

// digest returns the digest part of path, or "" if path is not under our
// prefix.
func (h *Handler) digest(path string) string {
	p := "/" + h.Prefix + "/"
	if !strings.HasPrefix(path, p) {
		return ""
	}
	path = path[len(p):]
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Serve tries to answer r. Only GET and HEAD requests for paths under the
// prefix are considered. Response headers are only touched when the
// outcome is Handled.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) Result {
	if r.Method != "GET" && r.Method != "HEAD" {
		return Result{Outcome: NotMine}
	}
	digest := h.digest(r.URL.Path)
	if digest == "" {
		return Result{Outcome: NotMine}
	}
	res := h.Catalog.ResourceByDigest(digest)
	if res == nil {
		return Result{Outcome: Failed, Err: resource.ErrNotFound}
	}
	c := h.Catalog.Collection(res.Collection)
	if c == nil {
		return Result{Outcome: Failed, Err: resource.ErrNotFound}
	}
	if !c.Compressed() {
		return Result{Outcome: Failed, Err: resource.ErrAccessDenied}
	}

	gz := AcceptsGzip(r.Header)
	var size int64
	var stream io.ReadCloser
	var err error
	if gz {
		size, err = c.Storage.StoredSize(res)
		if err == nil {
			stream, err = c.Storage.OpenStored(res)
		}
	} else {
		size = res.Size
		stream, err = c.Storage.Open(res)
	}
	if err != nil {
		if errors.Is(err, resource.ErrCorrupt) {
			return Result{Outcome: Failed, Err: err}
		}
		if !errors.Is(err, resource.ErrNotFound) {
			logError(err)
		}
		return Result{Outcome: Failed, Err: errors.Wrap(resource.ErrNotFound, err.Error())}
	}
	defer stream.Close()

	mediatype := res.MediaType
	if mediatype == "" {
		mediatype = "application/octet-stream"
	}
	header := w.Header()
	header.Set("Content-Type", mediatype)
	header.Set("Content-Length", strconv.FormatInt(size, 10))
	if gz {
		header.Set("Content-Encoding", "gzip")
		servedCounts.Add("gzip", 1)
	} else {
		servedCounts.Add("inflated", 1)
	}
	header.Set("Vary", "Accept-Encoding")
	header.Set("ETag", strconv.Quote(res.Digest))
	w.WriteHeader(http.StatusOK)

	if r.Method == "HEAD" {
		return Result{Outcome: Handled}
	}
	n, err := io.Copy(w, stream)
	servedCounts.Add("bytes", n)
	if err != nil {
		// most likely the client went away. the status line is already
		// out, so all we can do is note it.
		log.Printf("serve %s: wrote %d of %d bytes: %s", digest, n, size, err)
	}
	return Result{Outcome: Handled}
}

// Wrap returns a pipeline stage which first tries h and passes requests
// which are NotMine on to next. Failures are turned into error responses.
func (h *Handler) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := h.Serve(w, r)
		switch result.Outcome {
		case NotMine:
			next.ServeHTTP(w, r)
		case Failed:
			writeError(w, result.Err)
		}
	})
}

// StatusFor maps an error onto the HTTP status code to report it with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, resource.ErrCorrupt):
		return http.StatusInternalServerError
	case errors.Is(err, resource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resource.ErrAccessDenied):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logError(err)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, http.StatusText(status))
}

func logError(err error) {
	log.Println(err)
	raven.CaptureError(err, nil)
}
