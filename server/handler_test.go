package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/store"
	"github.com/ndlib/gzstore/target"
)

// countingCatalog is a fixed catalog which records how often it was asked
// for something.
type countingCatalog struct {
	resources   map[string]*resource.Resource
	collections map[string]*resource.Collection
	lookups     int
}

func (cc *countingCatalog) ResourceByDigest(digest string) *resource.Resource {
	cc.lookups++
	return cc.resources[digest]
}

func (cc *countingCatalog) Collection(name string) *resource.Collection {
	cc.lookups++
	return cc.collections[name]
}

// emptyDigest is the digest of zero bytes.
const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

type handlerFixture struct {
	catalog *countingCatalog
	handler *Handler
	gz      *store.Compressed
	payload []byte
	res     *resource.Resource
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	gz := store.NewCompressed(t.TempDir())
	plain := store.NewMemory()
	cc := &countingCatalog{
		resources: make(map[string]*resource.Resource),
		collections: map[string]*resource.Collection{
			"gz": {Name: "gz", Storage: gz, Target: target.NewCompressed("t", "res")},
			"plain": {Name: "plain", Storage: plain,
				Target: target.NewCompressed("t", "res")},
		},
	}

	// 10,000 bytes of text compress well
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	res, err := gz.Import(bytes.NewReader(payload), "gz")
	if err != nil {
		t.Fatal(err)
	}
	res.MediaType = "text/plain"
	res.Filename = "digits.txt"
	cc.resources[res.Digest] = res

	pres, err := plain.Import(bytes.NewReader([]byte("plain content")), "plain")
	if err != nil {
		t.Fatal(err)
	}
	cc.resources[pres.Digest] = pres

	return &handlerFixture{
		catalog: cc,
		handler: NewHandler("/res/", cc),
		gz:      gz,
		payload: payload,
		res:     res,
	}
}

func (f *handlerFixture) do(method, path, acceptEncoding string) (*httptest.ResponseRecorder, Result) {
	r := httptest.NewRequest(method, path, nil)
	if acceptEncoding != "" {
		r.Header.Set("Accept-Encoding", acceptEncoding)
	}
	w := httptest.NewRecorder()
	return w, f.handler.Serve(w, r)
}

func TestHandlerPassThrough(t *testing.T) {
	f := newHandlerFixture(t)
	var table = []struct {
		method string
		path   string
	}{
		{"GET", "/"},
		{"GET", "/resource/" + f.res.Digest},
		{"GET", "/res"},
		{"GET", "/res/"},
		{"GET", "/results/" + f.res.Digest},
		{"POST", "/res/" + f.res.Digest},
		{"DELETE", "/res/" + f.res.Digest},
	}
	for _, tab := range table {
		w, result := f.do(tab.method, tab.path, "gzip")
		if result.Outcome != NotMine {
			t.Errorf("%s %s: outcome %v, expected NotMine", tab.method, tab.path, result.Outcome)
		}
		if len(w.Header()) != 0 || w.Body.Len() != 0 {
			t.Errorf("%s %s: response was written to", tab.method, tab.path)
		}
	}
	if f.catalog.lookups != 0 {
		t.Errorf("catalog was consulted %d times for pass through requests", f.catalog.lookups)
	}
}

func TestHandlerGzip(t *testing.T) {
	f := newHandlerFixture(t)
	storedSize, err := f.gz.StoredSize(f.res)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := os.ReadFile(store.PathFor(f.gz.Root(), f.res.Digest))
	if err != nil {
		t.Fatal(err)
	}

	w, result := f.do("GET", "/res/"+f.res.Digest+"/digits.txt", "gzip, deflate")
	if result.Outcome != Handled {
		t.Fatalf("outcome %v (%v), expected Handled", result.Outcome, result.Err)
	}
	if w.Code != 200 {
		t.Errorf("status %d", w.Code)
	}
	h := w.Header()
	if h.Get("Content-Encoding") != "gzip" {
		t.Errorf("Content-Encoding = %q", h.Get("Content-Encoding"))
	}
	if h.Get("Content-Length") != strconv.FormatInt(storedSize, 10) {
		t.Errorf("Content-Length = %s, expected %d", h.Get("Content-Length"), storedSize)
	}
	if storedSize >= 10000 {
		t.Errorf("stored size %d is not smaller than the content", storedSize)
	}
	if h.Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q", h.Get("Content-Type"))
	}
	if h.Get("Vary") != "Accept-Encoding" {
		t.Errorf("Vary = %q", h.Get("Vary"))
	}
	if h.Get("ETag") != `"`+f.res.Digest+`"` {
		t.Errorf("ETag = %q", h.Get("ETag"))
	}
	if !bytes.Equal(w.Body.Bytes(), stored) {
		t.Errorf("body is not the stored file")
	}
	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	content, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, f.payload) {
		t.Errorf("decoded body differs from the content")
	}
}

func TestHandlerIdentity(t *testing.T) {
	f := newHandlerFixture(t)
	for _, ae := range []string{"", "br", "identity", "deflate"} {
		w, result := f.do("GET", "/res/"+f.res.Digest+"/digits.txt", ae)
		if result.Outcome != Handled {
			t.Fatalf("%q: outcome %v (%v), expected Handled", ae, result.Outcome, result.Err)
		}
		h := w.Header()
		if h.Get("Content-Encoding") != "" {
			t.Errorf("%q: Content-Encoding = %q", ae, h.Get("Content-Encoding"))
		}
		if h.Get("Content-Length") != "10000" {
			t.Errorf("%q: Content-Length = %s, expected 10000", ae, h.Get("Content-Length"))
		}
		if h.Get("Vary") != "Accept-Encoding" {
			t.Errorf("%q: Vary = %q", ae, h.Get("Vary"))
		}
		if !bytes.Equal(w.Body.Bytes(), f.payload) {
			t.Errorf("%q: body differs from the content", ae)
		}
	}
}

func TestHandlerHead(t *testing.T) {
	f := newHandlerFixture(t)
	w, result := f.do("HEAD", "/res/"+f.res.Digest, "")
	if result.Outcome != Handled {
		t.Fatalf("outcome %v, expected Handled", result.Outcome)
	}
	if w.Header().Get("Content-Length") != "10000" {
		t.Errorf("Content-Length = %s", w.Header().Get("Content-Length"))
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d bytes of body", w.Body.Len())
	}
}

func TestHandlerDefaultMediaType(t *testing.T) {
	f := newHandlerFixture(t)
	f.res.MediaType = ""
	w, _ := f.do("GET", "/res/"+f.res.Digest, "")
	if w.Header().Get("Content-Type") != "application/octet-stream" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestHandlerFailures(t *testing.T) {
	f := newHandlerFixture(t)

	// plain collection
	var plainDigest string
	for d, res := range f.catalog.resources {
		if res.Collection == "plain" {
			plainDigest = d
		}
	}
	// indexed but the file is gone
	gone, err := f.gz.Import(bytes.NewReader([]byte("soon gone")), "gz")
	if err != nil {
		t.Fatal(err)
	}
	f.catalog.resources[gone.Digest] = gone
	f.gz.Delete(gone)
	// indexed but the file is empty
	empty := &resource.Resource{Digest: emptyDigest, Collection: "gz"}
	f.catalog.resources[emptyDigest] = empty
	path := store.PathFor(f.gz.Root(), emptyDigest)
	os.MkdirAll(filepath.Dir(path), 0755)
	if err := os.WriteFile(path, nil, 0664); err != nil {
		t.Fatal(err)
	}
	// indexed but the file was cut off after the gzip header
	noise := make([]byte, 5000)
	rand.New(rand.NewSource(7)).Read(noise)
	cut, err := f.gz.Import(bytes.NewReader(noise), "gz")
	if err != nil {
		t.Fatal(err)
	}
	f.catalog.resources[cut.Digest] = cut
	cutPath := store.PathFor(f.gz.Root(), cut.Digest)
	whole, err := os.ReadFile(cutPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cutPath, whole[:len(whole)/2], 0664); err != nil {
		t.Fatal(err)
	}
	// collection is not registered
	f.catalog.resources["0123"] = &resource.Resource{Digest: "0123", Collection: "elsewhere"}

	var table = []struct {
		digest string
		ae     string
		status int
	}{
		{"ffff", "", 404},
		{"0123", "", 404},
		{plainDigest, "gzip", 403},
		{plainDigest, "", 403},
		{gone.Digest, "gzip", 404},
		{gone.Digest, "", 404},
		{emptyDigest, "gzip", 500},
		{emptyDigest, "", 500},
		{cut.Digest, "gzip", 500},
		{cut.Digest, "", 500},
	}
	for _, tab := range table {
		w, result := f.do("GET", "/res/"+tab.digest+"/x", tab.ae)
		if result.Outcome != Failed {
			t.Errorf("%s %q: outcome %v, expected Failed", tab.digest, tab.ae, result.Outcome)
			continue
		}
		if w.Body.Len() != 0 || len(w.Header()) != 0 {
			t.Errorf("%s %q: failed request wrote a response", tab.digest, tab.ae)
		}
		if status := StatusFor(result.Err); status != tab.status {
			t.Errorf("%s %q: status %d (%v), expected %d", tab.digest, tab.ae, status, result.Err, tab.status)
		}
	}
}

func TestHandlerWrap(t *testing.T) {
	f := newHandlerFixture(t)
	var nextCalled int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled++
		w.WriteHeader(http.StatusTeapot)
	})
	h := f.handler.Wrap(next)

	var table = []struct {
		path   string
		status int
		next   int
	}{
		{"/", http.StatusTeapot, 1},
		{"/res/" + f.res.Digest + "/digits.txt", 200, 1},
		{"/res/ffff/x", 404, 1},
	}
	for _, tab := range table {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", tab.path, nil))
		if w.Code != tab.status {
			t.Errorf("%s: status %d, expected %d", tab.path, w.Code, tab.status)
		}
		if nextCalled != tab.next {
			t.Errorf("%s: next called %d times, expected %d", tab.path, nextCalled, tab.next)
		}
	}
}

// a client closing the connection part way must not leave the stream open
func TestHandlerClientGone(t *testing.T) {
	gz := store.NewCompressed(t.TempDir())
	payload := make([]byte, 1<<20)
	rand.New(rand.NewSource(1)).Read(payload)
	res, err := gz.Import(bytes.NewReader(payload), "gz")
	if err != nil {
		t.Fatal(err)
	}
	tracker := &closeTracker{Storage: gz}
	cc := &countingCatalog{
		resources: map[string]*resource.Resource{res.Digest: res},
		collections: map[string]*resource.Collection{
			"gz": {Name: "gz", Storage: tracker, Target: target.NewCompressed("t", "res")},
		},
	}
	h := NewHandler("res", cc)
	w := &failingWriter{header: make(http.Header), limit: 4096}
	result := h.Serve(w, httptest.NewRequest("GET", "/res/"+res.Digest, nil))
	if result.Outcome != Handled {
		t.Errorf("outcome %v, expected Handled", result.Outcome)
	}
	if tracker.open != 0 {
		t.Errorf("%d streams left open", tracker.open)
	}
}

type closeTracker struct {
	resource.Storage
	open int
}

func (ct *closeTracker) Open(res *resource.Resource) (io.ReadCloser, error) {
	rc, err := ct.Storage.Open(res)
	if err != nil {
		return nil, err
	}
	ct.open++
	return &trackedCloser{ReadCloser: rc, ct: ct}, nil
}

type trackedCloser struct {
	io.ReadCloser
	ct *closeTracker
}

func (tc *trackedCloser) Close() error {
	tc.ct.open--
	return tc.ReadCloser.Close()
}

// failingWriter fails every write after the first limit bytes.
type failingWriter struct {
	header http.Header
	limit  int
}

func (fw *failingWriter) Header() http.Header { return fw.header }
func (fw *failingWriter) WriteHeader(int)     {}
func (fw *failingWriter) Write(p []byte) (int, error) {
	if fw.limit <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > fw.limit {
		p = p[:fw.limit]
	}
	fw.limit -= len(p)
	return len(p), nil
}
