package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// ResourceInfoHandler handles requests to GET /resource/:digest
func (s *RESTServer) ResourceInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	digest := ps.ByName("digest")
	res := s.Catalog.ResourceByDigest(digest)
	if res == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find resource")
		return
	}
	w.Header().Set("ETag", `"`+res.Digest+`"`)
	writeHTMLorJSON(w, r, resourceInfoTemplate, s.describe(r, res))
}

var (
	resourceInfoTemplate = template.Must(template.New("resourceinfo").Parse(`<html>
<h1>Resource Info</h1>
<dl>
<dt>Digest</dt><dd>{{ .Digest }}</dd>
<dt>Size</dt><dd>{{ .Size }}</dd>
<dt>Stored Size</dt><dd>{{ .StoredSize }}</dd>
<dt>Media Type</dt><dd>{{ .MediaType }}</dd>
<dt>Filename</dt><dd>{{ .Filename }}</dd>
<dt>Created</dt><dd>{{ .Created }}</dd>
<dt>Collection</dt><dd><a href="/collection/{{ .Collection }}">{{ .Collection }}</a></dd>
</dl>
{{ if .URI }}<a href="{{ .URI }}">View content</a>{{ end }}
</html>`))
)

// DeleteResourceHandler handles requests to DELETE /resource/:digest
func (s *RESTServer) DeleteResourceHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.isReadOnly() {
		w.WriteHeader(503)
		fmt.Fprintln(w, "Server is read only")
		return
	}
	digest := ps.ByName("digest")
	err := s.Catalog.Delete(digest)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(204)
}
