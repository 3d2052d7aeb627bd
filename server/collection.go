package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// ListCollectionsHandler handles requests to GET /collection
func (s *RESTServer) ListCollectionsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	writeHTMLorJSON(w, r, listCollectionTemplate, s.Catalog.Collections())
}

var (
	listCollectionTemplate = template.Must(template.New("listcollection").Parse(`<html>
<h1>Collections</h1>
<ol>
{{ range . }}
	<li><a href="/collection/{{ . }}">{{ . }}</a></li>
{{ else }}
	<li>No Collections</li>
{{ end }}
</ol>
</html>`))
)

// CollectionHandler handles requests to GET /collection/:name. It lists
// the digests of every resource in the collection.
func (s *RESTServer) CollectionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	digests, err := s.Catalog.Digests(name)
	if err != nil {
		writeError(w, err)
		return
	}
	if digests == nil {
		digests = []string{}
	}
	writeHTMLorJSON(w, r, collectionTemplate, digests)
}

var (
	collectionTemplate = template.Must(template.New("collection").Parse(`<html>
<h1>Resources</h1>
<ol>
{{ range . }}
	<li><a href="/resource/{{ . }}">{{ . }}</a></li>
{{ else }}
	<li>No Resources</li>
{{ end }}
</ol>
<a href="/collection">Back</a>
</html>`))
)

// PublishCollectionHandler handles requests to POST /collection/:name/publish
func (s *RESTServer) PublishCollectionHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	n, err := s.Catalog.PublishCollection(ps.ByName("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	fmt.Fprintf(w, "Published %d resources\n", n)
}
