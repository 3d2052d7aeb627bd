package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/gzstore/catalog"
	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/util"
)

// UploadHandler handles requests to POST /upload/:collection. The request
// body is the content of the new resource. The query parameters "filename"
// and "type" give the filename and media type. If the header
// X-Upload-Sha256 is present the content must have that digest.
//
// On success the response is 201 with the resource metadata, and the
// Location header is the public URI of the resource.
func (s *RESTServer) UploadHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.isReadOnly() {
		w.WriteHeader(503)
		fmt.Fprintln(w, "Server is read only")
		return
	}
	name := ps.ByName("collection")
	if s.Catalog.Collection(name) == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "cannot find collection", name)
		return
	}
	expected := r.Header.Get("X-Upload-Sha256")
	if expected != "" && !util.ValidDigest(expected) {
		w.WriteHeader(400)
		fmt.Fprintln(w, "Bad X-Upload-Sha256 header")
		return
	}

	if !s.gate.Enter(r.Context()) {
		// client went away while waiting
		return
	}
	defer s.gate.Leave()

	tmp, err := os.CreateTemp(s.TempDir, "upload-")
	if err != nil {
		logError(err)
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	hw := util.NewHashWriter(tmp)
	_, err = io.Copy(hw, r.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	if expected != "" {
		if _, ok := hw.CheckDigest(expected); !ok {
			os.Remove(tmp.Name())
			w.WriteHeader(412)
			fmt.Fprintln(w, "Checksum mismatch")
			return
		}
	}

	q := r.URL.Query()
	res, err := s.Catalog.ImportTemporary(tmp.Name(), catalog.Meta{
		Collection: name,
		Filename:   q.Get("filename"),
		MediaType:  q.Get("type"),
	})
	if err != nil {
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}
	info := s.describe(r, res)
	if info.URI != "" {
		w.Header().Set("Location", info.URI)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(info)
}

// the JSON view of a resource
type resourceInfo struct {
	Digest     string `json:"digest"`
	Size       int64  `json:"size"`
	StoredSize int64  `json:"stored_size"`
	MediaType  string `json:"media_type"`
	Filename   string `json:"filename"`
	Collection string `json:"collection"`
	Created    string `json:"created"`
	URI        string `json:"uri,omitempty"`
}

func (s *RESTServer) describe(r *http.Request, res *resource.Resource) resourceInfo {
	info := resourceInfo{
		Digest:     res.Digest,
		Size:       res.Size,
		StoredSize: -1,
		MediaType:  res.MediaType,
		Filename:   res.Filename,
		Collection: res.Collection,
		Created:    res.Created.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if c := s.Catalog.Collection(res.Collection); c != nil {
		if n, err := c.Storage.StoredSize(res); err == nil {
			info.StoredSize = n
		}
	}
	uri, err := s.Catalog.PublicURI(r.Context(), res)
	if err == nil {
		info.URI = uri
	}
	return info
}
