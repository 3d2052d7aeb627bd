package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// SetReadOnly stops or resumes accepting uploads and deletes. Resources are
// always served.
func (s *RESTServer) SetReadOnly(readOnly bool) {
	log.Println("Setting read only mode to", readOnly)
	s.m.Lock()
	s.readOnly = readOnly
	s.m.Unlock()
}

func (s *RESTServer) isReadOnly() bool {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.readOnly
}

// SetReadOnlyHandler handles requests to PUT /admin/read_only/:status
func (s *RESTServer) SetReadOnlyHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	status := ps.ByName("status")

	switch status {
	case "on":
		s.SetReadOnly(true)
		w.WriteHeader(201)
	case "off":
		s.SetReadOnly(false)
		w.WriteHeader(201)
	default:
		w.WriteHeader(400)
		log.Println("PUT /admin/read_only: unknown parameter", status)
	}
}

// GetReadOnlyHandler handles requests to GET /admin/read_only
func (s *RESTServer) GetReadOnlyHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.isReadOnly() {
		fmt.Fprintf(w, "On")
	} else {
		fmt.Fprintf(w, "Off")
	}
}
