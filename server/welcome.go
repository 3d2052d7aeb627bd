package server

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// WelcomeHandler handles requests to GET /
func (s *RESTServer) WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "gzstore (%s)\n", Version)
	fmt.Fprintf(w, "resources are served under /%s/\n", s.serve.Prefix)
}
