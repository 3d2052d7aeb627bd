package server

import (
	"encoding/json"
	"expvar"
	"fmt"
	"html/template"
	"log"
	"net/http"
	_ "net/http/pprof" // for pprof server
	"strings"
	"sync"

	"github.com/facebookgo/httpdown"
	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/gzstore/catalog"
	"github.com/ndlib/gzstore/target"
	"github.com/ndlib/gzstore/util"
)

// Version of the server software.
const Version = "1.0.0"

// RESTServer holds the configuration for a gzstore server.
//
// Set all the public fields and then call Run. Run will listen on the given
// port and handle requests. Do not change any fields after calling Run.
//
// Every request first goes to the negotiating resource Handler. Requests it
// does not claim are then routed to the JSON API: uploads, resource
// metadata, collection listings and administration.
type RESTServer struct {
	// Port number to run on. defaults to 15000
	PortNumber string
	PProfPort  string

	// Prefix is the first path segment of resource URIs. It must agree
	// with the prefix given to any compressed targets. defaults to "res"
	Prefix string

	// Catalog holds the collections. Run will panic if it is nil.
	Catalog *catalog.Catalog

	// Validator does authentication by validating any user tokens
	// presented to the API. If this is nil then every request is treated
	// as coming from an admin.
	Validator TokenDecoder

	// TempDir is where uploads are spooled before being imported. The
	// system temporary directory is used if it is empty.
	TempDir string

	// MaxConcurrentImports bounds the number of uploads being imported at
	// a time. Others wait their turn. defaults to 4
	MaxConcurrentImports int

	server httpdown.Server // used to close our listening socket
	serve  *Handler
	gate   util.Gate
	fixity singleflight

	m        sync.RWMutex // protects readOnly
	readOnly bool
}

// the first path segments used by the API. The resource prefix may not be
// one of these.
var apiRoots = []string{"upload", "resource", "collection", "admin", "debug"}

// Run initializes the server and then blocks listening for and handling
// http requests.
func (s *RESTServer) Run() error {
	log.Println("==========")
	log.Printf("Starting gzstore server version %s", Version)

	handler := s.Handler()
	log.Printf("Prefix = /%s/", s.serve.Prefix)
	log.Printf("Collections = %v", s.Catalog.Collections())

	// for pprof
	if s.PProfPort != "" {
		log.Println("Starting PProf on port", s.PProfPort)
		go func() {
			log.Println(http.ListenAndServe(":"+s.PProfPort, nil))
		}()
	}
	log.Println("Listening on", s.PortNumber)

	h := httpdown.HTTP{}
	var err error
	s.server, err = h.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: handler,
	})
	if err != nil {
		log.Println(err)
		return err
	}
	return s.server.Wait()
}

// Stop will stop the server and return when all the connections have
// finished and the socket is closed.
func (s *RESTServer) Stop() error {
	return s.server.Stop()
}

// Handler fills in defaults for any unset fields and returns the complete
// request pipeline. Run calls it. It is exposed for tests and for embedding
// the server in another one.
func (s *RESTServer) Handler() http.Handler {
	if s.Catalog == nil {
		panic("No catalog given. Catalog is nil.")
	}
	if s.PortNumber == "" {
		s.PortNumber = "15000"
	}
	if s.Prefix == "" {
		s.Prefix = "res"
	}
	for _, root := range apiRoots {
		if strings.Trim(s.Prefix, "/") == root {
			panic("resource prefix " + s.Prefix + " collides with the API")
		}
	}
	if s.Validator == nil {
		log.Println("No Validator given")
		s.Validator = NewNobodyDecoder()
	}
	if s.MaxConcurrentImports <= 0 {
		s.MaxConcurrentImports = 4
	}
	s.gate = util.NewGate(s.MaxConcurrentImports)
	s.serve = NewHandler(s.Prefix, s.Catalog)
	s.fixity.F = s.checkFixity

	return logWrapper(baseURIWrapper(s.serve.Wrap(s.addRoutes())))
}

func (s *RESTServer) addRoutes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		role    Role // RoleUnknown means no API key is needed to access
		handler httprouter.Handle
	}{
		{"POST", "/upload/:collection", RoleWrite, s.UploadHandler},

		{"GET", "/resource/:digest", RoleMDOnly, s.ResourceInfoHandler},
		{"DELETE", "/resource/:digest", RoleAdmin, s.DeleteResourceHandler},
		{"POST", "/resource/:digest/fixity", RoleAdmin, s.FixityHandler},

		{"GET", "/collection", RoleRead, s.ListCollectionsHandler},
		{"GET", "/collection/:name", RoleRead, s.CollectionHandler},
		{"POST", "/collection/:name/publish", RoleAdmin, s.PublishCollectionHandler},

		{"GET", "/admin/read_only", RoleAdmin, s.GetReadOnlyHandler},
		{"PUT", "/admin/read_only/:status", RoleAdmin, s.SetReadOnlyHandler},

		// other
		{"GET", "/", RoleUnknown, s.WelcomeHandler},
		{"GET", "/debug/vars", RoleUnknown, VarHandler}, // standard route for expvars data
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			s.authzWrapper(route.handler, route.role))
	}
	return r
}

// General route handlers and convenience functions

// VarHandler adapts the expvar default handler to the httprouter three parameter handler.
func VarHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// this code is taken from the stdlib expvar package.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprintf(w, "{\n")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			fmt.Fprintf(w, ",\n")
		}
		first = false
		fmt.Fprintf(w, "%q: %s", kv.Key, kv.Value)
	})
	fmt.Fprintf(w, "\n}\n")
}

// writeHTMLorJSON will either return val as JSON or as rendered using the
// given template, depending on the request header "Accept".
func writeHTMLorJSON(w http.ResponseWriter,
	r *http.Request,
	tmpl *template.Template,
	val interface{}) {

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(val)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl.Execute(w, val)
}

// authzWrapper returns a Handler which will first verify the user token as
// having at least the given Role. The user name is added as a parameter
// "username".
func (s *RESTServer) authzWrapper(handler httprouter.Handle, leastRole Role) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := r.Header.Get("X-Api-Key")
		user, role, err := s.Validator.TokenDecode(token)
		if err != nil {
			w.WriteHeader(500)
			fmt.Fprintln(w, err.Error())
			return
		}

		if role < leastRole {
			w.WriteHeader(401)
			fmt.Fprintln(w, "Forbidden")
			return
		}

		// remove any previous username
		for i := range ps {
			if ps[i].Key == "username" {
				ps[i].Value = user
				goto out
			}
		}
		// add a new username if none found
		ps = append(ps, httprouter.Param{Key: "username", Value: user})
	out:
		handler(w, r, ps)
	}
}

// logWrapper takes a handler and returns a handler which does the same thing,
// after first logging the request URL.
func logWrapper(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Println(r.Method, r.URL)
		handler.ServeHTTP(w, r)
	})
}

// baseURIWrapper records the scheme and host the client used in the
// request context, for targets making URIs relative to the request.
func baseURIWrapper(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := target.WithBaseURI(r.Context(), target.BaseURIFromRequest(r))
		handler.ServeHTTP(w, r.WithContext(ctx))
	})
}
