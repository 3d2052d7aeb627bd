package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/util"
)

// A fixityReport is the result of checking one resource.
type fixityReport struct {
	Digest  string    `json:"digest"`
	Status  string    `json:"status"` // one of "ok", "mismatch", "error"
	Notes   string    `json:"notes,omitempty"`
	Checked time.Time `json:"checked"`
}

// checkFixity reads the logical content of the resource with the given
// digest and compares it against the digest and recorded size. Only an
// unknown digest is an error. Unreadable content gives a report with
// status "error".
func (s *RESTServer) checkFixity(digest string) (fixityReport, error) {
	report := fixityReport{Digest: digest, Checked: time.Now()}
	res := s.Catalog.ResourceByDigest(digest)
	if res == nil {
		return report, resource.ErrNotFound
	}
	c := s.Catalog.Collection(res.Collection)
	if c == nil {
		return report, resource.ErrNotFound
	}
	stream, err := c.Storage.Open(res)
	if err != nil {
		report.Status = "error"
		report.Notes = err.Error()
		return report, nil
	}
	defer stream.Close()
	hw := util.NewHashWriterPlain()
	_, err = io.Copy(hw, stream)
	switch {
	case err != nil:
		report.Status = "error"
		report.Notes = err.Error()
	case hw.Digest() != res.Digest:
		report.Status = "mismatch"
		report.Notes = "computed " + hw.Digest()
	case hw.Size() != res.Size:
		report.Status = "mismatch"
		report.Notes = fmt.Sprintf("read %d bytes, expected %d", hw.Size(), res.Size)
	default:
		report.Status = "ok"
	}
	if report.Status != "ok" {
		log.Printf("fixity for %s: %s %s", digest, report.Status, report.Notes)
	}
	return report, nil
}

// FixityHandler handles requests to POST /resource/:digest/fixity. Checks
// of the same resource running at the same time are merged.
func (s *RESTServer) FixityHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	report, err := s.fixity.Get(ps.ByName("digest"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(report)
}
