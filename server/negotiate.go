package server

import (
	"net/http"
	"strings"
)

// AcceptsGzip reports whether the client listed gzip in its Accept-Encoding
// header. Each header value is split on commas and every token is trimmed
// and compared exactly, so "gzip, deflate" matches but "GZIP" and
// "gzip;q=0.5" do not. Quality values and wildcards are not interpreted.
func AcceptsGzip(h http.Header) bool {
	for _, v := range h.Values("Accept-Encoding") {
		for _, token := range strings.Split(v, ",") {
			if strings.TrimSpace(token) == "gzip" {
				return true
			}
		}
	}
	return false
}
