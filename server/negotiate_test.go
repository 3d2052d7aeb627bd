package server

import (
	"net/http"
	"testing"
)

func TestAcceptsGzip(t *testing.T) {
	var table = []struct {
		values []string
		output bool
	}{
		{nil, false},
		{[]string{""}, false},
		{[]string{"gzip"}, true},
		{[]string{"gzip, deflate"}, true},
		{[]string{"deflate, gzip"}, true},
		{[]string{" gzip "}, true},
		{[]string{"br"}, false},
		{[]string{"br", "gzip"}, true},
		{[]string{"GZIP"}, false},
		{[]string{"gzip;q=1.0"}, false},
		{[]string{"*"}, false},
		{[]string{"x-gzip"}, false},
	}
	for _, tab := range table {
		h := make(http.Header)
		for _, v := range tab.values {
			h.Add("Accept-Encoding", v)
		}
		result := AcceptsGzip(h)
		if result != tab.output {
			t.Errorf("AcceptsGzip(%q) = %v, expected %v", tab.values, result, tab.output)
		}
	}
}
