//go:build integration

package catalog

import (
	"flag"
	"testing"
	"time"

	"github.com/ndlib/gzstore/resource"
)

var dialmysql = flag.String("mysql", "/test", "Dial for mysql")

func TestMySQLIndex(t *testing.T) {
	mi, err := NewMysqlIndex(*dialmysql)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	res := &resource.Resource{
		Digest:     "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Collection: "test",
		Created:    time.Now(),
	}
	if err := mi.Set(res); err != nil {
		t.Fatal(err)
	}
	if got := mi.Lookup(res.Digest); got == nil {
		t.Errorf("Received nil, expected non-nil")
	}
	digests, err := mi.ByCollection("test")
	if err != nil || len(digests) == 0 {
		t.Errorf("ByCollection = (%v, %v)", digests, err)
	}
	if err := mi.Delete(res.Digest); err != nil {
		t.Fatal(err)
	}
	if got := mi.Lookup(res.Digest); got != nil {
		t.Errorf("Received %v, expected nil", got)
	}
}

func TestMySQLDial(t *testing.T) {
	if _, err := NewMysqlIndex("not a dsn"); err == nil {
		t.Errorf("expected an error for a bad dial string")
	}
}
