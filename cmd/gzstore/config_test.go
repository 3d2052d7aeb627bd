package main

import (
	"path/filepath"
	"testing"

	"github.com/ndlib/gzstore/store"
)

func TestParseConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig(`
port = "16000"
prefix = "files"
max_imports = 2

[[collection]]
name = "images"
storage = "gz:` + filepath.Join(dir, "images") + `"
level = 9

[[collection]]
name = "docs"
storage = "memory:"
target = "static:` + filepath.Join(dir, "www") + `|https://static.example.org/docs"
`)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "16000" || cfg.Prefix != "files" || cfg.MaxImports != 2 {
		t.Errorf("received %+v", cfg)
	}
	if cfg.Database != "memory" {
		t.Errorf("Database = %q, expected the default", cfg.Database)
	}
	colls, err := cfg.collections()
	if err != nil {
		t.Fatal(err)
	}
	if len(colls) != 2 {
		t.Fatalf("received %d collections, expected 2", len(colls))
	}
	if !colls[0].Compressed() || colls[1].Compressed() {
		t.Errorf("compressed: %v %v", colls[0].Compressed(), colls[1].Compressed())
	}
	if gz := colls[0].Storage.(*store.Compressed); gz.Level != 9 {
		t.Errorf("Level = %d, expected 9", gz.Level)
	}
	idx, err := cfg.openIndex()
	if err != nil || idx == nil {
		t.Errorf("openIndex = (%v, %v)", idx, err)
	}
}

func TestParseConfigErrors(t *testing.T) {
	var table = []string{
		``,
		`port = 15000`, // must be a string
		"[[collection]]\nstorage = \"memory:\"",
		"[[collection]]\nname = \"a\"\n[[collection]]\nname = \"a\"",
	}
	for _, data := range table {
		if _, err := parseConfig(data); err == nil {
			t.Errorf("%q: expected an error", data)
		}
	}

	cfg, err := parseConfig("[[collection]]\nname = \"a\"\nstorage = \"ftp://x\"")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.collections(); err == nil {
		t.Errorf("expected an error for an unknown storage")
	}
}
