// Command gzutil works on a compressed storage directory directly, or on a
// running gzstore server through its API.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ndlib/gzstore/client"
	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/store"
)

var (
	storeDir = flag.String("s", ".", "location of the compressed storage directory")
	level    = flag.Int("level", 0, "compression level for imports (1-9, 0 for the default)")
	server   = flag.String("server", "http://localhost:15000", "gzstore server to use for upload and download")
	token    = flag.String("token", "", "API key for the server")
	gzipped  = flag.Bool("gzip", false, "download the stored gzip bytes instead of the content")
	usage    = `
gzutil <command> <command arguments>

Possible commands on the storage directory:
    import <file list>
    cat <digest>
    stat <digest list>
    list
    verify

Possible commands on the server:
    upload <collection> <file list>
    download <uri>
`
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Print(usage)
		return
	}

	s := store.NewCompressed(*storeDir)
	if *level != 0 {
		s.Level = *level
	}
	conn := &client.Connection{Hostname: *server, Token: *token}

	var ok = true
	switch {
	case args[0] == "import" && len(args) > 1:
		ok = doimport(s, args[1:])
	case args[0] == "cat" && len(args) == 2:
		ok = docat(s, args[1], os.Stdout)
	case args[0] == "stat" && len(args) > 1:
		ok = dostat(s, args[1:], os.Stdout)
	case args[0] == "list":
		for d := range s.List() {
			fmt.Println(d)
		}
	case args[0] == "verify":
		ok = doverify(s, os.Stdout) == 0
	case args[0] == "upload" && len(args) > 2:
		ok = doupload(conn, args[1], args[2:])
	case args[0] == "download" && len(args) == 2:
		ok = dodownload(conn, args[1], os.Stdout)
	default:
		fmt.Print(usage)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
}

func doimport(s *store.Compressed, files []string) bool {
	ok := true
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
			ok = false
			continue
		}
		res, err := s.Import(f, "")
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
			ok = false
			continue
		}
		fmt.Printf("%s %s\n", res.Digest, name)
	}
	return ok
}

func docat(s *store.Compressed, digest string, w io.Writer) bool {
	rc, err := s.Open(&resource.Resource{Digest: digest})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", digest, err)
		return false
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", digest, err)
		return false
	}
	return true
}

func dostat(s *store.Compressed, digests []string, out io.Writer) bool {
	ok := true
	w := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "Digest\tStored\tSize\tRatio\n")
	for _, d := range digests {
		res := &resource.Resource{Digest: d}
		stored, err := s.StoredSize(res)
		var size int64
		if err == nil {
			size, err = logicalSize(s, res)
		}
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %s\n", d, err)
			ok = false
			continue
		}
		ratio := 0.0
		if size > 0 {
			ratio = float64(stored) / float64(size)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\n", d, stored, size, ratio)
	}
	w.Flush()
	return ok
}

// logicalSize decompresses the content of res to find its length.
func logicalSize(s *store.Compressed, res *resource.Resource) (int64, error) {
	rc, err := s.Open(res)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(io.Discard, rc)
}

func doupload(conn *client.Connection, collection string, files []string) bool {
	ok := true
	for _, name := range files {
		info, err := conn.UploadFile(collection, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
			ok = false
			continue
		}
		fmt.Printf("%s %s\n", info.Digest, info.URI)
	}
	return ok
}

func dodownload(conn *client.Connection, uri string, w io.Writer) bool {
	enc, err := conn.Download(uri, w, *gzipped)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", uri, err)
		return false
	}
	if enc != "" {
		fmt.Fprintf(os.Stderr, "content encoding: %s\n", enc)
	}
	return true
}
