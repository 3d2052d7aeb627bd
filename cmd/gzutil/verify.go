package main

import (
	"fmt"
	"io"
	"log"

	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/store"
	"github.com/ndlib/gzstore/util"
)

// doverify decompresses every object in s and checks that the content
// hashes to the digest it is stored under. Problems are written to out.
// It returns the number of objects which failed.
func doverify(s *store.Compressed, out io.Writer) int {
	var checked, bad int
	for d := range s.List() {
		checked++
		if err := verifyOne(s, d); err != nil {
			bad++
			fmt.Fprintf(out, "%s: %s\n", d, err)
			log.Printf("fixity for %s: %s", d, err)
			raven.CaptureError(err, map[string]string{"digest": d})
		}
	}
	fmt.Fprintf(out, "checked %d, %d failed\n", checked, bad)
	return bad
}

func verifyOne(s *store.Compressed, digest string) error {
	rc, err := s.Open(&resource.Resource{Digest: digest})
	if err != nil {
		return err
	}
	defer rc.Close()
	ok, err := util.VerifyStreamDigest(rc, digest)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("content does not match digest")
	}
	return nil
}
