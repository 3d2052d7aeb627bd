package main

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/ndlib/gzstore/resource"
	"github.com/ndlib/gzstore/store"
	"github.com/ndlib/gzstore/target"
)

// splitBucketPrefix will take a path and separate the bucket name from a prefix, if any.
// It will also append "addition" to the prefix, and make sure the prefix returned is
// either empty or ends with a slash "/".
//
// examples:
//
//	"" -> ("", "")
//	"bucket" -> ("bucket", "")
//	"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string, addition string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = v[1]
	}
	if addition != "" {
		prefix = path.Join(prefix, addition)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// parselocation will create an appropriate storage based on "location".
// If location is empty, a memory storage is returned. The schemes are
//
//	memory:              in memory, for testing
//	file:<path>          plain files under path (also a bare path)
//	gz:<path>            gzip compressed files under path
//	s3://<host>/<bucket>/<prefix>
//	s3:/<bucket>/<prefix>
//
// level is the compression level for "gz:" storages, with 0 meaning the
// default.
func parselocation(location string, level int) (resource.Storage, error) {
	if location == "" {
		return store.NewMemory(), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	dir := u.Path
	if dir == "" {
		dir = u.Opaque
	}
	switch u.Scheme {
	case "memory":
		return store.NewMemory(), nil
	case "", "file":
		os.MkdirAll(dir, 0755)
		return store.NewFileSystem(filepath.Clean(dir)), nil
	case "gz":
		os.MkdirAll(dir, 0755)
		s := store.NewCompressed(filepath.Clean(dir))
		if level != 0 {
			s.Level = level
		}
		return s, nil
	case "s3":
		conf := &aws.Config{}
		if u.Host != "" {
			conf.Endpoint = aws.String(u.Host)
			conf.Region = aws.String("us-east-1")
			// disable SSL for local development
			if strings.Contains(u.Host, "localhost") {
				conf.DisableSSL = aws.Bool(true)
				conf.S3ForcePathStyle = aws.Bool(true)
			}
		}
		bucket, prefix := splitBucketPrefix(u.Path, "")
		if bucket == "" {
			return nil, fmt.Errorf("no bucket name in location %s", location)
		}
		sess, err := session.NewSession(conf)
		if err != nil {
			return nil, err
		}
		return store.NewS3(bucket, prefix, sess), nil
	}
	return nil, fmt.Errorf("unknown location %s", location)
}

// parsetarget creates the target described by desc. The empty string and
// "compressed" give a compressed target making URIs under prefix.
// "static:<dir>|<base URL>" publishes into dir, which is served from the
// base URL by some other web server.
func parsetarget(name, desc, prefix string) (resource.Target, error) {
	switch {
	case desc == "" || desc == "compressed":
		return target.NewCompressed(name, prefix), nil
	case strings.HasPrefix(desc, "static:"):
		v := strings.SplitN(strings.TrimPrefix(desc, "static:"), "|", 2)
		if len(v) != 2 || v[0] == "" || v[1] == "" {
			return nil, fmt.Errorf("target %s: expected static:<dir>|<base url>", desc)
		}
		return target.NewFileSystem(name, v[0], v[1]), nil
	}
	return nil, fmt.Errorf("unknown target %s", desc)
}
