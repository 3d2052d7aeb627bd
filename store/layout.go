package store

import (
	"path/filepath"
)

// CompressedSuffix is appended to the file name of every compressed object,
// so compressed files never alias the plain files a generic FileSystem store
// may keep under the same root.
const CompressedSuffix = ".gz"

// the subdir to store files while they are being written to.
const scratchdir = "scratch"

// PathFor returns the path beneath root where the compressed content with the
// given digest is kept. It only builds the path and never touches the
// filesystem. The digest should be validated before calling this.
//
// e.g. PathFor("/data", "abcdef01...") returns "/data/ab/cd/abcdef01....gz"
func PathFor(root, digest string) string {
	return filepath.Join(root, itemSubdir(digest), digest+CompressedSuffix)
}

// plainPathFor is like PathFor but without the compressed suffix.
func plainPathFor(root, digest string) string {
	return filepath.Join(root, itemSubdir(digest), digest)
}

// Given a digest, return the subdirectory the file is stored in
// e.g. "abcdd123" returns "ab/cd/"
func itemSubdir(key string) string {
	var result string
	switch len(key) {
	case 0:
		result = "./"
	case 1:
		result = key + "/"
	case 2:
		result = key + "/"
	case 3:
		result = key[0:2] + "/" + key[2:3] + "/"
	default:
		result = key[0:2] + "/" + key[2:4] + "/"
	}
	return result
}
