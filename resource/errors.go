package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a requested resource, collection, or stored file
	// does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAccessDenied means the resource is in a collection which is not
	// configured to be served through the compressed path.
	ErrAccessDenied = errors.New("storage or target not supported")

	// ErrCorrupt means a stored file exists but cannot be a valid encoding
	// of any content, e.g. it is empty or truncated.
	ErrCorrupt = errors.New("stored content is corrupt")
)

// A StorageError records an environment failure, such as a disk I/O or
// permission error, encountered while a storage was working on a path.
type StorageError struct {
	Op   string // the operation, e.g. "mkdir" or "compress"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageFault returns true if err is or wraps a *StorageError.
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
