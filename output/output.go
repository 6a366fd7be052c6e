// Package output persists a rendered book, either as a directory tree or as
// a zip archive with the EPUB container layout.
package output

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrIOFailure is matched by every error returned from a Writer.
var ErrIOFailure = errors.New("epub: I/O failure")

// MimetypeFile is the archive entry that identifies an EPUB container.
const MimetypeFile = "mimetype"

// IOError records a failed write together with the operation and path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("epub: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIOFailure.
func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

// Writer receives the files of a book. Names are slash-separated paths
// relative to the container root; parent directories are implicit.
type Writer interface {
	WriteFile(name string, data []byte) error
	CopyFile(name, source string) error
	Close() error
}

// cleanName validates a container path.
func cleanName(op, name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if name == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &IOError{Op: op, Path: name, Err: errors.New("path escapes the container")}
	}
	return clean, nil
}
