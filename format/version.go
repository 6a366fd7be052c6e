// Package format provides the EPUB version flag and media type detection
// for the bindery library.
package format

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedVersion is returned for version values other than EPUB2 and
// EPUB3.
var ErrUnsupportedVersion = errors.New("epub: unsupported EPUB version")

// Version selects the dialect every encoder produces.
type Version int

const (
	// EPUB2 selects OPF 2.0 package documents and NCX navigation.
	EPUB2 Version = 2
	// EPUB3 selects OPF 3.0 package documents and XHTML nav documents.
	EPUB3 Version = 3
)

// String returns the string representation of the version.
func (v Version) String() string {
	switch v {
	case EPUB2:
		return "EPUB 2.0"
	case EPUB3:
		return "EPUB 3.0"
	default:
		return "Unknown"
	}
}

// PackageVersion returns the version attribute literal of the package document.
func (v Version) PackageVersion() string {
	switch v {
	case EPUB2:
		return "2.0"
	case EPUB3:
		return "3.0"
	default:
		return ""
	}
}

// Valid reports whether v is a supported version.
func (v Version) Valid() bool {
	return v == EPUB2 || v == EPUB3
}

// ParseVersion parses "2", "2.0", "epub2", "3", "3.0" or "epub3".
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2", "2.0", "epub2":
		return EPUB2, nil
	case "3", "3.0", "epub3", "":
		return EPUB3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
}
