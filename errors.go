package bindery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/internal/xmlenc"
	"github.com/tsawler/bindery/output"
	"github.com/tsawler/bindery/resource"
	"github.com/tsawler/bindery/section"
)

// Errors returned (wrapped in *Error) by Builder operations.
var (
	ErrSourceNotFound     = resource.ErrSourceNotFound
	ErrNameAlreadyUsed    = resource.ErrNameAlreadyUsed
	ErrInvalidName        = resource.ErrInvalidName
	ErrInvalidFilename    = section.ErrInvalidName
	ErrFilenameExists     = section.ErrFilenameExists
	ErrParentNotFound     = section.ErrParentNotFound
	ErrSectionNotFound    = section.ErrNotFound
	ErrMediaTypeUnknown   = format.ErrMediaTypeUnknown
	ErrUnsupportedVersion = format.ErrUnsupportedVersion
	ErrEncodingFailed     = xmlenc.ErrEncodingFailed
	ErrIOFailure          = output.ErrIOFailure

	// ErrCoverParent is returned when a section is added below the cover.
	ErrCoverParent = errors.New("epub: cover section cannot have children")
)

// Error identifies the Builder operation that failed and the filename,
// resource name or source path it was acting on.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("bindery: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bindery: %s %q: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Warning is a non-fatal issue noticed while building, such as an OCR
// failure that fell back to a default alt text.
type Warning struct {
	Message string
}

// FormatWarnings joins warning messages into one line.
func FormatWarnings(warnings []Warning) string {
	msgs := make([]string, 0, len(warnings))
	for _, w := range warnings {
		msgs = append(msgs, w.Message)
	}
	return strings.Join(msgs, "; ")
}
