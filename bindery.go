// Package bindery assembles EPUB 2 and EPUB 3 books: sections with their
// navigation, resources, a cover and the package document.
//
// Basic usage:
//
//	b, err := bindery.New("My Book", format.EPUB3)
//	if err != nil {
//	    // handle error
//	}
//	b.AddCreator("Jane Doe").SetLanguage("en")
//	intro, _ := b.AddSection("Introduction", "<p>Hello.</p>")
//	b.AddSubSection(intro, "Background", "<p>More.</p>")
//	if err := b.WriteZip("book.epub"); err != nil {
//	    // handle error
//	}
//
// A Builder is safe for concurrent use; every method holds one lock, so
// concurrent calls are applied in some total order.
package bindery

import (
	"github.com/google/uuid"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/opf"
	"github.com/tsawler/bindery/resource"
	"github.com/tsawler/bindery/section"
)

// New creates a Builder for a book with the given title, producing the
// given EPUB version.
//
// Example:
//
//	b, err := bindery.New("My Book", format.EPUB2, bindery.WithLanguage("fr"))
func New(title string, version format.Version, opts ...Option) (*Builder, error) {
	if !version.Valid() {
		return nil, &Error{Op: "new", ID: version.String(), Err: ErrUnsupportedVersion}
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o = o.clone()

	b := &Builder{
		opts:      o,
		log:       o.Logger,
		version:   version,
		resources: resource.New(o.Stater),
		sections:  section.NewTree(),
	}
	b.meta.Title = title
	b.meta.Generator = o.Generator
	b.setLanguage(o.Language)

	id := o.Identifier
	if id == "" {
		id = "urn:uuid:" + uuid.NewString()
	}
	b.meta.Identifier = opf.Identifier{ID: identifierID, Value: id}
	return b, nil
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	b := bindery.Must(bindery.New("My Book", format.EPUB3))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
