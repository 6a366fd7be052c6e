// Package opf builds and encodes the EPUB package document (content.opf) in
// its OPF 2.0 and OPF 3.0 dialects.
package opf

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Filename is the conventional name of the package document.
const Filename = "content.opf"

// XML namespaces used by the package document.
const (
	NamespaceOPF = "http://www.idpf.org/2007/opf"
	NamespaceDC  = "http://purl.org/dc/elements/1.1/"
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
)

// Identifier is the book's unique identifier. ID names the dc:identifier
// element referenced from the package's unique-identifier attribute.
type Identifier struct {
	ID     string
	Scheme string
	Value  string
}

// Meta is a free-form metadata entry. EPUB 2 writes Name and Content as
// attributes; EPUB 3 writes Property with Value as text. Either form falls
// back to the other when its own fields are empty.
type Meta struct {
	Refines  string
	Property string
	Scheme   string
	ID       string
	Value    string
	Name     string
	Content  string
}

// Metadata is the Dublin Core and auxiliary metadata of a book.
type Metadata struct {
	Title       string
	Creators    []string
	Subjects    []string
	Description string
	Type        string
	Publisher   string
	Contributor string
	Format      string
	Identifier  Identifier
	Source      string
	Language    string
	Relation    string
	Coverage    string
	Rights      []string
	Cover       string // manifest id of the cover image
	Published   time.Time
	Modified    time.Time
	Generator   string
	Meta        []Meta
}

// ManifestItem is one manifest entry.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// SpineItem references a manifest item in reading order.
type SpineItem struct {
	IDRef      string
	Linear     string
	Properties string
}

// GuideReference points at a structural component such as the cover.
type GuideReference struct {
	Type  string
	Title string
	Href  string
}

// Binding maps a foreign media type to the manifest id of its handler.
type Binding struct {
	MediaType string
	Handler   string
}

// Package is a package document ready to be encoded.
type Package struct {
	Metadata Metadata
	Manifest []ManifestItem
	Spine    []SpineItem
	Guide    []GuideReference
	Bindings []Binding

	// TocID is the manifest id of the navigation document: the spine's toc
	// attribute in EPUB 2 and the item carrying the nav property in EPUB 3.
	TocID string
}

// New returns an empty package.
func New() *Package {
	return &Package{}
}

// AddMeta appends a free-form metadata entry.
func (p *Package) AddMeta(m Meta) *Package {
	p.Metadata.Meta = append(p.Metadata.Meta, m)
	return p
}

// AddManifest appends a manifest item.
func (p *Package) AddManifest(item ManifestItem) *Package {
	p.Manifest = append(p.Manifest, item)
	return p
}

// AddSpine appends a spine reference.
func (p *Package) AddSpine(item SpineItem) *Package {
	p.Spine = append(p.Spine, item)
	return p
}

// AddGuide appends a guide reference.
func (p *Package) AddGuide(ref GuideReference) *Package {
	p.Guide = append(p.Guide, ref)
	return p
}

// AddBinding appends a binding. Bindings are only written for EPUB 3.
func (p *Package) AddBinding(b Binding) *Package {
	p.Bindings = append(p.Bindings, b)
	return p
}

// IDs hands out manifest ids that are valid XML names and unique within one
// package.
type IDs struct {
	used map[string]bool
}

// NewIDs returns an empty allocator.
func NewIDs() *IDs {
	return &IDs{used: make(map[string]bool)}
}

// Reserve marks id as taken and reports whether it was free.
func (a *IDs) Reserve(id string) bool {
	if a.used[id] {
		return false
	}
	a.used[id] = true
	return true
}

// Allocate derives an id from name. Characters that may not appear in an
// XML name become underscores, a leading non-letter gets a prefix, and
// collisions get a numeric suffix.
func (a *IDs) Allocate(name string) string {
	base := Sanitize(name)
	id := base
	for n := 2; a.used[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	a.used[id] = true
	return id
}

// Sanitize maps name onto the NCName production used for XML ids.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	id := b.String()
	if id == "" {
		return "item"
	}
	first := []rune(id)[0]
	if !unicode.IsLetter(first) && first != '_' {
		id = "id_" + id
	}
	return id
}
