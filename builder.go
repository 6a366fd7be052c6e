package bindery

import (
	"path"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/opf"
	"github.com/tsawler/bindery/resource"
	"github.com/tsawler/bindery/section"
	"github.com/tsawler/bindery/toc"
	"github.com/tsawler/bindery/xhtml"
)

const identifierID = "BookId"

type guideEntry struct {
	refType  string
	title    string
	filename string
}

type bindingEntry struct {
	mediaType string
	filename  string
}

// Builder accumulates the sections, resources and metadata of one book.
type Builder struct {
	mu sync.Mutex

	opts    Options
	log     *zap.Logger
	version format.Version

	meta      opf.Metadata
	resources *resource.Registry
	sections  *section.Tree
	cover     *coverSlot

	navMeta  []toc.Meta
	guide    []guideEntry
	bindings []bindingEntry
	warnings []Warning
}

// Version returns the EPUB version the builder produces.
func (b *Builder) Version() format.Version {
	return b.version
}

func (b *Builder) warn(msg string, fields ...zap.Field) {
	b.warnings = append(b.warnings, Warning{Message: msg})
	b.log.Warn(msg, fields...)
}

// Warnings returns the non-fatal issues recorded so far.
func (b *Builder) Warnings() []Warning {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Warning(nil), b.warnings...)
}

// SetTitle sets the book title.
func (b *Builder) SetTitle(title string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Title = title
	return b
}

// AddCreator appends an author.
func (b *Builder) AddCreator(name string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Creators = append(b.meta.Creators, name)
	return b
}

// AddSubject appends a subject keyword.
func (b *Builder) AddSubject(subject string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Subjects = append(b.meta.Subjects, subject)
	return b
}

// SetDescription sets the book description.
func (b *Builder) SetDescription(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Description = s
	return b
}

// SetType sets the dc:type (category) of the book.
func (b *Builder) SetType(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Type = s
	return b
}

// SetPublisher sets the publisher.
func (b *Builder) SetPublisher(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Publisher = s
	return b
}

// SetContributor sets the contributor.
func (b *Builder) SetContributor(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Contributor = s
	return b
}

// SetFormat sets dc:format.
func (b *Builder) SetFormat(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Format = s
	return b
}

// SetIdentifier replaces the unique identifier. scheme may be empty.
func (b *Builder) SetIdentifier(value, scheme string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Identifier = opf.Identifier{ID: identifierID, Scheme: scheme, Value: value}
	return b
}

// SetSource sets dc:source.
func (b *Builder) SetSource(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Source = s
	return b
}

// SetLanguage sets the book language. Well-formed BCP 47 tags are
// canonicalized; anything else is kept verbatim and recorded as a warning.
func (b *Builder) SetLanguage(lang string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLanguage(lang)
	return b
}

func (b *Builder) setLanguage(lang string) {
	tag, err := language.Parse(lang)
	if err != nil {
		b.warn("language tag not recognized", zap.String("language", lang), zap.Error(err))
		b.meta.Language = lang
		return
	}
	b.meta.Language = tag.String()
}

// SetRelation sets dc:relation.
func (b *Builder) SetRelation(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Relation = s
	return b
}

// SetCoverage sets dc:coverage.
func (b *Builder) SetCoverage(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Coverage = s
	return b
}

// AddRights appends a rights statement.
func (b *Builder) AddRights(s string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Rights = append(b.meta.Rights, s)
	return b
}

// SetPublished sets the publication date.
func (b *Builder) SetPublished(t time.Time) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Published = t
	return b
}

// AddMeta appends a free-form package metadata entry.
func (b *Builder) AddMeta(m opf.Meta) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta.Meta = append(b.meta.Meta, m)
	return b
}

// AddNavMetadata appends a name/content pair to the navigation document head.
func (b *Builder) AddNavMetadata(name, content string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navMeta = append(b.navMeta, toc.Meta{Name: name, Content: content})
	return b
}

// AddGuide adds a guide reference of refType (e.g. "toc", "text") to the
// section stored as filename. The section must exist when the book is
// rendered.
func (b *Builder) AddGuide(refType, title, filename string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guide = append(b.guide, guideEntry{refType: refType, title: title, filename: filename})
	return b
}

// AddBinding declares the section stored as filename the handler for a
// foreign media type. Bindings are written for EPUB 3 only.
func (b *Builder) AddBinding(mediaType, filename string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings = append(b.bindings, bindingEntry{mediaType: mediaType, filename: filename})
	return b
}

// AddImage registers an image and returns its path relative to the section
// documents. name may be empty to derive one from the source.
func (b *Builder) AddImage(source, name string) (string, error) {
	return b.addResource("add image", resource.Image, source, name)
}

// AddFont registers a font.
func (b *Builder) AddFont(source, name string) (string, error) {
	return b.addResource("add font", resource.Font, source, name)
}

// AddVideo registers a video.
func (b *Builder) AddVideo(source, name string) (string, error) {
	return b.addResource("add video", resource.Video, source, name)
}

// AddAudio registers an audio file.
func (b *Builder) AddAudio(source, name string) (string, error) {
	return b.addResource("add audio", resource.Audio, source, name)
}

// AddStylesheet registers a stylesheet.
func (b *Builder) AddStylesheet(source, name string) (string, error) {
	return b.addResource("add stylesheet", resource.Stylesheet, source, name)
}

func (b *Builder) addResource(op string, class resource.Class, source, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rel, err := b.resources.Register(class, source, name)
	if err != nil {
		return "", &Error{Op: op, ID: source, Err: err}
	}
	b.log.Debug("resource registered",
		zap.Stringer("class", class),
		zap.String("source", source),
		zap.String("path", rel))
	return rel, nil
}

// SectionOption customizes a section added with AddSection or AddSubSection.
type SectionOption func(*sectionConfig)

type sectionConfig struct {
	filename   string
	stylesheet string
	styles     []string
}

// SectionFilename sets an explicit filename; ".xhtml" is appended when
// missing.
func SectionFilename(name string) SectionOption {
	return func(c *sectionConfig) { c.filename = name }
}

// SectionStylesheet registers the stylesheet at source and links it from
// the section document.
func SectionStylesheet(source string) SectionOption {
	return func(c *sectionConfig) { c.stylesheet = source }
}

// SectionStyle adds an inline style block to the section document.
func SectionStyle(css string) SectionOption {
	return func(c *sectionConfig) { c.styles = append(c.styles, css) }
}

// AddSection appends a top-level section and returns its filename.
func (b *Builder) AddSection(title, body string, opts ...SectionOption) (string, error) {
	return b.AddSubSection("", title, body, opts...)
}

// AddSubSection appends a section as the last child of the section stored
// as parent, or as a new top-level section when parent is empty. The cover
// section cannot be a parent. On error neither the section tree nor the
// resources are changed.
func (b *Builder) AddSubSection(parent, title, body string, opts ...SectionOption) (string, error) {
	var cfg sectionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.addSection(parent, title, body, cfg)
}

func (b *Builder) addSection(parent, title, body string, cfg sectionConfig) (string, error) {
	name, err := b.sections.ResolveFilename(cfg.filename)
	if err != nil {
		return "", &Error{Op: "add section", ID: cfg.filename, Err: err}
	}
	if err := b.sections.CheckParent(parent); err != nil {
		return "", &Error{Op: "add section", ID: parent, Err: err}
	}
	if b.cover != nil && parent == b.cover.filename {
		return "", &Error{Op: "add section", ID: parent, Err: ErrCoverParent}
	}

	s := section.New(name, title, body)
	for _, css := range cfg.styles {
		s.Document.AddStyle(css)
	}

	var sheet resource.Entry
	if cfg.stylesheet != "" {
		href, err := b.resources.Register(resource.Stylesheet, cfg.stylesheet, "")
		if err != nil {
			return "", &Error{Op: "add section", ID: cfg.stylesheet, Err: err}
		}
		sheet, _ = b.resources.Lookup(resource.Stylesheet, path.Base(href))
		s.Document.AddStylesheet(href)
	}

	if err := b.sections.Add(parent, s); err != nil {
		if sheet.Name != "" {
			b.resources.Remove(resource.Stylesheet, sheet.Name)
		}
		return "", &Error{Op: "add section", ID: name, Err: err}
	}

	b.log.Debug("section added",
		zap.String("filename", name),
		zap.String("parent", parent),
		zap.String("title", title))
	return name, nil
}

// Section returns the section stored as filename.
func (b *Builder) Section(filename string) (*section.Section, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sections.Find(filename)
}

// SectionCount returns the number of sections, the cover included.
func (b *Builder) SectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sections.Len()
}

// Resources returns every registered resource grouped by class.
func (b *Builder) Resources() []resource.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resources.All()
}

// Outline renders the section tree as indented text.
func (b *Builder) Outline() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sections.Outline(b.meta.Title)
}

// documentFor returns a copy of the section document prepared for encoding
// in the builder's version.
func (b *Builder) documentFor(s *section.Section) xhtml.Document {
	doc := *s.Document
	if doc.Lang == "" {
		doc.Lang = b.meta.Language
	}
	if b.version == format.EPUB2 {
		doc.Doctype = xhtml.DoctypeXHTML11
	} else {
		doc.Doctype = xhtml.DoctypeHTML5
	}
	return doc
}
