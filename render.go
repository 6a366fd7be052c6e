package bindery

import (
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/opf"
	"github.com/tsawler/bindery/output"
	"github.com/tsawler/bindery/resource"
	"github.com/tsawler/bindery/section"
	"github.com/tsawler/bindery/toc"
)

// Container layout.
const (
	ContentDir = "OEBPS"
	TextDir    = "Text"
)

// File is a generated document and its path inside the container.
type File struct {
	Name string
	Data []byte
}

// Asset is a resource copied verbatim from Source into the container.
type Asset struct {
	Name   string
	Source string
}

// Bundle is a fully rendered book, ready to be written.
type Bundle struct {
	Version  format.Version
	Files    []File
	Assets   []Asset
	Warnings []Warning
}

// Write stores the bundle through w. Generated files come first, starting
// with the mimetype entry, followed by the copied resources. w is not
// closed.
func (bn *Bundle) Write(w output.Writer) error {
	for _, f := range bn.Files {
		if err := w.WriteFile(f.Name, f.Data); err != nil {
			return err
		}
	}
	for _, a := range bn.Assets {
		if err := w.CopyFile(a.Name, a.Source); err != nil {
			return err
		}
	}
	return nil
}

// File returns the generated file stored under name.
func (bn *Bundle) File(name string) ([]byte, bool) {
	for _, f := range bn.Files {
		if f.Name == name {
			return f.Data, true
		}
	}
	return nil, false
}

func textHref(filename string) string {
	return TextDir + "/" + filename
}

// Render encodes the package document, the navigation document and every
// section document. Encoding order and navigation numbering are recomputed
// on every call, so rendering an unchanged builder twice yields the same
// documents apart from the modification timestamp.
func (b *Builder) Render() (*Bundle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bundle, err := b.render()
	if err != nil {
		return nil, err
	}
	b.log.Debug("bundle rendered",
		zap.Stringer("version", b.version),
		zap.Int("files", len(bundle.Files)),
		zap.Int("assets", len(bundle.Assets)))
	return bundle, nil
}

func (b *Builder) render() (*Bundle, error) {
	const op = "render"

	bundle := &Bundle{Version: b.version, Warnings: append([]Warning(nil), b.warnings...)}
	ids := opf.NewIDs()
	pkg := opf.New()
	pkg.Metadata = b.meta
	pkg.Metadata.Modified = b.opts.Now()

	// Navigation document.
	navFile, navID, navType := toc.NavFilename, "nav", format.XHTML
	if b.version == format.EPUB2 {
		navFile, navID, navType = toc.NCXFilename, "ncx", format.NCX
	}
	ids.Reserve(navID)
	pkg.TocID = navID
	pkg.AddManifest(opf.ManifestItem{ID: navID, Href: navFile, MediaType: navType})

	// Resources.
	for _, e := range b.resources.All() {
		id := ids.Allocate(e.Name)
		pkg.AddManifest(opf.ManifestItem{ID: id, Href: e.Href(), MediaType: e.MediaType})
		if b.cover != nil && e.Class == resource.Image && e.Name == b.cover.image {
			pkg.Metadata.Cover = id
		}
		bundle.Assets = append(bundle.Assets, Asset{Name: ContentDir + "/" + e.Href(), Source: e.Source})
	}

	// Sections: the cover leads the spine, then every other section in
	// pre-order.
	order := make([]*section.Section, 0, b.sections.Len())
	if b.cover != nil {
		if s, ok := b.sections.Find(b.cover.filename); ok {
			order = append(order, s)
		}
	}
	b.sections.Walk(func(s *section.Section, _ int) bool {
		if b.cover == nil || s.Filename != b.cover.filename {
			order = append(order, s)
		}
		return true
	})

	sectionIDs := make(map[string]string, len(order))
	var texts []File
	for _, s := range order {
		doc := b.documentFor(s)
		data, err := doc.Encode()
		if err != nil {
			return nil, &Error{Op: op, ID: s.Filename, Err: err}
		}
		id := ids.Allocate(s.Filename)
		sectionIDs[s.Filename] = id
		pkg.AddManifest(opf.ManifestItem{ID: id, Href: textHref(s.Filename), MediaType: format.XHTML})
		pkg.AddSpine(opf.SpineItem{IDRef: id})
		texts = append(texts, File{Name: ContentDir + "/" + textHref(s.Filename), Data: []byte(data)})
	}

	// Guide and bindings refer to sections by filename.
	if b.cover != nil {
		pkg.AddGuide(opf.GuideReference{Type: "cover", Title: "Cover", Href: textHref(b.cover.filename)})
	}
	for _, g := range b.guide {
		if _, ok := sectionIDs[g.filename]; !ok {
			return nil, &Error{Op: op, ID: g.filename, Err: fmt.Errorf("guide %s: %w", g.refType, ErrSectionNotFound)}
		}
		pkg.AddGuide(opf.GuideReference{Type: g.refType, Title: g.title, Href: textHref(g.filename)})
	}
	for _, bd := range b.bindings {
		id, ok := sectionIDs[bd.filename]
		if !ok {
			return nil, &Error{Op: op, ID: bd.filename, Err: fmt.Errorf("binding %s: %w", bd.mediaType, ErrSectionNotFound)}
		}
		pkg.AddBinding(opf.Binding{MediaType: bd.mediaType, Handler: id})
	}

	opfData, err := pkg.Encode(b.version)
	if err != nil {
		return nil, &Error{Op: op, ID: opf.Filename, Err: err}
	}

	navData, err := b.navigation().Encode(b.version)
	if err != nil {
		return nil, &Error{Op: op, ID: navFile, Err: err}
	}

	opfPath := path.Join(ContentDir, opf.Filename)
	container, err := output.Container(opfPath)
	if err != nil {
		return nil, &Error{Op: op, ID: output.ContainerFile, Err: err}
	}

	bundle.Files = append(bundle.Files,
		File{Name: output.MimetypeFile, Data: []byte(format.EPUB)},
		File{Name: output.ContainerFile, Data: []byte(container)},
		File{Name: opfPath, Data: []byte(opfData)},
		File{Name: path.Join(ContentDir, navFile), Data: []byte(navData)},
	)
	bundle.Files = append(bundle.Files, texts...)
	return bundle, nil
}

// navigation projects the section forest into a table of contents. Order
// and nesting are kept, except that the cover section is left out: it
// leads the spine and is reachable through the guide instead.
func (b *Builder) navigation() *toc.Nav {
	nav := toc.New(b.meta.Title, b.meta.Language)
	if b.version == format.EPUB2 && b.meta.Identifier.Value != "" {
		nav.AddMetadata("dtb:uid", b.meta.Identifier.Value)
	}
	for _, m := range b.navMeta {
		nav.AddMetadata(m.Name, m.Content)
	}

	roots := b.sections.Roots()
	if b.cover != nil {
		filtered := make([]*section.Section, 0, len(roots))
		for _, r := range roots {
			if r.Filename != b.cover.filename {
				filtered = append(filtered, r)
			}
		}
		roots = filtered
	}
	for _, e := range toc.FromSections(roots, textHref) {
		nav.AddElement(e)
	}
	return nav
}

// WriteDir renders the book and writes it as an unpacked directory tree.
func (b *Builder) WriteDir(dir string) error {
	bundle, err := b.Render()
	if err != nil {
		return err
	}
	w, err := output.NewDirWriter(dir)
	if err != nil {
		return &Error{Op: "write dir", ID: dir, Err: err}
	}
	if err := bundle.Write(w); err != nil {
		return &Error{Op: "write dir", ID: dir, Err: err}
	}
	b.log.Debug("book written", zap.String("dir", dir))
	return nil
}

// WriteZip renders the book and writes it as an EPUB archive at path.
func (b *Builder) WriteZip(file string) error {
	bundle, err := b.Render()
	if err != nil {
		return err
	}
	z, err := output.CreateZip(file)
	if err != nil {
		return &Error{Op: "write zip", ID: file, Err: err}
	}
	z.Modified = b.opts.Now()
	if err := bundle.Write(z); err != nil {
		z.Close()
		return &Error{Op: "write zip", ID: file, Err: err}
	}
	if err := z.Close(); err != nil {
		return &Error{Op: "write zip", ID: file, Err: err}
	}
	b.log.Debug("book written", zap.String("file", file))
	return nil
}
