package opf

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/internal/xmlenc"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z"
)

type manifestXML struct {
	Items []itemXML `xml:"item"`
}

type itemXML struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type spineXML struct {
	Toc      string       `xml:"toc,attr,omitempty"`
	ItemRefs []itemRefXML `xml:"itemref"`
}

type itemRefXML struct {
	IDRef      string `xml:"idref,attr"`
	Linear     string `xml:"linear,attr,omitempty"`
	Properties string `xml:"properties,attr,omitempty"`
}

type guideXML struct {
	References []referenceXML `xml:"reference"`
}

type referenceXML struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr,omitempty"`
	Href  string `xml:"href,attr"`
}

type bindingsXML struct {
	MediaTypes []mediaTypeXML `xml:"mediaType"`
}

type mediaTypeXML struct {
	MediaType string `xml:"media-type,attr"`
	Handler   string `xml:"handler,attr"`
}

type identifierXML struct {
	ID     string `xml:"id,attr,omitempty"`
	Scheme string `xml:"opf:scheme,attr,omitempty"`
	Value  string `xml:",chardata"`
}

// EPUB 2 dialect.

type packageV2 struct {
	XMLName  xml.Name    `xml:"http://www.idpf.org/2007/opf package"`
	XmlnsOPF string      `xml:"xmlns:opf,attr"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr,omitempty"`
	Metadata metadataV2  `xml:"metadata"`
	Manifest manifestXML `xml:"manifest"`
	Spine    spineXML    `xml:"spine"`
	Guide    *guideXML   `xml:"guide,omitempty"`
}

type metadataV2 struct {
	XmlnsDC     string         `xml:"xmlns:dc,attr"`
	Title       string         `xml:"dc:title,omitempty"`
	Creators    []creatorV2    `xml:"dc:creator"`
	Subject     string         `xml:"dc:subject,omitempty"`
	Description string         `xml:"dc:description,omitempty"`
	Type        string         `xml:"dc:type,omitempty"`
	Publisher   string         `xml:"dc:publisher,omitempty"`
	Contributor string         `xml:"dc:contributor,omitempty"`
	Format      string         `xml:"dc:format,omitempty"`
	Identifier  *identifierXML `xml:"dc:identifier,omitempty"`
	Source      string         `xml:"dc:source,omitempty"`
	Language    string         `xml:"dc:language,omitempty"`
	Relation    string         `xml:"dc:relation,omitempty"`
	Coverage    string         `xml:"dc:coverage,omitempty"`
	Rights      string         `xml:"dc:rights,omitempty"`
	Dates       []dateV2       `xml:"dc:date"`
	Meta        []metaV2       `xml:"meta"`
}

type creatorV2 struct {
	Role  string `xml:"opf:role,attr,omitempty"`
	Value string `xml:",chardata"`
}

type dateV2 struct {
	Event string `xml:"opf:event,attr"`
	Value string `xml:",chardata"`
}

type metaV2 struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

// EPUB 3 dialect.

type packageV3 struct {
	XMLName  xml.Name     `xml:"http://www.idpf.org/2007/opf package"`
	XmlnsDC  string       `xml:"xmlns:dc,attr"`
	XmlnsXSI string       `xml:"xmlns:xsi,attr"`
	Version  string       `xml:"version,attr"`
	UniqueID string       `xml:"unique-identifier,attr,omitempty"`
	Lang     string       `xml:"xml:lang,attr,omitempty"`
	Metadata metadataV3   `xml:"metadata"`
	Manifest manifestXML  `xml:"manifest"`
	Spine    spineXML     `xml:"spine"`
	Guide    *guideXML    `xml:"guide,omitempty"`
	Bindings *bindingsXML `xml:"bindings,omitempty"`
}

type metadataV3 struct {
	Title       string         `xml:"dc:title,omitempty"`
	Creators    []string       `xml:"dc:creator"`
	Subjects    []string       `xml:"dc:subject"`
	Description string         `xml:"dc:description,omitempty"`
	Type        string         `xml:"dc:type,omitempty"`
	Publisher   string         `xml:"dc:publisher,omitempty"`
	Contributor string         `xml:"dc:contributor,omitempty"`
	Format      string         `xml:"dc:format,omitempty"`
	Identifier  *identifierXML `xml:"dc:identifier,omitempty"`
	Source      string         `xml:"dc:source,omitempty"`
	Language    string         `xml:"dc:language,omitempty"`
	Relation    string         `xml:"dc:relation,omitempty"`
	Coverage    string         `xml:"dc:coverage,omitempty"`
	Rights      []string       `xml:"dc:rights"`
	Date        string         `xml:"dc:date,omitempty"`
	Meta        []metaV3       `xml:"meta"`
}

type metaV3 struct {
	ID       string `xml:"id,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Refines  string `xml:"refines,attr,omitempty"`
	Scheme   string `xml:"scheme,attr,omitempty"`
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Value    string `xml:",chardata"`
}

// Encode renders the package document in the dialect of v. Failures match
// xmlenc.ErrEncodingFailed.
func (p *Package) Encode(v format.Version) (string, error) {
	if err := p.check(); err != nil {
		return "", err
	}
	switch v {
	case format.EPUB2:
		return xmlenc.Marshal(Filename, p.v2(), "")
	case format.EPUB3:
		return xmlenc.Marshal(Filename, p.v3(), "")
	default:
		return "", &xmlenc.EncodeError{Doc: Filename, Err: fmt.Errorf("unsupported version %d", v)}
	}
}

// check rejects characters XML cannot carry and references that would leave
// the document internally inconsistent.
func (p *Package) check() error {
	m := p.Metadata
	values := []string{
		m.Title, m.Description, m.Type, m.Publisher, m.Contributor, m.Format,
		m.Identifier.ID, m.Identifier.Scheme, m.Identifier.Value,
		m.Source, m.Language, m.Relation, m.Coverage, m.Cover, m.Generator,
	}
	values = append(values, m.Creators...)
	values = append(values, m.Subjects...)
	values = append(values, m.Rights...)
	for _, e := range m.Meta {
		values = append(values, e.Refines, e.Property, e.Scheme, e.ID, e.Value, e.Name, e.Content)
	}
	for _, it := range p.Manifest {
		values = append(values, it.ID, it.Href, it.MediaType, it.Properties)
	}
	for _, g := range p.Guide {
		values = append(values, g.Type, g.Title, g.Href)
	}
	for _, b := range p.Bindings {
		values = append(values, b.MediaType, b.Handler)
	}
	if err := xmlenc.CheckText(Filename, values...); err != nil {
		return err
	}

	ids := make(map[string]bool, len(p.Manifest))
	for _, it := range p.Manifest {
		if ids[it.ID] {
			return &xmlenc.EncodeError{Doc: Filename, Err: fmt.Errorf("duplicate manifest id %q", it.ID)}
		}
		ids[it.ID] = true
	}
	for _, ref := range p.Spine {
		if !ids[ref.IDRef] {
			return &xmlenc.EncodeError{Doc: Filename, Err: fmt.Errorf("spine references unknown id %q", ref.IDRef)}
		}
	}
	for _, b := range p.Bindings {
		if !ids[b.Handler] {
			return &xmlenc.EncodeError{Doc: Filename, Err: fmt.Errorf("binding handler %q not in manifest", b.Handler)}
		}
	}
	if p.TocID != "" && !ids[p.TocID] {
		return &xmlenc.EncodeError{Doc: Filename, Err: fmt.Errorf("navigation id %q not in manifest", p.TocID)}
	}
	return nil
}

func (p *Package) identifier() *identifierXML {
	id := p.Metadata.Identifier
	if id.Value == "" {
		return nil
	}
	return &identifierXML{ID: id.ID, Scheme: id.Scheme, Value: id.Value}
}

func (p *Package) uniqueID() string {
	if p.Metadata.Identifier.Value == "" {
		return ""
	}
	return p.Metadata.Identifier.ID
}

func (p *Package) guide() *guideXML {
	if len(p.Guide) == 0 {
		return nil
	}
	g := &guideXML{}
	for _, r := range p.Guide {
		g.References = append(g.References, referenceXML(r))
	}
	return g
}

func (p *Package) spine(toc string) spineXML {
	s := spineXML{Toc: toc}
	for _, ref := range p.Spine {
		s.ItemRefs = append(s.ItemRefs, itemRefXML(ref))
	}
	return s
}

func (p *Package) v2() packageV2 {
	m := p.Metadata
	md := metadataV2{
		XmlnsDC:     NamespaceDC,
		Title:       m.Title,
		Subject:     strings.Join(m.Subjects, ", "),
		Description: m.Description,
		Type:        m.Type,
		Publisher:   m.Publisher,
		Contributor: m.Contributor,
		Format:      m.Format,
		Identifier:  p.identifier(),
		Source:      m.Source,
		Language:    m.Language,
		Relation:    m.Relation,
		Coverage:    m.Coverage,
		Rights:      strings.Join(m.Rights, "; "),
	}
	if md.Identifier != nil && md.Identifier.Scheme == "" {
		md.Identifier.Scheme = identifierScheme(md.Identifier.Value)
	}
	for _, c := range m.Creators {
		md.Creators = append(md.Creators, creatorV2{Role: "aut", Value: c})
	}
	if !m.Published.IsZero() {
		md.Dates = append(md.Dates, dateV2{Event: "publication", Value: m.Published.UTC().Format(dateLayout)})
	}
	if !m.Modified.IsZero() {
		md.Dates = append(md.Dates, dateV2{Event: "modification", Value: m.Modified.UTC().Format(dateLayout)})
	}
	if m.Cover != "" {
		md.Meta = append(md.Meta, metaV2{Name: "cover", Content: m.Cover})
	}
	if m.Generator != "" {
		md.Meta = append(md.Meta, metaV2{Name: "generator", Content: m.Generator})
	}
	for _, e := range m.Meta {
		name, content := e.Name, e.Content
		if name == "" {
			name = e.Property
		}
		if content == "" {
			content = e.Value
		}
		md.Meta = append(md.Meta, metaV2{Name: name, Content: content})
	}

	doc := packageV2{
		XmlnsOPF: NamespaceOPF,
		Version:  format.EPUB2.PackageVersion(),
		UniqueID: p.uniqueID(),
		Metadata: md,
		Spine:    p.spine(p.TocID),
		Guide:    p.guide(),
	}
	for _, it := range p.Manifest {
		doc.Manifest.Items = append(doc.Manifest.Items, itemXML{ID: it.ID, Href: it.Href, MediaType: it.MediaType})
	}
	return doc
}

func (p *Package) v3() packageV3 {
	m := p.Metadata
	md := metadataV3{
		Title:       m.Title,
		Creators:    m.Creators,
		Subjects:    m.Subjects,
		Description: m.Description,
		Type:        m.Type,
		Publisher:   m.Publisher,
		Contributor: m.Contributor,
		Format:      m.Format,
		Identifier:  p.identifier(),
		Source:      m.Source,
		Language:    m.Language,
		Relation:    m.Relation,
		Coverage:    m.Coverage,
		Rights:      m.Rights,
	}
	if md.Identifier != nil {
		// opf:scheme is not part of EPUB 3.
		md.Identifier.Scheme = ""
	}
	if !m.Published.IsZero() {
		md.Date = m.Published.UTC().Format(timestampLayout)
	}
	if !m.Modified.IsZero() {
		md.Meta = append(md.Meta, metaV3{Property: "dcterms:modified", Value: m.Modified.UTC().Format(timestampLayout)})
	}
	if m.Generator != "" {
		md.Meta = append(md.Meta, metaV3{Name: "generator", Content: m.Generator})
	}
	for _, e := range m.Meta {
		mv := metaV3{ID: e.ID, Property: e.Property, Refines: e.Refines, Scheme: e.Scheme, Value: e.Value}
		if mv.Property == "" {
			mv.Name, mv.Content = e.Name, e.Content
		}
		if mv.Property != "" && mv.Value == "" {
			mv.Value = e.Content
		}
		md.Meta = append(md.Meta, mv)
	}

	doc := packageV3{
		XmlnsDC:  NamespaceDC,
		XmlnsXSI: NamespaceXSI,
		Version:  format.EPUB3.PackageVersion(),
		UniqueID: p.uniqueID(),
		Lang:     m.Language,
		Metadata: md,
		Spine:    p.spine(""),
		Guide:    p.guide(),
	}
	for _, it := range p.Manifest {
		props := it.Properties
		if it.ID == p.TocID {
			props = addProperty(props, "nav")
		}
		if m.Cover != "" && it.ID == m.Cover {
			props = addProperty(props, "cover-image")
		}
		doc.Manifest.Items = append(doc.Manifest.Items, itemXML{ID: it.ID, Href: it.Href, MediaType: it.MediaType, Properties: props})
	}
	if len(p.Bindings) > 0 {
		doc.Bindings = &bindingsXML{}
		for _, b := range p.Bindings {
			doc.Bindings.MediaTypes = append(doc.Bindings.MediaTypes, mediaTypeXML(b))
		}
	}
	return doc
}

func addProperty(props, prop string) string {
	for _, p := range strings.Fields(props) {
		if p == prop {
			return props
		}
	}
	if props == "" {
		return prop
	}
	return props + " " + prop
}

// identifierScheme guesses the opf:scheme of an identifier value.
func identifierScheme(value string) string {
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(lower, "urn:uuid:"):
		return "UUID"
	case strings.HasPrefix(lower, "urn:isbn:"), strings.HasPrefix(lower, "isbn"):
		return "ISBN"
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return "URI"
	default:
		return ""
	}
}

// PublicationTime parses a publication date in one of the layouts accepted
// for book metadata: a full RFC 3339 timestamp or a bare date.
func PublicationTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("epub: unrecognized date %q", s)
}
