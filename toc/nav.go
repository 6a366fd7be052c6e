package toc

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/internal/xmlenc"
	"github.com/tsawler/bindery/xhtml"
)

// Document names used in encoding errors.
const (
	NCXFilename = "toc.ncx"
	NavFilename = "nav.xhtml"
)

const (
	ncxNamespace = "http://www.daisy.org/z3986/2005/ncx/"
	ncxDoctype   = `<!DOCTYPE ncx PUBLIC "-//NISO//DTD ncx 2005-1//EN" "http://www.daisy.org/z3986/2005/ncx-2005-1.dtd">`
	depthMeta    = "dtb:depth"
)

// Meta is a name/content pair written into the document head.
type Meta struct {
	Name    string
	Content string
}

// Nav is a complete table of contents.
type Nav struct {
	Title    string
	Lang     string
	Metadata []Meta
	Elements []*Element
}

// New creates an empty table of contents.
func New(title, lang string) *Nav {
	return &Nav{Title: title, Lang: lang}
}

// AddMetadata appends a head metadata pair.
func (n *Nav) AddMetadata(name, content string) *Nav {
	n.Metadata = append(n.Metadata, Meta{Name: name, Content: content})
	return n
}

// AddElement appends a top-level element.
func (n *Nav) AddElement(e *Element) *Nav {
	n.Elements = append(n.Elements, e)
	return n
}

// Depth returns the deepest nesting level of the elements, 0 when empty.
func (n *Nav) Depth() int {
	deepest := 0
	var visit func(els []*Element, depth int)
	visit = func(els []*Element, depth int) {
		for _, e := range els {
			if depth > deepest {
				deepest = depth
			}
			visit(e.Children, depth+1)
		}
	}
	visit(n.Elements, 1)
	return deepest
}

// Encode renders the document for the given version: NCX for EPUB 2 and the
// XHTML nav document for EPUB 3.
func (n *Nav) Encode(v format.Version) (string, error) {
	switch v {
	case format.EPUB2:
		return n.EncodeNCX()
	case format.EPUB3:
		return n.EncodeNav()
	default:
		return "", &xmlenc.EncodeError{Doc: "navigation", Err: fmt.Errorf("unsupported version %d", v)}
	}
}

func (n *Nav) checkText(doc string) error {
	values := []string{n.Title, n.Lang}
	for _, m := range n.Metadata {
		values = append(values, m.Name, m.Content)
	}
	for _, root := range n.Elements {
		root.Walk(func(e *Element) bool {
			values = append(values, e.URL, e.Title)
			return true
		})
	}
	return xmlenc.CheckText(doc, values...)
}

type ncxDocument struct {
	XMLName xml.Name  `xml:"http://www.daisy.org/z3986/2005/ncx/ ncx"`
	Version string    `xml:"version,attr"`
	Lang    string    `xml:"xml:lang,attr,omitempty"`
	Head    ncxHead   `xml:"head"`
	Title   string    `xml:"docTitle>text"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxHead struct {
	Meta []ncxMeta `xml:"meta"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string        `xml:"id,attr"`
	PlayOrder int           `xml:"playOrder,attr"`
	Label     string        `xml:"navLabel>text"`
	Content   ncxContent    `xml:"content"`
	Children  []ncxNavPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// EncodeNCX renders the EPUB 2 NCX document. Every navPoint receives a
// playOrder from a pre-order counter that starts at 0 on each call, so
// encoding an unchanged tree twice yields identical output. A dtb:depth
// entry holding the maximum depth is added unless one was supplied.
func (n *Nav) EncodeNCX() (string, error) {
	if err := n.checkText(NCXFilename); err != nil {
		return "", err
	}

	doc := ncxDocument{
		Version: "2005-1",
		Lang:    n.Lang,
		Title:   n.Title,
	}

	hasDepth := false
	for _, m := range n.Metadata {
		doc.Head.Meta = append(doc.Head.Meta, ncxMeta(m))
		if m.Name == depthMeta {
			hasDepth = true
		}
	}
	if !hasDepth {
		doc.Head.Meta = append(doc.Head.Meta, ncxMeta{Name: depthMeta, Content: strconv.Itoa(n.Depth())})
	}

	order := 0
	doc.NavMap.NavPoints = navPoints(n.Elements, &order)

	return xmlenc.Marshal(NCXFilename, doc, ncxDoctype)
}

func navPoints(els []*Element, order *int) []ncxNavPoint {
	if len(els) == 0 {
		return nil
	}
	points := make([]ncxNavPoint, 0, len(els))
	for _, e := range els {
		p := ncxNavPoint{
			ID:        fmt.Sprintf("navPoint-%d", *order+1),
			PlayOrder: *order,
			Label:     e.Title,
			Content:   ncxContent{Src: e.URL},
		}
		*order++
		p.Children = navPoints(e.Children, order)
		points = append(points, p)
	}
	return points
}

type navDocument struct {
	XMLName   xml.Name `xml:"http://www.w3.org/1999/xhtml html"`
	XmlnsEpub string   `xml:"xmlns:epub,attr"`
	XMLLang   string   `xml:"xml:lang,attr,omitempty"`
	Lang      string   `xml:"lang,attr,omitempty"`
	Head      navHead  `xml:"head"`
	Body      navBody  `xml:"body"`
}

type navHead struct {
	Title string    `xml:"title"`
	Meta  []ncxMeta `xml:"meta"`
}

type navBody struct {
	Nav navTOC `xml:"nav"`
}

type navTOC struct {
	Type    string  `xml:"epub:type,attr"`
	ID      string  `xml:"id,attr"`
	Heading string  `xml:"h1"`
	List    navList `xml:"ol"`
}

type navList struct {
	Items []navItem `xml:"li"`
}

type navItem struct {
	Link navAnchor `xml:"a"`
	List *navList  `xml:"ol,omitempty"`
}

type navAnchor struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

// EncodeNav renders the EPUB 3 navigation document: a <nav epub:type="toc">
// holding nested ordered lists.
func (n *Nav) EncodeNav() (string, error) {
	if err := n.checkText(NavFilename); err != nil {
		return "", err
	}

	doc := navDocument{
		XmlnsEpub: xhtml.NamespaceOPS,
		XMLLang:   n.Lang,
		Lang:      n.Lang,
		Head:      navHead{Title: n.Title},
		Body: navBody{Nav: navTOC{
			Type:    "toc",
			ID:      "toc",
			Heading: n.Title,
			List:    navList{Items: navItems(n.Elements)},
		}},
	}
	for _, m := range n.Metadata {
		doc.Head.Meta = append(doc.Head.Meta, ncxMeta(m))
	}

	return xmlenc.Marshal(NavFilename, doc, xhtml.DoctypeHTML5)
}

func navItems(els []*Element) []navItem {
	items := make([]navItem, 0, len(els))
	for _, e := range els {
		item := navItem{Link: navAnchor{Href: e.URL, Text: e.Title}}
		if len(e.Children) > 0 {
			item.List = &navList{Items: navItems(e.Children)}
		}
		items = append(items, item)
	}
	return items
}
