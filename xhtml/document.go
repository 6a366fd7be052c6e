// Package xhtml builds the body-wrapped XHTML content documents that hold
// each section of a book.
package xhtml

import (
	"encoding/xml"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tsawler/bindery/internal/xmlenc"
)

// Namespaces used by content documents.
const (
	NamespaceXHTML = "http://www.w3.org/1999/xhtml"
	NamespaceOPS   = "http://www.idpf.org/2007/ops"
)

// Doctype lines for the two EPUB generations.
const (
	DoctypeHTML5   = "<!DOCTYPE html>"
	DoctypeXHTML11 = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`
)

// Link is a <link> element in the document head.
type Link struct {
	Href string
	Rel  string
	Type string
}

// Style is an inline <style> block.
type Style struct {
	Type    string
	Content string
}

// Document is a complete XHTML content document wrapping a caller supplied
// body fragment.
type Document struct {
	Title   string
	Lang    string
	Doctype string // defaults to DoctypeHTML5
	Dir     string // body direction, defaults to "auto"; XHTML 1.1 keeps only ltr or rtl
	Links   []Link
	Styles  []Style
	Body    string // raw HTML fragment
}

// New creates a document with the given title and body fragment.
func New(title, body string) *Document {
	return &Document{
		Title: title,
		Body:  body,
		Dir:   "auto",
	}
}

// AddLink appends a link to the head.
func (d *Document) AddLink(link Link) *Document {
	d.Links = append(d.Links, link)
	return d
}

// AddStylesheet links a CSS file.
func (d *Document) AddStylesheet(href string) *Document {
	return d.AddLink(Link{Href: href, Rel: "stylesheet", Type: "text/css"})
}

// AddStyle appends an inline CSS block.
func (d *Document) AddStyle(css string) *Document {
	d.Styles = append(d.Styles, Style{Type: "text/css", Content: css})
	return d
}

// SetBody replaces the body fragment.
func (d *Document) SetBody(body string) *Document {
	d.Body = body
	return d
}

type htmlRoot struct {
	XMLName   xml.Name `xml:"http://www.w3.org/1999/xhtml html"`
	XmlnsEpub string   `xml:"xmlns:epub,attr"`
	XMLLang   string   `xml:"xml:lang,attr,omitempty"`
	Lang      string   `xml:"lang,attr,omitempty"`
	Head      htmlHead `xml:"head"`
	Body      htmlBody `xml:"body"`
}

type htmlHead struct {
	Title  string      `xml:"title"`
	Links  []htmlLink  `xml:"link"`
	Styles []htmlStyle `xml:"style"`
}

type htmlLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type htmlStyle struct {
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type htmlBody struct {
	Dir   string `xml:"dir,attr,omitempty"`
	Inner string `xml:",innerxml"`
}

// Encode renders the complete document. The body fragment is parsed as HTML
// and re-serialized so that void elements are self-closed and text is
// escaped; fragments that still do not form well-formed XML fail with an
// error matching xmlenc.ErrEncodingFailed.
func (d *Document) Encode() (string, error) {
	if err := xmlenc.CheckText("content document", d.Title, d.Lang); err != nil {
		return "", err
	}

	body, err := NormalizeFragment(d.Body)
	if err != nil {
		return "", &xmlenc.EncodeError{Doc: "content document", Err: err}
	}

	root := htmlRoot{
		XmlnsEpub: NamespaceOPS,
		XMLLang:   d.Lang,
		Lang:      d.Lang,
		Head:      htmlHead{Title: d.Title},
		Body:      htmlBody{Dir: d.Dir, Inner: body},
	}
	if d.Doctype == DoctypeXHTML11 {
		// XHTML 1.1 has neither the lang attribute nor dir="auto".
		root.Lang = ""
		if d.Dir != "ltr" && d.Dir != "rtl" {
			root.Body.Dir = ""
		}
	}
	for _, l := range d.Links {
		root.Head.Links = append(root.Head.Links, htmlLink(l))
	}
	for _, s := range d.Styles {
		root.Head.Styles = append(root.Head.Styles, htmlStyle(s))
	}

	doctype := d.Doctype
	if doctype == "" {
		doctype = DoctypeHTML5
	}
	return xmlenc.Marshal("content document", root, doctype)
}

// NormalizeFragment parses an HTML body fragment and renders it back in an
// XML-compatible serialization.
func NormalizeFragment(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}

	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
