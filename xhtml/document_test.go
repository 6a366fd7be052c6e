package xhtml

import (
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/tsawler/bindery/internal/xmlenc"
)

type decodedDoc struct {
	XMLName xml.Name `xml:"html"`
	Lang    string   `xml:"lang,attr"`
	Head    struct {
		Title string `xml:"title"`
		Links []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		Styles []string `xml:"style"`
	} `xml:"head"`
	Body struct {
		Dir   string `xml:"dir,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"body"`
}

func TestEncode(t *testing.T) {
	doc := New("Chapter 1", "<h1>Chapter 1</h1><p>Fish &amp; chips<br>and peas</p>")
	doc.Lang = "en"
	doc.AddStylesheet("../css/style.css").AddStyle("p { margin: 0; }")

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if !strings.HasPrefix(out, xml.Header+DoctypeHTML5) {
		t.Errorf("missing prologue: %q", out[:80])
	}
	for _, want := range []string{
		`xmlns="http://www.w3.org/1999/xhtml"`,
		`xmlns:epub="http://www.idpf.org/2007/ops"`,
		`xml:lang="en"`,
		`<br/>`,
		`Fish &amp; chips`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	var decoded decodedDoc
	if err := xml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if decoded.Head.Title != "Chapter 1" {
		t.Errorf("title = %q", decoded.Head.Title)
	}
	if len(decoded.Head.Links) != 1 || decoded.Head.Links[0].Href != "../css/style.css" || decoded.Head.Links[0].Rel != "stylesheet" {
		t.Errorf("unexpected links: %+v", decoded.Head.Links)
	}
	if len(decoded.Head.Styles) != 1 || decoded.Head.Styles[0] != "p { margin: 0; }" {
		t.Errorf("unexpected styles: %+v", decoded.Head.Styles)
	}
	if decoded.Body.Dir != "auto" {
		t.Errorf("body dir = %q, want auto", decoded.Body.Dir)
	}
}

func TestEncode_EmptyBody(t *testing.T) {
	out, err := New("Empty", "  ").Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.Contains(out, "<link") || strings.Contains(out, "<style") {
		t.Errorf("unexpected optional elements:\n%s", out)
	}
	if strings.Contains(out, "lang=") {
		t.Errorf("expected no lang attributes:\n%s", out)
	}
}

func TestEncode_Doctype(t *testing.T) {
	doc := New("Old", "<p>x</p>")
	doc.Doctype = DoctypeXHTML11

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(out, "-//W3C//DTD XHTML 1.1//EN") {
		t.Errorf("expected XHTML 1.1 doctype:\n%s", out)
	}
}

func TestEncode_XHTML11Attributes(t *testing.T) {
	tests := []struct {
		dir     string
		wantDir string
	}{
		{"auto", ""},
		{"", ""},
		{"rtl", "rtl"},
	}
	for _, tt := range tests {
		doc := New("Old", "<p>x</p>")
		doc.Doctype = DoctypeXHTML11
		doc.Lang = "fr"
		doc.Dir = tt.dir

		out, err := doc.Encode()
		if err != nil {
			t.Fatalf("Encode(dir=%q) failed: %v", tt.dir, err)
		}
		if !strings.Contains(out, `xml:lang="fr"`) {
			t.Errorf("dir=%q: expected xml:lang:\n%s", tt.dir, out)
		}
		if strings.Contains(out, ` lang="fr"`) {
			t.Errorf("dir=%q: unexpected lang attribute:\n%s", tt.dir, out)
		}

		var decoded decodedDoc
		if err := xml.Unmarshal([]byte(out), &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Body.Dir != tt.wantDir {
			t.Errorf("dir=%q: body dir = %q, want %q", tt.dir, decoded.Body.Dir, tt.wantDir)
		}
	}
}

func TestEncode_Failures(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
	}{
		{"control character in title", New("bad\x02title", "<p>x</p>")},
		{"script that is not XML", New("Script", "<script>if (a < b && c) {}</script>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.Encode()
			if !errors.Is(err, xmlenc.ErrEncodingFailed) {
				t.Errorf("expected ErrEncodingFailed, got %v", err)
			}
		})
	}
}

func TestNormalizeFragment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"void element", "<p>a<br>b</p>", "<p>a<br/>b</p>"},
		{"image", `<img src="../images/cover.jpg" alt="Cover">`, `<img src="../images/cover.jpg" alt="Cover"/>`},
		{"unclosed paragraph", "<p>one<p>two", "<p>one</p><p>two</p>"},
		{"entity", "<p>&copy; 2024</p>", "<p>© 2024</p>"},
		{"bare text", "just text", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFragment(tt.in)
			if err != nil {
				t.Fatalf("NormalizeFragment failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeFragment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
