package bindery

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/opf"
	"github.com/tsawler/bindery/output"
)

// sampleBook builds a cover plus S1 with child S2 and an image.
func sampleBook(t *testing.T, v format.Version) *Builder {
	t.Helper()
	dir := t.TempDir()
	b := newBuilder(t, v)
	b.AddCreator("Ada Lovelace").AddSubject("fiction").AddRights("CC-BY").SetPublisher("Bindery Press")

	if _, err := b.SetCover(writePNG(t, dir, "cover.png"), ""); err != nil {
		t.Fatal(err)
	}
	s1, err := b.AddSection("S1", "<p>One<br>line</p>")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddSubSection(s1, "S2", "<p>Two</p>"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddImage(writePNG(t, dir, "figure.png"), ""); err != nil {
		t.Fatal(err)
	}
	return b
}

func render(t *testing.T, b *Builder) *Bundle {
	t.Helper()
	bundle, err := b.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return bundle
}

func fileString(t *testing.T, bundle *Bundle, name string) string {
	t.Helper()
	data, ok := bundle.File(name)
	if !ok {
		t.Fatalf("bundle has no %s", name)
	}
	return string(data)
}

func TestRender_Layout(t *testing.T) {
	tests := []struct {
		version format.Version
		nav     string
	}{
		{format.EPUB2, "OEBPS/toc.ncx"},
		{format.EPUB3, "OEBPS/nav.xhtml"},
	}
	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			bundle := render(t, sampleBook(t, tt.version))

			want := []string{
				output.MimetypeFile,
				output.ContainerFile,
				"OEBPS/content.opf",
				tt.nav,
				"OEBPS/Text/cover.xhtml",
				"OEBPS/Text/section_2.xhtml",
				"OEBPS/Text/section_3.xhtml",
			}
			if len(bundle.Files) != len(want) {
				t.Fatalf("got %d files, want %d", len(bundle.Files), len(want))
			}
			for i, name := range want {
				if bundle.Files[i].Name != name {
					t.Errorf("file %d = %s, want %s", i, bundle.Files[i].Name, name)
				}
			}
			if len(bundle.Assets) != 2 || bundle.Assets[0].Name != "OEBPS/images/cover.png" {
				t.Errorf("assets = %+v", bundle.Assets)
			}

			root, err := output.ParseContainer([]byte(fileString(t, bundle, output.ContainerFile)))
			if err != nil || root != "OEBPS/content.opf" {
				t.Errorf("container rootfile = %q, %v", root, err)
			}
		})
	}
}

func TestRender_EPUB2Navigation(t *testing.T) {
	bundle := render(t, sampleBook(t, format.EPUB2))
	ncx := fileString(t, bundle, "OEBPS/toc.ncx")

	for _, want := range []string{
		`<meta name="dtb:uid" content="urn:uuid:00000000-0000-4000-8000-000000000000">`,
		`playOrder="0"`,
		`playOrder="1"`,
		`<content src="Text/section_2.xhtml">`,
		`<content src="Text/section_3.xhtml">`,
	} {
		if !strings.Contains(ncx, want) {
			t.Errorf("NCX missing %q\n%s", want, ncx)
		}
	}
	if strings.Contains(ncx, "cover.xhtml") || strings.Contains(ncx, `playOrder="2"`) {
		t.Errorf("cover should not appear in the navigation\n%s", ncx)
	}

	doc := fileString(t, bundle, "OEBPS/Text/section_2.xhtml")
	if !strings.Contains(doc, "XHTML 1.1") || !strings.Contains(doc, "<br/>") {
		t.Errorf("EPUB 2 section document:\n%s", doc)
	}
}

func TestRender_EPUB3Navigation(t *testing.T) {
	bundle := render(t, sampleBook(t, format.EPUB3))
	nav := fileString(t, bundle, "OEBPS/nav.xhtml")

	s1 := strings.Index(nav, `<a href="Text/section_2.xhtml">S1</a>`)
	s2 := strings.Index(nav, `<a href="Text/section_3.xhtml">S2</a>`)
	closeLi := strings.Index(nav, "</li>")
	if s1 < 0 || s2 < 0 || !(s1 < s2 && s2 < closeLi) {
		t.Errorf("S2 is not nested inside S1's list item\n%s", nav)
	}
}

type packageDoc struct {
	Metadata struct {
		Meta []struct {
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Property string `xml:"property,attr"`
			Value    string `xml:",chardata"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc  string `xml:"toc,attr"`
		Refs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
	Guide struct {
		Refs []struct {
			Type string `xml:"type,attr"`
			Href string `xml:"href,attr"`
		} `xml:"reference"`
	} `xml:"guide"`
}

func decodePackage(t *testing.T, bundle *Bundle) packageDoc {
	t.Helper()
	var doc packageDoc
	if err := xml.Unmarshal([]byte(fileString(t, bundle, "OEBPS/content.opf")), &doc); err != nil {
		t.Fatalf("decoding package: %v", err)
	}
	return doc
}

func TestRender_Package(t *testing.T) {
	for _, v := range []format.Version{format.EPUB2, format.EPUB3} {
		t.Run(v.String(), func(t *testing.T) {
			doc := decodePackage(t, render(t, sampleBook(t, v)))

			hrefs := make(map[string]string)
			for _, it := range doc.Manifest.Items {
				hrefs[it.ID] = it.Href
			}
			var spine []string
			for _, r := range doc.Spine.Refs {
				spine = append(spine, hrefs[r.IDRef])
			}
			want := []string{"Text/cover.xhtml", "Text/section_2.xhtml", "Text/section_3.xhtml"}
			if strings.Join(spine, ",") != strings.Join(want, ",") {
				t.Errorf("spine = %v, want %v", spine, want)
			}
			if len(doc.Manifest.Items) != 6 {
				t.Errorf("got %d manifest items, want 6", len(doc.Manifest.Items))
			}
			if len(doc.Guide.Refs) != 1 || doc.Guide.Refs[0].Type != "cover" {
				t.Errorf("guide = %+v", doc.Guide.Refs)
			}

			switch v {
			case format.EPUB2:
				if doc.Spine.Toc != "ncx" {
					t.Errorf("spine toc = %q", doc.Spine.Toc)
				}
				found := false
				for _, m := range doc.Metadata.Meta {
					if m.Name == "cover" && hrefs[m.Content] == "images/cover.png" {
						found = true
					}
				}
				if !found {
					t.Error("missing <meta name=\"cover\"> pointing at the cover image")
				}
			case format.EPUB3:
				props := make(map[string]string)
				for _, it := range doc.Manifest.Items {
					props[it.Href] = it.Properties
				}
				if props["nav.xhtml"] != "nav" || props["images/cover.png"] != "cover-image" {
					t.Errorf("manifest properties = %v", props)
				}
				modified := ""
				for _, m := range doc.Metadata.Meta {
					if m.Property == "dcterms:modified" {
						modified = m.Value
					}
				}
				if modified != "2024-05-01T12:00:00Z" {
					t.Errorf("dcterms:modified = %q", modified)
				}
			}
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	b := sampleBook(t, format.EPUB2)
	first := render(t, b)
	second := render(t, b)
	for i := range first.Files {
		if string(first.Files[i].Data) != string(second.Files[i].Data) {
			t.Errorf("%s differs between renders", first.Files[i].Name)
		}
	}
}

func TestRender_GuideAndBindings(t *testing.T) {
	b := sampleBook(t, format.EPUB3)
	b.AddGuide("text", "Start", "section_2.xhtml").
		AddBinding("application/x-demo", "section_3.xhtml").
		AddMeta(opf.Meta{Property: "belongs-to-collection", Value: "Series"}).
		AddNavMetadata("generator", "bindery")

	bundle := render(t, b)
	pkg := fileString(t, bundle, "OEBPS/content.opf")
	for _, want := range []string{
		`<reference type="text" title="Start" href="Text/section_2.xhtml">`,
		`<mediaType media-type="application/x-demo" handler="section_3.xhtml">`,
		`<meta property="belongs-to-collection">Series</meta>`,
	} {
		if !strings.Contains(pkg, want) {
			t.Errorf("package missing %q\n%s", want, pkg)
		}
	}
	if nav := fileString(t, bundle, "OEBPS/nav.xhtml"); !strings.Contains(nav, `<meta name="generator" content="bindery">`) {
		t.Errorf("nav head missing metadata\n%s", nav)
	}

	b.AddGuide("toc", "Contents", "missing.xhtml")
	if _, err := b.Render(); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("guide to a missing section: got %v, want ErrSectionNotFound", err)
	}
}

func TestRender_EncodingFailure(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	if _, err := b.AddSection("Bad\x00Title", "<p>x</p>"); err != nil {
		t.Fatal(err)
	}
	_, err := b.Render()
	if !errors.Is(err, ErrEncodingFailed) {
		t.Fatalf("got %v, want ErrEncodingFailed", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.ID != "section_1.xhtml" {
		t.Errorf("error does not name the section: %v", err)
	}
}

func TestWriteZip(t *testing.T) {
	b := sampleBook(t, format.EPUB3)
	path := filepath.Join(t.TempDir(), "book.epub")
	if err := b.WriteZip(path); err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	if zr.File[0].Name != output.MimetypeFile || zr.File[0].Method != zip.Store {
		t.Errorf("first entry = %s", zr.File[0].Name)
	}
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"OEBPS/content.opf", "OEBPS/nav.xhtml", "OEBPS/images/figure.png", "OEBPS/Text/section_3.xhtml"} {
		if !names[want] {
			t.Errorf("archive missing %s", want)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := format.DetectFromMagic(data); got != format.EPUB {
		t.Errorf("archive detected as %q", got)
	}
}

func TestWriteDir(t *testing.T) {
	b := sampleBook(t, format.EPUB2)
	dir := filepath.Join(t.TempDir(), "out")
	if err := b.WriteDir(dir); err != nil {
		t.Fatalf("WriteDir failed: %v", err)
	}
	for _, name := range []string{"mimetype", "META-INF/container.xml", "OEBPS/toc.ncx", "OEBPS/images/cover.png"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestWriteZip_BadPath(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	err := b.WriteZip(filepath.Join(t.TempDir(), "no", "such", "dir", "book.epub"))
	if !errors.Is(err, ErrIOFailure) {
		t.Errorf("got %v, want ErrIOFailure", err)
	}
}
