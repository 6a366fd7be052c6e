package bindery

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/resource"
)

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) RecognizeFile(string) (string, error) { return f.text, f.err }

func TestSetCover_Twice(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	dir := t.TempDir()
	first := writePNG(t, dir, "first.png")
	second := writePNG(t, dir, "second.png")
	css := writeFile(t, dir, "cover.css", "img { width: 100% }")

	name, err := b.SetCover(first, css)
	if err != nil {
		t.Fatalf("first SetCover: %v", err)
	}
	if name != CoverFilename {
		t.Errorf("cover filename = %q", name)
	}
	if _, err := b.SetCover(second, ""); err != nil {
		t.Fatalf("second SetCover: %v", err)
	}

	if b.SectionCount() != 1 {
		t.Errorf("got %d sections, want only the cover", b.SectionCount())
	}
	if n := countClass(b, resource.Image); n != 1 {
		t.Errorf("got %d images, want 1", n)
	}
	if n := countClass(b, resource.Stylesheet); n != 0 {
		t.Errorf("stylesheet of the first cover left behind: %d", n)
	}
	_, img, ok := b.Cover()
	if !ok || img != "second.png" {
		t.Errorf("active cover image = %q, %v", img, ok)
	}

	s, _ := b.Section(CoverFilename)
	if len(s.Document.Styles) != 1 || !strings.Contains(s.Document.Styles[0].Content, "text-align: center") {
		t.Error("cover without stylesheet should carry the default inline style")
	}
	if !strings.Contains(s.Document.Body, `src="../images/second.png"`) {
		t.Errorf("cover body = %s", s.Document.Body)
	}
}

func TestSetCover_KeepsPosition(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	dir := t.TempDir()

	if _, err := b.AddSection("Chapter", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetCover(writePNG(t, dir, "a.png"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddSection("Later", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetCover(writePNG(t, dir, "b.png"), ""); err != nil {
		t.Fatal(err)
	}
	if b.SectionCount() != 3 {
		t.Errorf("got %d sections, want 3", b.SectionCount())
	}
}

func TestSetCover_Validation(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	dir := t.TempDir()

	tests := []struct {
		name  string
		image string
		css   string
		want  error
	}{
		{"missing image", filepath.Join(dir, "missing.png"), "", ErrSourceNotFound},
		{"directory", dir, "", ErrSourceNotFound},
		{"missing stylesheet", writePNG(t, dir, "ok.png"), filepath.Join(dir, "missing.css"), ErrSourceNotFound},
		{"text with image extension", writeFile(t, dir, "fake.png", "not an image"), "", ErrMediaTypeUnknown},
		{"unknown extension", writeFile(t, dir, "notes.txt", "hello"), "", ErrMediaTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SetCover(tt.image, tt.css)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if _, _, ok := b.Cover(); ok {
		t.Error("failed SetCover calls installed a cover")
	}
	if b.SectionCount() != 0 || len(b.Resources()) != 0 {
		t.Error("failed SetCover calls changed the builder")
	}
}

func TestSetCover_RestoresPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "good.png")
	bad := writePNG(t, dir, "bad.png")

	// The builder's own check passes; the registry's check fails after the
	// old cover has been taken down.
	stater := &flakyStater{ok: 1, calls: make(map[string]int), fail: bad}
	b := newBuilder(t, format.EPUB3, WithStater(stater))

	if _, err := b.AddSection("Before", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetCover(good, ""); err != nil {
		t.Fatal(err)
	}

	_, err := b.SetCover(bad, "")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("got %v, want ErrSourceNotFound", err)
	}

	filename, img, ok := b.Cover()
	if !ok || img != "good.png" || filename != CoverFilename {
		t.Errorf("previous cover not restored: %q %q %v", filename, img, ok)
	}
	if _, ok := b.Section(CoverFilename); !ok {
		t.Error("cover section not restored")
	}
	if n := countClass(b, resource.Image); n != 1 {
		t.Errorf("got %d images, want 1", n)
	}
	if b.SectionCount() != 2 {
		t.Errorf("got %d sections, want 2", b.SectionCount())
	}
}

func TestSetCover_RestoreKeepsManifestOrder(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "good.png")
	bad := writePNG(t, dir, "bad.png")
	stater := &flakyStater{ok: 1, calls: make(map[string]int), fail: bad}
	b := newBuilder(t, format.EPUB3, WithStater(stater))

	if _, err := b.AddImage(writePNG(t, dir, "a.png"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetCover(good, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddImage(writePNG(t, dir, "z.png"), ""); err != nil {
		t.Fatal(err)
	}

	names := func() string {
		var out []string
		for _, e := range b.Resources() {
			out = append(out, e.Name)
		}
		return strings.Join(out, ",")
	}
	before := names()

	if _, err := b.SetCover(bad, ""); err == nil {
		t.Fatal("expected SetCover to fail")
	}
	if after := names(); after != before {
		t.Errorf("resource order after restore = %s, want %s", after, before)
	}
}

func TestAddSubSection_CoverParent(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	dir := t.TempDir()
	if _, err := b.SetCover(writePNG(t, dir, "a.png"), ""); err != nil {
		t.Fatal(err)
	}

	_, err := b.AddSubSection(CoverFilename, "Hidden chapter", "<p>hidden</p>")
	if !errors.Is(err, ErrCoverParent) {
		t.Fatalf("got %v, want ErrCoverParent", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.ID != CoverFilename {
		t.Errorf("error = %#v, want *Error naming the cover", err)
	}
	if b.SectionCount() != 1 {
		t.Errorf("got %d sections, want only the cover", b.SectionCount())
	}

	// Replacing the cover leaves every other section in place.
	if _, err := b.AddSection("Chapter", "<p>kept</p>"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SetCover(writePNG(t, dir, "b.png"), ""); err != nil {
		t.Fatal(err)
	}
	if b.SectionCount() != 2 {
		t.Errorf("got %d sections after replacing the cover, want 2", b.SectionCount())
	}
}

func TestRemoveCover(t *testing.T) {
	b := newBuilder(t, format.EPUB3)
	if b.RemoveCover() {
		t.Error("RemoveCover reported a cover on an empty builder")
	}
	if _, err := b.SetCover(writePNG(t, t.TempDir(), "c.png"), ""); err != nil {
		t.Fatal(err)
	}
	if !b.RemoveCover() {
		t.Error("RemoveCover did not report the active cover")
	}
	if b.SectionCount() != 0 || len(b.Resources()) != 0 {
		t.Error("RemoveCover left cover pieces behind")
	}
}

func TestCoverAltText(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		rec      Recognizer
		want     string
		warnings int
	}{
		{"no recognizer", nil, `alt="Test Book"`, 0},
		{"recognized text", fakeRecognizer{text: "  THE\nTEST   BOOK "}, `alt="THE TEST BOOK"`, 0},
		{"nothing recognized", fakeRecognizer{}, `alt="Test Book"`, 0},
		{"recognizer error", fakeRecognizer{err: errors.New("tesseract missing")}, `alt="Test Book"`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.rec != nil {
				opts = append(opts, WithRecognizer(tt.rec))
			}
			b := newBuilder(t, format.EPUB3, opts...)
			if _, err := b.SetCover(writePNG(t, dir, "cover.png"), ""); err != nil {
				t.Fatal(err)
			}
			s, _ := b.Section(CoverFilename)
			if !strings.Contains(s.Document.Body, tt.want) {
				t.Errorf("cover body %s missing %s", s.Document.Body, tt.want)
			}
			if got := len(b.Warnings()); got != tt.warnings {
				t.Errorf("got %d warnings, want %d", got, tt.warnings)
			}
		})
	}
}
