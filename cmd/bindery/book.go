package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/bindery"
	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/opf"
)

// Book is the YAML description of a book. Paths are relative to the
// directory holding the YAML file.
type Book struct {
	Title       string   `yaml:"title"`
	Version     string   `yaml:"version"`
	Language    string   `yaml:"language"`
	Identifier  string   `yaml:"identifier"`
	Creators    []string `yaml:"creators"`
	Subjects    []string `yaml:"subjects"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Publisher   string   `yaml:"publisher"`
	Contributor string   `yaml:"contributor"`
	Format      string   `yaml:"format"`
	Source      string   `yaml:"source"`
	Relation    string   `yaml:"relation"`
	Coverage    string   `yaml:"coverage"`
	Rights      []string `yaml:"rights"`
	Published   string   `yaml:"published"`

	Cover     *Cover    `yaml:"cover"`
	Resources Resources `yaml:"resources"`
	Sections  []Section `yaml:"sections"`
	Guide     []Guide   `yaml:"guide"`
	Meta      []Meta    `yaml:"meta"`
	NavMeta   []Meta    `yaml:"nav_meta"`
}

// Cover names the cover image and an optional stylesheet.
type Cover struct {
	Image      string `yaml:"image"`
	Stylesheet string `yaml:"stylesheet"`
}

// Resources lists glob patterns per resource class.
type Resources struct {
	Images      []string `yaml:"images"`
	Fonts       []string `yaml:"fonts"`
	Videos      []string `yaml:"videos"`
	Audios      []string `yaml:"audios"`
	Stylesheets []string `yaml:"stylesheets"`
}

// Section is one entry of the section tree. The body comes from File when
// set, otherwise from Body.
type Section struct {
	Title      string    `yaml:"title"`
	Filename   string    `yaml:"filename"`
	File       string    `yaml:"file"`
	Body       string    `yaml:"body"`
	Stylesheet string    `yaml:"stylesheet"`
	Children   []Section `yaml:"children"`
}

// Guide is a guide reference to a section filename.
type Guide struct {
	Type     string `yaml:"type"`
	Title    string `yaml:"title"`
	Filename string `yaml:"filename"`
}

// Meta is a free-form metadata entry.
type Meta struct {
	Name     string `yaml:"name"`
	Content  string `yaml:"content"`
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
	Refines  string `yaml:"refines"`
}

// LoadBook reads and validates a YAML book description.
func LoadBook(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var book Book
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if book.Title == "" {
		return nil, fmt.Errorf("%s: title is required", path)
	}
	if _, err := format.ParseVersion(book.Version); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &book, nil
}

// Build creates a builder for the book. base is the directory that relative
// paths are resolved against.
func (bk *Book) Build(base string, opts ...bindery.Option) (*bindery.Builder, error) {
	version, err := format.ParseVersion(bk.Version)
	if err != nil {
		return nil, err
	}
	if bk.Language != "" {
		opts = append(opts, bindery.WithLanguage(bk.Language))
	}
	if bk.Identifier != "" {
		opts = append(opts, bindery.WithIdentifier(bk.Identifier))
	}

	b, err := bindery.New(bk.Title, version, opts...)
	if err != nil {
		return nil, err
	}

	for _, c := range bk.Creators {
		b.AddCreator(c)
	}
	for _, s := range bk.Subjects {
		b.AddSubject(s)
	}
	for _, r := range bk.Rights {
		b.AddRights(r)
	}
	b.SetDescription(bk.Description).
		SetType(bk.Type).
		SetPublisher(bk.Publisher).
		SetContributor(bk.Contributor).
		SetFormat(bk.Format).
		SetSource(bk.Source).
		SetRelation(bk.Relation).
		SetCoverage(bk.Coverage)
	if bk.Published != "" {
		t, err := opf.PublicationTime(bk.Published)
		if err != nil {
			return nil, err
		}
		b.SetPublished(t)
	}
	for _, m := range bk.Meta {
		b.AddMeta(opf.Meta{Name: m.Name, Content: m.Content, Property: m.Property, Value: m.Value, Refines: m.Refines})
	}
	for _, m := range bk.NavMeta {
		b.AddNavMetadata(m.Name, m.Content)
	}

	if bk.Cover != nil && bk.Cover.Image != "" {
		css := ""
		if bk.Cover.Stylesheet != "" {
			css = resolve(base, bk.Cover.Stylesheet)
		}
		if _, err := b.SetCover(resolve(base, bk.Cover.Image), css); err != nil {
			return nil, err
		}
	}

	if err := bk.addResources(b, base); err != nil {
		return nil, err
	}
	if err := addSections(b, base, "", bk.Sections); err != nil {
		return nil, err
	}
	for _, g := range bk.Guide {
		b.AddGuide(g.Type, g.Title, g.Filename)
	}
	return b, nil
}

func (bk *Book) addResources(b *bindery.Builder, base string) error {
	classes := []struct {
		patterns []string
		add      func(source, name string) (string, error)
	}{
		{bk.Resources.Stylesheets, b.AddStylesheet},
		{bk.Resources.Fonts, b.AddFont},
		{bk.Resources.Images, b.AddImage},
		{bk.Resources.Videos, b.AddVideo},
		{bk.Resources.Audios, b.AddAudio},
	}
	for _, c := range classes {
		files, err := expand(base, c.patterns)
		if err != nil {
			return err
		}
		for _, f := range files {
			if _, err := c.add(f, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func addSections(b *bindery.Builder, base, parent string, sections []Section) error {
	for _, s := range sections {
		body := s.Body
		if s.File != "" {
			data, err := os.ReadFile(resolve(base, s.File))
			if err != nil {
				return err
			}
			body = string(data)
		}

		var opts []bindery.SectionOption
		if s.Filename != "" {
			opts = append(opts, bindery.SectionFilename(s.Filename))
		}
		if s.Stylesheet != "" {
			opts = append(opts, bindery.SectionStylesheet(resolve(base, s.Stylesheet)))
		}

		name, err := b.AddSubSection(parent, s.Title, body, opts...)
		if err != nil {
			return err
		}
		if err := addSections(b, base, name, s.Children); err != nil {
			return err
		}
	}
	return nil
}

// expand resolves glob patterns below base. Matches are returned sorted and
// without duplicates; a pattern that matches nothing is an error.
func expand(base string, patterns []string) ([]string, error) {
	fsys := os.DirFS(base)
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		if filepath.IsAbs(p) {
			out = append(out, p)
			continue
		}
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(p), doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q: %w", p, errNoMatch)
		}
		sort.Strings(matches)
		for _, m := range matches {
			full := filepath.Join(base, filepath.FromSlash(m))
			if !seen[full] {
				seen[full] = true
				out = append(out, full)
			}
		}
	}
	return out, nil
}

var errNoMatch = errors.New("no files match")

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, filepath.FromSlash(p))
}
