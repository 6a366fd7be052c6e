// Package resource implements the per-class registry that maps the internal
// names of book assets (images, fonts, videos, audio, stylesheets) to their
// source locations on disk.
//
// A Registry is not safe for concurrent use; the bindery.Builder serializes
// access to the registry it owns.
package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/bindery/format"
)

// Registry errors.
var (
	ErrSourceNotFound  = errors.New("epub: source file not found")
	ErrNameAlreadyUsed = errors.New("epub: internal name already used")
	ErrInvalidName     = errors.New("epub: invalid internal name")
)

// MaxNameLength is the longest base name accepted as an internal name before
// a synthesized name is used instead.
const MaxNameLength = 255

// Class is an asset class. Each class has its own namespace and folder.
type Class int

const (
	Image Class = iota
	Font
	Video
	Audio
	Stylesheet
)

// Classes lists every class in manifest order.
var Classes = []Class{Stylesheet, Font, Image, Video, Audio}

// String returns the class name, also used as the prefix of synthesized names.
func (c Class) String() string {
	switch c {
	case Image:
		return "image"
	case Font:
		return "font"
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Stylesheet:
		return "stylesheet"
	default:
		return "unknown"
	}
}

// Folder returns the folder, relative to the content root, holding the class.
func (c Class) Folder() string {
	switch c {
	case Image:
		return "images"
	case Font:
		return "fonts"
	case Video:
		return "videos"
	case Audio:
		return "audios"
	case Stylesheet:
		return "css"
	default:
		return "misc"
	}
}

// Entry is a registered asset.
type Entry struct {
	Class     Class
	Name      string // internal file name inside the class folder
	Source    string // source location on disk
	MediaType string
}

// Href returns the entry location relative to the content root.
func (e Entry) Href() string {
	return path.Join(e.Class.Folder(), e.Name)
}

// Path returns the entry location relative to a content document in the
// text folder, which is the form returned by Register.
func (e Entry) Path() string {
	return "../" + e.Href()
}

// Stater reports file information for a source location.
type Stater interface {
	Stat(name string) (fs.FileInfo, error)
}

// OSStater checks sources against the local filesystem.
type OSStater struct{}

// Stat calls os.Stat.
func (OSStater) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

type classMap struct {
	order  []string
	byName map[string]Entry
	issued int // registrations ever made; drives synthesized names
}

// Registry maps internal names to sources, partitioned by class.
type Registry struct {
	stater  Stater
	classes map[Class]*classMap
}

// New creates an empty registry. A nil stater uses the local filesystem.
func New(stater Stater) *Registry {
	if stater == nil {
		stater = OSStater{}
	}
	return &Registry{
		stater:  stater,
		classes: make(map[Class]*classMap),
	}
}

func (r *Registry) class(c Class) *classMap {
	cm, ok := r.classes[c]
	if !ok {
		cm = &classMap{byName: make(map[string]Entry)}
		r.classes[c] = cm
	}
	return cm
}

// Register adds source to class and returns its path relative to the text
// folder ("../<folder>/<name>").
//
// With an explicit name, the normalized name must be free or already bound
// to the same source. Without one, the source base name is used unless it is
// too long or taken, in which case "<class>_<N>.<ext>" is synthesized. N
// counts every registration made in the class, so repeat registrations of one
// source produce new numbered entries rather than being deduplicated.
func (r *Registry) Register(class Class, source, name string) (string, error) {
	if err := r.checkSource(source); err != nil {
		return "", err
	}

	cm := r.class(class)

	if name != "" {
		n, err := NormalizeName(name)
		if err != nil {
			return "", err
		}
		if existing, ok := cm.byName[n]; ok {
			if sameSource(existing.Source, source) {
				return existing.Path(), nil
			}
			return "", fmt.Errorf("%w: %s %q", ErrNameAlreadyUsed, class, n)
		}
		return r.insert(cm, class, n, source).Path(), nil
	}

	n, err := NormalizeName(filepath.Base(source))
	if err != nil || len(n) > MaxNameLength {
		n = ""
	}
	if _, taken := cm.byName[n]; n == "" || taken {
		n = cm.synthesize(class, filepath.Ext(source))
	}
	return r.insert(cm, class, n, source).Path(), nil
}

func (r *Registry) checkSource(source string) error {
	if source == "" {
		return fmt.Errorf("%w: empty path", ErrSourceNotFound)
	}
	fi, err := r.stater.Stat(source)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}
	return nil
}

func (cm *classMap) synthesize(class Class, ext string) string {
	ext = strings.ToLower(ext)
	for n := cm.issued + 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", class, n, ext)
		if _, taken := cm.byName[candidate]; !taken {
			return candidate
		}
	}
}

func (r *Registry) insert(cm *classMap, class Class, name, source string) Entry {
	e := Entry{
		Class:     class,
		Name:      name,
		Source:    source,
		MediaType: format.MediaTypeOrDefault(name),
	}
	cm.order = append(cm.order, name)
	cm.byName[name] = e
	cm.issued++
	return e
}

// Insert adds a fully formed entry, typically one previously returned by
// Remove. The name must be free in its class.
func (r *Registry) Insert(e Entry) error {
	cm := r.class(e.Class)
	if _, taken := cm.byName[e.Name]; taken {
		return fmt.Errorf("%w: %s %q", ErrNameAlreadyUsed, e.Class, e.Name)
	}
	if e.MediaType == "" {
		e.MediaType = format.MediaTypeOrDefault(e.Name)
	}
	cm.order = append(cm.order, e.Name)
	cm.byName[e.Name] = e
	return nil
}

// Remove deletes name from class and returns the removed entry.
func (r *Registry) Remove(class Class, name string) (Entry, bool) {
	d, ok := r.Detach(class, name)
	return d.Entry, ok
}

// Removed records a detached entry and its place in registration order, so
// it can be put back with Restore.
type Removed struct {
	Entry    Entry
	Position int
}

// Detach deletes name from class and records where it was.
func (r *Registry) Detach(class Class, name string) (Removed, bool) {
	cm := r.class(class)
	e, ok := cm.byName[name]
	if !ok {
		return Removed{}, false
	}
	delete(cm.byName, name)
	pos := -1
	for i, n := range cm.order {
		if n == name {
			cm.order = append(cm.order[:i], cm.order[i+1:]...)
			pos = i
			break
		}
	}
	return Removed{Entry: e, Position: pos}, true
}

// Restore re-inserts a detached entry at its former position. The position
// is clamped when the class has shrunk in the meantime. A zero Removed is
// a no-op.
func (r *Registry) Restore(d Removed) error {
	if d.Entry.Name == "" {
		return nil
	}
	cm := r.class(d.Entry.Class)
	if _, taken := cm.byName[d.Entry.Name]; taken {
		return fmt.Errorf("%w: %s %q", ErrNameAlreadyUsed, d.Entry.Class, d.Entry.Name)
	}
	pos := d.Position
	if pos < 0 || pos > len(cm.order) {
		pos = len(cm.order)
	}
	cm.order = append(cm.order, "")
	copy(cm.order[pos+1:], cm.order[pos:])
	cm.order[pos] = d.Entry.Name
	cm.byName[d.Entry.Name] = d.Entry
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(class Class, name string) (Entry, bool) {
	cm, ok := r.classes[class]
	if !ok {
		return Entry{}, false
	}
	e, ok := cm.byName[name]
	return e, ok
}

// Len returns the number of entries in class.
func (r *Registry) Len(class Class) int {
	if cm, ok := r.classes[class]; ok {
		return len(cm.order)
	}
	return 0
}

// Entries returns the entries of class in registration order.
func (r *Registry) Entries(class Class) []Entry {
	cm, ok := r.classes[class]
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, len(cm.order))
	for _, n := range cm.order {
		entries = append(entries, cm.byName[n])
	}
	return entries
}

// All returns every entry, grouped by class in Classes order.
func (r *Registry) All() []Entry {
	var all []Entry
	for _, c := range Classes {
		all = append(all, r.Entries(c)...)
	}
	return all
}

// NormalizeName converts a caller supplied internal name to NFC, strips any
// directory components and surrounding whitespace.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	n = path.Base(filepath.ToSlash(n))
	switch n {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

func sameSource(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
