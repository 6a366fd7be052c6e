// Package section implements the ordered forest of content sections that
// makes up a book, together with the flat filename index that guarantees
// filenames are unique across the whole forest.
//
// A Tree is not safe for concurrent use.
package section

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disiqueira/gotree/v3"

	"github.com/tsawler/bindery/xhtml"
)

// Tree errors.
var (
	ErrFilenameExists = errors.New("epub: section filename already exists")
	ErrParentNotFound = errors.New("epub: parent section not found")
	ErrNotFound       = errors.New("epub: section not found")
	ErrInvalidName    = errors.New("epub: invalid section filename")
)

// Extension is appended to explicit filenames that lack it.
const Extension = ".xhtml"

// Section is a content node of the book.
type Section struct {
	Filename string
	Title    string
	Document *xhtml.Document
	Children []*Section

	parent *Section
}

// New creates a detached section whose document wraps body.
func New(filename, title, body string) *Section {
	return &Section{
		Filename: filename,
		Title:    title,
		Document: xhtml.New(title, body),
	}
}

// Parent returns the parent section, or nil for a root.
func (s *Section) Parent() *Section {
	return s.parent
}

// Tree is an ordered forest of sections indexed by filename.
type Tree struct {
	roots []*Section
	index map[string]*Section
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{index: make(map[string]*Section)}
}

// Len returns the number of indexed filenames.
func (t *Tree) Len() int {
	return len(t.index)
}

// Roots returns the top-level sections in order.
func (t *Tree) Roots() []*Section {
	return t.roots
}

// Has reports whether filename is in use.
func (t *Tree) Has(filename string) bool {
	_, ok := t.index[filename]
	return ok
}

// Find returns the section with the given filename.
func (t *Tree) Find(filename string) (*Section, bool) {
	s, ok := t.index[filename]
	return s, ok
}

// ResolveFilename returns the filename a new section will use. An explicit
// name gains the .xhtml extension when missing and must not be in use.
// Explicit names are plain file names inside the text folder; directory
// separators and dot segments are rejected with ErrInvalidName.
// Without one, "section_<N>.xhtml" is synthesized with N starting at the
// index size plus one and advancing past used names.
func (t *Tree) ResolveFilename(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if err := checkName(explicit); err != nil {
			return "", err
		}
		if !strings.HasSuffix(strings.ToLower(explicit), Extension) {
			explicit += Extension
		}
		if t.Has(explicit) {
			return "", fmt.Errorf("%w: %s", ErrFilenameExists, explicit)
		}
		return explicit, nil
	}

	for n := len(t.index) + 1; ; n++ {
		candidate := fmt.Sprintf("section_%d%s", n, Extension)
		if !t.Has(candidate) {
			return candidate, nil
		}
	}
}

func checkName(name string) error {
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CheckParent returns ErrParentNotFound unless parent is empty or indexed.
func (t *Tree) CheckParent(parent string) error {
	if parent == "" || t.Has(parent) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrParentNotFound, parent)
}

// Add attaches s as the last child of parent, or as a new root when parent
// is empty, and indexes its filename. On error the tree is unchanged.
func (t *Tree) Add(parent string, s *Section) error {
	if s.Filename == "" {
		return fmt.Errorf("%w: empty filename", ErrFilenameExists)
	}
	if err := checkName(s.Filename); err != nil {
		return err
	}
	if t.Has(s.Filename) {
		return fmt.Errorf("%w: %s", ErrFilenameExists, s.Filename)
	}
	if err := t.CheckParent(parent); err != nil {
		return err
	}

	if parent == "" {
		s.parent = nil
		t.roots = append(t.roots, s)
	} else {
		p := t.index[parent]
		s.parent = p
		p.Children = append(p.Children, s)
	}
	t.indexSubtree(s)
	return nil
}

func (t *Tree) indexSubtree(s *Section) {
	Walk([]*Section{s}, func(n *Section, _ int) bool {
		t.index[n.Filename] = n
		return true
	})
}

// Removed records a detached section and where it lived, so it can be put
// back with Restore.
type Removed struct {
	Section  *Section
	Parent   string // empty for a root
	Position int
}

// Remove detaches the section with filename from the forest and unindexes
// it together with all of its descendants.
func (t *Tree) Remove(filename string) (Removed, error) {
	s, ok := t.index[filename]
	if !ok {
		return Removed{}, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	siblings := &t.roots
	parent := ""
	if s.parent != nil {
		siblings = &s.parent.Children
		parent = s.parent.Filename
	}

	pos := indexOf(*siblings, s)
	if pos < 0 {
		panic(fmt.Sprintf("section: index and forest out of sync for %s", filename))
	}
	*siblings = append((*siblings)[:pos], (*siblings)[pos+1:]...)

	Walk([]*Section{s}, func(n *Section, _ int) bool {
		delete(t.index, n.Filename)
		return true
	})
	s.parent = nil

	return Removed{Section: s, Parent: parent, Position: pos}, nil
}

// Restore re-inserts a removed section at its former position. The position
// is clamped when siblings have changed in the meantime.
func (t *Tree) Restore(r Removed) error {
	if r.Section == nil {
		return nil
	}
	var conflict error
	Walk([]*Section{r.Section}, func(n *Section, _ int) bool {
		if t.Has(n.Filename) {
			conflict = fmt.Errorf("%w: %s", ErrFilenameExists, n.Filename)
			return false
		}
		return true
	})
	if conflict != nil {
		return conflict
	}
	if err := t.CheckParent(r.Parent); err != nil {
		return err
	}

	siblings := &t.roots
	if r.Parent != "" {
		p := t.index[r.Parent]
		siblings = &p.Children
		r.Section.parent = p
	}
	pos := r.Position
	if pos < 0 || pos > len(*siblings) {
		pos = len(*siblings)
	}
	*siblings = append(*siblings, nil)
	copy((*siblings)[pos+1:], (*siblings)[pos:])
	(*siblings)[pos] = r.Section

	t.indexSubtree(r.Section)
	return nil
}

// Walk visits sections in pre-order, each root in turn, with their depth
// (roots are depth 1). Returning false from fn stops the walk. The walk uses
// an explicit stack, so nesting depth is bounded only by memory.
func Walk(roots []*Section, fn func(s *Section, depth int) bool) {
	type frame struct {
		s     *Section
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 1})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.s, top.depth) {
			return
		}
		for i := len(top.s.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{top.s.Children[i], top.depth + 1})
		}
	}
}

// Walk visits every section of the tree in pre-order.
func (t *Tree) Walk(fn func(s *Section, depth int) bool) {
	Walk(t.roots, fn)
}

// Depth returns the deepest nesting level, 0 for an empty tree.
func (t *Tree) Depth() int {
	deepest := 0
	t.Walk(func(_ *Section, depth int) bool {
		if depth > deepest {
			deepest = depth
		}
		return true
	})
	return deepest
}

// Outline renders the forest as an indented text tree under label.
func (t *Tree) Outline(label string) string {
	root := gotree.New(label)
	var add func(parent gotree.Tree, s *Section)
	add = func(parent gotree.Tree, s *Section) {
		node := parent.Add(fmt.Sprintf("%s (%s)", s.Title, s.Filename))
		for _, c := range s.Children {
			add(node, c)
		}
	}
	for _, r := range t.roots {
		add(root, r)
	}
	return root.Print()
}

func indexOf(list []*Section, s *Section) int {
	for i, n := range list {
		if n == s {
			return i
		}
	}
	return -1
}
