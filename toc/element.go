// Package toc encodes a book's table of contents as an EPUB 2 NCX document
// or an EPUB 3 XHTML navigation document.
package toc

import (
	"github.com/tsawler/bindery/section"
)

// Element is a navigation node: a titled link with ordered children.
// Children always have a higher Level than their parent.
type Element struct {
	Level    int
	URL      string
	Title    string
	Children []*Element
}

// NewElement creates a level 1 element.
func NewElement(url, title string) *Element {
	return &Element{Level: 1, URL: url, Title: title}
}

// AddChild appends child. A child whose level is not greater than e's is
// re-leveled to e.Level+1, and so is every descendant that would otherwise
// sit at or above its new parent's level.
func (e *Element) AddChild(child *Element) *Element {
	if child.Level <= e.Level {
		child.relevel(e.Level + 1)
	}
	e.Children = append(e.Children, child)
	return e
}

func (e *Element) relevel(level int) {
	type frame struct {
		el    *Element
		level int
	}
	stack := []frame{{e, level}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top.el.Level = top.level
		for _, c := range top.el.Children {
			if c.Level <= top.level {
				stack = append(stack, frame{c, top.level + 1})
			}
		}
	}
}

// Walk visits e and its descendants in pre-order. Returning false stops the
// walk and makes Walk return false.
func (e *Element) Walk(fn func(*Element) bool) bool {
	stack := []*Element{e}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top) {
			return false
		}
		for i := len(top.Children) - 1; i >= 0; i-- {
			stack = append(stack, top.Children[i])
		}
	}
	return true
}

// FromSections projects a section forest into navigation elements,
// preserving order and nesting. href maps a section filename to the link
// target written into the navigation document.
func FromSections(roots []*section.Section, href func(filename string) string) []*Element {
	return project(roots, 1, href)
}

func project(sections []*section.Section, level int, href func(string) string) []*Element {
	if len(sections) == 0 {
		return nil
	}
	out := make([]*Element, 0, len(sections))
	for _, s := range sections {
		out = append(out, &Element{
			Level:    level,
			URL:      href(s.Filename),
			Title:    s.Title,
			Children: project(s.Children, level+1, href),
		})
	}
	return out
}
