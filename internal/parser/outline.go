package parser

import (
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsum/internal/doctree"
)

// outline builds a section tree from a flat stream of headings and
// paragraphs. Text before the first heading belongs to the root.
type outline struct {
	root  *doctree.DocNode
	stack []outlineLevel
	text  strings.Builder
}

type outlineLevel struct {
	node  *doctree.DocNode
	level int
}

func newOutline(title string) *outline {
	root := &doctree.DocNode{Title: title}
	return &outline{root: root, stack: []outlineLevel{{node: root}}}
}

// heading opens a section at level (1 = top), closing any open sections at
// the same or a deeper level.
func (o *outline) heading(level int, title string) {
	o.flush()
	node := &doctree.DocNode{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, outlineLevel{node: node, level: level})
}

// paragraph appends a block of text to the current section.
func (o *outline) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.text.Len() > 0 {
		o.text.WriteString("\n\n")
	}
	o.text.WriteString(text)
}

func (o *outline) flush() {
	t := o.text.String()
	o.text.Reset()
	if t == "" {
		return
	}
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// tree finishes the outline. Headingless input becomes a single text node.
func (o *outline) tree(title string) *doctree.DocTree {
	o.flush()
	t := &doctree.DocTree{Title: title, Children: o.root.Children}
	if o.root.Text != "" {
		lead := &doctree.DocNode{Text: o.root.Text}
		t.Children = append([]*doctree.DocNode{lead}, t.Children...)
	}
	return t
}

// titleFromFilename strips directories and the extension.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
