package doctree

import (
	"strings"
	"unicode/utf8"
)

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page/line (0 if N/A)
	Children []*DocNode // Subsections
}

// Document is the flat, immutable input to summarization.
type Document struct {
	Content  string
	Filename string
}

// NewDocument builds a Document from raw text.
func NewDocument(content, filename string) Document {
	return Document{Content: content, Filename: filename}
}

// Len returns the content length in characters (runes).
func (d Document) Len() int {
	return utf8.RuneCountInString(d.Content)
}

// IsEmpty reports whether there is nothing to summarize.
func (d Document) IsEmpty() bool {
	return d.Content == ""
}

// Flatten renders the tree as plain text. Section headings are kept on their
// own line so chunk boundaries can still land between sections. Blocks are
// separated by a blank line.
func Flatten(tree *DocTree) string {
	if tree == nil {
		return ""
	}
	var blocks []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if t := strings.TrimSpace(n.Title); t != "" {
				blocks = append(blocks, t)
			}
			if t := strings.TrimSpace(n.Text); t != "" {
				blocks = append(blocks, t)
			}
			walk(n.Children)
		}
	}
	walk(tree.Children)
	return strings.Join(blocks, "\n\n")
}
