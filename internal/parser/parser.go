// Package parser turns uploaded files into plain-text documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsum/internal/doctree"
)

var (
	// ErrUnsupported is returned for file extensions with no parser.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrUnreadable is returned when a file is not valid UTF-8 text after
	// parsing.
	ErrUnreadable = errors.New("document is not valid UTF-8")
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

var parsers = map[string]func() Parser{
	".txt":      func() Parser { return &TextParser{} },
	".text":     func() Parser { return &TextParser{} },
	".log":      func() Parser { return &TextParser{} },
	".md":       func() Parser { return &MarkdownParser{} },
	".markdown": func() Parser { return &MarkdownParser{} },
	".csv":      func() Parser { return &CSVParser{} },
	".html":     func() Parser { return &HTMLParser{} },
	".htm":      func() Parser { return &HTMLParser{} },
	".pdf":      func() Parser { return &PDFParser{} },
	".docx":     func() Parser { return &DOCXParser{} },
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	newParser, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return newParser(), nil
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// SupportedExtensions lists the handled extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(parsers))
	for ext := range parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadDocument parses r according to filename's extension and flattens the
// result into a Document. The same bytes always yield the same content, so
// the checkpoint id of a file is stable across runs.
func LoadDocument(r io.Reader, filename string) (doctree.Document, error) {
	p, err := ForFile(filename)
	if err != nil {
		return doctree.Document{}, err
	}
	tree, err := p.Parse(r, filename)
	if err != nil {
		return doctree.Document{}, fmt.Errorf("parse %s: %w", filepath.Base(filename), err)
	}
	content := doctree.Flatten(tree)
	if !utf8.ValidString(content) {
		return doctree.Document{}, fmt.Errorf("%s: %w", filepath.Base(filename), ErrUnreadable)
	}
	return doctree.NewDocument(content, filepath.Base(filename)), nil
}

// LoadBytes is LoadDocument over an in-memory file.
func LoadBytes(data []byte, filename string) (doctree.Document, error) {
	return LoadDocument(bytes.NewReader(data), filename)
}
