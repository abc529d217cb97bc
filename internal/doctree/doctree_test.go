package doctree

import "testing"

func TestFlatten_HeadingsAndText(t *testing.T) {
	tree := &DocTree{
		Title: "Doc",
		Children: []*DocNode{
			{
				Title: "Chapter 1",
				Text:  "Intro.",
				Children: []*DocNode{
					{Title: "Section 1.1", Text: "  Details here.  "},
				},
			},
			{Text: "Trailing paragraph."},
		},
	}

	got := Flatten(tree)
	want := "Chapter 1\n\nIntro.\n\nSection 1.1\n\nDetails here.\n\nTrailing paragraph."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFlatten_NilAndEmpty(t *testing.T) {
	if got := Flatten(nil); got != "" {
		t.Errorf("expected empty string for nil tree, got %q", got)
	}
	if got := Flatten(&DocTree{Title: "Empty"}); got != "" {
		t.Errorf("expected empty string for empty tree, got %q", got)
	}
}

func TestDocument_LenCountsRunes(t *testing.T) {
	doc := NewDocument("héllo", "a.txt")
	if doc.Len() != 5 {
		t.Errorf("expected 5 runes, got %d", doc.Len())
	}
	if doc.IsEmpty() {
		t.Error("expected non-empty document")
	}
	if !NewDocument("", "b.txt").IsEmpty() {
		t.Error("expected empty document")
	}
}
