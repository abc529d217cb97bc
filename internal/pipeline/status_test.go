package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/completion"
)

func TestInspect(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	content := "some long document"

	st, err := Inspect(ctx, store, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Found || st.TaskID != checkpoint.TaskID(content) {
		t.Errorf("unexpected status %+v", st)
	}
	if st.String() != "no checkpoint, next run starts fresh" {
		t.Errorf("unexpected rendering %q", st.String())
	}

	rec := checkpoint.NewRecord(st.TaskID, 20, checkpoint.Metadata{Filename: "doc.md"})
	for i := 0; i < 7; i++ {
		rec.Append("s", completion.TokenUsage{})
	}
	rec.Usage = completion.NewUsage(1000, 284, 0)
	_ = store.Save(ctx, rec)

	st, err = Inspect(ctx, store, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Found || st.Completed != 7 || st.Total != 20 || st.Filename != "doc.md" {
		t.Errorf("unexpected status %+v", st)
	}
	if want := "resuming from chunk 8/20, 1,284 tokens spent so far"; st.String() != want {
		t.Errorf("expected %q, got %q", want, st.String())
	}
}

func TestInspect_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store, _ := checkpoint.NewFileStore(dir)
	content := "doc"
	_ = os.WriteFile(filepath.Join(dir, checkpoint.TaskID(content)+".json"), []byte("nope"), 0o644)

	st, err := Inspect(context.Background(), store, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Corrupt || st.Found {
		t.Errorf("expected corrupt status, got %+v", st)
	}
}

func TestResumeStatus_AllDone(t *testing.T) {
	st := ResumeStatus{Found: true, Completed: 3, Total: 3, Usage: completion.NewUsage(10, 2, 0)}
	if want := "all 3 chunks summarized, 12 tokens spent so far"; st.String() != want {
		t.Errorf("expected %q, got %q", want, st.String())
	}
}
