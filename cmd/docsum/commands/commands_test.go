package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/chunker"
	"github.com/dgallion1/docsum/internal/completion"
)

// testEnv points the CLI at the echo provider and a temp checkpoint dir.
func testEnv(t *testing.T) string {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "DOCSUM_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	dir := t.TempDir()
	t.Setenv("DOCSUM_LLM_PROVIDER", "echo")
	t.Setenv("DOCSUM_CHECKPOINT_DIR", filepath.Join(dir, "checkpoints"))
	t.Setenv("DOCSUM_CHUNKING_SIZE", "100")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeDoc(t *testing.T, dir, name string) string {
	t.Helper()
	content := strings.Repeat("Every finished chunk is saved before the next one starts. ", 6)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

// seedPartial saves a checkpoint holding only the first chunk of the parsed
// document at path.
func seedPartial(t *testing.T, dir, path string) *checkpoint.Record {
	t.Helper()
	doc, err := loadFile(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	content := doc.Content
	cfg := chunker.Config{ChunkSize: 100}
	chunks, err := chunker.Split(content, cfg)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	store, err := checkpoint.NewFileStore(filepath.Join(dir, "checkpoints"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	defer store.Close()

	rec := checkpoint.NewRecord(checkpoint.TaskID(content), len(chunks), checkpoint.Metadata{
		Filename:       "doc.txt",
		OriginalLength: len([]rune(content)),
		ChunkSize:      cfg.ChunkSize,
	})
	rec.Append("seeded summary", completion.NewUsage(10, 5, 0))
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	return rec
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "docsum" {
		t.Errorf("Use = %q, want %q", cmd.Use, "docsum")
	}
	for _, name := range []string{"summarize", "status", "checkpoints", "version"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("expected subcommand %q, got %v (%v)", name, found, err)
		}
	}
	for _, flag := range []string{"config", "verbose", "backend", "checkpoint-dir"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag not found", flag)
		}
	}
}

func TestVersionCmd_Output(t *testing.T) {
	orig := versionInfo
	defer func() { versionInfo = orig }()
	SetVersion("1.2.3", "abc123", "2026-01-31")

	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"docsum 1.2.3", "Commit: abc123", "Built:  2026-01-31"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestSummarize_FreshRun(t *testing.T) {
	dir := testEnv(t)
	path := writeDoc(t, dir, "doc.txt")

	out, errOut, err := run(t, "summarize", path)
	if err != nil {
		t.Fatalf("summarize: %v\n%s", err, errOut)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("expected summary on stdout")
	}
	if !strings.Contains(errOut, "Summarized") {
		t.Errorf("expected totals on stderr, got:\n%s", errOut)
	}

	out, _, err = run(t, "status", path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "no checkpoint") {
		t.Errorf("expected checkpoint cleared after success, got:\n%s", out)
	}
}

func TestSummarize_ResumesFromCheckpoint(t *testing.T) {
	dir := testEnv(t)
	path := writeDoc(t, dir, "doc.txt")
	seedPartial(t, dir, path)

	out, errOut, err := run(t, "summarize", path)
	if err != nil {
		t.Fatalf("summarize: %v\n%s", err, errOut)
	}
	if !strings.HasPrefix(out, "seeded summary") {
		t.Errorf("expected saved chunk summary to lead the output, got:\n%s", out)
	}
	if !strings.Contains(errOut, "Resumed after chunk 1") {
		t.Errorf("expected resume notice, got:\n%s", errOut)
	}
}

func TestSummarize_OutFile(t *testing.T) {
	dir := testEnv(t)
	path := writeDoc(t, dir, "doc.md")
	outPath := filepath.Join(dir, "summary.txt")

	out, _, err := run(t, "summarize", path, "--out", outPath, "--reduce")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		t.Error("expected summary in output file")
	}
}

func TestSummarize_Errors(t *testing.T) {
	dir := testEnv(t)
	path := writeDoc(t, dir, "doc.txt")

	if _, _, err := run(t, "summarize", path, "--chunk-size", "10", "--overlap", "5"); err == nil {
		t.Error("expected invalid chunking to fail")
	}
	if _, _, err := run(t, "summarize", filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected missing file to fail")
	}
	if _, _, err := run(t, "summarize"); err == nil {
		t.Error("expected missing argument to fail")
	}
}

func TestStatus_ReportsPartialProgress(t *testing.T) {
	dir := testEnv(t)
	path := writeDoc(t, dir, "renamed.txt")
	rec := seedPartial(t, dir, path)

	out, _, err := run(t, "status", path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, rec.TaskID) {
		t.Errorf("expected task id in output, got:\n%s", out)
	}
	if !strings.Contains(out, "resuming from chunk 2/") {
		t.Errorf("expected resume position, got:\n%s", out)
	}
}

func TestCheckpoints_ListShowDelete(t *testing.T) {
	dir := testEnv(t)
	path := writeDoc(t, dir, "doc.txt")
	rec := seedPartial(t, dir, path)
	prefix := rec.TaskID[:12]

	out, _, err := run(t, "checkpoints", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, prefix) || !strings.Contains(out, "doc.txt") {
		t.Errorf("expected record in listing, got:\n%s", out)
	}

	out, _, err = run(t, "checkpoints", "show", prefix)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, `"seeded summary"`) {
		t.Errorf("expected record JSON, got:\n%s", out)
	}

	if _, _, err := run(t, "checkpoints", "delete", rec.TaskID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, _, err = run(t, "checkpoints", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No checkpoints.") {
		t.Errorf("expected empty listing, got:\n%s", out)
	}

	if _, _, err := run(t, "checkpoints", "show", "ffff"); err == nil {
		t.Error("expected unknown prefix to fail")
	}
}
