package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const fileExt = ".json"

// FileStore keeps one JSON document per task in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint: file backend requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the records.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(taskID string) string {
	return filepath.Join(s.dir, taskID+fileExt)
}

func (s *FileStore) FindByContent(ctx context.Context, content string) (string, bool, error) {
	id := TaskID(content)
	_, err := os.Stat(s.path(id))
	switch {
	case err == nil:
		return id, true, nil
	case errors.Is(err, fs.ErrNotExist):
		return id, false, nil
	default:
		return id, false, fmt.Errorf("checkpoint: stat %s: %w", id, err)
	}
}

func (s *FileStore) Load(ctx context.Context, taskID string) (*Record, error) {
	if err := checkTaskID(taskID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(taskID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", taskID, err)
	}
	return decode(taskID, data)
}

// Save writes to a temp file in the same directory, syncs it, then renames
// it over the target so readers never see a partial record.
func (s *FileStore) Save(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(r)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+r.TaskID+"-*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: write %s: %w", r.TaskID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: sync %s: %w", r.TaskID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: close %s: %w", r.TaskID, err)
	}
	if err := os.Rename(tmpPath, s.path(r.TaskID)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: rename %s: %w", r.TaskID, err)
	}
	_ = syncDir(s.dir)
	return nil
}

func (s *FileStore) Delete(ctx context.Context, taskID string) error {
	if err := checkTaskID(taskID); err != nil {
		return err
	}
	err := os.Remove(s.path(taskID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: delete %s: %w", taskID, err)
	}
	return nil
}

// List skips temp files and records that fail to decode.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if !ValidTaskID(id) {
			continue
		}
		r, err := s.Load(ctx, id)
		if err != nil || r == nil {
			continue
		}
		records = append(records, *r)
	}
	sortRecords(records)
	return records, nil
}

func (s *FileStore) Close() error { return nil }

// syncDir flushes directory metadata so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
