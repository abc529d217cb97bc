package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Store persists checkpoint records keyed by TaskID. Implementations are
// safe for concurrent use on different keys.
type Store interface {
	// FindByContent derives the TaskID of content and reports whether a
	// record exists under it.
	FindByContent(ctx context.Context, content string) (taskID string, found bool, err error)
	// Load returns the record, or nil when none exists. Unreadable records
	// yield an error matching ErrCorrupt.
	Load(ctx context.Context, taskID string) (*Record, error)
	// Save fully overwrites the record. A crash mid-save leaves either the
	// old or the new record.
	Save(ctx context.Context, r *Record) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, taskID string) error
	// List returns every readable record, most recently updated first.
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendPathstore = "pathstore"
	BackendMemory    = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir holds one JSON file per task for the file backend.
	Dir string
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string

	PathstoreURL    string
	PathstoreAPIKey string
	PathstorePrefix string

	Logger *slog.Logger
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir)
	case BackendSQLite:
		return OpenSQLite(ctx, opts.DSN, log)
	case BackendPostgres:
		return OpenPostgres(ctx, opts.DSN, log)
	case BackendPathstore:
		return NewPathstoreStore(opts.PathstoreURL, opts.PathstoreAPIKey, opts.PathstorePrefix), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("checkpoint: unknown backend %q", opts.Backend)
	}
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].TaskID < records[j].TaskID
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
}
