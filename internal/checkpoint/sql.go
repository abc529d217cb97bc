package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and base FS in package state.
var migrateMu sync.Mutex

// SQLStore keeps one row per task in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// OpenSQLite opens or creates a SQLite database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("checkpoint: sqlite backend requires a path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	return newSQLStore(ctx, db, "sqlite3", log)
}

// OpenPostgres connects through the pgx stdlib driver and migrates.
func OpenPostgres(ctx context.Context, dsn string, log *slog.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("checkpoint: postgres backend requires a DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newSQLStore(ctx, db, "postgres", log)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect string, log *slog.Logger) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: ping %s: %w", dialect, err)
	}
	if err := migrate(db, dialect, log); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func migrate(db *sql.DB, dialect string, log *slog.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&slogGooseLogger{log: log})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("checkpoint: goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("checkpoint: migrate: %w", err)
	}
	return nil
}

// slogGooseLogger forwards goose output to slog. Fatalf does not exit.
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) FindByContent(ctx context.Context, content string) (string, bool, error) {
	id := TaskID(content)
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM checkpoints WHERE task_id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return id, false, nil
	}
	if err != nil {
		return id, false, fmt.Errorf("checkpoint: lookup %s: %w", id, err)
	}
	return id, true, nil
}

func (s *SQLStore) Load(ctx context.Context, taskID string) (*Record, error) {
	if err := checkTaskID(taskID); err != nil {
		return nil, err
	}
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM checkpoints WHERE task_id = ?`), taskID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", taskID, err)
	}
	return decode(taskID, []byte(body))
}

// Save upserts the whole record in one statement.
func (s *SQLStore) Save(ctx context.Context, r *Record) error {
	data, err := encode(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO checkpoints (task_id, filename, completed, total_chunks, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			filename = excluded.filename,
			completed = excluded.completed,
			total_chunks = excluded.total_chunks,
			body = excluded.body,
			updated_at = excluded.updated_at`),
		r.TaskID, r.Metadata.Filename, r.Completed(), r.TotalChunks, string(data),
		r.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", r.TaskID, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, taskID string) error {
	if err := checkTaskID(taskID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM checkpoints WHERE task_id = ?`), taskID); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", taskID, err)
	}
	return nil
}

// List skips rows whose body fails to decode.
func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, body FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("checkpoint: scan: %w", err)
		}
		r, err := decode(id, []byte(body))
		if err != nil {
			continue
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	sortRecords(records)
	return records, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
