package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"capturesync/internal/config"
	"capturesync/internal/pipeline"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one stored outcome.
type Entry struct {
	ID      int64
	RunID   string
	Kind    pipeline.Kind
	Source  string
	Output  string
	Reason  string
	Faces   int
	Error   string
	Elapsed time.Duration
	Message string
	At      time.Time
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	RunID string
	Kinds []pipeline.Kind
	Since time.Time
	Limit int
}

// Store persists entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the journal under the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens or creates the journal at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores r and returns its row id.
func (s *Store) Append(ctx context.Context, r pipeline.Record) (int64, error) {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	var errText string
	if r.Err != nil {
		errText = r.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (
            run_id, kind, source_path, output_path, reason, faces, error, elapsed_ms, message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(r.RunID),
		string(r.Kind),
		nullableString(r.Path),
		nullableString(r.Output),
		nullableString(r.Reason),
		r.Faces,
		nullableString(errText),
		r.Elapsed.Milliseconds(),
		nullableString(r.Message),
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const entryColumns = `id, run_id, kind, source_path, output_path, reason, faces, error, elapsed_ms, message, created_at`

// List returns entries matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if f.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, f.RunID)
	}
	if len(f.Kinds) > 0 {
		placeholders := make([]string, len(f.Kinds))
		for i, kind := range f.Kinds {
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		clauses = append(clauses, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	query := `SELECT ` + entryColumns + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Counts returns the number of entries per kind, optionally for one run.
func (s *Store) Counts(ctx context.Context, runID string) (map[pipeline.Kind]int, error) {
	query := `SELECT kind, COUNT(1) FROM events`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` GROUP BY kind`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[pipeline.Kind]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[pipeline.Kind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		runID     sql.NullString
		kind      string
		source    sql.NullString
		output    sql.NullString
		reason    sql.NullString
		errText   sql.NullString
		elapsedMS int64
		message   sql.NullString
		createdAt string
	)
	if err := row.Scan(&entry.ID, &runID, &kind, &source, &output, &reason, &entry.Faces,
		&errText, &elapsedMS, &message, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}
	entry.RunID = runID.String
	entry.Kind = pipeline.Kind(kind)
	entry.Source = source.String
	entry.Output = output.String
	entry.Reason = reason.String
	entry.Error = errText.String
	entry.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	entry.Message = message.String
	if at, err := time.Parse(timeLayout, createdAt); err == nil {
		entry.At = at
	}
	return entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
