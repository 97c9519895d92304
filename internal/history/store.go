// Package history persists finished render jobs and their performance
// figures in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates a database written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status of a finished job.
type Status string

const (
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Entry is one finished job.
type Entry struct {
	ID          string
	SceneRef    string
	Status      Status
	Frames      int
	TotalFrames int
	FPS         float64
	Bitrate     int
	Width       int
	Height      int
	SizeBytes   int
	OutputPath  string
	RenderTime  time.Duration
	EncodeTime  time.Duration
	Elapsed     time.Duration
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// EffectiveFPS is frames per second of wall time.
func (e Entry) EffectiveFPS() float64 {
	if e.Elapsed <= 0 {
		return 0
	}
	return float64(e.Frames) / e.Elapsed.Seconds()
}

// Store manages job history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Record inserts or replaces an entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("history entry without id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (
            id, scene_ref, status, frames, total_frames, fps, bitrate, width, height,
            size_bytes, output_path, render_ms, encode_ms, elapsed_ms, error_message,
            started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.SceneRef,
		string(e.Status),
		e.Frames,
		e.TotalFrames,
		e.FPS,
		e.Bitrate,
		e.Width,
		e.Height,
		e.SizeBytes,
		nullableString(e.OutputPath),
		e.RenderTime.Milliseconds(),
		e.EncodeTime.Milliseconds(),
		e.Elapsed.Milliseconds(),
		nullableString(e.Error),
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const entryColumns = `id, scene_ref, status, frames, total_frames, fps, bitrate, width, height,
    size_bytes, output_path, render_ms, encode_ms, elapsed_ms, error_message, started_at, finished_at`

// Get fetches an entry by id. A missing entry yields nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM jobs WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return e, nil
}

// List returns the most recent entries first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM jobs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries that finished before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE finished_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                             Entry
		status                        string
		outputPath, errMsg            sql.NullString
		renderMS, encodeMS, elapsedMS int64
		startedAt, finishedAt         string
	)
	if err := row.Scan(
		&e.ID, &e.SceneRef, &status, &e.Frames, &e.TotalFrames, &e.FPS, &e.Bitrate,
		&e.Width, &e.Height, &e.SizeBytes, &outputPath, &renderMS, &encodeMS, &elapsedMS,
		&errMsg, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.OutputPath = outputPath.String
	e.Error = errMsg.String
	e.RenderTime = time.Duration(renderMS) * time.Millisecond
	e.EncodeTime = time.Duration(encodeMS) * time.Millisecond
	e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	e.StartedAt = parseTime(startedAt)
	e.FinishedAt = parseTime(finishedAt)
	return &e, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
