package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/menu-generator/pkg/model"
	_ "modernc.org/sqlite" // Register SQLite driver
)

// timestampLayout is fixed width so TEXT ordering matches time ordering
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned by GetRun for an unknown id
var ErrRunNotFound = errors.New("run not found")

// parseTimestamp parses a timestamp string from SQLite, handling multiple formats
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}

	formats := []string{
		timestampLayout,
		time.RFC3339,
		"2006-01-02 15:04:05", // SQLite CURRENT_TIMESTAMP (UTC)
		"2006-01-02 15:04:05 -0700 MST",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}

func formatTimestamp(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}

// Store keeps the history of runs in SQLite
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (and creates if needed) the history database at dbPath
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store: history database ready", "path", dbPath)
	return store, nil
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			backend TEXT NOT NULL DEFAULT '',
			data_path TEXT NOT NULL DEFAULT '',
			template_path TEXT NOT NULL DEFAULT '',
			artifact_path TEXT,
			bytes INTEGER NOT NULL DEFAULT 0,
			checksum TEXT,
			error_text TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		// Delivery tracking was added after the first release
		`ALTER TABLE runs ADD COLUMN email_sent INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE runs ADD COLUMN email_error TEXT`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			// Column already exists on a database created by an earlier run
			if !strings.Contains(err.Error(), "duplicate column name") {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
	}

	return nil
}

// CreateRun inserts a new run, assigning an id when it has none
func (s *Store) CreateRun(run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.CreatedAt = time.Now()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, status, backend, data_path, template_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTimestamp(&run.StartedAt), run.Status, run.Backend,
		run.DataPath, run.TemplatePath, formatTimestamp(&run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// UpdateRun stores the outcome fields of a run
func (s *Store) UpdateRun(run *model.Run) error {
	result, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, backend = ?, artifact_path = ?, bytes = ?,
		    checksum = ?, error_text = ?, email_sent = ?, email_error = ?
		WHERE id = ?`,
		formatTimestamp(run.FinishedAt), run.Status, run.Backend, nullString(run.ArtifactPath), run.Bytes,
		nullString(run.Checksum), nullString(run.ErrorText), run.EmailSent, nullString(run.EmailError),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, backend, data_path, template_path,
	artifact_path, bytes, checksum, error_text, email_sent, email_error, created_at`

// GetRun retrieves a run by id
func (s *Store) GetRun(id string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(limit int) ([]*model.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*model.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	run := &model.Run{}
	var startedAt, createdAt string
	var finishedAt, artifactPath, checksum, errorText, emailError sql.NullString

	err := row.Scan(
		&run.ID, &startedAt, &finishedAt, &run.Status, &run.Backend, &run.DataPath, &run.TemplatePath,
		&artifactPath, &run.Bytes, &checksum, &errorText, &run.EmailSent, &emailError, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	// Convert nullable fields
	if t := parseTimestamp(startedAt); t != nil {
		run.StartedAt = *t
	}
	if t := parseTimestamp(createdAt); t != nil {
		run.CreatedAt = *t
	}
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	run.ArtifactPath = artifactPath.String
	run.Checksum = checksum.String
	run.ErrorText = errorText.String
	run.EmailError = emailError.String

	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
