package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/docmirror/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "docmirror.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores finished runs and the pages they saved.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer. Batch runs share this handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per finished crawl
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_url TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		discovered INTEGER NOT NULL,
		downloaded INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		duration REAL NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		manifest_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root_url);

	-- Pages saved by a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT,
		hash TEXT NOT NULL,
		bytes INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and its pages in one transaction and
// sets run.ID to the new row ID.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.RunRecord) (int64, error) {
	manifestJSON, err := json.Marshal(run.Manifest)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize manifest: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	m := run.Manifest
	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (root_url, output_dir, generated_at, discovered, downloaded, skipped, duration, manifest_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.RootURL,
		run.OutputDir,
		m.GeneratedAt,
		m.DiscoveredURLs,
		m.DownloadedPages,
		m.SkippedPages,
		m.DurationSeconds,
		string(manifestJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, url, path, title, hash, bytes)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range run.Pages {
		if _, err := stmt.ExecContext(ctx, id, p.URL, p.Path, p.Title, p.Hash, p.Bytes); err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = id
	return id, nil
}

// ListRuns returns runs newest first without their pages.
// An empty rootURL lists runs of every root. A limit of zero or less
// returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, rootURL string, limit int) ([]model.RunRecord, error) {
	query := `SELECT id, output_dir, manifest_json FROM runs`
	args := make([]any, 0, 2)
	if rootURL != "" {
		query += ` WHERE root_url = ?`
		args = append(args, rootURL)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunRecord, 0)
	for rows.Next() {
		var run model.RunRecord
		var manifestJSON string
		if err := rows.Scan(&run.ID, &run.OutputDir, &manifestJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(manifestJSON), &run.Manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest of run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its pages.
// It returns ErrRunNotFound when id does not exist.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*model.RunRecord, error) {
	run := &model.RunRecord{}
	var manifestJSON string
	err := h.db.QueryRowContext(ctx,
		`SELECT id, output_dir, manifest_json FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.OutputDir, &manifestJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if err := json.Unmarshal([]byte(manifestJSON), &run.Manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest of run %d: %w", id, err)
	}

	pages, err := h.GetRunPages(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Pages = pages
	return run, nil
}

// GetRunPages returns the pages a run saved, in the order they were written.
func (h *HistoryDB) GetRunPages(ctx context.Context, runID int64) ([]model.PageRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, path, COALESCE(title, ''), hash, bytes
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageRecord, 0)
	for rows.Next() {
		var p model.PageRecord
		if err := rows.Scan(&p.URL, &p.Path, &p.Title, &p.Hash, &p.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeleteRun removes a run and its pages.
// It returns ErrRunNotFound when id does not exist.
func (h *HistoryDB) DeleteRun(ctx context.Context, id int64) error {
	result, err := h.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return nil
}

// ChangedPages compares the pages of run id with the previous run of the
// same root and returns the URLs whose content hash differs or that are
// new. It returns nil when there is no previous run.
func (h *HistoryDB) ChangedPages(ctx context.Context, id int64) ([]string, error) {
	var rootURL string
	err := h.db.QueryRowContext(ctx, `SELECT root_url FROM runs WHERE id = ?`, id).Scan(&rootURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var prevID int64
	err = h.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE root_url = ? AND id < ? ORDER BY id DESC LIMIT 1`,
		rootURL, id,
	).Scan(&prevID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find previous run: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT cur.url
	FROM pages cur
	LEFT JOIN pages prev ON prev.run_id = ? AND prev.url = cur.url
	WHERE cur.run_id = ? AND (prev.hash IS NULL OR prev.hash <> cur.hash)
	ORDER BY cur.id
	`, prevID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to compare runs: %w", err)
	}
	defer rows.Close()

	changed := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		changed = append(changed, u)
	}
	return changed, rows.Err()
}
