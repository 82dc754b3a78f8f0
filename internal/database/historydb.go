package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/minicrawler/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "minicrawler.db"

// timeLayout stores timestamps in UTC with fixed width, so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// HistoryDB provides SQLite-based storage for crawl runs.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
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
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := hdb.createTables(ctx); err != nil {
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

func (h *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	-- One row per crawl
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		successful_pages INTEGER NOT NULL,
		failed_pages INTEGER NOT NULL,
		total_pages_attempted INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		settings TEXT NOT NULL,
		failures TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Records in collection order
	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// RunSettings are the crawl settings stored with a run.
type RunSettings struct {
	Concurrency int           `json:"concurrency"`
	MaxPages    int           `json:"max_pages"`
	Delay       time.Duration `json:"delay"`
	StartURL    string        `json:"start_url,omitempty"`
}

// Run is the stored summary of one crawl, without its records.
type Run struct {
	ID          string
	Site        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Stats       model.Stats
	RecordCount int
	Settings    RunSettings
	Failures    []model.PageFailure
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveRun stores a result and its records in one transaction and returns the new run id.
func (h *HistoryDB) SaveRun(ctx context.Context, result *model.Result, settings RunSettings) (string, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("failed to serialize settings: %w", err)
	}
	failures := result.Failures
	if failures == nil {
		failures = []model.PageFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return "", fmt.Errorf("failed to serialize failures: %w", err)
	}

	id := uuid.NewString()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, site, started_at, finished_at, successful_pages, failed_pages,
		total_pages_attempted, record_count, settings, failures)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		result.Site,
		formatTime(result.StartedAt),
		formatTime(result.FinishedAt),
		result.Stats.SuccessfulPages,
		result.Stats.FailedPages,
		result.Stats.TotalPagesAttempted,
		len(result.Records),
		string(settingsJSON),
		string(failuresJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO records (run_id, seq, data) VALUES (?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range result.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("failed to serialize record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(data)); err != nil {
			return "", fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

const runColumns = `id, site, started_at, finished_at, successful_pages, failed_pages,
	total_pages_attempted, record_count, settings, failures`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                Run
		started, finished  string
		settings, failures string
	)
	err := row.Scan(
		&run.ID,
		&run.Site,
		&started,
		&finished,
		&run.Stats.SuccessfulPages,
		&run.Stats.FailedPages,
		&run.Stats.TotalPagesAttempted,
		&run.RecordCount,
		&settings,
		&failures,
	)
	if err != nil {
		return Run{}, err
	}

	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	if err := json.Unmarshal([]byte(settings), &run.Settings); err != nil {
		return Run{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
		return Run{}, fmt.Errorf("failed to parse failures: %w", err)
	}
	return run, nil
}

// ListRuns returns saved runs, newest first. An empty site lists every site;
// limit <= 0 means no limit.
func (h *HistoryDB) ListRuns(ctx context.Context, site string, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	args := make([]any, 0, 2)

	if site != "" {
		query += " AND site = ?"
		args = append(args, site)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose id equals or starts with idPrefix.
func (h *HistoryDB) GetRun(ctx context.Context, idPrefix string) (*Run, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" {
		return nil, ErrRunNotFound
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2",
		len(idPrefix), idPrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, idPrefix)
	}
}

// GetRecords returns a run's records in collection order.
func (h *HistoryDB) GetRecords(ctx context.Context, runID string) ([]model.Record, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT data FROM records WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec model.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadResult rebuilds the full result of a saved run.
func (h *HistoryDB) LoadResult(ctx context.Context, idPrefix string) (*model.Result, *Run, error) {
	run, err := h.GetRun(ctx, idPrefix)
	if err != nil {
		return nil, nil, err
	}
	records, err := h.GetRecords(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}

	result := model.NewResult(run.Site)
	result.Records = records
	result.Stats = run.Stats
	result.StartedAt = run.StartedAt
	result.FinishedAt = run.FinishedAt
	if len(run.Failures) > 0 {
		result.Failures = run.Failures
	}
	return result, run, nil
}

// DeleteRun removes a run and its records.
func (h *HistoryDB) DeleteRun(ctx context.Context, runID string) error {
	res, err := h.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// More specific formats come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite CURRENT_TIMESTAMP
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with each known format and returns the zero time
// if none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// IsNotFound reports whether err means the run or database does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrDatabaseNotFound)
}
