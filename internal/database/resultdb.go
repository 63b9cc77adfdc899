package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/donbonifacio/scavenger8/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "scavenger8.db"

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// ResultDB provides SQLite-based storage for runs and their results.
// It is safe for concurrent use.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers don't block the
	// sink while it writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
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

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// Path returns the path of the database file.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables() error {
	schema := `
	-- One row per pipeline run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		submitted INTEGER DEFAULT 0,
		processed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per page that reached the sink
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		body_size INTEGER NOT NULL,
		body_hash TEXT NOT NULL,
		technologies TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_url ON results(url);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a stored pipeline run.
type Run struct {
	ID         string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	Submitted  int64
	Processed  int64
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Result is a stored page result.
type Result struct {
	ID           int64
	RunID        string
	URL          string
	BodySize     int
	BodyHash     string
	Technologies []string
	RecordedAt   time.Time
}

// StartRun creates a new run for source and returns it.
func (rdb *ResultDB) StartRun(ctx context.Context, source string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}

	query := `INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)`
	if _, err := rdb.db.ExecContext(ctx, query, run.ID, run.Source, formatTimestamp(run.StartedAt)); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final totals of a run.
func (rdb *ResultDB) FinishRun(ctx context.Context, runID string, submitted, processed int64) error {
	query := `UPDATE runs SET finished_at = ?, submitted = ?, processed = ? WHERE id = ?`
	res, err := rdb.db.ExecContext(ctx, query, formatTimestamp(time.Now().UTC()), submitted, processed, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
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

// GetRun returns the run with the given id.
func (rdb *ResultDB) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
	SELECT id, source, started_at, finished_at, submitted, processed
	FROM runs WHERE id = ?
	`
	run, err := scanRun(rdb.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run, most recent first.
func (rdb *ResultDB) ListRuns(ctx context.Context) ([]Run, error) {
	query := `
	SELECT id, source, started_at, finished_at, submitted, processed
	FROM runs ORDER BY started_at DESC, rowid DESC
	`
	rows, err := rdb.db.QueryContext(ctx, query)
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
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Source, &started, &finished, &run.Submitted, &run.Processed); err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	return &run, nil
}

// InsertResult stores one finished item for runID.
func (rdb *ResultDB) InsertResult(ctx context.Context, runID string, item model.Item) error {
	if item.IsEndOfStream() {
		return errors.New("cannot store the end-of-stream marker")
	}

	body, _ := item.Body()
	technologies := item.Matches()
	if technologies == nil {
		technologies = []string{}
	}
	techJSON, err := json.Marshal(technologies)
	if err != nil {
		return fmt.Errorf("failed to serialize technologies: %w", err)
	}

	query := `
	INSERT INTO results (run_id, url, body_size, body_hash, technologies, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = rdb.db.ExecContext(ctx, query,
		runID,
		item.Key(),
		len(body),
		HashBody(body),
		string(techJSON),
		formatTimestamp(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// Results returns the results of runID in insertion order.
func (rdb *ResultDB) Results(ctx context.Context, runID string) ([]Result, error) {
	query := `
	SELECT id, run_id, url, body_size, body_hash, technologies, recorded_at
	FROM results WHERE run_id = ? ORDER BY id
	`
	rows, err := rdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r        Result
			techJSON string
			recorded string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.URL, &r.BodySize, &r.BodyHash, &techJSON, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(techJSON), &r.Technologies); err != nil {
			return nil, fmt.Errorf("failed to deserialize technologies: %w", err)
		}
		r.RecordedAt = parseTimestamp(recorded)
		results = append(results, r)
	}
	return results, rows.Err()
}

// TechnologyCounts returns how many results of runID matched each technology.
func (rdb *ResultDB) TechnologyCounts(ctx context.Context, runID string) (map[string]int64, error) {
	query := `
	SELECT j.value, COUNT(*)
	FROM results r, json_each(r.technologies) j
	WHERE r.run_id = ?
	GROUP BY j.value
	`
	rows, err := rdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count technologies: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan technology count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// Recorder returns a recorder that stores every item under runID.
func (rdb *ResultDB) Recorder(runID string) *Recorder {
	return &Recorder{db: rdb, runID: runID}
}

// Recorder stores sink items for one run.
type Recorder struct {
	db    *ResultDB
	runID string
}

// Record stores item.
func (r *Recorder) Record(ctx context.Context, item model.Item) error {
	return r.db.InsertResult(ctx, r.runID, item)
}

// HashBody returns the hex SHA3-256 digest of body.
func HashBody(body string) string {
	sum := sha3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// timestampLayout has fixed width so that stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the formats SQLite may hand back.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
