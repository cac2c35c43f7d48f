package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadopc/httping/internal/probe"
)

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

// Store persists finished probe runs and their records.
type Store struct {
	db *sql.DB
}

// NewStore opens (and creates) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// One connection: an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			backend      TEXT NOT NULL,
			host         TEXT NOT NULL,
			status       TEXT NOT NULL,
			error        TEXT,
			started_at   TEXT NOT NULL,
			finished_at  TEXT,
			record_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);
		CREATE TABLE IF NOT EXISTS records (
			run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq           INTEGER NOT NULL,
			loc           TEXT NOT NULL,
			ip            TEXT NOT NULL,
			status        INTEGER NOT NULL,
			total         TEXT NOT NULL,
			redirect      INTEGER NOT NULL,
			redirect_cost TEXT NOT NULL,
			phases        TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating history tables: %w", err)
	}
	return nil
}

// Add inserts a run and its records.
func (s *Store) Add(r Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, backend, host, status, error, started_at, finished_at, record_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Backend, r.Host, r.Status, r.Error,
		formatTime(r.StartedAt), formatTime(r.FinishedAt), len(r.Records),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, rec := range r.Records {
		phases := make([]phaseJSON, 0, len(rec.Phases()))
		for _, p := range rec.Phases() {
			phases = append(phases, phaseJSON{Name: p.Name, Cost: p.Cost})
		}
		pj, err := json.Marshal(phases)
		if err != nil {
			return fmt.Errorf("encoding phases: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO records (run_id, seq, loc, ip, status, total, redirect, redirect_cost, phases)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, rec.Loc(), rec.IP(), rec.Status(), rec.TotalCost(),
			rec.Redirect(), rec.RedirectCost(), string(pj),
		)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, backend, host, status, COALESCE(error, ''), started_at, COALESCE(finished_at, ''), record_count`

// List returns the most recent runs, without records.
func (s *Store) List(limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Search returns runs whose host contains query.
func (s *Store) Search(query string) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+`
		FROM runs
		WHERE host LIKE ?
		ORDER BY started_at DESC
		LIMIT 50`, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Get returns one run with its records in arrival order.
func (s *Store) Get(id string) (Run, error) {
	return s.get(context.Background(), id)
}

func (s *Store) get(ctx context.Context, id string) (Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return Run{}, fmt.Errorf("loading run: %w", err)
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	run := runs[0]

	run.Records, err = s.records(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) records(ctx context.Context, runID string) ([]probe.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT loc, ip, status, total, redirect, redirect_cost, phases
		FROM records
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	var records []probe.Record
	for rows.Next() {
		var f probe.RecordFields
		var pj string
		if err := rows.Scan(&f.Loc, &f.IP, &f.Status, &f.TotalCost, &f.Redirect, &f.RedirectCost, &pj); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		var phases []phaseJSON
		if err := json.Unmarshal([]byte(pj), &phases); err != nil {
			return nil, fmt.Errorf("decoding phases: %w", err)
		}
		for _, p := range phases {
			f.Phases = append(f.Phases, probe.Phase{Name: p.Name, Cost: p.Cost})
		}
		records = append(records, probe.NewRecord(f))
	}
	return records, rows.Err()
}

// LatestRecords returns the records of the run with id key or, failing
// that, of the most recent run for host key that produced records.
func (s *Store) LatestRecords(ctx context.Context, key string) ([]probe.Record, error) {
	run, err := s.get(ctx, key)
	if err == nil {
		return run.Records, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		WHERE host = ? AND record_count > 0
		ORDER BY started_at DESC
		LIMIT 1`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no recorded run for %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("finding run for %s: %w", key, err)
	}
	return s.records(ctx, id)
}

// Count returns the number of stored runs.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}

// Delete removes one run and its records.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM records WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

// Clear removes all history.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM records"); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		err := rows.Scan(&r.ID, &r.Backend, &r.Host, &r.Status, &r.Error, &started, &finished, &r.RecordCount)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(timeLayout, finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
