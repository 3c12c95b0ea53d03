package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skovsen/tbspread"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run describes one recorded simulation.
type Run struct {
	ID         string
	Seed       uint64
	Params     tbspread.Params
	Agents     int
	Ticks      int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// SQLiteStore persists run trajectories.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// BeginRun registers a new run and returns its id.
func (s *SQLiteStore) BeginRun(ctx context.Context, seed uint64, params tbspread.Params, agents int) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, params, agents, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, int64(seed), string(raw), agents, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// RecordBatch stores several ticks in one transaction.
func (s *SQLiteStore) RecordBatch(ctx context.Context, runID string, samples []tbspread.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO counts
		(run_id, tick, sustainable, latent, primary_infectious, post_primary_infectious, recovered, dead)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		c := sm.Counts
		if _, err := stmt.ExecContext(ctx, runID, sm.Tick,
			c[tbspread.Sustainable], c[tbspread.Latent], c[tbspread.PrimaryInfectious],
			c[tbspread.PostPrimaryInfectious], c[tbspread.Recovered], c[tbspread.Dead]); err != nil {
			return fmt.Errorf("inserting counts for tick %d: %w", sm.Tick, err)
		}
	}
	return tx.Commit()
}

// FinishRun stamps the run with the number of ticks executed.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, ticks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ticks = ?, finished_at = ? WHERE id = ?`,
		ticks, time.Now().UTC().Format(time.RFC3339Nano), runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seed, params, agents, ticks, started_at, finished_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed, params, agents, ticks, started_at, finished_at FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// Trajectory returns the recorded counts of a run in tick order.
func (s *SQLiteStore) Trajectory(ctx context.Context, runID string) ([]tbspread.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT tick, sustainable, latent, primary_infectious,
		post_primary_infectious, recovered, dead FROM counts WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying counts: %w", err)
	}
	defer rows.Close()

	var out []tbspread.Sample
	for rows.Next() {
		var sm tbspread.Sample
		c := &sm.Counts
		if err := rows.Scan(&sm.Tick, &c[tbspread.Sustainable], &c[tbspread.Latent],
			&c[tbspread.PrimaryInfectious], &c[tbspread.PostPrimaryInfectious],
			&c[tbspread.Recovered], &c[tbspread.Dead]); err != nil {
			return nil, fmt.Errorf("scanning counts: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		seed     int64
		params   string
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&r.ID, &seed, &params, &r.Agents, &r.Ticks, &started, &finished); err != nil {
		return Run{}, err
	}
	r.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return Run{}, fmt.Errorf("decoding params of run %s: %w", r.ID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		r.StartedAt = t
	}
	if finished.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return r, nil
}
