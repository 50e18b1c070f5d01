package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/axon-sh/axon/pkg/errors"
)

// SQLiteStore persists runs in SQLite. Metrics and artifacts live in side
// tables keyed by run id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInvalidInput, "db is nil", nil)
	}
	if err := ensureRunSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) a SQLite database at path and wraps it
// in a store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New(errors.CodeInvalidInput, "run requires an id", nil)
	}
	params := ""
	if run.Params != nil {
		data, err := json.Marshal(run.Params)
		if err != nil {
			return err
		}
		params = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kernel_runs (run_id, name, subject, workspace, params_json, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Name, run.Subject, run.Workspace, params, string(run.Status), run.StartedAt.UTC())
	if err != nil {
		return err
	}
	for _, m := range run.Metrics {
		if err := s.AddMetric(ctx, run.ID, m); err != nil {
			return err
		}
	}
	for _, a := range run.Artifacts {
		if err := s.AddArtifact(ctx, run.ID, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, name, subject, workspace, params_json, status, started_at, ended_at
		FROM kernel_runs WHERE run_id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.CodeSpecNotFound, "run %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadMetrics(ctx, run); err != nil {
		return nil, err
	}
	if err := s.loadArtifacts(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) End(ctx context.Context, id string, status Status, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE kernel_runs SET status = ?, ended_at = ? WHERE run_id = ?
	`, string(status), endedAt.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.CodeSpecNotFound, "run %q not found", id)
	}
	return nil
}

func (s *SQLiteStore) AddMetric(ctx context.Context, id string, metric Metric) error {
	recorded := metric.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kernel_run_metrics (run_id, name, value, step, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, metric.Name, metric.Value, metric.Step, recorded.UTC())
	return err
}

func (s *SQLiteStore) AddArtifact(ctx context.Context, id string, artifact Artifact) error {
	recorded := artifact.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kernel_run_artifacts (run_id, name, uri, recorded_at)
		VALUES (?, ?, ?, ?)
	`, id, artifact.Name, artifact.URI, recorded.UTC())
	return err
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*Run, error) {
	query := `
		SELECT run_id, name, subject, workspace, params_json, status, started_at, ended_at
		FROM kernel_runs
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Status != "" {
		addFilter("status = ?", string(filter.Status))
	}
	if filter.Workspace != "" {
		addFilter("workspace = ?", filter.Workspace)
	}
	query += where + " ORDER BY started_at ASC, run_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, run := range out {
		if err := s.loadMetrics(ctx, run); err != nil {
			return nil, err
		}
		if err := s.loadArtifacts(ctx, run); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		paramsJSON string
		status     string
		started    sql.NullTime
		ended      sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.Name, &run.Subject, &run.Workspace, &paramsJSON, &status, &started, &ended); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	if paramsJSON != "" {
		var params map[string]string
		if err := json.Unmarshal([]byte(paramsJSON), &params); err == nil {
			run.Params = params
		}
	}
	if started.Valid {
		run.StartedAt = started.Time
	}
	if ended.Valid {
		run.EndedAt = ended.Time
	}
	return &run, nil
}

func (s *SQLiteStore) loadMetrics(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, step, recorded_at
		FROM kernel_run_metrics WHERE run_id = ? ORDER BY rowid ASC
	`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m        Metric
			recorded sql.NullTime
		)
		if err := rows.Scan(&m.Name, &m.Value, &m.Step, &recorded); err != nil {
			return err
		}
		if recorded.Valid {
			m.RecordedAt = recorded.Time
		}
		run.Metrics = append(run.Metrics, m)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadArtifacts(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, uri, recorded_at
		FROM kernel_run_artifacts WHERE run_id = ? ORDER BY rowid ASC
	`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a        Artifact
			recorded sql.NullTime
		)
		if err := rows.Scan(&a.Name, &a.URI, &recorded); err != nil {
			return err
		}
		if recorded.Valid {
			a.RecordedAt = recorded.Time
		}
		run.Artifacts = append(run.Artifacts, a)
	}
	return rows.Err()
}

func ensureRunSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kernel_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			subject TEXT,
			workspace TEXT,
			params_json TEXT,
			status TEXT NOT NULL,
			started_at TIMESTAMP,
			ended_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS kernel_run_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			step INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS kernel_run_artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			uri TEXT,
			recorded_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_kernel_runs_status ON kernel_runs(status);
		CREATE INDEX IF NOT EXISTS idx_kernel_run_metrics_run ON kernel_run_metrics(run_id);
		CREATE INDEX IF NOT EXISTS idx_kernel_run_artifacts_run ON kernel_run_artifacts(run_id);
	`)
	return err
}
