package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"reviewradar/internal/signal"
)

// Store wraps SQLite access for analysis results and run history.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			app_name TEXT NOT NULL,
			niche TEXT NOT NULL,
			analysis_date TEXT,
			risk_score REAL,
			negative_ratio REAL,
			volatility_slope REAL,
			total_reviews INTEGER,
			primary_pillar TEXT,
			suspected_version TEXT,
			payload_json TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			PRIMARY KEY (app_name, niche)
		);`,
		`CREATE TABLE IF NOT EXISTS intelligence (
			app_name TEXT NOT NULL,
			niche TEXT NOT NULL,
			payload_json TEXT,
			updated_at TIMESTAMP,
			PRIMARY KEY (app_name, niche)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			niche TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			apps_total INTEGER,
			apps_failed INTEGER,
			failures_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_niche ON analyses(niche, risk_score);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Run is one batch execution recorded for audit.
type Run struct {
	ID         int64      `json:"id"`
	Niche      string     `json:"niche"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	AppsTotal  int        `json:"apps_total"`
	AppsFailed int        `json:"apps_failed"`
	Failures   []string   `json:"failures"`
}

// SaveAnalysis upserts one app's analysis keyed by (app, niche). Reruns
// replace the previous result.
func (s *Store) SaveAnalysis(ctx context.Context, niche string, a signal.Analysis, ts time.Time) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis for %s: %w", a.AppName, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO analyses(
			app_name, niche, analysis_date, risk_score, negative_ratio,
			volatility_slope, total_reviews, primary_pillar, suspected_version,
			payload_json, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(app_name, niche) DO UPDATE SET
			analysis_date=excluded.analysis_date,
			risk_score=excluded.risk_score,
			negative_ratio=excluded.negative_ratio,
			volatility_slope=excluded.volatility_slope,
			total_reviews=excluded.total_reviews,
			primary_pillar=excluded.primary_pillar,
			suspected_version=excluded.suspected_version,
			payload_json=excluded.payload_json,
			updated_at=excluded.updated_at`,
		a.AppName, niche, a.AnalysisDate, a.Metrics.RiskScore, a.Metrics.NegativeRatio,
		a.Metrics.VolatilitySlope, a.Metrics.TotalReviews, a.Signals.PrimaryPillar,
		a.Signals.SuspectedVersion, string(payload), ts, ts)
	return err
}

// SaveIntelligence upserts the forensic payload for one app.
func (s *Store) SaveIntelligence(ctx context.Context, niche, appName string, intel signal.Intelligence, ts time.Time) error {
	payload, err := json.Marshal(intel)
	if err != nil {
		return fmt.Errorf("marshal intelligence for %s: %w", appName, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO intelligence(app_name, niche, payload_json, updated_at)
		VALUES(?,?,?,?)
		ON CONFLICT(app_name, niche) DO UPDATE SET
			payload_json=excluded.payload_json,
			updated_at=excluded.updated_at`,
		appName, niche, string(payload), ts)
	return err
}

// ListAnalyses returns every stored analysis for a niche, highest risk
// first, rehydrated from the stored JSON payload.
func (s *Store) ListAnalyses(ctx context.Context, niche string) ([]signal.Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload_json FROM analyses WHERE niche=? ORDER BY risk_score DESC, app_name ASC`, niche)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var analyses []signal.Analysis
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a signal.Analysis
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("decode stored analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// GetIntelligence returns the stored forensic payload for one app, or
// (nil, nil) when absent.
func (s *Store) GetIntelligence(ctx context.Context, niche, appName string) (*signal.Intelligence, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM intelligence WHERE niche=? AND app_name=?`, niche, appName)
	var payload string
	switch err := row.Scan(&payload); err {
	case nil:
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
	var intel signal.Intelligence
	if err := json.Unmarshal([]byte(payload), &intel); err != nil {
		return nil, fmt.Errorf("decode stored intelligence: %w", err)
	}
	return &intel, nil
}

// StartRun records the beginning of a batch and returns its id.
func (s *Store) StartRun(ctx context.Context, niche string, ts time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(niche, started_at, apps_total, apps_failed, failures_json) VALUES(?,?,0,0,'[]')`,
		niche, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun records the batch outcome, including per-app failures.
func (s *Store) FinishRun(ctx context.Context, id int64, appsTotal int, failures []string, ts time.Time) error {
	if failures == nil {
		failures = []string{}
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at=?, apps_total=?, apps_failed=?, failures_json=? WHERE id=?`,
		ts, appsTotal, len(failures), string(payload), id)
	return err
}

// LastRun returns the most recent run for a niche, or nil.
func (s *Store) LastRun(ctx context.Context, niche string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, niche, started_at, finished_at, apps_total, apps_failed, failures_json
		 FROM runs WHERE niche=? ORDER BY id DESC LIMIT 1`, niche)
	var r Run
	var finished sql.NullTime
	var failures string
	switch err := row.Scan(&r.ID, &r.Niche, &r.StartedAt, &finished, &r.AppsTotal, &r.AppsFailed, &failures); err {
	case nil:
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		if err := json.Unmarshal([]byte(failures), &r.Failures); err != nil {
			r.Failures = nil
		}
		return &r, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
