package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists runs and sweep trials to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets reports read while a sweep is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL UNIQUE,
			recorded_at  INTEGER NOT NULL,
			strategy     TEXT,
			params       TEXT,
			tickers      TEXT,
			start_ts     INTEGER,
			end_ts       INTEGER,
			steps        INTEGER,
			aborted      INTEGER,
			initial_cash REAL,
			final_value  REAL,
			commission   REAL,
			fills        INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS trials (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			sweep_id     TEXT NOT NULL,
			trial_id     TEXT NOT NULL UNIQUE,
			recorded_at  INTEGER NOT NULL,
			strategy     TEXT,
			params       TEXT,
			ticker       TEXT,
			start_ts     INTEGER,
			end_ts       INTEGER,
			exit_ts      INTEGER,
			aborted      INTEGER,
			initial_cash REAL,
			final_value  REAL,
			ratio        REAL,
			commission   REAL,
			fills        INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_sweep ON trials(sweep_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_ticker ON trials(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(run_id, recorded_at, strategy, params, tickers, start_ts, end_ts,
		 steps, aborted, initial_cash, final_value, commission, fills)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.RunID, time.Now().Unix(), run.Strategy, run.Params,
		strings.Join(run.Tickers, ","), run.Start.Unix(), run.End.Unix(),
		run.Steps, run.Aborted, run.InitialCash, run.FinalValue, run.Commission, run.Fills,
	)
	return err
}

func (r *SQLiteRecorder) RecordTrial(t *Trial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trials
		(sweep_id, trial_id, recorded_at, strategy, params, ticker,
		 start_ts, end_ts, exit_ts, aborted,
		 initial_cash, final_value, ratio, commission, fills)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.SweepID, t.TrialID, time.Now().Unix(), t.Strategy, t.Params, t.Ticker,
		t.Start.Unix(), t.End.Unix(), unixOrNull(t.ExitTime), t.Aborted,
		t.InitialCash, t.FinalValue, t.Ratio, t.Commission, t.Fills,
	)
	return err
}

// ListTrials returns the trials of a sweep in insertion order.
func (r *SQLiteRecorder) ListTrials(sweepID string) ([]Trial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT sweep_id, trial_id, strategy, params, ticker,
		start_ts, end_ts, exit_ts, aborted, initial_cash, final_value, ratio, commission, fills
		FROM trials WHERE sweep_id = ? ORDER BY id`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trial
	for rows.Next() {
		var (
			t          Trial
			start, end int64
			exit       sql.NullInt64
		)
		if err := rows.Scan(&t.SweepID, &t.TrialID, &t.Strategy, &t.Params, &t.Ticker,
			&start, &end, &exit, &t.Aborted, &t.InitialCash, &t.FinalValue, &t.Ratio,
			&t.Commission, &t.Fills); err != nil {
			return nil, err
		}
		t.Start = time.Unix(start, 0)
		t.End = time.Unix(end, 0)
		if exit.Valid {
			t.ExitTime = time.Unix(exit.Int64, 0)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}

func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
