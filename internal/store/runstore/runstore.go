// Package runstore 把每个想法的处理过程与修复循环迭代落到 SQLite，
// 供状态接口查询；流水线本身不依赖它做决策。
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run 的终态集合。
const (
	StatusRunning         = "running"
	StatusOK              = "ok"
	StatusSkipped         = "skipped"
	StatusTargetHit       = "target_hit"
	StatusBudgetExhausted = "budget_exhausted"
)

// Run 对应一次想法处理。
type Run struct {
	ID            string
	ContentHash   string
	StrategyName  string
	SourceSnippet string
	DateFolder    string
	Status        string
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   time.Time
}

// Iteration 对应修复循环的一次执行。
type Iteration struct {
	ID             int64
	RunID          string
	Iteration      int
	Classification string
	ReturnPct      sql.NullFloat64
	ReturnCode     sql.NullInt64
	TimedOut       bool
	DurationMS     int64
	ScriptPath     string
	ResultPath     string
	CreatedAt      time.Time
}

// Store 管理 pipeline_runs / loop_iterations 两张表。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("run store path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			strategy_name TEXT NOT NULL DEFAULT '',
			source_snippet TEXT NOT NULL DEFAULT '',
			date_folder TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS loop_iterations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			classification TEXT NOT NULL,
			return_pct REAL,
			return_code INTEGER,
			timed_out INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			script_path TEXT NOT NULL DEFAULT '',
			result_path TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES pipeline_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_hash ON pipeline_runs(content_hash);`,
		`CREATE INDEX IF NOT EXISTS idx_iterations_run ON loop_iterations(run_id, iteration);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入一条 run 记录，状态为 running。
func (s *Store) InsertRun(ctx context.Context, run Run) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs
			(id, content_hash, strategy_name, source_snippet, date_folder, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ContentHash, run.StrategyName, run.SourceSnippet, run.DateFolder,
		StatusRunning, run.Message, now, now)
	return err
}

// SetStrategyName 在 Research 产出名字后回填。
func (s *Store) SetStrategyName(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET strategy_name=?, updated_at=? WHERE id=?`,
		name, time.Now().UnixMilli(), id)
	return err
}

// Finish 记录终态与说明。
func (s *Store) Finish(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs SET status=?, message=?, updated_at=?, completed_at=? WHERE id=?`,
		status, message, now, now, id)
	return err
}

// InsertIteration 记录一次修复循环执行。
func (s *Store) InsertIteration(ctx context.Context, it Iteration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO loop_iterations
			(run_id, iteration, classification, return_pct, return_code, timed_out, duration_ms, script_path, result_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.RunID, it.Iteration, it.Classification, it.ReturnPct, it.ReturnCode,
		boolInt(it.TimedOut), it.DurationMS, it.ScriptPath, it.ResultPath, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListRuns 按创建时间倒序返回最近的 run。
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_hash, strategy_name, source_snippet, date_folder, status,
		       COALESCE(message, ''), created_at, updated_at, COALESCE(completed_at, 0)
		FROM pipeline_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created, updated, completed int64
		if err := rows.Scan(&r.ID, &r.ContentHash, &r.StrategyName, &r.SourceSnippet,
			&r.DateFolder, &r.Status, &r.Message, &created, &updated, &completed); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(created)
		r.UpdatedAt = time.UnixMilli(updated)
		if completed > 0 {
			r.CompletedAt = time.UnixMilli(completed)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun 按 ID 取单条 run。
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var created, updated, completed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, strategy_name, source_snippet, date_folder, status,
		       COALESCE(message, ''), created_at, updated_at, COALESCE(completed_at, 0)
		FROM pipeline_runs WHERE id=?`, id).
		Scan(&r.ID, &r.ContentHash, &r.StrategyName, &r.SourceSnippet, &r.DateFolder,
			&r.Status, &r.Message, &created, &updated, &completed)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.UnixMilli(created)
	r.UpdatedAt = time.UnixMilli(updated)
	if completed > 0 {
		r.CompletedAt = time.UnixMilli(completed)
	}
	return r, nil
}

// ListIterations 按迭代号升序返回某个 run 的全部迭代。
func (s *Store) ListIterations(ctx context.Context, runID string) ([]Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, iteration, classification, return_pct, return_code,
		       timed_out, duration_ms, script_path, result_path, created_at
		FROM loop_iterations WHERE run_id=? ORDER BY iteration ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var it Iteration
		var timedOut int
		var created int64
		if err := rows.Scan(&it.ID, &it.RunID, &it.Iteration, &it.Classification,
			&it.ReturnPct, &it.ReturnCode, &timedOut, &it.DurationMS,
			&it.ScriptPath, &it.ResultPath, &created); err != nil {
			return nil, err
		}
		it.TimedOut = timedOut != 0
		it.CreatedAt = time.UnixMilli(created)
		out = append(out, it)
	}
	return out, rows.Err()
}
