// Package usage persists the append-only per-attempt usage ledger.
package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// Record is one routing attempt, success or failure. Token counts are
// zero for failed attempts.
type Record struct {
	Timestamp      time.Time
	ModelID        string
	Provider       string
	Role           string
	Intent         string
	InputTokens    int
	OutputTokens   int
	ElapsedSeconds float64
	Success        bool
	IsCloud        bool
}

// Query filters usage rows. Zero-valued fields are ignored.
type Query struct {
	Start    time.Time
	End      time.Time
	ModelID  string
	Provider string
	Role     string
	Intent   string
}

// TokenTotals aggregates token counts for one grouping key.
type TokenTotals struct {
	InputTokens  int
	OutputTokens int
	Requests     int
}

// Store is the SQLite-backed ledger. Writes serialize under one mutex;
// WAL mode lets readers proceed alongside.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewStore opens (and migrates) the usage database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		model_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		role TEXT NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		elapsed_s REAL NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		is_cloud INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_model ON usage(model_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}

	L_info("usage store opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one usage row.
func (s *Store) Record(r Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO usage (timestamp, model_id, provider, role, intent,
			input_tokens, output_tokens, elapsed_s, success, is_cloud)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano), r.ModelID, r.Provider, r.Role, r.Intent,
		r.InputTokens, r.OutputTokens, r.ElapsedSeconds,
		boolToInt(r.Success), boolToInt(r.IsCloud))
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Query returns rows matching q in insertion order.
func (s *Store) Query(q Query) ([]Record, error) {
	where := "1=1"
	args := []any{}

	if !q.Start.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, q.Start.UTC().Format(time.RFC3339Nano))
	}
	if !q.End.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, q.End.UTC().Format(time.RFC3339Nano))
	}
	if q.ModelID != "" {
		where += " AND model_id = ?"
		args = append(args, q.ModelID)
	}
	if q.Provider != "" {
		where += " AND provider = ?"
		args = append(args, q.Provider)
	}
	if q.Role != "" {
		where += " AND role = ?"
		args = append(args, q.Role)
	}
	if q.Intent != "" {
		where += " AND intent = ?"
		args = append(args, q.Intent)
	}

	rows, err := s.db.Query(`
		SELECT timestamp, model_id, provider, role, intent,
			input_tokens, output_tokens, elapsed_s, success, is_cloud
		FROM usage WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("usage query failed: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts string
		var success, isCloud int
		if err := rows.Scan(&ts, &r.ModelID, &r.Provider, &r.Role, &r.Intent,
			&r.InputTokens, &r.OutputTokens, &r.ElapsedSeconds, &success, &isCloud); err != nil {
			return nil, err
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		r.Success = success != 0
		r.IsCloud = isCloud != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// AggregateTokens returns token totals grouped by model ID.
func (s *Store) AggregateTokens() (map[string]TokenTotals, error) {
	rows, err := s.db.Query(`
		SELECT model_id, SUM(input_tokens), SUM(output_tokens), COUNT(*)
		FROM usage GROUP BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("usage aggregate failed: %w", err)
	}
	defer rows.Close()

	out := map[string]TokenTotals{}
	for rows.Next() {
		var model string
		var t TokenTotals
		if err := rows.Scan(&model, &t.InputTokens, &t.OutputTokens, &t.Requests); err != nil {
			return nil, err
		}
		out[model] = t
	}
	return out, rows.Err()
}

// TotalTokens returns the grand token totals across every row.
func (s *Store) TotalTokens() (TokenTotals, error) {
	var t TokenTotals
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0), COUNT(*)
		FROM usage`).Scan(&t.InputTokens, &t.OutputTokens, &t.Requests)
	if err != nil {
		return t, fmt.Errorf("usage totals failed: %w", err)
	}
	return t, nil
}

// PurgeBefore deletes rows older than cutoff, returning the count removed.
func (s *Store) PurgeBefore(cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`DELETE FROM usage WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("usage purge failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		L_info("usage rows purged", "count", n, "before", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
