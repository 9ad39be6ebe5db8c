package privacy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// StoredEvent is one persisted audit row. Only severities and pattern
// names survive; matched text and prompt content do not.
type StoredEvent struct {
	ID             int64
	Timestamp      time.Time
	ModelID        string
	Provider       string
	MatchCount     int
	Severities     []string
	PatternNames   []string
	PromptLength   int
	Recommendation string
}

// Summary aggregates the event table.
type Summary struct {
	TotalEvents int
	BySeverity  map[string]int
	ByPattern   map[string]int
}

// Store persists privacy events in SQLite.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewStore opens (and migrates) the privacy event database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open privacy database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS privacy_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		model_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		match_count INTEGER NOT NULL,
		severities TEXT NOT NULL,
		pattern_names TEXT NOT NULL,
		prompt_length INTEGER NOT NULL,
		recommendation TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_privacy_timestamp ON privacy_events(timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create privacy schema: %w", err)
	}

	L_info("privacy store opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a single audit event.
func (s *Store) Record(event *Event) error {
	severities := make([]string, len(event.Matches))
	patternNames := make([]string, len(event.Matches))
	for i, m := range event.Matches {
		severities[i] = m.Severity
		patternNames[i] = m.PatternName
	}

	sevJSON, err := json.Marshal(severities)
	if err != nil {
		return err
	}
	patJSON, err := json.Marshal(patternNames)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO privacy_events (timestamp, model_id, provider, match_count,
			severities, pattern_names, prompt_length, recommendation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(time.RFC3339Nano), event.ModelID, event.Provider,
		len(event.Matches), string(sevJSON), string(patJSON),
		event.PromptLength, event.Recommendation)
	if err != nil {
		return fmt.Errorf("failed to record privacy event: %w", err)
	}
	return nil
}

// Query returns events in the time range whose maximum severity meets
// or exceeds minSeverity (empty = no severity bar).
func (s *Store) Query(start, end time.Time, minSeverity string) ([]StoredEvent, error) {
	where := "1=1"
	args := []any{}
	if !start.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, start.UTC().Format(time.RFC3339Nano))
	}
	if !end.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, end.UTC().Format(time.RFC3339Nano))
	}

	rows, err := s.db.Query(`
		SELECT id, timestamp, model_id, provider, match_count,
			severities, pattern_names, prompt_length, recommendation
		FROM privacy_events WHERE `+where+` ORDER BY timestamp`, args...)
	if err != nil {
		return nil, fmt.Errorf("privacy query failed: %w", err)
	}
	defer rows.Close()

	minRank := -1
	if minSeverity != "" {
		minRank = severityRank(minSeverity)
	}

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var ts, sevJSON, patJSON string
		if err := rows.Scan(&ev.ID, &ts, &ev.ModelID, &ev.Provider, &ev.MatchCount,
			&sevJSON, &patJSON, &ev.PromptLength, &ev.Recommendation); err != nil {
			return nil, err
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if err := json.Unmarshal([]byte(sevJSON), &ev.Severities); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(patJSON), &ev.PatternNames); err != nil {
			return nil, err
		}

		maxRank := 0
		for _, sev := range ev.Severities {
			if r := severityRank(sev); r > maxRank {
				maxRank = r
			}
		}
		if maxRank < minRank {
			continue
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Summarize aggregates every stored event by severity and pattern.
func (s *Store) Summarize() (Summary, error) {
	events, err := s.Query(time.Time{}, time.Time{}, "")
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		TotalEvents: len(events),
		BySeverity:  map[string]int{},
		ByPattern:   map[string]int{},
	}
	for _, ev := range events {
		for _, sev := range ev.Severities {
			sum.BySeverity[sev]++
		}
		for _, name := range ev.PatternNames {
			sum.ByPattern[name]++
		}
	}
	return sum, nil
}

// PurgeBefore deletes events older than cutoff.
func (s *Store) PurgeBefore(cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`DELETE FROM privacy_events WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("privacy purge failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
