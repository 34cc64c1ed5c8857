// Package store persists session outcomes to SQLite for post-hoc analysis.
// Only the outcome row is stored; live session state is never persisted or
// restored.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"hdlforge/internal/logging"
	"hdlforge/internal/state"
	"hdlforge/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_history (
	session_id    TEXT PRIMARY KEY,
	task          TEXT NOT NULL,
	success       INTEGER NOT NULL,
	tier          INTEGER NOT NULL,
	invocations   INTEGER NOT NULL,
	refinements   INTEGER NOT NULL,
	last_category TEXT,
	final_message TEXT,
	elapsed_ms    INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_history_created ON session_history(created_at);
`

// Record is one persisted session outcome.
type Record struct {
	SessionID    string
	Task         string
	Success      bool
	Tier         types.Tier
	Invocations  int
	Refinements  int
	LastCategory types.ErrorCategory
	FinalMessage string
	Elapsed      time.Duration
	CreatedAt    time.Time
}

// HistoryStore is the SQLite-backed session history.
type HistoryStore struct {
	db  *sql.DB
	log *logging.Logger
}

// Open initializes the history database at the given path, creating the
// directory and schema as needed.
func Open(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &HistoryStore{db: db, log: logging.Get(logging.CategorySession)}, nil
}

// Save persists a finished session's outcome.
func (h *HistoryStore) Save(s *state.SessionState) error {
	rec := fromState(s)
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO session_history
		(session_id, task, success, tier, invocations, refinements, last_category, final_message, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Task, boolToInt(rec.Success), int(rec.Tier), rec.Invocations,
		rec.Refinements, string(rec.LastCategory), rec.FinalMessage,
		rec.Elapsed.Milliseconds(), rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	h.log.Debug("saved session %s (tier %d)", rec.SessionID, rec.Tier)
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (h *HistoryStore) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(`
		SELECT session_id, task, success, tier, invocations, refinements, last_category, final_message, elapsed_ms, created_at
		FROM session_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var success, elapsedMS int64
		var tier int
		var category, createdAt string
		if err := rows.Scan(&rec.SessionID, &rec.Task, &success, &tier, &rec.Invocations,
			&rec.Refinements, &category, &rec.FinalMessage, &elapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.Success = success != 0
		rec.Tier = types.Tier(tier)
		rec.LastCategory = types.ErrorCategory(category)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

func fromState(s *state.SessionState) Record {
	return Record{
		SessionID:    s.SessionID,
		Task:         s.Task.Description,
		Success:      s.Success,
		Tier:         s.CurrentTier,
		Invocations:  s.Invocations,
		Refinements:  s.CodeRefinements,
		LastCategory: s.ErrorCategory,
		FinalMessage: s.FinalMessage,
		Elapsed:      s.Elapsed(),
		CreatedAt:    s.StartTime,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
