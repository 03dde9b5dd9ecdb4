// Package store provides a SQLite-backed log of answered questions and user
// feedback. Every chat exchange is recorded with its sources and confidence
// so the stats endpoint can report usage over time. Logging is best-effort:
// a failed write never affects the chat response.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Conversation is one answered question as it is persisted.
type Conversation struct {
	// Question is the user's message verbatim.
	Question string
	// Answer is the reply that was returned.
	Answer string
	// Sources are the citation URLs or titles backing the answer.
	Sources []string
	// Confidence is the retrieval confidence in [0,1].
	Confidence float64
	// ResponseTime is how long the request took end to end.
	ResponseTime time.Duration
	// CreatedAt is when the exchange was persisted.
	CreatedAt time.Time
}

// Feedback is a user rating of a previous answer.
type Feedback struct {
	Question  string
	Answer    string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// QuestionCount is one entry in the top-questions ranking.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// Stats summarizes logged activity for the stats endpoint.
type Stats struct {
	TotalConversations int             `json:"totalConversations"`
	TotalFeedback      int             `json:"totalFeedback"`
	AvgResponseTimeMs  float64         `json:"avgResponseTimeMs"`
	AvgConfidence      float64         `json:"avgConfidence"`
	TopQuestions       []QuestionCount `json:"topQuestions"`
}

// LogStore persists conversations and feedback. Implementations must be safe
// for concurrent use. A nil LogStore means logging is disabled.
type LogStore interface {
	// LogConversation persists one answered question.
	LogConversation(ctx context.Context, c Conversation) error
	// LogFeedback persists one feedback record.
	LogFeedback(ctx context.Context, f Feedback) error
	// Stats aggregates logged activity. Top questions cover the last 7 days.
	Stats(ctx context.Context) (*Stats, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a LogStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the conversation log database.
// It resolves to ~/.coursechat/conversations.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".coursechat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "conversations.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    question         TEXT    NOT NULL,
    answer           TEXT    NOT NULL,
    sources          TEXT    NOT NULL DEFAULT '[]',  -- JSON array
    confidence       REAL    NOT NULL DEFAULT 0,
    response_time_ms INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_conversations_created
    ON conversations (created_at);

CREATE TABLE IF NOT EXISTS feedback (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    question   TEXT    NOT NULL,
    answer     TEXT    NOT NULL,
    rating     INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 5),
    comment    TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// LogConversation persists one answered question. Sources are stored as a
// JSON array so the schema stays flat.
func (s *SQLiteStore) LogConversation(ctx context.Context, c Conversation) error {
	sources := c.Sources
	if sources == nil {
		sources = []string{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `INSERT INTO conversations (question, answer, sources, confidence, response_time_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		c.Question, c.Answer, string(encoded), c.Confidence,
		c.ResponseTime.Milliseconds(), createdAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: log conversation: %w", err)
	}
	return nil
}

// LogFeedback persists one feedback record. The rating range is enforced by
// the schema; callers validate before reaching this point.
func (s *SQLiteStore) LogFeedback(ctx context.Context, f Feedback) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `INSERT INTO feedback (question, answer, rating, comment, created_at)
VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		f.Question, f.Answer, f.Rating, f.Comment, createdAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: log feedback: %w", err)
	}
	return nil
}

// Stats aggregates logged activity. Top questions are ranked by exact-match
// count over the last 7 days, limited to 10.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{TopQuestions: []QuestionCount{}}

	const totals = `
SELECT COUNT(*),
       COALESCE(AVG(response_time_ms), 0),
       COALESCE(AVG(confidence), 0)
FROM   conversations`
	if err := s.db.QueryRowContext(ctx, totals).Scan(
		&stats.TotalConversations, &stats.AvgResponseTimeMs, &stats.AvgConfidence,
	); err != nil {
		return nil, fmt.Errorf("store: stats totals: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&stats.TotalFeedback); err != nil {
		return nil, fmt.Errorf("store: stats feedback: %w", err)
	}

	weekAgo := time.Now().AddDate(0, 0, -7).Unix()
	const top = `
SELECT   question, COUNT(*) AS n
FROM     conversations
WHERE    created_at >= ?
GROUP BY question
ORDER BY n DESC, question ASC
LIMIT    10`
	rows, err := s.db.QueryContext(ctx, top, weekAgo)
	if err != nil {
		return nil, fmt.Errorf("store: stats top questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qc QuestionCount
		if err := rows.Scan(&qc.Question, &qc.Count); err != nil {
			return nil, fmt.Errorf("store: stats scan: %w", err)
		}
		stats.TopQuestions = append(stats.TopQuestions, qc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: stats rows: %w", err)
	}
	return stats, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
