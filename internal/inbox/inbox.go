// Package inbox provides a SQLite-backed record of the leads and unanswered
// questions the agent's tools capture during conversations. Entries survive
// restarts so the owner can review them with `persona inbox` even when the
// push notification channel is down or disabled.
package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Contact is a visitor who asked to be contacted.
type Contact struct {
	// Email is the visitor's email address.
	Email string
	// Name is the visitor's name, if provided.
	Name string
	// Notes holds conversation context worth keeping with the lead.
	Notes string
	// CreatedAt is when the contact was recorded.
	CreatedAt time.Time
}

// Question is a visitor question the agent could not answer.
type Question struct {
	// Text is the question as asked.
	Text string
	// CreatedAt is when the question was recorded.
	CreatedAt time.Time
}

// Store persists recorded contacts and questions. Implementations must be
// safe for concurrent use.
type Store interface {
	// RecordContact persists a single contact request.
	RecordContact(ctx context.Context, email, name, notes string) error
	// RecordQuestion persists a single unanswered question.
	RecordQuestion(ctx context.Context, question string) error
	// RecentContacts returns the n most recent contacts, newest first.
	RecentContacts(ctx context.Context, n int) ([]Contact, error)
	// RecentQuestions returns the n most recent questions, newest first.
	RecentQuestions(ctx context.Context, n int) ([]Question, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the inbox database.
// It resolves to ~/.persona/inbox.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("inbox: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".persona")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("inbox: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "inbox.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("inbox: open %s: %w", path, err)
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
CREATE TABLE IF NOT EXISTS contacts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    email       TEXT    NOT NULL,
    name        TEXT    NOT NULL,
    notes       TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS questions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contacts_created  ON contacts (created_at);
CREATE INDEX IF NOT EXISTS idx_questions_created ON questions (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("inbox: migrate: %w", err)
	}
	return nil
}

// RecordContact persists a single contact request.
func (s *SQLiteStore) RecordContact(ctx context.Context, email, name, notes string) error {
	const q = `INSERT INTO contacts (email, name, notes, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, email, name, notes, time.Now().Unix()); err != nil {
		return fmt.Errorf("inbox: record contact: %w", err)
	}
	return nil
}

// RecordQuestion persists a single unanswered question.
func (s *SQLiteStore) RecordQuestion(ctx context.Context, question string) error {
	const q = `INSERT INTO questions (question, created_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, question, time.Now().Unix()); err != nil {
		return fmt.Errorf("inbox: record question: %w", err)
	}
	return nil
}

// RecentContacts returns the n most recent contacts, newest first.
func (s *SQLiteStore) RecentContacts(ctx context.Context, n int) ([]Contact, error) {
	const q = `
SELECT email, name, notes, created_at
FROM   contacts
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("inbox: recent contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var ts int64
		if err := rows.Scan(&c.Email, &c.Name, &c.Notes, &ts); err != nil {
			return nil, fmt.Errorf("inbox: recent contacts scan: %w", err)
		}
		c.CreatedAt = time.Unix(ts, 0)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: recent contacts rows: %w", err)
	}
	return contacts, nil
}

// RecentQuestions returns the n most recent questions, newest first.
func (s *SQLiteStore) RecentQuestions(ctx context.Context, n int) ([]Question, error) {
	const q = `
SELECT question, created_at
FROM   questions
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("inbox: recent questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var qu Question
		var ts int64
		if err := rows.Scan(&qu.Text, &ts); err != nil {
			return nil, fmt.Errorf("inbox: recent questions scan: %w", err)
		}
		qu.CreatedAt = time.Unix(ts, 0)
		questions = append(questions, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: recent questions rows: %w", err)
	}
	return questions, nil
}

// Ping verifies the database is reachable, for readiness checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("inbox: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("inbox: close: %w", err)
	}
	return nil
}
