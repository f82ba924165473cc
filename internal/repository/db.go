package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/liliang-cn/ragdesk/internal/domain"
	_ "modernc.org/sqlite"
)

// timeLayout is how timestamps are written; it matches sqlite's CURRENT_TIMESTAMP
const timeLayout = "2006-01-02 15:04:05"

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps sqlite from returning SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{db}, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS question_cache (
			question TEXT PRIMARY KEY,
			answer TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_table TEXT NOT NULL,
			page_number INTEGER,
			chunk_text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_table ON chunks(source_table)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// rowID converts a session id to its integer key. Ids that are not
// integers cannot exist in this store.
func rowID(id domain.SessionID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: session %q", domain.ErrNotFound, id)
	}
	return n, nil
}

func parseTime(s string) domain.Timestamp {
	ts, err := domain.ParseTimestamp(s)
	if err != nil {
		return domain.Timestamp{}
	}
	return ts
}
