package audit

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink persists audit entries to a local SQLite file. The audit
// trail deliberately lives outside the main database so a compromise of
// one store does not silently rewrite the other.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if needed) the audit database at path.
// Use ":memory:" for an ephemeral trail.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     TEXT NOT NULL,
			previous_hash TEXT NOT NULL,
			payload       TEXT NOT NULL,
			hash          TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Persist implements Sink.
func (s *SQLiteSink) Persist(entry *LogEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_log (timestamp, previous_hash, payload, hash)
		VALUES (?, ?, ?, ?)
	`, entry.Timestamp, entry.PreviousHash, entry.Payload, entry.Hash)
	if err != nil {
		return fmt.Errorf("failed to persist audit entry: %w", err)
	}
	return nil
}

// LastHash returns the hash of the most recent stored entry, or "" for
// an empty trail. Used to resume the chain across restarts.
func (s *SQLiteSink) LastHash() (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last audit hash: %w", err)
	}
	return hash, nil
}

// Entries returns the stored trail in append order.
func (s *SQLiteSink) Entries() ([]*LogEntry, error) {
	rows, err := s.db.Query(`SELECT timestamp, previous_hash, payload, hash FROM audit_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Timestamp, &e.PreviousHash, &e.Payload, &e.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
