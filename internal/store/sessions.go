package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// sessionEnvelope is the subset of a session document the store indexes
type sessionEnvelope struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSession upserts the session document for a library fingerprint.
// The replacement is atomic: a reader sees either the previous document
// or the new one, never a partial write.
func (s *Store) SaveSession(fingerprint string, doc []byte) error {
	var env sessionEnvelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return fmt.Errorf("invalid session document: %w", err)
	}

	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (library_fingerprint, session_id, created_at, document)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(library_fingerprint) DO UPDATE SET
				session_id = excluded.session_id,
				created_at = excluded.created_at,
				document = excluded.document
		`, fingerprint, env.ID, env.CreatedAt, string(doc))
		return err
	})
}

// LoadSessions returns all persisted session documents keyed by
// library fingerprint
func (s *Store) LoadSessions() (map[string][]byte, error) {
	rows, err := s.db.Query("SELECT library_fingerprint, document FROM sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	docs := make(map[string][]byte)
	for rows.Next() {
		var fingerprint, doc string
		if err := rows.Scan(&fingerprint, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		docs[fingerprint] = []byte(doc)
	}

	return docs, rows.Err()
}

// DeleteSession removes the persisted session for a fingerprint
func (s *Store) DeleteSession(fingerprint string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE library_fingerprint = ?", fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
