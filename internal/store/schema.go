package store

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Analysis settings as a flat key/value document
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Cached analysis sessions, one document per library fingerprint.
-- The document holds the full session: id, timestamp, quality results
-- and clusters with resolved member-identifier arrays.
CREATE TABLE IF NOT EXISTS sessions (
  library_fingerprint TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  document TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id);
`
