package store

import "fmt"

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS summary_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_uid TEXT NOT NULL,
	run_date DATETIME NOT NULL,
	total_emails INTEGER NOT NULL,
	processed_emails INTEGER NOT NULL,
	success_rate REAL NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS email_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES summary_runs(id) ON DELETE CASCADE,
	email_number INTEGER NOT NULL,
	sender TEXT NOT NULL DEFAULT '',
	receiver TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	received_at TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_email_data_run ON email_data(run_id, email_number);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}
