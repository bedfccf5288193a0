package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tkuroda/mail-digest/internal/runner"
)

// SQLiteStore persists pipeline runs to a local SQLite database. It
// implements runner.Store.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at dbPath, enables WAL mode, and
// runs any pending schema migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RunStats is one row of summary_runs.
type RunStats struct {
	ID              int64     `db:"id"`
	RunUID          string    `db:"run_uid"`
	RunDate         time.Time `db:"run_date"`
	TotalEmails     int       `db:"total_emails"`
	ProcessedEmails int       `db:"processed_emails"`
	SuccessRate     float64   `db:"success_rate"`
	Status          string    `db:"status"`
}

// EmailRow is one summarized message of a run.
type EmailRow struct {
	Number     int    `db:"email_number"`
	Sender     string `db:"sender"`
	Receiver   string `db:"receiver"`
	Subject    string `db:"subject"`
	ReceivedAt string `db:"received_at"`
	Summary    string `db:"summary"`
}

// SaveRun writes the run row and all its messages in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *runner.RunResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rate := 0.0
	if result.TotalMessages > 0 {
		rate = float64(result.SummarizedCount) / float64(result.TotalMessages) * 100
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO summary_runs (run_uid, run_date, total_emails, processed_emails, success_rate, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), time.Now().UTC(), result.TotalMessages, result.SummarizedCount, rate, "completed",
	)
	if err != nil {
		return fmt.Errorf("store: inserting run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: reading run id: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO email_data (run_id, email_number, sender, receiver, subject, received_at, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range result.Messages {
		n := i + 1
		_, err := stmt.ExecContext(ctx, runID, n, m.Sender, m.Recipient, m.Subject, m.ReceivedAt, result.Summaries[n])
		if err != nil {
			return fmt.Errorf("store: inserting email %d: %w", n, err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recent run, or nil when no run exists yet.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*RunStats, error) {
	var stats RunStats
	err := s.db.GetContext(ctx, &stats,
		"SELECT id, run_uid, run_date, total_emails, processed_emails, success_rate, status FROM summary_runs ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading latest run: %w", err)
	}
	return &stats, nil
}

// RunEmails returns the messages of a run ordered by position.
func (s *SQLiteStore) RunEmails(ctx context.Context, runID int64) ([]EmailRow, error) {
	var rows []EmailRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT email_number, sender, receiver, subject, received_at, summary
		FROM email_data WHERE run_id = ? ORDER BY email_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: reading run %d emails: %w", runID, err)
	}
	return rows, nil
}
