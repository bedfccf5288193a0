package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tkuroda/mail-digest/internal/mailbox"
	"github.com/tkuroda/mail-digest/internal/runner"
	"github.com/tkuroda/mail-digest/internal/summarize"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *runner.RunResult {
	return &runner.RunResult{
		Messages: []mailbox.Message{
			{Sender: "alice@example.com", Recipient: "me@example.com", Subject: "One", ReceivedAt: "Mon, 02 Jan 2006 15:04:05 -0700", Body: "body one"},
			{Sender: "bob@example.com", Recipient: "me@example.com", Subject: "Two", Body: "body two"},
			{Sender: "carol@example.com", Recipient: "me@example.com", Subject: "Three", Body: "body three"},
		},
		Summaries: summarize.SummaryMap{
			1: "First summary.",
			2: summarize.FallbackNotParsed,
			3: "Third summary.",
		},
		TotalMessages:   3,
		SummarizedCount: 2,
	}
}

func TestLatestRunEmpty(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun returned error: %v", err)
	}
	if stats != nil {
		t.Errorf("Expected nil stats for empty store, got %+v", stats)
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResult()); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	stats, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun returned error: %v", err)
	}
	if stats == nil {
		t.Fatal("Expected a run, got nil")
	}
	if stats.TotalEmails != 3 || stats.ProcessedEmails != 2 {
		t.Errorf("Unexpected counts: total=%d processed=%d", stats.TotalEmails, stats.ProcessedEmails)
	}
	if stats.SuccessRate < 66 || stats.SuccessRate > 67 {
		t.Errorf("Expected success rate ~66.7, got %v", stats.SuccessRate)
	}
	if stats.Status != "completed" {
		t.Errorf("Expected status 'completed', got %q", stats.Status)
	}
	if stats.RunUID == "" {
		t.Error("Expected a run uid")
	}

	rows, err := s.RunEmails(ctx, stats.ID)
	if err != nil {
		t.Fatalf("RunEmails returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0].Number != 1 || rows[0].Sender != "alice@example.com" || rows[0].Summary != "First summary." {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].Summary != summarize.FallbackNotParsed {
		t.Errorf("Expected fallback summary persisted verbatim, got %q", rows[1].Summary)
	}
	if rows[0].ReceivedAt != "Mon, 02 Jan 2006 15:04:05 -0700" {
		t.Errorf("Expected raw date string persisted, got %q", rows[0].ReceivedAt)
	}
}

func TestLatestRunPicksMostRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResult()); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	second := &runner.RunResult{
		Messages:        []mailbox.Message{{Sender: "dave@example.com", Subject: "Solo"}},
		Summaries:       summarize.SummaryMap{1: "Only one."},
		TotalMessages:   1,
		SummarizedCount: 1,
	}
	if err := s.SaveRun(ctx, second); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	stats, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun returned error: %v", err)
	}
	if stats.TotalEmails != 1 {
		t.Errorf("Expected latest run with 1 email, got %d", stats.TotalEmails)
	}

	rows, err := s.RunEmails(ctx, stats.ID)
	if err != nil {
		t.Fatalf("RunEmails returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Sender != "dave@example.com" {
		t.Errorf("Unexpected rows for latest run: %+v", rows)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	s1.Close()

	// Reopening must not re-apply migrations.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	s2.Close()
}
