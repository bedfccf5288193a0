package config

import (
	"os"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config_test_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	tmpfile.Close()
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
mailbox:
  host: imap.example.com
  username: agent@example.com
  password: secret
summarizer:
  api_key: test_api_key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Mailbox.Host != "imap.example.com" {
		t.Errorf("Expected host 'imap.example.com', got '%s'", cfg.Mailbox.Host)
	}
	if cfg.Mailbox.Port != 993 {
		t.Errorf("Expected default port 993, got %d", cfg.Mailbox.Port)
	}
	if cfg.Mailbox.Folder != "INBOX" {
		t.Errorf("Expected default folder 'INBOX', got '%s'", cfg.Mailbox.Folder)
	}
	if cfg.Mailbox.LookbackHours != 24 {
		t.Errorf("Expected default lookback of 24 hours, got %d", cfg.Mailbox.LookbackHours)
	}
	if cfg.Summarizer.Model != "deepseek-chat" {
		t.Errorf("Expected default model 'deepseek-chat', got '%s'", cfg.Summarizer.Model)
	}
	if cfg.Pipeline.BatchSize != 20 {
		t.Errorf("Expected default batch size 20, got %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.PaceSeconds != 2 {
		t.Errorf("Expected default pace of 2 seconds, got %d", cfg.Pipeline.PaceSeconds)
	}
	if cfg.Pipeline.MaxRetries != 0 {
		t.Errorf("Expected default max retries 0, got %d", cfg.Pipeline.MaxRetries)
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_MAIL_PASSWORD", "hunter2")

	path := writeTempConfig(t, `
mailbox:
  host: imap.example.com
  username: agent@example.com
  password: ${TEST_MAIL_PASSWORD}
summarizer:
  api_key: test_api_key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Mailbox.Password != "hunter2" {
		t.Errorf("Expected env-expanded password 'hunter2', got '%s'", cfg.Mailbox.Password)
	}
}

func TestLoadConfigUnsetEnvVarLeftVerbatim(t *testing.T) {
	path := writeTempConfig(t, `
mailbox:
  host: imap.example.com
  username: agent@example.com
  password: ${DEFINITELY_UNSET_VAR_12345}
summarizer:
  api_key: test_api_key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Mailbox.Password != "${DEFINITELY_UNSET_VAR_12345}" {
		t.Errorf("Expected unset env var to be left verbatim, got '%s'", cfg.Mailbox.Password)
	}
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing host",
			content: `
mailbox:
  username: agent@example.com
  password: secret
summarizer:
  api_key: test_api_key
`,
			wantErr: "mailbox.host",
		},
		{
			name: "missing password",
			content: `
mailbox:
  host: imap.example.com
  username: agent@example.com
summarizer:
  api_key: test_api_key
`,
			wantErr: "mailbox.password",
		},
		{
			name: "missing api key",
			content: `
mailbox:
  host: imap.example.com
  username: agent@example.com
  password: secret
`,
			wantErr: "summarizer.api_key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}
