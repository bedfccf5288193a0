package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule   string           `yaml:"schedule"`
	RunOnStart bool             `yaml:"run_on_start"`
	Mailbox    MailboxConfig    `yaml:"mailbox"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Store      StoreConfig      `yaml:"store"`
	Web        WebConfig        `yaml:"web"`
}

type MailboxConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Folder        string `yaml:"folder"`
	LookbackHours int    `yaml:"lookback_hours"`
	BodyLimit     int    `yaml:"body_limit"`
}

type SummarizerConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type PipelineConfig struct {
	BatchSize       int `yaml:"batch_size"`
	PaceSeconds     int `yaml:"pace_seconds"`
	MaxRetries      int `yaml:"max_retries"`
	PromptBodyLimit int `yaml:"prompt_body_limit"`
	SummaryLimit    int `yaml:"summary_limit"`
}

type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// Timeout returns the generation request timeout as a duration.
func (c SummarizerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Lookback returns the mailbox retrieval horizon as a duration.
func (c MailboxConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// Pace returns the delay applied between consecutive batches.
func (c PipelineConfig) Pace() time.Duration {
	return time.Duration(c.PaceSeconds) * time.Second
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 7 * * *"
	}
	if cfg.Mailbox.Port == 0 {
		cfg.Mailbox.Port = 993
	}
	if cfg.Mailbox.Folder == "" {
		cfg.Mailbox.Folder = "INBOX"
	}
	if cfg.Mailbox.LookbackHours == 0 {
		cfg.Mailbox.LookbackHours = 24
	}
	if cfg.Mailbox.BodyLimit == 0 {
		cfg.Mailbox.BodyLimit = 900
	}
	if cfg.Summarizer.BaseURL == "" {
		cfg.Summarizer.BaseURL = "https://api.deepseek.com/v1/chat/completions"
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "deepseek-chat"
	}
	if cfg.Summarizer.Temperature == 0 {
		cfg.Summarizer.Temperature = 0.3
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 4096
	}
	if cfg.Summarizer.TimeoutSeconds == 0 {
		cfg.Summarizer.TimeoutSeconds = 90
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 20
	}
	if cfg.Pipeline.PaceSeconds == 0 {
		cfg.Pipeline.PaceSeconds = 2
	}
	if cfg.Pipeline.PromptBodyLimit == 0 {
		cfg.Pipeline.PromptBodyLimit = 500
	}
	if cfg.Pipeline.SummaryLimit == 0 {
		cfg.Pipeline.SummaryLimit = 600
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = "email_summaries.db"
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8080"
	}
}

func validate(cfg *Config) error {
	if cfg.Mailbox.Host == "" {
		return fmt.Errorf("config: mailbox.host is required")
	}
	if cfg.Mailbox.Username == "" {
		return fmt.Errorf("config: mailbox.username is required (set SOURCE_EMAIL env var)")
	}
	if cfg.Mailbox.Password == "" {
		return fmt.Errorf("config: mailbox.password is required (set SOURCE_PASSWORD env var)")
	}
	if cfg.Summarizer.APIKey == "" {
		return fmt.Errorf("config: summarizer.api_key is required (set DEEPSEEK_API_KEY env var)")
	}
	if cfg.Pipeline.BatchSize < 1 {
		return fmt.Errorf("config: pipeline.batch_size must be at least 1")
	}
	if cfg.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("config: pipeline.max_retries must not be negative")
	}
	return nil
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
