// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	ShowSQL     bool
	SessionTTL  time.Duration
	LogLevel    string
	LogFormat   string

	DB        DBConfig
	LLM       LLMConfig
	Mail      MailConfig
	Slack     SlackConfig
	Artifacts ArtifactConfig
	Issues    IssueStoreConfig
	RateLimit RateLimitConfig
}

// DBConfig locates the warehouse database.
type DBConfig struct {
	Driver       string
	URI          string
	QueryTimeout time.Duration
}

// LLMConfig configures the query-writing model.
type LLMConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// MailConfig configures upstream escalation mail. Port zero and a nil UseSSL
// mean the variables were not set.
type MailConfig struct {
	Host       string
	Port       int
	UseSSL     *bool
	User       string
	Password   string
	Recipients []string
	Timeout    time.Duration
}

// SlackConfig configures the optional escalation mirror.
type SlackConfig struct {
	WebhookURL string
}

// ArtifactConfig controls where result files go and how long they live.
type ArtifactConfig struct {
	Dir           string
	Retention     time.Duration
	SweepInterval time.Duration
}

// IssueStoreConfig selects the issue repository backend.
type IssueStoreConfig struct {
	Backend string // "memory" or "sqlite"
	DBPath  string
}

// RateLimitConfig bounds chat turns per anonymous user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		ShowSQL:     getEnvBool("SHOW_SQL", false),
		SessionTTL:  getEnvDuration("SESSION_TTL", 12*time.Hour),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		DB: DBConfig{
			Driver:       getEnv("DB_DRIVER", ""),
			URI:          getEnv("DB_URI", ""),
			QueryTimeout: getEnvDuration("DB_QUERY_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			Model:     getEnv("LLM_MODEL", "claude-sonnet-4-5"),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 1024),
			Timeout:   getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Mail: MailConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvInt("SMTP_PORT", 0),
			UseSSL:     getEnvOptionalBool("SMTP_USE_SSL"),
			User:       getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASS", ""),
			Recipients: splitList(getEnv("UPSTREAM_EMAIL", "")),
			Timeout:    getEnvDuration("SMTP_TIMEOUT", 25*time.Second),
		},
		Slack: SlackConfig{
			WebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		},
		Artifacts: ArtifactConfig{
			Dir:           getEnv("OUTPUT_DIR", filepath.Join(os.TempDir(), "ai_it_support_outputs")),
			Retention:     getEnvDuration("ARTIFACT_RETENTION", 24*time.Hour),
			SweepInterval: getEnvDuration("ARTIFACT_SWEEP_INTERVAL", 15*time.Minute),
		},
		Issues: IssueStoreConfig{
			Backend: strings.ToLower(getEnv("ISSUE_STORE", "memory")),
			DBPath:  getEnv("ISSUE_DB_PATH", "./data/issues.db"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DB.URI == "" {
		return fmt.Errorf("DB_URI missing")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY missing")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("SMTP_PORT out of range: %d", c.Mail.Port)
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("OUTPUT_DIR cannot be empty")
	}
	if c.Artifacts.Retention <= 0 || c.Artifacts.SweepInterval <= 0 {
		return fmt.Errorf("ARTIFACT_RETENTION and ARTIFACT_SWEEP_INTERVAL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	switch c.Issues.Backend {
	case "memory":
	case "sqlite":
		if c.Issues.DBPath == "" {
			return fmt.Errorf("ISSUE_DB_PATH cannot be empty when ISSUE_STORE=sqlite")
		}
	default:
		return fmt.Errorf("ISSUE_STORE must be memory or sqlite, got %q", c.Issues.Backend)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off", "":
		return false, true
	default:
		return false, false
	}
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, ok := parseBool(value)
	if !ok {
		return fallback
	}
	return b
}

// getEnvOptionalBool returns nil when key is unset. Any set value that is not
// truthy counts as false.
func getEnvOptionalBool(key string) *bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, _ := parseBool(value)
	return &b
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
