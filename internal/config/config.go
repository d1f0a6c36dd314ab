// Package config provides configuration management for codegrounds.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CODEGROUNDS_SERVER_ADDR.
const EnvPrefix = "CODEGROUNDS"

// Config holds all configuration for the codegrounds server and CLI.
type Config struct {
	Server ServerConfig `mapstructure:"server"`

	// DataDir is the directory for persistent data (SQLite DB, etc.).
	DataDir string `mapstructure:"data_dir"`

	// DatabasePath is the full path to the SQLite database file. Defaults to
	// codegrounds.db inside DataDir.
	DatabasePath string `mapstructure:"database_path"`

	Execution ExecutionConfig `mapstructure:"execution"`
	AI        AIConfig        `mapstructure:"ai"`
	Hint      HintConfig      `mapstructure:"hint"`
	History   HistoryConfig   `mapstructure:"history"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Slack     SlackConfig     `mapstructure:"slack"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the address the HTTP server listens on (e.g., ":7080").
	Addr string `mapstructure:"addr"`
}

// ExecutionConfig points at the sandboxed execution service.
type ExecutionConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AIConfig points at the AI API serving hints, test cases and complexity.
type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HintConfig tunes streamed hints.
type HintConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// GitHubConfig enables gist sharing.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

// SlackConfig enables test-run reports.
type SlackConfig struct {
	// BotToken is the Bot User OAuth Token (xoxb-...).
	BotToken string `mapstructure:"bot_token"`
	Channel  string `mapstructure:"channel"`
}

// Load reads configuration from defaults, the optional YAML file at path (or
// $CODEGROUNDS_CONFIG) and CODEGROUNDS_* environment variables, in increasing
// precedence. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":7080")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("database_path", "")
	v.SetDefault("execution.url", "https://emkc.org/api/v2/piston")
	v.SetDefault("execution.timeout", 30*time.Second)
	v.SetDefault("ai.base_url", "http://localhost:5000/api/ai")
	v.SetDefault("ai.token", "")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("hint.enabled", true)
	v.SetDefault("hint.debounce", 2*time.Second)
	v.SetDefault("history.capacity", 50)
	v.SetDefault("github.token", "")
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.channel", "")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "codegrounds.db")
	}
	return cfg, nil
}

// EnsureDataDir creates the data directory.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	for key, raw := range map[string]string{
		"execution.url": c.Execution.URL,
		"ai.base_url":   c.AI.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be positive")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if c.Hint.Debounce <= 0 {
		return fmt.Errorf("hint.debounce must be positive")
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be positive")
	}
	if (c.Slack.BotToken == "") != (c.Slack.Channel == "") {
		return fmt.Errorf("slack.bot_token and slack.channel must be set together")
	}
	return nil
}

// SlackEnabled returns true if test-run reports should be posted to Slack.
func (c *Config) SlackEnabled() bool {
	return c.Slack.BotToken != "" && c.Slack.Channel != ""
}

// GitHubEnabled returns true if gist sharing is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.Token != ""
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codegrounds"
	}
	return filepath.Join(home, ".codegrounds")
}
