package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CODEGROUNDS_CONFIG", "")
	t.Setenv("CODEGROUNDS_DATA_DIR", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7080" || cfg.Hint.Debounce != 2*time.Second || cfg.History.Capacity != 50 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Hint.Enabled || cfg.Execution.Timeout != 30*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DataDir, "codegrounds.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.SlackEnabled() || cfg.GitHubEnabled() {
		t.Fatal("integrations must be off by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  addr: ":9000"
hint:
  debounce: 500ms
  enabled: false
history:
  capacity: 10
slack:
  bot_token: xoxb-1
  channel: C1
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CODEGROUNDS_SERVER_ADDR", ":9100")
	t.Setenv("CODEGROUNDS_AI_TOKEN", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Fatalf("env must override file, got %q", cfg.Server.Addr)
	}
	if cfg.Hint.Debounce != 500*time.Millisecond || cfg.Hint.Enabled || cfg.History.Capacity != 10 {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if cfg.AI.Token != "secret" || !cfg.SlackEnabled() {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("CODEGROUNDS_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	bad := *cfg
	bad.Execution.URL = "not a url"
	if bad.Validate() == nil {
		t.Fatal("expected invalid execution url")
	}
	bad = *cfg
	bad.History.Capacity = 0
	if bad.Validate() == nil {
		t.Fatal("expected invalid capacity")
	}
	bad = *cfg
	bad.Slack.BotToken = "xoxb"
	if bad.Validate() == nil {
		t.Fatal("expected slack token without channel to fail")
	}
}
