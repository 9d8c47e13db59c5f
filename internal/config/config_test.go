package config

import (
	"os"
	"path/filepath"
	"testing"

	"shalyse/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shalyse.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"ALPACA_BASE_URL", "ALPACA_DATA_URL", "LOG_LEVEL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/shalyse/data"
  sqlite_path: "/tmp/shalyse/shalyse.db"
  presets_path: "/tmp/shalyse/presets.json"
server:
  host: "0.0.0.0"
  port: 8080
  grpc_port: 9090
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  data_url: "https://data.alpaca.markets"
  feed: "sip"
logging:
  level: "debug"
  format: "json"
gather:
  start_date: "2010-01-01"
  tickers: ["SPY", "QQQ"]
  max_workers: 2
  rate_limit_per_min: 100
  max_attempts: 5
defaults:
  ticker: "SPY"
  currency: "USD"
  initial: 10000
  topup: 500
  period: 30
  horizon: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/shalyse/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/shalyse/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/shalyse/shalyse.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/shalyse/shalyse.db")
	}
	if cfg.Storage.PresetsPath != "/tmp/shalyse/presets.json" {
		t.Errorf("Storage.PresetsPath = %q", cfg.Storage.PresetsPath)
	}

	// -- Server --
	if cfg.Server.Port != 8080 || cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server ports = %d/%d, want 8080/9090", cfg.Server.Port, cfg.Server.GRPCPort)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}

	// -- Gather --
	if len(cfg.Gather.Tickers) != 2 || cfg.Gather.Tickers[1] != "QQQ" {
		t.Errorf("Gather.Tickers = %v, want [SPY QQQ]", cfg.Gather.Tickers)
	}
	if cfg.Gather.MaxAttempts != 5 {
		t.Errorf("Gather.MaxAttempts = %d, want 5", cfg.Gather.MaxAttempts)
	}

	// -- Defaults --
	want := domain.Scenario{Initial: 10000, Topup: 500, Period: 30, Horizon: 10}
	if got := cfg.DefaultScenario(); got != want {
		t.Errorf("DefaultScenario() = %+v, want %+v", got, want)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  host: localhost\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "data")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "iex")
	}
	if cfg.Gather.MaxWorkers != 4 || cfg.Gather.MaxAttempts != 3 {
		t.Errorf("Gather = %+v, want 4 workers / 3 attempts", cfg.Gather)
	}
	if cfg.Defaults.Currency != "USD" || cfg.Defaults.Horizon != 5 {
		t.Errorf("Defaults = %+v, want USD / 5y", cfg.Defaults)
	}
	if err := cfg.DefaultScenario().Validate(); err != nil {
		t.Errorf("default scenario is invalid: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}

	// Canonical SDK variable wins over ALPACA_API_KEY.
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (APCA override)", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
