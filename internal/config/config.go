package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"shalyse/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for shalyse.
type Config struct {
	Storage  Storage      `yaml:"storage"`
	Server   Server       `yaml:"server"`
	Alpaca   Alpaca       `yaml:"alpaca"`
	Logging  Logging      `yaml:"logging"`
	Gather   GatherConfig `yaml:"gather"`
	Defaults Defaults     `yaml:"defaults"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	PresetsPath string `yaml:"presets_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls how price history is fetched and cached.
type GatherConfig struct {
	StartDate       string   `yaml:"start_date"`
	Tickers         []string `yaml:"tickers"`
	MaxWorkers      int      `yaml:"max_workers"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// Defaults seeds the scenario form and labels instruments without metadata.
type Defaults struct {
	Ticker   string  `yaml:"ticker"`
	Currency string  `yaml:"currency"`
	Initial  float64 `yaml:"initial"`
	Topup    float64 `yaml:"topup"`
	Period   int     `yaml:"period"`
	Horizon  int     `yaml:"horizon"`
}

// DefaultScenario returns the scenario described by the defaults section.
func (c *Config) DefaultScenario() domain.Scenario {
	return domain.Scenario{
		Initial: c.Defaults.Initial,
		Topup:   c.Defaults.Topup,
		Period:  c.Defaults.Period,
		Horizon: c.Defaults.Horizon,
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills unset fields with defaults, and then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields that have a sensible fallback.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Gather.StartDate == "" {
		cfg.Gather.StartDate = "2016-01-01"
	}
	if cfg.Gather.MaxWorkers <= 0 {
		cfg.Gather.MaxWorkers = 4
	}
	if cfg.Gather.RateLimitPerMin <= 0 {
		cfg.Gather.RateLimitPerMin = 200
	}
	if cfg.Gather.MaxAttempts <= 0 {
		cfg.Gather.MaxAttempts = 3
	}
	if cfg.Defaults.Currency == "" {
		cfg.Defaults.Currency = "USD"
	}
	if cfg.Defaults.Horizon == 0 {
		cfg.Defaults.Horizon = 5
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
