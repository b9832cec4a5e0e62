package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Upstream UpstreamConfig `toml:"upstream"`
	Import   ImportConfig   `toml:"import"`
	Search   SearchConfig   `toml:"search"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path          string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns  int    `toml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns  int    `toml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" env:"DATABASE_BUSY_TIMEOUT_MS"`
}

// UpstreamConfig points at the external catalog feed.
type UpstreamConfig struct {
	BaseURL        string  `toml:"base_url" env:"UPSTREAM_BASE_URL"`
	TokenURL       string  `toml:"token_url" env:"UPSTREAM_TOKEN_URL"`
	ClientID       string  `toml:"client_id" env:"UPSTREAM_CLIENT_ID"`
	ClientSecret   string  `toml:"client_secret" env:"UPSTREAM_CLIENT_SECRET"`
	RateLimit      float64 `toml:"rate_limit" env:"UPSTREAM_RATE_LIMIT"`
	PageSize       int     `toml:"page_size" env:"UPSTREAM_PAGE_SIZE"`
	TimeoutSeconds int     `toml:"timeout_seconds" env:"UPSTREAM_TIMEOUT_SECONDS"`
}

// ImportConfig controls how upstream syncs are split into transactions.
type ImportConfig struct {
	PagesPerTransaction int `toml:"pages_per_transaction" env:"IMPORT_PAGES_PER_TRANSACTION"`
}

// SearchConfig locates the persistent search index. An empty path builds an in-memory index per search.
type SearchConfig struct {
	IndexPath string `toml:"index_path" env:"SEARCH_INDEX_PATH"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// EnvPrefix is prepended to every environment variable read by [ApplyEnv].
const EnvPrefix = "CATALOGD_"

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// ApplyEnv overrides config fields from CATALOGD_* environment variables.
//
// Variables that are not set leave the loaded values untouched.
func ApplyEnv(config *Config) error {
	opts := env.Options{Prefix: EnvPrefix}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveConfig loads path when it exists, falls back to defaults otherwise, and applies the environment overlay.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}
