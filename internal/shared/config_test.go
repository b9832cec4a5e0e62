package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./catalog.db" {
			t.Errorf("expected database path ./catalog.db, got %s", config.Database.Path)
		}

		if config.Database.BusyTimeoutMS != 5000 {
			t.Errorf("expected busy timeout 5000, got %d", config.Database.BusyTimeoutMS)
		}

		if config.Upstream.PageSize != 500 {
			t.Errorf("expected page size 500, got %d", config.Upstream.PageSize)
		}

		if config.Import.PagesPerTransaction != 4 {
			t.Errorf("expected 4 pages per transaction, got %d", config.Import.PagesPerTransaction)
		}

		if config.Log.Level != "info" {
			t.Errorf("expected log level info, got %s", config.Log.Level)
		}

		if config.Search.IndexPath != "" {
			t.Errorf("expected in-memory search index by default, got %s", config.Search.IndexPath)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20

[upstream]
base_url = "https://feed.example.com"
client_id = "test_client_id"
client_secret = "test_secret"
rate_limit = 2.5

[log]
level = "debug"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Database.MaxOpenConns != 20 {
			t.Errorf("expected max open conns 20, got %d", config.Database.MaxOpenConns)
		}

		if config.Database.BusyTimeoutMS != 5000 {
			t.Errorf("expected unset busy timeout to keep default 5000, got %d", config.Database.BusyTimeoutMS)
		}

		if config.Upstream.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Upstream.ClientID)
		}

		if config.Upstream.RateLimit != 2.5 {
			t.Errorf("expected rate limit 2.5, got %v", config.Upstream.RateLimit)
		}
	})

	t.Run("LoadConfig With Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("CATALOGD_DATABASE_PATH", "/env/catalog.db")
		t.Setenv("CATALOGD_UPSTREAM_PAGE_SIZE", "50")
		t.Setenv("CATALOGD_LOG_LEVEL", "warn")
		t.Setenv("CATALOGD_SEARCH_INDEX_PATH", "/env/index.bleve")

		config := DefaultConfig()
		if err := ApplyEnv(config); err != nil {
			t.Fatalf("failed to apply env: %v", err)
		}

		if config.Database.Path != "/env/catalog.db" {
			t.Errorf("expected database path from env, got %s", config.Database.Path)
		}
		if config.Upstream.PageSize != 50 {
			t.Errorf("expected page size 50, got %d", config.Upstream.PageSize)
		}
		if config.Log.Level != "warn" {
			t.Errorf("expected log level warn, got %s", config.Log.Level)
		}
		if config.Search.IndexPath != "/env/index.bleve" {
			t.Errorf("expected index path from env, got %s", config.Search.IndexPath)
		}
		if config.Database.BusyTimeoutMS != 5000 {
			t.Errorf("expected busy timeout untouched, got %d", config.Database.BusyTimeoutMS)
		}
	})

	t.Run("ApplyEnv With Bad Value", func(t *testing.T) {
		t.Setenv("CATALOGD_UPSTREAM_PAGE_SIZE", "lots")

		err := ApplyEnv(DefaultConfig())
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ResolveConfig Without File", func(t *testing.T) {
		config, err := ResolveConfig(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("failed to resolve config: %v", err)
		}
		if config.Database.Path != "./catalog.db" {
			t.Errorf("expected default database path, got %s", config.Database.Path)
		}
	})
}
