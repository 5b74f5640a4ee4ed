package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./sphere.db" {
			t.Errorf("expected database path ./sphere.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Providers.RequestTimeout.Duration != 4*time.Second {
			t.Errorf("expected request timeout 4s, got %v", config.Providers.RequestTimeout)
		}

		if config.Enrichment.TokenMargin.Duration != 5*time.Minute {
			t.Errorf("expected token margin 5m, got %v", config.Enrichment.TokenMargin)
		}

		if config.Credentials.LastFM.BaseURL != "https://ws.audioscrobbler.com/2.0/" {
			t.Errorf("unexpected lastfm base url %s", config.Credentials.LastFM.BaseURL)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[providers]
request_timeout = "2500ms"
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

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Providers.RequestTimeout.Duration != 2500*time.Millisecond {
			t.Errorf("expected 2.5s timeout, got %v", config.Providers.RequestTimeout)
		}

		t.Run("keeps defaults for omitted sections", func(t *testing.T) {
			if config.Server.Port != 3000 {
				t.Errorf("expected default port 3000, got %d", config.Server.Port)
			}
			if config.Enrichment.SimilarLimit != 20 {
				t.Errorf("expected default similar limit 20, got %d", config.Enrichment.SimilarLimit)
			}
		})
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[providers]\nrequest_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "missing spotify client id", mutate: func(c *Config) { c.Credentials.Spotify.ClientID = "" }},
			{name: "missing lastfm key", mutate: func(c *Config) { c.Credentials.LastFM.APIKey = "" }},
			{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }},
			{name: "zero request timeout", mutate: func(c *Config) { c.Providers.RequestTimeout.Duration = 0 }},
			{name: "zero cross enrichment workers", mutate: func(c *Config) { c.Enrichment.CrossEnrichWorkers = 0 }},
			{name: "zero similar limit", mutate: func(c *Config) { c.Enrichment.SimilarLimit = 0 }},
			{name: "similar limit above cap", mutate: func(c *Config) { c.Enrichment.SimilarLimit = 101 }},
			{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("ResolveConfig", func(t *testing.T) {
		t.Run("missing file falls back to defaults", func(t *testing.T) {
			config, err := ResolveConfig(filepath.Join(t.TempDir(), "absent.toml"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Database.Path != "./sphere.db" {
				t.Errorf("expected default database path, got %s", config.Database.Path)
			}
		})

		t.Run("environment overrides file values", func(t *testing.T) {
			t.Setenv(EnvLastFMAPIKey, "env-key")
			t.Setenv(EnvDatabasePath, ":memory:")

			config, err := ResolveConfig("")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Credentials.LastFM.APIKey != "env-key" {
				t.Errorf("expected env api key, got %s", config.Credentials.LastFM.APIKey)
			}
			if config.Database.Path != ":memory:" {
				t.Errorf("expected env database path, got %s", config.Database.Path)
			}
		})

		t.Run("invalid result is rejected", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(configPath, []byte("[server]\nport = 0\n"), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			_, err := ResolveConfig(configPath)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("LoadEnv", func(t *testing.T) {
		dir := t.TempDir()
		envPath := filepath.Join(dir, ".env")
		if err := os.WriteFile(envPath, []byte("SPHERE_TEST_ONLY=from-file\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("SPHERE_TEST_ONLY", "")
		os.Unsetenv("SPHERE_TEST_ONLY")

		if err := LoadEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := os.Getenv("SPHERE_TEST_ONLY"); got != "from-file" {
			t.Errorf("expected value from file, got %q", got)
		}
	})
}
