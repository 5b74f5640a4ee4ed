package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Providers   ProvidersConfig   `toml:"providers"`
	Enrichment  EnrichmentConfig  `toml:"enrichment"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains provider credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	LastFM  LastFMConfig  `toml:"lastfm"`
}

// SpotifyConfig contains the primary provider's application credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	Market       string `toml:"market"`
}

// LastFMConfig contains the enrichment provider's API key.
type LastFMConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig is the loopback listener used for the OAuth callback.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ProvidersConfig tunes outbound provider calls.
type ProvidersConfig struct {
	RequestTimeout Duration `toml:"request_timeout"`
	LastFMRate     float64  `toml:"lastfm_requests_per_second"`
	LastFMBurst    int      `toml:"lastfm_burst"`
}

// EnrichmentConfig tunes the enrichment pipeline and token lifecycle.
type EnrichmentConfig struct {
	SimilarLimit       int      `toml:"similar_limit"`
	CrossEnrichWorkers int      `toml:"cross_enrich_workers"`
	TokenMargin        Duration `toml:"token_margin"`
}

// LogConfig sets the minimum log level (debug, info, warn, error).
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from strings such as "4s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Credentials),
		validation.Field(&c.Database),
		validation.Field(&c.Server),
		validation.Field(&c.Providers),
		validation.Field(&c.Enrichment),
		validation.Field(&c.Log),
	)
}

func (c CredentialsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Spotify),
		validation.Field(&c.LastFM),
	)
}

func (c SpotifyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.RedirectURI, is.URL),
		validation.Field(&c.Market, validation.Length(2, 2)),
	)
}

func (c LastFMConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.BaseURL, is.URL),
	)
}

func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func (c ProvidersConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RequestTimeout, validation.By(positiveDuration)),
		validation.Field(&c.LastFMRate, validation.Min(0.0)),
		validation.Field(&c.LastFMBurst, validation.Min(0)),
	)
}

func (c EnrichmentConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SimilarLimit, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.CrossEnrichWorkers, validation.Required, validation.Min(1)),
		validation.Field(&c.TokenMargin, validation.By(positiveDuration)),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("", "debug", "info", "warn", "error")),
	)
}

func positiveDuration(value any) error {
	if d, ok := value.(Duration); ok && d.Duration <= 0 {
		return errors.New("must be a positive duration")
	}
	return nil
}

// LoadConfig reads a TOML configuration file and layers it over [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// ResolveConfig loads path when it exists, falls back to the embedded defaults otherwise,
// applies environment overrides and validates the result.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			config = loaded
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return config, nil
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
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
