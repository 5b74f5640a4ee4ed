package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvSpotifyRedirectURI  = "SPOTIFY_REDIRECT_URI"
	EnvLastFMAPIKey        = "LASTFM_API_KEY"
	EnvDatabasePath        = "SPHERE_DATABASE_PATH"
	EnvLogLevel            = "SPHERE_LOG_LEVEL"
)

// LoadEnv reads KEY=value pairs from the given dotenv files into the process environment.
//
// Missing files are skipped and variables already set are never overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any non-empty environment variables.
func (c *Config) ApplyEnv() {
	for env, field := range map[string]*string{
		EnvSpotifyClientID:     &c.Credentials.Spotify.ClientID,
		EnvSpotifyClientSecret: &c.Credentials.Spotify.ClientSecret,
		EnvSpotifyRedirectURI:  &c.Credentials.Spotify.RedirectURI,
		EnvLastFMAPIKey:        &c.Credentials.LastFM.APIKey,
		EnvDatabasePath:        &c.Database.Path,
		EnvLogLevel:            &c.Log.Level,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}
