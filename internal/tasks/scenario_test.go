package tasks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/sphere/internal/auth"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/services"
	"github.com/desertthunder/sphere/internal/shared"
	tu "github.com/desertthunder/sphere/internal/testing"
)

const scenarioTrack = `{
	"id": "abc123", "name": "Creep", "popularity": 40,
	"artists": [{"id": "rh", "name": "Radiohead"}],
	"album": {"id": "pablo", "name": "Pablo Honey", "images": [{"url": "https://i/640", "height": 640}]}
}`

// wiredPipeline connects a real token manager and real provider clients to fake upstreams.
func wiredPipeline(t *testing.T, store *tu.MemoryStore, ts *tu.TokenServer, now time.Time) *Pipeline {
	t.Helper()
	quiet := shared.NewLogger(io.Discard)

	spotify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch {
		case strings.HasPrefix(r.URL.Path, "/me/"):
			if !strings.HasPrefix(bearer, "user-") {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": {"status": 401, "message": "Invalid access token"}}`))
				return
			}
			w.Write([]byte(`{"items": [` + scenarioTrack + `], "total": 1, "limit": 10}`))
		case r.URL.Path == "/tracks/abc123":
			if !strings.HasPrefix(bearer, "anon-") {
				t.Errorf("expected anonymous token for catalog read, got %q", bearer)
			}
			w.Write([]byte(scenarioTrack))
		case r.URL.Path == "/search":
			w.Write([]byte(`{"tracks": {"items": [` + scenarioTrack + `], "total": 1, "limit": 1}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(spotify.Close)

	lastfm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"track": {"name": "Creep", "playcount": "500000", "artist": {"name": "Radiohead"}}}`))
	}))
	t.Cleanup(lastfm.Close)

	manager, err := auth.NewManager(auth.Options{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     ts.TokenURL(),
		Store:        store,
		HTTPClient:   ts.Client(),
		Clock:        func() time.Time { return now },
		Logger:       quiet,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	catalog, err := services.NewSpotifyService(services.SpotifyOptions{
		Tokens: manager, BaseURL: spotify.URL, HTTPClient: spotify.Client(), Logger: quiet,
	})
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}

	enricher, err := services.NewLastFMService(services.LastFMOptions{
		APIKey: "key", BaseURL: lastfm.URL, HTTPClient: lastfm.Client(), Logger: quiet,
	})
	if err != nil {
		t.Fatalf("failed to create enricher: %v", err)
	}

	p, err := NewPipeline(Options{Catalog: catalog, Enricher: enricher, Logger: quiet})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

func TestWiredPipeline(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("search then details merges secondary play count", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		p := wiredPipeline(t, tu.NewMemoryStore(), ts, now)

		page, err := p.SearchSongs(ctx, Query{Text: "Creep", Limit: 10})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Results) != 1 || page.Results[0].ID != "abc123" {
			t.Fatalf("unexpected search results %+v", page.Results)
		}

		song, facts, err := p.GetSongDetails(ctx, "", "abc123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if facts.Status != FactsOK {
			t.Errorf("expected facts ok, got %v (%v)", facts.Status, facts.Err)
		}
		if song.ID != "abc123" || song.Popularity != 40 || song.PlayCount == nil || *song.PlayCount != 500000 {
			t.Errorf("unexpected song %+v", song)
		}
		if got := ts.ClientGrants.Load(); got != 1 {
			t.Errorf("expected one anonymous grant shared across requests, got %d", got)
		}
	})

	t.Run("synthetic id resolves through search", func(t *testing.T) {
		p := wiredPipeline(t, tu.NewMemoryStore(), tu.NewTokenServer(t), now)

		entity, err := p.GetEntityByID(ctx, "", models.KindSong, "creep--radiohead")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entity.Song.ID != "abc123" {
			t.Errorf("expected abc123, got %s", entity.Song.ID)
		}
	})

	t.Run("revoked refresh token degrades public reads and fails personal stats", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		ts.RejectRefresh = true
		store := tu.NewMemoryStore(models.Credential{
			ExternalUserID: "alice",
			AccessToken:    "stale",
			RefreshToken:   "revoked",
			ExpiresAt:      now.Add(-time.Hour),
		})
		p := wiredPipeline(t, store, ts, now)

		song, _, err := p.GetSongDetails(ctx, "alice", "abc123")
		if err != nil {
			t.Fatalf("expected public details to succeed, got %v", err)
		}
		if song.ID != "abc123" {
			t.Errorf("unexpected song %+v", song)
		}

		_, err = p.GetTopStats(ctx, "alice", 10)
		if !errors.Is(err, shared.ErrAuthRequired) {
			t.Fatalf("expected ErrAuthRequired, got %v", err)
		}
		if !errors.Is(err, shared.ErrCredentialRefreshFailed) {
			t.Errorf("expected refresh failure cause, got %v", err)
		}
		if ts.RefreshGrants.Load() == 0 {
			t.Error("expected a refresh attempt")
		}
		if store.Upserts.Load() != 0 {
			t.Errorf("expected no credential writes, got %d", store.Upserts.Load())
		}
	})
}
