package auth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	tu "github.com/desertthunder/sphere/internal/testing"
	"golang.org/x/oauth2"
)

func newTestManager(t *testing.T, ts *tu.TokenServer, store CredentialStore, now time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     ts.TokenURL(),
		Store:        store,
		HTTPClient:   ts.Client(),
		Clock:        func() time.Time { return now },
		Logger:       shared.NewLogger(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func TestClassify(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tc := []struct {
		name   string
		userID string
		cred   *models.Credential
		want   State
	}{
		{name: "no user", userID: "", want: NoUserContext},
		{name: "no user ignores credential", userID: "", cred: &models.Credential{AccessToken: "a"}, want: NoUserContext},
		{name: "missing credential", userID: "u1", want: UserCredentialMissing},
		{name: "valid", userID: "u1", cred: &models.Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, want: UserCredentialValid},
		{name: "inside margin", userID: "u1", cred: &models.Credential{AccessToken: "a", ExpiresAt: now.Add(time.Minute)}, want: UserCredentialExpiring},
		{name: "expired", userID: "u1", cred: &models.Credential{AccessToken: "a", ExpiresAt: now.Add(-time.Hour)}, want: UserCredentialExpiring},
		{name: "no access token", userID: "u1", cred: &models.Credential{ExpiresAt: now.Add(time.Hour)}, want: UserCredentialExpiring},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.userID, tt.cred, now, DefaultMargin); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("NewManager requires client credentials", func(t *testing.T) {
		if _, err := NewManager(Options{ClientID: "id"}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		t.Run("never touches the store", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			store := tu.NewMemoryStore()
			m := newTestManager(t, ts, store, now)

			grant, err := m.Resolve(ctx, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if grant.State != NoUserContext || grant.AccessToken != "anon-1" {
				t.Errorf("unexpected grant %+v", grant)
			}
			if store.Finds.Load() != 0 || store.Upserts.Load() != 0 {
				t.Errorf("store was called: finds=%d upserts=%d", store.Finds.Load(), store.Upserts.Load())
			}
		})

		t.Run("token is cached across requests", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			m := newTestManager(t, ts, nil, now)

			first, _ := m.PublicToken(ctx, "")
			second, _ := m.PublicToken(ctx, "")
			if first != second {
				t.Errorf("expected cached token, got %q then %q", first, second)
			}
			if ts.ClientGrants.Load() != 1 {
				t.Errorf("expected 1 client grant, got %d", ts.ClientGrants.Load())
			}
		})

		t.Run("near-expiry anonymous token is replaced", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			ts.ExpiresIn = 60
			m := newTestManager(t, ts, nil, now)

			first, _ := m.PublicToken(ctx, "")
			second, _ := m.PublicToken(ctx, "")
			if first == second {
				t.Error("expected a new token inside the margin")
			}
			if ts.ClientGrants.Load() != 2 {
				t.Errorf("expected 2 client grants, got %d", ts.ClientGrants.Load())
			}
		})

		t.Run("provider failure is ProviderUnavailable", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			m := newTestManager(t, ts, nil, now)
			ts.Close()

			if _, err := m.PublicToken(ctx, ""); !errors.Is(err, shared.ErrProviderUnavailable) {
				t.Errorf("expected ErrProviderUnavailable, got %v", err)
			}
		})
	})

	t.Run("missing credential falls back to anonymous", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		store := tu.NewMemoryStore()
		m := newTestManager(t, ts, store, now)

		grant, err := m.Resolve(ctx, "stranger")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if grant.State != UserCredentialMissing || !grant.Anonymous() || grant.AccessToken != "anon-1" {
			t.Errorf("unexpected grant %+v", grant)
		}

		if _, err := m.UserToken(ctx, "stranger"); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})

	t.Run("missing credential with a failing anonymous grant asks once", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		ts.RejectClient = true
		m := newTestManager(t, ts, tu.NewMemoryStore(), now)

		if _, err := m.PublicToken(ctx, "stranger"); err == nil {
			t.Fatal("expected an error when the anonymous grant is refused")
		}
		if got := ts.ClientGrants.Load(); got != 1 {
			t.Errorf("expected 1 client grant, got %d", got)
		}
	})

	t.Run("valid credential is reused without refresh", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		store := tu.NewMemoryStore(models.Credential{
			ExternalUserID: "u1",
			AccessToken:    "cached-token",
			RefreshToken:   "refresh-0",
			ExpiresAt:      now.Add(30 * time.Minute),
		})
		m := newTestManager(t, ts, store, now)

		first, err := m.PublicToken(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := m.UserToken(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if first != "cached-token" || second != first {
			t.Errorf("expected identical cached tokens, got %q and %q", first, second)
		}
		if ts.RefreshGrants.Load() != 0 || ts.ClientGrants.Load() != 0 {
			t.Errorf("expected no grants, got refresh=%d client=%d", ts.RefreshGrants.Load(), ts.ClientGrants.Load())
		}
	})

	t.Run("expired credential", func(t *testing.T) {
		expired := models.Credential{
			ExternalUserID: "u1",
			AccessToken:    "stale",
			RefreshToken:   "refresh-0",
			ExpiresAt:      now.Add(-time.Hour),
		}

		t.Run("refreshes exactly once and persists", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			store := tu.NewMemoryStore(expired)
			m := newTestManager(t, ts, store, now)

			grant, err := m.Resolve(ctx, "u1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if grant.State != UserCredentialExpiring || grant.AccessToken != "user-1" {
				t.Errorf("unexpected grant %+v", grant)
			}
			if ts.RefreshGrants.Load() != 1 {
				t.Errorf("expected 1 refresh, got %d", ts.RefreshGrants.Load())
			}

			saved, _ := store.Get("u1")
			if saved.AccessToken != "user-1" {
				t.Errorf("expected persisted access token, got %q", saved.AccessToken)
			}
			if !saved.ExpiresAt.After(expired.ExpiresAt) {
				t.Errorf("expected later expiry, got %v (was %v)", saved.ExpiresAt, expired.ExpiresAt)
			}
			if saved.RefreshToken != "refresh-0" {
				t.Errorf("expected refresh token retained, got %q", saved.RefreshToken)
			}
		})

		t.Run("new refresh token replaces the stored one", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			ts.RotateRefresh = true
			store := tu.NewMemoryStore(expired)
			m := newTestManager(t, ts, store, now)

			if _, err := m.UserToken(ctx, "u1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if saved, _ := store.Get("u1"); saved.RefreshToken != "refresh-1" {
				t.Errorf("expected rotated refresh token, got %q", saved.RefreshToken)
			}
		})

		t.Run("rejected refresh downgrades public access", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			ts.RejectRefresh = true
			store := tu.NewMemoryStore(expired)
			m := newTestManager(t, ts, store, now)

			_, err := m.Resolve(ctx, "u1")
			if !errors.Is(err, shared.ErrCredentialRefreshFailed) {
				t.Fatalf("expected ErrCredentialRefreshFailed, got %v", err)
			}
			var retrieveErr *oauth2.RetrieveError
			if !errors.As(err, &retrieveErr) || retrieveErr.ErrorCode != "invalid_grant" {
				t.Errorf("expected invalid_grant retrieve error, got %v", err)
			}

			token, err := m.PublicToken(ctx, "u1")
			if err != nil {
				t.Fatalf("public access should not fail: %v", err)
			}
			if token != "anon-1" {
				t.Errorf("expected anonymous token, got %q", token)
			}

			_, err = m.UserToken(ctx, "u1")
			if !errors.Is(err, shared.ErrAuthRequired) || !errors.Is(err, shared.ErrCredentialRefreshFailed) {
				t.Errorf("expected auth required wrapping refresh failure, got %v", err)
			}

			if saved, _ := store.Get("u1"); saved.AccessToken != "stale" {
				t.Errorf("failed refresh must not modify the credential, got %q", saved.AccessToken)
			}
		})

		t.Run("missing refresh token fails refresh", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			noRefresh := expired
			noRefresh.RefreshToken = ""
			m := newTestManager(t, ts, tu.NewMemoryStore(noRefresh), now)

			_, err := m.Resolve(ctx, "u1")
			if !errors.Is(err, shared.ErrCredentialRefreshFailed) || !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected refresh failure without refresh token, got %v", err)
			}
			if ts.RefreshGrants.Load() != 0 {
				t.Errorf("expected no upstream call, got %d", ts.RefreshGrants.Load())
			}
		})

		t.Run("concurrent requests share one refresh", func(t *testing.T) {
			ts := tu.NewTokenServer(t)
			ts.Delay = 50 * time.Millisecond
			store := tu.NewMemoryStore(expired)
			m := newTestManager(t, ts, store, now)

			var wg sync.WaitGroup
			tokens := make([]string, 8)
			for i := range tokens {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					tokens[i], _ = m.UserToken(ctx, "u1")
				}(i)
			}
			wg.Wait()

			if got := ts.RefreshGrants.Load(); got != 1 {
				t.Errorf("expected 1 refresh, got %d", got)
			}
			for i, tok := range tokens {
				if tok != "user-1" {
					t.Errorf("request %d got %q", i, tok)
				}
			}
		})
	})

	t.Run("store failure", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		store := tu.NewMemoryStore()
		store.FindErr = errors.New("disk on fire")
		m := newTestManager(t, ts, store, now)

		if token, err := m.PublicToken(ctx, "u1"); err != nil || token != "anon-1" {
			t.Errorf("expected anonymous fallback, got %q, %v", token, err)
		}
		if ts.ClientGrants.Load() != 1 {
			t.Errorf("expected 1 client grant, got %d", ts.ClientGrants.Load())
		}
		if _, err := m.UserToken(ctx, "u1"); err == nil || errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected raw store error, got %v", err)
		}
	})

	t.Run("UserToken without user", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		m := newTestManager(t, ts, tu.NewMemoryStore(), now)

		if _, err := m.UserToken(ctx, ""); !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})

	t.Run("Link stores the exchanged token", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		store := tu.NewMemoryStore()
		m := newTestManager(t, ts, store, now)

		token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
		cred, err := m.Link(ctx, "u9", "Nine", "nine@example.com", token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cred.ExpiresAt.Before(now.Add(50 * time.Minute)) {
			t.Errorf("unexpected expiry %v", cred.ExpiresAt)
		}

		saved, ok := store.Get("u9")
		if !ok || saved.DisplayName != "Nine" || saved.RefreshToken != "r" {
			t.Errorf("unexpected stored credential %+v", saved)
		}

		if _, err := m.Link(ctx, "u9", "", "", &oauth2.Token{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
