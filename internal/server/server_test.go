package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/sphere/internal/shared"
	tu "github.com/desertthunder/sphere/internal/testing"
	"golang.org/x/oauth2"
)

func testConfig(ts *tu.TokenServer, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  redirect,
		Scopes:       []string{"user-top-read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/authorize",
			TokenURL:  ts.TokenURL(),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func newTestHandler(t *testing.T, ts *tu.TokenServer, redirect string) *OAuthHandler {
	t.Helper()
	h, err := NewOAuthHandler(OAuthOptions{
		Config:     testConfig(ts, redirect),
		State:      "state-123",
		Verifier:   oauth2.GenerateVerifier(),
		HTTPClient: ts.Client(),
		Logger:     shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return h
}

func TestRouter(t *testing.T) {
	t.Run("method patterns", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc("get", "/ping", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("pong")) })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/", func(http.ResponseWriter, *http.Request) { order = append(order, "handler") })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("logging records status without query", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewBasicRouter()
		r.Use(Logging(shared.NewLogger(&buf)))
		r.HandleFunc(http.MethodGet, "/callback", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/callback") {
			t.Errorf("unexpected log %q", out)
		}
		if strings.Contains(out, "secret") {
			t.Errorf("query leaked into log: %q", out)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	t.Run("requires config and state", func(t *testing.T) {
		if _, err := NewOAuthHandler(OAuthOptions{State: "s"}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		if _, err := NewOAuthHandler(OAuthOptions{Config: &oauth2.Config{}}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("callback path follows redirect url", func(t *testing.T) {
		ts := tu.NewTokenServer(t)
		if got := newTestHandler(t, ts, "http://127.0.0.1:8888/auth/spotify").Routes(); got[0] != "/auth/spotify" {
			t.Errorf("expected /auth/spotify, got %v", got)
		}
		if got := newTestHandler(t, ts, "").Routes(); got[0] != DefaultCallbackPath {
			t.Errorf("expected default path, got %v", got)
		}
	})

	t.Run("auth url carries state and challenge", func(t *testing.T) {
		h := newTestHandler(t, tu.NewTokenServer(t), "http://127.0.0.1:3000/callback")
		u, err := url.Parse(h.AuthCodeURL())
		if err != nil {
			t.Fatalf("invalid url: %v", err)
		}
		q := u.Query()
		if q.Get("state") != "state-123" || q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
			t.Errorf("unexpected query %v", q)
		}
	})

	t.Run("exchanges code once", func(t *testing.T) {
		h := newTestHandler(t, tu.NewTokenServer(t), "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		res := <-h.Result()
		if err := res.Error(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Token.AccessToken != "linked-abc" || res.Token.RefreshToken != "refresh-linked" {
			t.Errorf("unexpected token %+v", res.Token)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"state mismatch", "state=forged&code=abc", ErrInvalidState},
		{"user denied", "state=state-123&error=access_denied", ErrAuthorizationDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tu.NewTokenServer(t), "")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			res := <-h.Result()
			if !errors.Is(res.Error(), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, res.Error())
			}
		})
	}
}

func TestAwaitCallback(t *testing.T) {
	t.Run("returns the exchanged token", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		h := newTestHandler(t, tu.NewTokenServer(t), "http://"+ln.Addr().String()+"/callback")
		r := NewBasicRouter()
		r.Handler(h)

		go func() {
			resp, err := http.Get("http://" + ln.Addr().String() + "/callback?state=state-123&code=xyz")
			if err == nil {
				resp.Body.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		token, err := AwaitCallback(ctx, ln, r, h)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "linked-xyz" {
			t.Errorf("unexpected token %q", token.AccessToken)
		}
	})

	t.Run("honours context", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		h := newTestHandler(t, tu.NewTokenServer(t), "")
		r := NewBasicRouter()
		r.Handler(h)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := AwaitCallback(ctx, ln, r, h); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
