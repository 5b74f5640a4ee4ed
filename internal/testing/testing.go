// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
)

// MemoryStore is an in-memory credential store that counts its calls.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]models.Credential

	Finds   atomic.Int32
	Upserts atomic.Int32
	FindErr error
}

func NewMemoryStore(creds ...models.Credential) *MemoryStore {
	s := &MemoryStore{creds: make(map[string]models.Credential)}
	for _, c := range creds {
		s.creds[c.ExternalUserID] = c
	}
	return s
}

func (s *MemoryStore) FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error) {
	s.Finds.Add(1)
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrCredentialNotFound, externalID)
	}
	return &c, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, cred *models.Credential) error {
	s.Upserts.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.creds[cred.ExternalUserID]
	next := *cred
	if ok && next.RefreshToken == "" {
		next.RefreshToken = prev.RefreshToken
	}
	s.creds[cred.ExternalUserID] = next
	return nil
}

// Get returns the stored credential without counting a lookup.
func (s *MemoryStore) Get(externalID string) (models.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[externalID]
	return c, ok
}

// TokenServer fakes an OAuth2 token endpoint for the client-credentials and refresh-token grants.
type TokenServer struct {
	*httptest.Server

	ClientGrants  atomic.Int32
	RefreshGrants atomic.Int32

	// RejectRefresh answers refresh grants with invalid_grant.
	RejectRefresh bool
	// RejectClient answers client-credentials grants with invalid_client.
	RejectClient bool
	// RotateRefresh issues a new refresh token on every refresh.
	RotateRefresh bool
	// Delay is applied before answering refresh grants.
	Delay time.Duration
	// ExpiresIn is returned for every token; defaults to 3600.
	ExpiresIn int
}

func NewTokenServer(t *testing.T) *TokenServer {
	t.Helper()
	ts := &TokenServer{ExpiresIn: 3600}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, _, ok := r.BasicAuth(); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	body := map[string]any{"token_type": "Bearer", "expires_in": ts.ExpiresIn}
	switch r.Form.Get("grant_type") {
	case "client_credentials":
		n := ts.ClientGrants.Add(1)
		if ts.RejectClient {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
			return
		}
		body["access_token"] = fmt.Sprintf("anon-%d", n)
	case "refresh_token":
		n := ts.RefreshGrants.Add(1)
		if ts.Delay > 0 {
			time.Sleep(ts.Delay)
		}
		if ts.RejectRefresh {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Refresh token revoked",
			})
			return
		}
		body["access_token"] = fmt.Sprintf("user-%d", n)
		if ts.RotateRefresh {
			body["refresh_token"] = fmt.Sprintf("refresh-%d", n)
		}
	case "authorization_code":
		body["access_token"] = "linked-" + r.Form.Get("code")
		body["refresh_token"] = "refresh-linked"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	writeJSON(w, http.StatusOK, body)
}

// URL of the token endpoint.
func (ts *TokenServer) TokenURL() string {
	return ts.Server.URL + "/api/token"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

// StaticTokens is a token provider that returns fixed tokens.
type StaticTokens struct {
	Public    string
	User      string
	PublicErr error
	UserErr   error

	mu    sync.Mutex
	Users []string
}

func (s *StaticTokens) PublicToken(ctx context.Context, userID string) (string, error) {
	s.record(userID)
	if s.PublicErr != nil {
		return "", s.PublicErr
	}
	return s.Public, nil
}

func (s *StaticTokens) UserToken(ctx context.Context, userID string) (string, error) {
	s.record(userID)
	if s.UserErr != nil {
		return "", s.UserErr
	}
	if userID == "" {
		return "", shared.ErrAuthRequired
	}
	return s.User, nil
}

func (s *StaticTokens) record(userID string) {
	s.mu.Lock()
	s.Users = append(s.Users, userID)
	s.mu.Unlock()
}
