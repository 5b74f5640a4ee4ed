// package services implements HTTP clients for the primary catalog provider (Spotify) and the enrichment provider (Last.fm)
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/sphere/internal/shared"
)

// TokenProvider hands out access tokens for the primary provider.
//
// PublicToken serves catalog reads and never fails for credential reasons alone;
// UserToken serves reads of the user's own data.
type TokenProvider interface {
	PublicToken(ctx context.Context, userID string) (string, error)
	UserToken(ctx context.Context, userID string) (string, error)
}

// APIError describes a failed provider call. It unwraps to one of
// [shared.ErrNotFound], [shared.ErrProviderUnavailable] or [shared.ErrMalformedResponse].
type APIError struct {
	Provider   string
	Status     int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Err)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status onto the provider error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound, status == http.StatusBadRequest:
		return shared.ErrNotFound
	default:
		return shared.ErrProviderUnavailable
	}
}

// transportError wraps a failed round trip. Context cancellation is passed through untouched.
func transportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return &APIError{Provider: provider, Err: shared.ErrProviderUnavailable, Message: err.Error()}
}

func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// clampLimit keeps page sizes within the provider's 1..50 window, defaulting to 20.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 50:
		return 50
	}
	return limit
}
