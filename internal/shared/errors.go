package shared

import "errors"

var (
	ErrNotImplemented = errors.New("not implemented")

	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Credential lifecycle errors
	ErrCredentialNotFound      = errors.New("credential not found")
	ErrCredentialRefreshFailed = errors.New("credential refresh failed")
	ErrNoRefreshToken          = errors.New("no refresh token available")
	ErrAuthRequired            = errors.New("operation requires authentication")

	// Provider errors
	ErrNotFound            = errors.New("entity not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)
