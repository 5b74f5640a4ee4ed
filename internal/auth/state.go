package auth

import (
	"time"

	"github.com/desertthunder/sphere/internal/models"
)

// State is the credential situation of a single token request.
type State int

const (
	NoUserContext State = iota
	UserCredentialValid
	UserCredentialExpiring
	UserCredentialMissing
)

func (s State) String() string {
	switch s {
	case NoUserContext:
		return "no_user_context"
	case UserCredentialValid:
		return "user_credential_valid"
	case UserCredentialExpiring:
		return "user_credential_expiring"
	case UserCredentialMissing:
		return "user_credential_missing"
	}
	return "unknown"
}

// Classify determines the [State] for userID given its stored credential (nil when absent).
func Classify(userID string, cred *models.Credential, now time.Time, margin time.Duration) State {
	switch {
	case userID == "":
		return NoUserContext
	case cred == nil:
		return UserCredentialMissing
	case cred.AccessToken == "" || cred.ExpiresWithin(now, margin):
		return UserCredentialExpiring
	default:
		return UserCredentialValid
	}
}

// Grant is the outcome of resolving a token.
type Grant struct {
	State       State
	AccessToken string
	// Credential is the user's credential after any refresh; nil for anonymous grants.
	Credential *models.Credential
}

// Anonymous reports whether the grant carries the shared application token.
func (g Grant) Anonymous() bool {
	return g.State == NoUserContext || g.State == UserCredentialMissing
}
