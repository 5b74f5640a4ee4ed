package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultMargin is how long before expiry a token stops being reused.
	DefaultMargin = 5 * time.Minute

	anonymousKey = "\x00anonymous"
)

// Scopes requested when a user links an account.
var Scopes = []string{"user-read-private", "user-read-email", "user-top-read"}

// CredentialStore persists one [models.Credential] per external user id.
type CredentialStore interface {
	// FindByExternalID returns [shared.ErrCredentialNotFound] when no credential exists.
	FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error)
	Upsert(ctx context.Context, cred *models.Credential) error
}

// Options configures a [Manager].
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string // defaults to [SpotifyAuthURL]
	TokenURL     string // defaults to [SpotifyTokenURL]
	Store        CredentialStore
	HTTPClient   *http.Client
	Margin       time.Duration
	Clock        func() time.Time
	Logger       *log.Logger
}

// Manager resolves access tokens per request. It is safe for concurrent use.
type Manager struct {
	app    *clientcredentials.Config
	user   *oauth2.Config
	store  CredentialStore
	client *http.Client
	margin time.Duration
	now    func() time.Time
	logger *log.Logger

	group  singleflight.Group
	anonMu sync.RWMutex
	anon   *oauth2.Token
}

// NewManager creates a [Manager]. A nil Store treats every user as unlinked.
func NewManager(opts Options) (*Manager, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = SpotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = SpotifyTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Manager{
		app: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		user: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:  opts.Store,
		client: opts.HTTPClient,
		margin: opts.Margin,
		now:    opts.Clock,
		logger: shared.WithLogger(opts.Logger, "component", "auth"),
	}, nil
}

// OAuthConfig returns the authorization-code configuration used to link accounts.
func (m *Manager) OAuthConfig() *oauth2.Config {
	return m.user
}

// HTTPContext attaches the manager's HTTP client for use by [oauth2] calls.
func (m *Manager) HTTPContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// Resolve runs the per-request state machine for userID (empty for anonymous).
//
// A failed refresh returns the [UserCredentialExpiring] grant with an error wrapping
// [shared.ErrCredentialRefreshFailed]; Resolve itself never falls back. A credential
// that cannot be read from the store is treated as missing.
func (m *Manager) Resolve(ctx context.Context, userID string) (Grant, error) {
	if userID == "" {
		token, err := m.anonymous(ctx)
		return Grant{State: NoUserContext, AccessToken: token}, err
	}

	grant, err := m.resolveUser(ctx, userID)
	switch {
	case err != nil && !grant.Anonymous():
		return grant, err
	case err != nil:
		m.logger.Warn("credential lookup failed, using anonymous access", "user", userID, "error", err)
	case !grant.Anonymous():
		return grant, nil
	}

	token, err := m.anonymous(ctx)
	grant.AccessToken = token
	return grant, err
}

// PublicToken returns a token for catalog reads. Any problem with the user's credential
// falls back to the anonymous token, which is requested at most once per call.
func (m *Manager) PublicToken(ctx context.Context, userID string) (string, error) {
	grant, err := m.Resolve(ctx, userID)
	if err == nil {
		return grant.AccessToken, nil
	}
	// Anonymous grants already asked for the application token.
	if grant.Anonymous() || ctx.Err() != nil {
		return "", err
	}

	m.logger.Warn("falling back to anonymous access", "user", userID, "state", grant.State, "error", err)
	return m.anonymous(ctx)
}

// UserToken returns the user's own token for operations on their personal data.
// Absent users, missing credentials and failed refreshes yield [shared.ErrAuthRequired].
func (m *Manager) UserToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", shared.ErrAuthRequired
	}

	grant, err := m.resolveUser(ctx, userID)
	switch {
	case errors.Is(err, shared.ErrCredentialRefreshFailed):
		return "", fmt.Errorf("%w: %w", shared.ErrAuthRequired, err)
	case err != nil:
		return "", err
	case grant.State == UserCredentialMissing:
		return "", fmt.Errorf("%w: no linked account for %s", shared.ErrAuthRequired, userID)
	}
	return grant.AccessToken, nil
}

// Link stores the token obtained from an authorization-code exchange for the given profile.
func (m *Manager) Link(ctx context.Context, externalID, displayName, email string, token *oauth2.Token) (*models.Credential, error) {
	if m.store == nil {
		return nil, fmt.Errorf("%w: no credential store configured", shared.ErrInvalidConfig)
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty token", shared.ErrInvalidInput)
	}

	cred := &models.Credential{
		ExternalUserID: externalID,
		DisplayName:    displayName,
		Email:          email,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiresAt:      m.expiry(token),
	}
	if err := m.store.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	m.logger.Info("linked account", "user", externalID)
	return cred, nil
}

func (m *Manager) resolveUser(ctx context.Context, userID string) (Grant, error) {
	cred, err := m.lookup(ctx, userID)
	if err != nil {
		return Grant{State: UserCredentialMissing}, err
	}

	state := Classify(userID, cred, m.now(), m.margin)
	switch state {
	case UserCredentialMissing:
		return Grant{State: state}, nil
	case UserCredentialValid:
		return Grant{State: state, AccessToken: cred.AccessToken, Credential: cred}, nil
	}

	refreshed, err := m.refresh(ctx, cred)
	if err != nil {
		return Grant{State: state, Credential: cred}, err
	}
	return Grant{State: state, AccessToken: refreshed.AccessToken, Credential: refreshed}, nil
}

func (m *Manager) lookup(ctx context.Context, userID string) (*models.Credential, error) {
	if m.store == nil {
		return nil, nil
	}

	cred, err := m.store.FindByExternalID(ctx, userID)
	if errors.Is(err, shared.ErrCredentialNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return cred, nil
}

// refresh exchanges cred's refresh token, persists the result and returns it.
// Callers refreshing the same user at the same time share one exchange.
func (m *Manager) refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	v, err, joined := m.group.Do(cred.ExternalUserID, func() (any, error) {
		// Another request may have refreshed since this one read the store.
		if latest, err := m.lookup(ctx, cred.ExternalUserID); err == nil && latest != nil &&
			Classify(latest.ExternalUserID, latest, m.now(), m.margin) == UserCredentialValid {
			return latest, nil
		}
		return m.exchange(ctx, cred)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		m.logger.Debug("joined in-flight refresh", "user", cred.ExternalUserID)
	}
	return v.(*models.Credential), nil
}

func (m *Manager) exchange(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %w", shared.ErrCredentialRefreshFailed, shared.ErrNoRefreshToken)
	}

	source := m.user.TokenSource(m.HTTPContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := source.Token()
	if err != nil {
		m.logger.Warn("refresh failed", "user", cred.ExternalUserID, "error", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrCredentialRefreshFailed, err)
	}

	updated := *cred
	updated.AccessToken = token.AccessToken
	updated.ExpiresAt = m.expiry(token)
	if token.RefreshToken != "" {
		updated.RefreshToken = token.RefreshToken
	}

	if m.store != nil {
		if err := m.store.Upsert(ctx, &updated); err != nil {
			m.logger.Error("failed to persist refreshed credential", "user", cred.ExternalUserID, "error", err)
		}
	}

	m.logger.Info("refreshed credential", "user", cred.ExternalUserID, "expires_at", updated.ExpiresAt)
	return &updated, nil
}

// anonymous returns the shared client-credentials token, fetching a new one near expiry.
func (m *Manager) anonymous(ctx context.Context) (string, error) {
	if token := m.cachedAnonymous(); token != "" {
		return token, nil
	}

	v, err, _ := m.group.Do(anonymousKey, func() (any, error) {
		if token := m.cachedAnonymous(); token != "" {
			return token, nil
		}

		token, err := m.app.Token(m.HTTPContext(ctx))
		if err != nil {
			return "", fmt.Errorf("%w: client credentials grant: %w", shared.ErrProviderUnavailable, err)
		}
		token.Expiry = m.expiry(token)

		m.anonMu.Lock()
		m.anon = token
		m.anonMu.Unlock()

		m.logger.Debug("acquired anonymous token", "expires_at", token.Expiry)
		return token.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) cachedAnonymous() string {
	m.anonMu.RLock()
	defer m.anonMu.RUnlock()

	if m.anon == nil || !m.anon.Expiry.Add(-m.margin).After(m.now()) {
		return ""
	}
	return m.anon.AccessToken
}

// expiry rebases the provider's expires_in onto the manager clock, assuming one hour when it is omitted.
func (m *Manager) expiry(token *oauth2.Token) time.Time {
	if token.Expiry.IsZero() {
		return m.now().Add(time.Hour)
	}
	return m.now().Add(time.Until(token.Expiry))
}
