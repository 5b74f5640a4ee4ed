package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sphere/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultCallbackPath is used when the redirect URL carries no path.
const DefaultCallbackPath = "/callback"

var (
	ErrInvalidState        = errors.New("invalid state parameter")
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthOptions configures an [OAuthHandler].
type OAuthOptions struct {
	Config *oauth2.Config
	// State must match the state sent with the authorization URL.
	State string
	// Verifier is the PKCE code verifier. Empty disables PKCE.
	Verifier string
	// HTTPClient is used for the token exchange.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// OAuthHandler handles OAuth2 callback requests for authorization code flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	config      *oauth2.Config
	state       string
	verifier    string
	client      *http.Client
	path        string
	logger      *log.Logger
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler. The callback path is taken from the config's redirect URL.
func NewOAuthHandler(opts OAuthOptions) (*OAuthHandler, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: oauth config is required", shared.ErrInvalidConfig)
	}
	if opts.State == "" {
		return nil, fmt.Errorf("%w: oauth state is required", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	path := DefaultCallbackPath
	if opts.Config.RedirectURL != "" {
		u, err := url.Parse(opts.Config.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("%w: redirect url: %v", shared.ErrInvalidConfig, err)
		}
		if u.Path != "" && u.Path != "/" {
			path = u.Path
		}
	}

	return &OAuthHandler{
		config:     opts.Config,
		state:      opts.State,
		verifier:   opts.Verifier,
		client:     opts.HTTPClient,
		path:       path,
		logger:     shared.WithLogger(opts.Logger, "component", "oauth"),
		resultChan: make(chan OAuthResult, 1),
	}, nil
}

// AuthCodeURL returns the URL the user visits to grant access.
func (h *OAuthHandler) AuthCodeURL() string {
	if h.verifier == "" {
		return h.config.AuthCodeURL(h.state)
	}
	return h.config.AuthCodeURL(h.state, oauth2.S256ChallengeOption(h.verifier))
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates state parameter, exchanges authorization code for tokens, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{err: ErrInvalidState})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s %s", ErrAuthorizationDenied, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	}

	var opts []oauth2.AuthCodeOption
	if h.verifier != "" {
		opts = append(opts, oauth2.VerifierOption(h.verifier))
	}

	token, err := h.config.Exchange(ctx, code, opts...)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Account Linked</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Account Linked</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
