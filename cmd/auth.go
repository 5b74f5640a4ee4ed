package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/sphere/internal/auth"
	"github.com/desertthunder/sphere/internal/server"
	"github.com/desertthunder/sphere/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultLinkTimeout = 3 * time.Minute

// AuthLink runs the authorization-code flow against a loopback callback server and stores the resulting credential.
func (r *Runner) AuthLink(ctx context.Context, cmd *cli.Command) error {
	handler, err := server.NewOAuthHandler(server.OAuthOptions{
		Config:     r.manager.OAuthConfig(),
		State:      shared.GenerateID(),
		Verifier:   oauth2.GenerateVerifier(),
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	addr, err := r.callbackAddr()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := server.NewBasicRouter()
	router.Use(server.Logging(shared.WithLogger(r.logger, "component", "callback")))
	router.Handler(handler)

	authURL := handler.AuthCodeURL()
	r.writePlain("Open this URL to link your Spotify account:\n\n  %s\n\n", authURL)
	if !cmd.Bool("no-browser") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	wctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	token, err := server.AwaitCallback(wctx, ln, router, handler)
	if err != nil {
		return fmt.Errorf("account linking failed: %w", err)
	}

	profile, err := r.spotify.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to load Spotify profile: %w", err)
	}

	if _, err := r.manager.Link(ctx, profile.ID, profile.DisplayName, profile.Email, token); err != nil {
		return err
	}
	if err := r.users.TouchLogin(ctx, profile.ID, r.now()); err != nil {
		r.logger.Warn("failed to record login", "user", profile.ID, "error", err)
	}

	name := profile.DisplayName
	if name == "" {
		name = profile.ID
	}
	return r.writePlain("Linked %s. Use --user %s (or SPHERE_USER) for personal commands.\n", name, profile.ID)
}

// callbackAddr is the listen address for the redirect URI, falling back to the server config.
func (r *Runner) callbackAddr() (string, error) {
	if redirect := r.config.Credentials.Spotify.RedirectURI; redirect != "" {
		u, err := url.Parse(redirect)
		if err != nil {
			return "", fmt.Errorf("%w: redirect uri: %v", shared.ErrInvalidConfig, err)
		}
		if u.Port() != "" {
			return u.Host, nil
		}
	}
	return net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port)), nil
}

// AuthStatus reports the stored credential state for a user without refreshing it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user", shared.ErrMissingArgument)
	}

	user, err := r.users.GetByExternalID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthRequired, err)
	}

	cred := user.Credential()
	state := auth.Classify(userID, &cred, r.now(), r.config.Enrichment.TokenMargin.Duration)

	r.writePlain("User:       %s\n", user.ExternalUserID())
	r.writePlain("Account:    %s\n", user.ID())
	if user.DisplayName() != "" {
		r.writePlain("Name:       %s\n", user.DisplayName())
	}
	if user.Email() != "" {
		r.writePlain("Email:      %s\n", user.Email())
	}
	r.writePlain("State:      %s\n", state)
	r.writePlain("Expires:    %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
	r.writePlain("Updated:    %s\n", user.UpdatedAt().Local().Format(time.RFC1123))
	if cred.RefreshToken == "" {
		r.writePlain("Refresh:    %s\n", "none stored, link again when this expires")
	}
	if last := user.LastLogin(); last != nil {
		r.writePlain("Last login: %s\n", last.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthList prints every linked account with the state of its stored credential.
func (r *Runner) AuthList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{}
	if email := cmd.String("email"); email != "" {
		criteria["email"] = email
	}

	users, err := r.users.List(ctx, criteria)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return r.writePlain("No linked accounts\n")
	}

	now := r.now()
	for _, user := range users {
		cred := user.Credential()
		state := auth.Classify(user.ExternalUserID(), &cred, now, r.config.Enrichment.TokenMargin.Duration)
		name := user.DisplayName()
		if name == "" {
			name = "-"
		}
		if err := r.writePlain("%d. %s (%s) %s, linked %s\n", user.Sequence(), user.ExternalUserID(), name,
			state, user.CreatedAt().Local().Format(time.DateOnly)); err != nil {
			return err
		}
	}
	return nil
}
