// Package auth obtains a valid OAuth2 token for the Drive API. It reuses a
// persisted token when possible, refreshes an expired one, and otherwise
// delegates to an Authorizer for interactive consent. Every token it hands
// out, including later silent refreshes, is persisted to the token file.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/tonimelisma/gdfetch/internal/tokenfile"
)

// ErrMissingCredentials means no client credential bundle exists for the
// scope, so interactive authorization cannot start.
var ErrMissingCredentials = errors.New("auth: credential bundle not found")

// Scopes requested from Google. Read-only access is enough to list, export
// and download.
var Scopes = []string{drive.DriveReadonlyScope}

// Authorizer runs an interactive consent flow for cfg and returns the
// resulting token. BrowserAuthorizer is the default; service-account or
// device flows can be swapped in without touching the Authenticator.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Authenticator yields a token source for one credential scope.
type Authenticator struct {
	CredentialsPath string
	TokenPath       string
	Meta            map[string]string // stored alongside the token
	Authorizer      Authorizer
	Logger          *slog.Logger
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}

	return a.Logger
}

// loadConfig parses the client credential bundle.
func (a *Authenticator) loadConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, a.CredentialsPath)
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing credentials %s: %w", a.CredentialsPath, err)
	}

	return cfg, nil
}

// clientConfig rebuilds a refresh-only config from the client recorded in a
// token file.
func clientConfig(c *tokenfile.Client) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ID,
		ClientSecret: c.Secret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL},
		Scopes:       Scopes,
	}
}

func clientOf(cfg *oauth2.Config) *tokenfile.Client {
	return &tokenfile.Client{
		ID:       cfg.ClientID,
		Secret:   cfg.ClientSecret,
		TokenURL: cfg.Endpoint.TokenURL,
	}
}

// TokenSource returns a token source backed by a valid token.
//
//  1. A persisted, unexpired token is used as is; nothing is written.
//  2. An expired token with a refresh token is refreshed and persisted.
//     The client comes from the credential bundle, or from the token file
//     when the bundle is gone. A failed refresh is logged and falls
//     through to step 3.
//  3. Otherwise the credential bundle must exist (ErrMissingCredentials if
//     not) and the Authorizer obtains a new token, which is persisted.
//
// ctx is bound to the returned source and must outlive it.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	logger := a.logger()

	var tok *oauth2.Token

	saved, err := tokenfile.Load(a.TokenPath)
	if err != nil {
		// A corrupt token file is as good as none.
		logger.Warn("ignoring unreadable token file",
			slog.String("path", a.TokenPath),
			slog.String("error", err.Error()),
		)

		saved = nil
	}

	cfg, cfgErr := a.loadConfig()

	// refreshCfg can renew tokens; it may lack the auth URL needed to
	// authorize from scratch.
	refreshCfg := cfg
	if saved != nil {
		tok = saved.Token

		if cfgErr != nil && saved.Client != nil {
			logger.Debug("credential bundle unavailable, using client from token file",
				slog.String("path", a.TokenPath),
			)

			refreshCfg = clientConfig(saved.Client)
		}
	}

	if tok != nil && tok.Valid() {
		logger.Debug("using persisted token",
			slog.String("path", a.TokenPath),
			slog.Time("expiry", tok.Expiry),
		)

		if refreshCfg == nil {
			// Still usable until expiry, just not refreshable.
			logger.Debug("token is not refreshable", slog.String("error", cfgErr.Error()))
			return oauth2.StaticTokenSource(tok), nil
		}

		return a.persisting(ctx, refreshCfg, tok), nil
	}

	if tok != nil && tok.RefreshToken != "" && refreshCfg != nil {
		if fresh, ok := a.refresh(ctx, refreshCfg, tok); ok {
			return a.persisting(ctx, refreshCfg, fresh), nil
		}
	}

	if cfgErr != nil {
		return nil, cfgErr
	}

	if a.Authorizer == nil {
		return nil, errors.New("auth: no authorizer configured")
	}

	logger.Info("starting interactive authorization", slog.String("path", a.TokenPath))

	tok, err = a.Authorizer.Authorize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: authorization failed: %w", err)
	}

	if err := a.save(tok, cfg); err != nil {
		return nil, fmt.Errorf("auth: saving token: %w", err)
	}

	logger.Info("authorization successful",
		slog.String("path", a.TokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return a.persisting(ctx, cfg, tok), nil
}

// refresh exchanges the refresh token and persists the result.
func (a *Authenticator) refresh(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, bool) {
	logger := a.logger()
	logger.Info("refreshing expired token", slog.String("path", a.TokenPath))

	fresh, err := cfg.TokenSource(ctx, tok).Token()
	if err != nil {
		logger.Warn("token refresh failed, re-authorization required",
			slog.String("path", a.TokenPath),
			slog.String("error", err.Error()),
		)

		return nil, false
	}

	if err := a.save(fresh, cfg); err != nil {
		logger.Warn("failed to persist refreshed token",
			slog.String("path", a.TokenPath),
			slog.String("error", err.Error()),
		)
	}

	return fresh, true
}

// save persists tok together with the client that can refresh it.
func (a *Authenticator) save(tok *oauth2.Token, cfg *oauth2.Config) error {
	return tokenfile.Save(a.TokenPath, tokenfile.File{Token: tok, Client: clientOf(cfg), Meta: a.Meta})
}

func (a *Authenticator) persisting(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) oauth2.TokenSource {
	return &persistingSource{
		src:    cfg.TokenSource(ctx, tok),
		path:   a.TokenPath,
		client: clientOf(cfg),
		meta:   a.Meta,
		last:   tok.AccessToken,
		logger: a.logger(),
	}
}

// persistingSource saves every token whose access token differs from the
// last one it saw, so silent refreshes survive the process.
type persistingSource struct {
	src    oauth2.TokenSource
	path   string
	client *tokenfile.Client
	meta   map[string]string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		p.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("auth: obtaining token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.last {
		return tok, nil
	}

	p.last = tok.AccessToken

	if err := tokenfile.Save(p.path, tokenfile.File{Token: tok, Client: p.client, Meta: p.meta}); err != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)

		return tok, nil
	}

	p.logger.Info("persisted refreshed token",
		slog.String("path", p.path),
		slog.Time("expiry", tok.Expiry),
	)

	return tok, nil
}

// Logout removes the cached token at tokenPath. Returns true if a file was
// removed; a missing file is not an error.
func Logout(tokenPath string, logger *slog.Logger) (bool, error) {
	removed, err := tokenfile.Remove(tokenPath)
	if err != nil {
		return false, fmt.Errorf("auth: logout: %w", err)
	}

	if removed {
		logger.Info("logout: removed token file", slog.String("path", tokenPath))
	} else {
		logger.Info("logout: no token file to remove", slog.String("path", tokenPath))
	}

	return removed, nil
}
