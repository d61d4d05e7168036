// Package session provides authenticated HTTP clients for the remote document store.
// Providers are injected into the store; nothing in this package is global.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
)

// Provider hands out HTTP clients authorized against the document store.
type Provider interface {
	// Acquire returns an authorized client or an AuthenticationError.
	Acquire(ctx context.Context) (*http.Client, error)
	// IsValid reports whether a usable credential is loaded, without network calls.
	IsValid() bool
	// Refresh forces a new access token.
	Refresh(ctx context.Context) error
}

// Scopes requested by every provider.
var Scopes = []string{drive.DriveScope}

// OAuthProvider uses an installed-app OAuth client and a token file. Refreshed tokens
// are written back to the token file.
type OAuthProvider struct {
	cfg       *oauth2.Config
	tokenPath string
	logger    logging.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewOAuthProvider reads the OAuth client file. A missing token file is not an error:
// IsValid reports false until Exchange stores one.
func NewOAuthProvider(credentialsPath, tokenPath string, logger logging.Logger) (*OAuthProvider, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, &ledgererror.AuthenticationError{Reason: "cannot read OAuth client file " + credentialsPath, Err: err}
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, &ledgererror.AuthenticationError{Reason: "invalid OAuth client file", Err: err}
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	p := &OAuthProvider{cfg: cfg, tokenPath: tokenPath, logger: logger}
	if tok, err := readToken(tokenPath); err == nil {
		p.token = tok
	} else {
		logger.Debug("No stored OAuth token", logging.F(logging.FieldFile, tokenPath))
	}
	return p, nil
}

// NewOAuthProviderFromConfig builds a provider around an existing config and token.
func NewOAuthProviderFromConfig(cfg *oauth2.Config, token *oauth2.Token, tokenPath string, logger logging.Logger) *OAuthProvider {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &OAuthProvider{cfg: cfg, token: token, tokenPath: tokenPath, logger: logger}
}

func (p *OAuthProvider) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return usable(p.token)
}

func usable(tok *oauth2.Token) bool {
	if tok == nil {
		return false
	}
	return tok.Valid() || strings.TrimSpace(tok.RefreshToken) != ""
}

func (p *OAuthProvider) Acquire(ctx context.Context) (*http.Client, error) {
	tok, err := p.current(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, &persistingSource{p: p, ctx: ctx})), nil
}

func (p *OAuthProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil || p.token.RefreshToken == "" {
		return &ledgererror.AuthenticationError{Reason: "no refresh token; run the login command"}
	}
	stale := *p.token
	stale.Expiry = time.Now().Add(-time.Minute)
	return p.renewLocked(ctx, &stale)
}

// current returns a valid token, refreshing it when it expired.
func (p *OAuthProvider) current(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !usable(p.token) {
		return nil, &ledgererror.AuthenticationError{Reason: "no valid OAuth token; run the login command"}
	}
	if p.token.Valid() {
		return p.token, nil
	}
	if err := p.renewLocked(ctx, p.token); err != nil {
		return nil, err
	}
	return p.token, nil
}

func (p *OAuthProvider) renewLocked(ctx context.Context, from *oauth2.Token) error {
	tok, err := p.cfg.TokenSource(ctx, from).Token()
	if err != nil {
		return &ledgererror.AuthenticationError{Reason: "token refresh failed", Err: err}
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = from.RefreshToken
	}
	p.token = tok
	if err := writeToken(p.tokenPath, tok); err != nil {
		p.logger.WithError(err).Warn("Could not persist refreshed token", logging.F(logging.FieldFile, p.tokenPath))
	}
	p.logger.Debug("OAuth token refreshed")
	return nil
}

// AuthCodeURL returns the consent page URL for the manual login flow.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) error {
	tok, err := p.cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return &ledgererror.AuthenticationError{Reason: "authorization code exchange failed", Err: err}
	}
	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()
	if err := writeToken(p.tokenPath, tok); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	p.logger.Info("OAuth token stored", logging.F(logging.FieldFile, p.tokenPath))
	return nil
}

// persistingSource refreshes through the provider so renewed tokens are saved.
type persistingSource struct {
	p   *OAuthProvider
	ctx context.Context
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	return s.p.current(s.ctx)
}

func readToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, fmt.Errorf("no token path configured")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	return tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), models.PermissionDirectory); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, models.PermissionConfigFile)
}

// ServiceAccountProvider authenticates with a service-account key.
type ServiceAccountProvider struct {
	cfg *jwt.Config
}

// NewServiceAccountProvider parses a service-account key file.
func NewServiceAccountProvider(keyPath string) (*ServiceAccountProvider, error) {
	b, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, &ledgererror.AuthenticationError{Reason: "cannot read service account key " + keyPath, Err: err}
	}
	cfg, err := google.JWTConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, &ledgererror.AuthenticationError{Reason: "invalid service account key", Err: err}
	}
	return &ServiceAccountProvider{cfg: cfg}, nil
}

func (p *ServiceAccountProvider) Acquire(ctx context.Context) (*http.Client, error) {
	return p.cfg.Client(ctx), nil
}

func (p *ServiceAccountProvider) IsValid() bool {
	return p.cfg != nil && p.cfg.Email != "" && len(p.cfg.PrivateKey) > 0
}

func (p *ServiceAccountProvider) Refresh(ctx context.Context) error {
	if _, err := p.cfg.TokenSource(ctx).Token(); err != nil {
		return &ledgererror.AuthenticationError{Reason: "service account token request failed", Err: err}
	}
	return nil
}

// StaticProvider hands out a fixed client. It backs dry runs and tests.
type StaticProvider struct {
	Client *http.Client
}

func (p *StaticProvider) Acquire(context.Context) (*http.Client, error) {
	if p.Client == nil {
		return nil, &ledgererror.AuthenticationError{Reason: "no client configured"}
	}
	return p.Client, nil
}

func (p *StaticProvider) IsValid() bool { return p.Client != nil }

func (p *StaticProvider) Refresh(context.Context) error { return nil }
