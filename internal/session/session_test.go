package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example/auth", TokenURL: tokenURL},
		RedirectURL:  "http://localhost",
		Scopes:       Scopes,
	}
}

func TestOAuthProvider_NoToken(t *testing.T) {
	p := NewOAuthProviderFromConfig(testConfig("http://unused"), nil, "", nil)
	assert.False(t, p.IsValid())

	_, err := p.Acquire(context.Background())
	var authErr *ledgererror.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, ledgererror.IsRemote(err))

	assert.ErrorAs(t, p.Refresh(context.Background()), &authErr)
}

func TestOAuthProvider_RefreshesExpiredToken(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	expired := &oauth2.Token{AccessToken: "old", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Hour)}
	p := NewOAuthProviderFromConfig(testConfig(srv.URL), expired, tokenPath, logging.NewMockLogger())
	assert.True(t, p.IsValid(), "a refresh token makes the session usable")

	client, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stored, err := readToken(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", stored.AccessToken)
	assert.Equal(t, "refresh", stored.RefreshToken, "refresh token carried over")

	// the fresh token is reused
	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOAuthProvider_AuthCodeURL(t *testing.T) {
	p := NewOAuthProviderFromConfig(testConfig("http://unused"), nil, "", nil)
	u := p.AuthCodeURL("state-1")
	assert.True(t, strings.HasPrefix(u, "https://accounts.example/auth"))
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "state=state-1")
}

func TestNewOAuthProvider_FromFiles(t *testing.T) {
	dir := t.TempDir()
	credentials := filepath.Join(dir, "credentials.json")
	body, err := json.Marshal(map[string]interface{}{
		"installed": map[string]interface{}{
			"client_id":     "id.apps.googleusercontent.com",
			"client_secret": "secret",
			"redirect_uris": []string{"http://localhost"},
			"auth_uri":      "https://accounts.google.com/o/oauth2/auth",
			"token_uri":     "https://oauth2.googleapis.com/token",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(credentials, body, 0o600))

	tokenPath := filepath.Join(dir, "token.json")
	p, err := NewOAuthProvider(credentials, tokenPath, nil)
	require.NoError(t, err)
	assert.False(t, p.IsValid())

	require.NoError(t, writeToken(tokenPath, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))
	p, err = NewOAuthProvider(credentials, tokenPath, nil)
	require.NoError(t, err)
	assert.True(t, p.IsValid())

	_, err = NewOAuthProvider(filepath.Join(dir, "missing.json"), tokenPath, nil)
	var authErr *ledgererror.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
}

func TestServiceAccountProvider_InvalidKey(t *testing.T) {
	key := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(key, []byte(`{"type":"authorized_user","client_id":"x"}`), 0o600))
	_, err := NewServiceAccountProvider(key)
	var authErr *ledgererror.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
}

func TestStaticProvider(t *testing.T) {
	empty := &StaticProvider{}
	assert.False(t, empty.IsValid())
	_, err := empty.Acquire(context.Background())
	assert.Error(t, err)

	p := &StaticProvider{Client: http.DefaultClient}
	assert.True(t, p.IsValid())
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, http.DefaultClient, c)
	assert.NoError(t, p.Refresh(context.Background()))
}
