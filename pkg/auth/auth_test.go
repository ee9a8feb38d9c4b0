package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNormalizeRedirectURL(t *testing.T) {
	log := logging.Discard()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"oob", "urn:ietf:wg:oauth:2.0:oob", "http://localhost:6789/oauth2callback"},
		{"empty", "", "http://localhost:6789/oauth2callback"},
		{"localhost without port", "http://localhost", "http://localhost:6789"},
		{"loopback with other port", "http://127.0.0.1:8080/cb", "http://127.0.0.1:6789/cb"},
		{"already correct", "http://localhost:6789/oauth2callback", "http://localhost:6789/oauth2callback"},
		{"remote host left alone", "https://example.com/cb", "https://example.com/cb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeRedirectURL(tt.in, log))
		})
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenFile)
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, saveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
}

func TestTokenFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), TokenFile)
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, err := tokenFromFile(path)
	assert.Error(t, err)
}

func TestCallbackHandler(t *testing.T) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	h := callbackHandler("abc", codeCh, errCh)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2callback?state=wrong&code=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, codeCh)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2callback?state=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, errCh, 1)
	<-errCh

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2callback?state=abc&code=the-code", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "the-code", <-codeCh)
}

func TestCurrentIdentity(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(dir, nil, nil)

	_, ok := p.CurrentIdentity()
	assert.False(t, ok)

	id := model.Identity{ID: "42", Email: "me@example.com"}
	require.NoError(t, writeJSON(filepath.Join(dir, IdentityFile), id))

	// identity without a token is not a session
	_, ok = p.CurrentIdentity()
	assert.False(t, ok)

	require.NoError(t, saveToken(filepath.Join(dir, TokenFile), &oauth2.Token{AccessToken: "a"}))
	got, ok := p.CurrentIdentity()
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestSignOutNotifies(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(dir, nil, nil)
	id := model.Identity{ID: "42"}
	require.NoError(t, writeJSON(filepath.Join(dir, IdentityFile), id))
	require.NoError(t, saveToken(filepath.Join(dir, TokenFile), &oauth2.Token{AccessToken: "a"}))

	var calls []bool
	var seen model.Identity
	unsubscribe := p.OnIdentityChange(func(got model.Identity, signedIn bool) {
		seen = got
		calls = append(calls, signedIn)
	})

	require.NoError(t, p.SignOut())
	assert.Equal(t, []bool{false}, calls)
	assert.Equal(t, id, seen)

	_, ok := p.CurrentIdentity()
	assert.False(t, ok)

	unsubscribe()
	require.NoError(t, p.SignOut())
	assert.Len(t, calls, 1)
}

func TestHTTPClientNotSignedIn(t *testing.T) {
	p := NewProvider(t.TempDir(), nil, nil)
	_, err := p.HTTPClient(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestLoadIdentityRejectsEmptyID(t *testing.T) {
	path := filepath.Join(t.TempDir(), IdentityFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"email":"x@example.com"}`), 0600))
	_, err := loadIdentity(path)
	assert.Error(t, err)
}
