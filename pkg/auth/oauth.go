package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ClientSecretsFile is the Google API credentials.json downloaded for a desktop client.
	// It contains the client_id, client_secret and redirect_uris.
	ClientSecretsFile = "credentials.json"

	// TokenFile holds the user's OAuth token (access_token + refresh_token).
	TokenFile = "token.json"

	// LocalhostAuthPort is the port the local web server listens on to capture the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// GetConfig creates an oauth2.Config from the client secrets file in dir.
func GetConfig(dir string, scopes []string, log *logging.Logger) (*oauth2.Config, error) {
	clientSecretsFile := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = normalizeRedirectURL(config.RedirectURL, log)
	return config, nil
}

// normalizeRedirectURL pins localhost and out-of-band redirects to LocalhostAuthPort,
// the port the callback listener binds.
func normalizeRedirectURL(redirect string, log *logging.Logger) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" || redirect == "" {
		fixed := fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		log.Debug("overriding redirect URL", "from", redirect, "to", fixed)
		return fixed
	}

	parsedURL, err := url.Parse(redirect)
	if err != nil {
		log.Warn("could not parse redirect URL, using it as is", "redirect_url", redirect, "error", err)
		return redirect
	}

	if parsedURL.Hostname() != "localhost" && parsedURL.Hostname() != "127.0.0.1" {
		log.Warn("redirect URL is not a localhost callback, ensure this is correct for your setup", "redirect_url", redirect)
		return redirect
	}

	if parsedURL.Port() != LocalhostAuthPort {
		if parsedURL.Port() != "" {
			log.Warn("mismatch in localhost redirect port, forcing listener port", "configured", parsedURL.Port(), "port", LocalhostAuthPort)
		}
		parsedURL.Host = net.JoinHostPort(parsedURL.Hostname(), LocalhostAuthPort)
	}
	return parsedURL.String()
}

// getTokenFromWeb runs the authorization code flow through a local web server.
// The user opens the printed URL and the redirect delivers the code.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, out io.Writer, log *logging.Logger) (*oauth2.Token, error) {
	state, err := newState()
	if err != nil {
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler:      callbackHandler(state, codeCh, errCh),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		log.Debug("local server listening for OAuth2 redirect", "redirect_url", config.RedirectURL)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, fmt.Errorf("HTTP server error: %w", err))
		}
	}()

	// AccessTypeOffline is required for a refresh token to be returned.
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(out, "Please open the following URL in your browser to sign in to touchgrass:\n%s\n", authURL)
	log.Info("waiting for authorization code")

	select {
	case authCode := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exCtx, authCode)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("authorization timed out, please try again")
	}
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authorization denied", http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("authorization denied: %s", e))
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Authorization code not found", http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("authorization code not found in redirect URL"))
			return
		}
		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

func sendErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// tokenFromFile reads an oauth2.Token from a JSON file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := sonic.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

// saveToken writes an oauth2.Token to a JSON file readable by the owner only.
func saveToken(path string, token *oauth2.Token) error {
	return writeJSON(path, token)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", path, err)
	}
	b, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}

// savingTokenSource persists refreshed tokens so the next process starts with them.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	last string
	log  *logging.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.path, tok); err != nil {
			s.log.Warn("could not save refreshed token", "error", err)
		} else {
			s.log.Debug("token was refreshed, saved new token")
		}
	}
	return tok, nil
}
