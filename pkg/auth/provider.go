package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// IdentityFile caches the signed-in identity next to the token.
const IdentityFile = "identity.json"

// ErrNotSignedIn is returned when an authenticated client is requested without a stored token.
var ErrNotSignedIn = errors.New("not signed in")

// Scopes requested on sign-in: the Drive application-data folder plus the
// userinfo claims used to name the identity.
var Scopes = []string{
	drive.DriveAppdataScope,
	oauth2v2.UserinfoEmailScope,
	oauth2v2.UserinfoProfileScope,
}

// IdentityFunc is called after sign-in with signedIn=true and after sign-out with signedIn=false.
type IdentityFunc = func(id model.Identity, signedIn bool)

// Provider is the Google identity provider. Token and identity live in dir.
type Provider struct {
	dir string
	out io.Writer
	log *logging.Logger

	mu        sync.Mutex
	listeners map[int]IdentityFunc
	nextID    int
}

func NewProvider(dir string, out io.Writer, log *logging.Logger) *Provider {
	if log == nil {
		log = logging.Discard()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Provider{
		dir:       dir,
		out:       out,
		log:       log.WithComponent(logging.ComponentAuth),
		listeners: make(map[int]IdentityFunc),
	}
}

func (p *Provider) tokenPath() string    { return filepath.Join(p.dir, TokenFile) }
func (p *Provider) identityPath() string { return filepath.Join(p.dir, IdentityFile) }

// CurrentIdentity returns the cached identity; ok is false when signed out.
func (p *Provider) CurrentIdentity() (model.Identity, bool) {
	if _, err := os.Stat(p.tokenPath()); err != nil {
		return model.Identity{}, false
	}
	id, err := loadIdentity(p.identityPath())
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.Warn("ignoring unreadable identity cache", "error", err)
		}
		return model.Identity{}, false
	}
	return id, true
}

// OnIdentityChange registers fn and returns a function that removes it.
func (p *Provider) OnIdentityChange(fn IdentityFunc) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) notify(id model.Identity, signedIn bool) {
	p.mu.Lock()
	fns := make([]IdentityFunc, 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(id, signedIn)
	}
}

// SignIn runs the browser authorization flow, resolves the identity and notifies listeners.
// On failure the previous sign-in state is left untouched.
func (p *Provider) SignIn(ctx context.Context) (model.Identity, error) {
	config, err := GetConfig(p.dir, Scopes, p.log)
	if err != nil {
		return model.Identity{}, err
	}

	tok, err := getTokenFromWeb(ctx, config, p.out, p.log)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to get token from web: %w", err)
	}

	id, err := fetchIdentity(ctx, config.Client(ctx, tok))
	if err != nil {
		return model.Identity{}, err
	}

	if err := saveToken(p.tokenPath(), tok); err != nil {
		return model.Identity{}, err
	}
	if err := writeJSON(p.identityPath(), id); err != nil {
		return model.Identity{}, err
	}
	p.log.Info("signed in", "identity", id.ID, "email", id.Email)

	p.notify(id, true)
	return id, nil
}

// SignOut forgets the token and identity and notifies listeners.
func (p *Provider) SignOut() error {
	id, ok := p.CurrentIdentity()
	for _, path := range []string{p.tokenPath(), p.identityPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	if ok {
		p.log.Info("signed out", "identity", id.ID)
	}
	p.notify(id, false)
	return nil
}

// HTTPClient returns an authenticated client that refreshes and re-saves the stored token.
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := tokenFromFile(p.tokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotSignedIn
		}
		return nil, err
	}

	config, err := GetConfig(p.dir, Scopes, p.log)
	if err != nil {
		return nil, err
	}

	src := &savingTokenSource{
		src:  config.TokenSource(ctx, tok),
		path: p.tokenPath(),
		last: tok.AccessToken,
		log:  p.log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

func fetchIdentity(ctx context.Context, client *http.Client) (model.Identity, error) {
	srv, err := oauth2v2.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return model.Identity{}, fmt.Errorf("unable to create userinfo client: %w", err)
	}
	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return model.Identity{}, fmt.Errorf("unable to fetch user info: %w", err)
	}
	if info.Id == "" {
		return model.Identity{}, fmt.Errorf("user info has no id")
	}
	return model.Identity{ID: info.Id, Email: info.Email, Name: info.Name}, nil
}

func loadIdentity(path string) (model.Identity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Identity{}, err
	}
	var id model.Identity
	if err := sonic.Unmarshal(b, &id); err != nil {
		return model.Identity{}, fmt.Errorf("failed to decode identity: %w", err)
	}
	if id.ID == "" {
		return model.Identity{}, fmt.Errorf("identity has no id")
	}
	return id, nil
}
