package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"vitaeforge/internal/session"
)

// ErrConfirmationRequired is returned by SignUp when the account must be
// confirmed before it can sign in.
var ErrConfirmationRequired = errors.New("email confirmation required")

// AuthBackend keeps the token of one server in the config file and reports
// sign-in changes to session listeners.
type AuthBackend struct {
	Addr  string
	Store ConfigStore
	API   *Client

	now func() time.Time

	// fileMu serializes reads and writes of the config file.
	fileMu sync.Mutex

	mu        sync.Mutex
	nextID    int
	listeners map[int]session.Listener
}

var _ session.Backend = (*AuthBackend)(nil)

// NewAuthBackend returns a backend for the server at addr. The returned
// backend's API client reads the stored token on every request.
func NewAuthBackend(addr string, store ConfigStore) *AuthBackend {
	b := &AuthBackend{
		Addr:      addr,
		Store:     store,
		now:       time.Now,
		listeners: make(map[int]session.Listener),
	}
	b.API = New(addr, b.Token)
	return b
}

// Token returns the stored, unexpired access token or "".
func (b *AuthBackend) Token() string {
	creds, ok := b.credentials()
	if !ok {
		return ""
	}
	return creds.AccessToken
}

func (b *AuthBackend) credentials() (Credentials, bool) {
	b.fileMu.Lock()
	defer b.fileMu.Unlock()
	cfg, err := b.Store.Load()
	if err != nil {
		return Credentials{}, false
	}
	creds, ok := cfg.Auths[b.Addr]
	if !ok || creds.AccessToken == "" || creds.Expired(b.now()) {
		return Credentials{}, false
	}
	return creds, true
}

// CurrentUser resolves the signed-in user. A stored token the server rejects
// is forgotten and nil is returned.
func (b *AuthBackend) CurrentUser(ctx context.Context) (*session.User, error) {
	creds, ok := b.credentials()
	if !ok {
		return nil, nil
	}
	api := New(b.Addr, func() string { return creds.AccessToken })
	api.HTTPClient = b.API.HTTPClient
	me, err := api.Me(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			forgotten, ferr := b.forget(creds.AccessToken)
			if ferr != nil {
				return nil, ferr
			}
			if forgotten {
				b.notify(nil)
			}
			return nil, nil
		}
		return nil, err
	}
	return &session.User{
		UID:         me.ID,
		Email:       me.Email,
		DisplayName: me.DisplayName,
		PhotoURL:    me.PhotoURL,
	}, nil
}

// OnAuthStateChange implements session.Backend.
func (b *AuthBackend) OnAuthStateChange(fn session.Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// SignInWithPassword implements session.Backend.
func (b *AuthBackend) SignInWithPassword(ctx context.Context, email, password string) error {
	tok, err := b.API.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return b.remember(tok)
}

// SignUp implements session.Backend. It signs in when the server returns a
// token and reports ErrConfirmationRequired otherwise.
func (b *AuthBackend) SignUp(ctx context.Context, email, password string) error {
	tok, err := b.API.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return ErrConfirmationRequired
	}
	return b.remember(tok)
}

// SignOut revokes the token on the server and forgets it locally. The local
// token is dropped even when the server call fails.
func (b *AuthBackend) SignOut(ctx context.Context) error {
	var remoteErr error
	if b.Token() != "" {
		remoteErr = b.API.SignOut(ctx)
	}
	if _, err := b.forget(""); err != nil {
		return err
	}
	b.notify(nil)
	return remoteErr
}

func (b *AuthBackend) remember(tok AuthToken) error {
	if err := b.store(tok); err != nil {
		return err
	}
	b.notify(&session.User{
		UID:         tok.User.ID,
		Email:       tok.User.Email,
		DisplayName: tok.User.DisplayName,
		PhotoURL:    tok.User.PhotoURL,
	})
	return nil
}

func (b *AuthBackend) store(tok AuthToken) error {
	b.fileMu.Lock()
	defer b.fileMu.Unlock()
	cfg, err := b.Store.Load()
	if err != nil {
		return err
	}
	cfg.Auths[b.Addr] = Credentials{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		User:        tok.User,
	}
	return b.Store.Save(cfg)
}

// forget drops the stored credentials. A non-empty token limits it to that
// token, so a newer sign-in is kept.
func (b *AuthBackend) forget(token string) (bool, error) {
	b.fileMu.Lock()
	defer b.fileMu.Unlock()
	cfg, err := b.Store.Load()
	if err != nil {
		return false, err
	}
	creds, ok := cfg.Auths[b.Addr]
	if !ok || (token != "" && creds.AccessToken != token) {
		return false, nil
	}
	delete(cfg.Auths, b.Addr)
	return true, b.Store.Save(cfg)
}

func (b *AuthBackend) notify(u *session.User) {
	b.mu.Lock()
	fns := make([]session.Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}
