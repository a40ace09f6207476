// Package session tracks who is signed in for the lifetime of a client process.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed Provider.
var ErrClosed = errors.New("session provider closed")

// User is the signed-in identity.
type User struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// State is what consumers observe.
type State struct {
	User    *User
	Loading bool
	Err     error
}

// Listener receives the user after every auth state change, nil when signed out.
type Listener func(user *User)

// Backend is the authentication service the provider delegates to.
type Backend interface {
	CurrentUser(ctx context.Context) (*User, error)
	// OnAuthStateChange registers fn and returns a function that unregisters it.
	OnAuthStateChange(fn Listener) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// Provider owns the process-wide auth state. Consumers read it through State
// and Watch; only backend notifications change it.
type Provider struct {
	backend Backend

	mu       sync.Mutex
	state    State
	started  bool
	closed   bool
	notified bool
	unsub    func()
	watchers map[int]chan State
	nextID   int
}

// NewProvider returns a provider in the loading state. A nil backend means
// auth is unavailable and the provider starts resolved with no user.
func NewProvider(backend Backend) *Provider {
	return &Provider{
		backend:  backend,
		state:    State{Loading: backend != nil},
		watchers: make(map[int]chan State),
	}
}

// Start subscribes to auth changes and resolves the existing session in the
// background. Calling Start more than once has no effect.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed || p.backend == nil {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	unsub := p.backend.OnAuthStateChange(p.onChange)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		unsub()
		return
	}
	p.unsub = unsub
	p.mu.Unlock()

	go p.resolve(ctx)
}

func (p *Provider) resolve(ctx context.Context) {
	user, err := p.backend.CurrentUser(ctx)

	p.mu.Lock()
	// A notification that already arrived is newer than this lookup.
	if p.closed || p.notified {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.state = State{Err: err}
	} else {
		p.state = State{User: cloneUser(user)}
	}
	p.broadcastLocked()
	p.mu.Unlock()
}

func (p *Provider) onChange(user *User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.notified = true
	p.state = State{User: cloneUser(user)}
	p.broadcastLocked()
}

func (p *Provider) broadcastLocked() {
	st := p.snapshotLocked()
	for _, ch := range p.watchers {
		// Keep only the newest state for slow watchers.
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (p *Provider) snapshotLocked() State {
	st := p.state
	st.User = cloneUser(st.User)
	return st
}

// State returns the current state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Watch returns a channel that receives the current state and every later
// change, plus a function that stops the subscription.
func (p *Provider) Watch() (<-chan State, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan State, 1)
	ch <- p.snapshotLocked()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextID
	p.nextID++
	p.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.watchers[id]; ok {
				delete(p.watchers, id)
				close(c)
			}
		})
	}
}

// Resolved blocks until the state is no longer loading.
func (p *Provider) Resolved(ctx context.Context) (State, error) {
	ch, stop := p.Watch()
	defer stop()
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return p.State(), ErrClosed
			}
			if !st.Loading {
				return st, nil
			}
		case <-ctx.Done():
			return State{}, ctx.Err()
		}
	}
}

// Close unsubscribes from the backend. Results arriving afterwards are ignored.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsub := p.unsub
	p.unsub = nil
	for id, ch := range p.watchers {
		delete(p.watchers, id)
		close(ch)
	}
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (p *Provider) usable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.backend == nil {
		return errors.New("auth backend not configured")
	}
	return nil
}

// SignInWithPassword delegates to the backend.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) error {
	if err := p.usable(); err != nil {
		return err
	}
	return p.backend.SignInWithPassword(ctx, email, password)
}

// SignUp delegates to the backend.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	if err := p.usable(); err != nil {
		return err
	}
	return p.backend.SignUp(ctx, email, password)
}

// SignOut delegates to the backend.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.usable(); err != nil {
		return err
	}
	return p.backend.SignOut(ctx)
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
