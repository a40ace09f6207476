package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"vitaeforge/internal/autosave"
	"vitaeforge/internal/cvs"
	"vitaeforge/internal/shared/metrics"
	"vitaeforge/internal/shared/telemetry"
)

const defaultIdleTTL = 30 * time.Minute

// Store is the subset of the CV service used by editor sessions.
type Store interface {
	Get(ctx context.Context, ownerID, id string) (cvs.CV, error)
	Update(ctx context.Context, ownerID, id string, upd cvs.Update) (cvs.CV, error)
}

// Refiner rewrites one free-text value.
type Refiner interface {
	Refine(ctx context.Context, text string) (string, error)
}

// Config configures a Manager.
type Config struct {
	Delay   time.Duration
	IdleTTL time.Duration
	Clock   autosave.Clock
	Metrics *metrics.Metrics
}

type sessionKey struct {
	ownerID string
	cvID    string
}

// Manager keeps one editor session per (owner, cv).
type Manager struct {
	store Store
	cfg   Config

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// NewManager constructs a Manager.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.Delay <= 0 {
		cfg.Delay = autosave.DefaultDelay
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = autosave.RealClock()
	}
	return &Manager{store: store, cfg: cfg, sessions: make(map[sessionKey]*Session)}
}

// Open returns the session of a CV, loading it from storage when none is open.
// expires is the expiry of the caller's credentials; zero means no expiry.
func (m *Manager) Open(ctx context.Context, ownerID, cvID string, expires time.Time) (*Session, error) {
	key := sessionKey{ownerID: ownerID, cvID: strings.TrimSpace(cvID)}

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		s.touch(expires)
		return s, nil
	}
	m.mu.Unlock()

	cv, err := m.store.Get(ctx, ownerID, key.cvID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.touch(expires)
		return s, nil
	}
	s := m.newSession(cv, expires)
	m.sessions[key] = s
	m.cfg.Metrics.SetEditorSessions(len(m.sessions))
	telemetry.Info("editor.opened", map[string]any{"cv_id": cv.ID, "user_id": ownerID})
	return s, nil
}

func (m *Manager) newSession(cv cvs.CV, expires time.Time) *Session {
	s := &Session{
		OwnerID:  cv.OwnerID,
		CVID:     cv.ID,
		form:     NewForm(cv.Title, cv.Content),
		clock:    m.cfg.Clock,
		expires:  expires,
		lastUsed: m.cfg.Clock.Now(),
	}
	baseline := s.form.Snapshot()
	s.syncer = autosave.New(autosave.Config[Snapshot]{
		Baseline: baseline,
		Equal:    Snapshot.Equal,
		Active:   s.active,
		Delay:    m.cfg.Delay,
		Clock:    m.cfg.Clock,
		Save: func(ctx context.Context, snap Snapshot) error {
			title := snap.Title
			content := snap.Content
			_, err := m.store.Update(ctx, s.OwnerID, s.CVID, cvs.Update{Title: &title, Content: &content})
			return err
		},
		OnEvent: func(ev autosave.Event) { m.observe(s, ev) },
	})
	return s
}

func (m *Manager) observe(s *Session, ev autosave.Event) {
	switch ev.Kind {
	case autosave.EventCoalesced:
		m.cfg.Metrics.IncAutosaveCoalesced()
	case autosave.EventSaved:
		m.cfg.Metrics.ObserveAutosave(metrics.ResultOK, ev.Duration)
		telemetry.Debug("autosave.saved", map[string]any{"cv_id": s.CVID, "user_id": s.OwnerID})
	case autosave.EventFailed:
		m.cfg.Metrics.ObserveAutosave(metrics.ResultError, ev.Duration)
		telemetry.Warn("autosave.failed", map[string]any{"cv_id": s.CVID, "user_id": s.OwnerID, "error": ev.Err})
	}
}

// Lookup returns an open session without loading one.
func (m *Manager) Lookup(ownerID, cvID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{ownerID: ownerID, cvID: cvID}]
	return s, ok
}

// Close flushes a dirty session and closes it. Closing a session that is not
// open is a no-op.
func (m *Manager) Close(ctx context.Context, ownerID, cvID string) error {
	s := m.remove(sessionKey{ownerID: ownerID, cvID: cvID})
	if s == nil {
		return nil
	}
	err := s.syncer.Flush(ctx)
	s.close()
	if err != nil && !errors.Is(err, autosave.ErrInactive) {
		return err
	}
	return nil
}

// Discard closes a session without saving pending edits. It returns after an
// in-flight write of the session has finished. Used before the CV is
// rewritten or deleted through the store directly.
func (m *Manager) Discard(ownerID, cvID string) {
	if s := m.remove(sessionKey{ownerID: ownerID, cvID: cvID}); s != nil {
		s.close()
	}
}

func (m *Manager) remove(key sessionKey) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	delete(m.sessions, key)
	m.cfg.Metrics.SetEditorSessions(len(m.sessions))
	telemetry.Info("editor.closed", map[string]any{"cv_id": key.cvID, "user_id": key.ownerID})
	return s
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Content returns what the preview should show: the live view of an open
// session, or the stored CV otherwise.
func (m *Manager) Content(ctx context.Context, ownerID, cvID string) (cvs.Content, error) {
	if s, ok := m.Lookup(ownerID, cvID); ok {
		return s.View().Content, nil
	}
	cv, err := m.store.Get(ctx, ownerID, cvID)
	if err != nil {
		return cvs.Content{}, err
	}
	return cv.Content, nil
}

// Sweep closes sessions idle for longer than the idle TTL and returns how many it closed.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.cfg.Clock.Now()
	var idle []sessionKey
	m.mu.Lock()
	for key, s := range m.sessions {
		if now.Sub(s.lastUse()) >= m.cfg.IdleTTL {
			idle = append(idle, key)
		}
	}
	m.mu.Unlock()

	for _, key := range idle {
		if err := m.Close(ctx, key.ownerID, key.cvID); err != nil {
			telemetry.Warn("editor.sweep_flush_failed", map[string]any{"cv_id": key.cvID, "error": err})
		}
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// CloseOwner flushes and closes every session of ownerID.
func (m *Manager) CloseOwner(ctx context.Context, ownerID string) {
	m.closeWhere(ctx, func(key sessionKey) bool { return key.ownerID == ownerID })
}

// Shutdown flushes and closes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.closeWhere(ctx, func(sessionKey) bool { return true })
}

func (m *Manager) closeWhere(ctx context.Context, match func(sessionKey) bool) {
	m.mu.Lock()
	var keys []sessionKey
	for key := range m.sessions {
		if match(key) {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()

	for _, key := range keys {
		if err := m.Close(ctx, key.ownerID, key.cvID); err != nil {
			telemetry.Error("editor.close_flush_failed", map[string]any{"cv_id": key.cvID, "error": err})
		}
	}
}
