package editor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"vitaeforge/internal/autosave"
	"vitaeforge/internal/cvs"
)

const testOwner = "user-1"

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) autosave.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return &fakeTimerHandle{clock: c, t: t}
}

type fakeTimerHandle struct {
	clock *fakeClock
	t     *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	active := !h.t.stopped && !h.t.fired
	h.t.stopped = true
	return active
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// countingStore wraps the CV service, counting writes and optionally failing them.
type countingStore struct {
	svc *cvs.Service

	mu      sync.Mutex
	updates int
	failErr error
	// When gate is set, each write signals entered and blocks until gate is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (s *countingStore) Get(ctx context.Context, ownerID, id string) (cvs.CV, error) {
	return s.svc.Get(ctx, ownerID, id)
}

func (s *countingStore) Update(ctx context.Context, ownerID, id string, upd cvs.Update) (cvs.CV, error) {
	s.mu.Lock()
	s.updates++
	err := s.failErr
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if err != nil {
		return cvs.CV{}, err
	}
	return s.svc.Update(ctx, ownerID, id, upd)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type fixture struct {
	clock   *fakeClock
	store   *countingStore
	manager *Manager
	cv      cvs.CV
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	svc := cvs.NewService(cvs.NewMemoryRepo())
	svc.Now = clock.Now
	cv, err := svc.Create(context.Background(), testOwner, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store := &countingStore{svc: svc}
	m := NewManager(store, Config{Delay: 1500 * time.Millisecond, IdleTTL: 10 * time.Minute, Clock: clock})
	return &fixture{clock: clock, store: store, manager: m, cv: cv}
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	s, err := f.manager.Open(context.Background(), testOwner, f.cv.ID, time.Time{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func (f *fixture) stored(t *testing.T) cvs.CV {
	t.Helper()
	cv, err := f.store.svc.Get(context.Background(), testOwner, f.cv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return cv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionAutosavesFinalEditAfterDebounce(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	for _, v := range []string{"one", "two", "three"} {
		if _, err := s.SetFields(map[string]string{"summary": v}); err != nil {
			t.Fatalf("SetFields: %v", err)
		}
		f.clock.Advance(500 * time.Millisecond)
	}
	if f.store.count() != 0 {
		t.Fatalf("saved before debounce elapsed")
	}
	f.clock.Advance(1500 * time.Millisecond)

	waitFor(t, "clean", func() bool { return s.Status().State == autosave.Clean && f.store.count() == 1 })
	if got := f.stored(t).Content.Summary; got != "three" {
		t.Fatalf("stored summary = %q", got)
	}
}

func TestRejectedSetFieldsSavesNothing(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.SetFields(map[string]string{"summary": "NEW", "personal.bogus": "x", "personal.phone": "999"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if st := s.Status().State; st != autosave.Clean {
		t.Fatalf("rejected edit left state %s", st)
	}
	f.clock.Advance(1500 * time.Millisecond)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if f.store.count() != 0 {
		t.Fatalf("rejected edit was saved %d time(s)", f.store.count())
	}
	if got := s.View().Content.Summary; got != f.cv.Content.Summary {
		t.Fatalf("view shows rejected summary %q", got)
	}
}

func TestInvalidFieldIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	errs, err := s.SetFields(map[string]string{"personal.email": "broken", "summary": "Fresh summary"})
	if err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	if len(errs) != 1 || errs[0].Field != "personal.email" {
		t.Fatalf("unexpected field errors %+v", errs)
	}
	f.clock.Advance(1500 * time.Millisecond)
	waitFor(t, "save", func() bool { return f.store.count() == 1 && s.Status().State == autosave.Clean })

	stored := f.stored(t)
	if stored.Content.Personal.Email != f.cv.Content.Personal.Email {
		t.Fatalf("invalid email persisted: %q", stored.Content.Personal.Email)
	}
	if stored.Content.Summary != "Fresh summary" {
		t.Fatalf("summary not persisted: %q", stored.Content.Summary)
	}
	if got := s.View().Content.Personal.Email; got != "broken" {
		t.Fatalf("view email = %q", got)
	}
}

func TestFailedSaveKeepsStoredDocumentAndStaysDirty(t *testing.T) {
	f := newFixture(t)
	f.store.failErr = errors.New("network down")
	s := f.open(t)

	if _, err := s.SetFields(map[string]string{"summary": "lost?"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	f.clock.Advance(1500 * time.Millisecond)
	waitFor(t, "failure", func() bool { return s.Status().LastError != nil })

	st := s.Status()
	if st.State != autosave.Dirty {
		t.Fatalf("state = %v, want dirty", st.State)
	}
	if got := f.stored(t).Content.Summary; got != f.cv.Content.Summary {
		t.Fatalf("stored summary changed to %q", got)
	}
	if got := s.View().Content.Summary; got != "lost?" {
		t.Fatalf("in-memory edit lost: %q", got)
	}
}

func TestCloseFlushesDirtySession(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	if _, err := s.SetFields(map[string]string{"title": "Renamed"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}

	if err := f.manager.Close(context.Background(), testOwner, f.cv.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.manager.Len() != 0 {
		t.Fatalf("session still open")
	}
	if got := f.stored(t).Title; got != "Renamed" {
		t.Fatalf("title = %q", got)
	}
	if _, err := s.SetFields(map[string]string{"summary": "x"}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestDiscardDropsPendingEdits(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	if _, err := s.SetFields(map[string]string{"summary": "draft"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	f.manager.Discard(testOwner, f.cv.ID)
	f.clock.Advance(5 * time.Second)

	if f.store.count() != 0 {
		t.Fatalf("discarded session wrote %d times", f.store.count())
	}
}

func TestDiscardWaitsForInFlightSave(t *testing.T) {
	f := newFixture(t)
	f.store.gate = make(chan struct{})
	f.store.entered = make(chan struct{}, 1)
	s := f.open(t)
	if _, err := s.SetFields(map[string]string{"summary": "SESSION"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	f.clock.Advance(1500 * time.Millisecond)
	select {
	case <-f.store.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("autosave did not start")
	}

	discarded := make(chan struct{})
	go func() {
		f.manager.Discard(testOwner, f.cv.ID)
		close(discarded)
	}()
	select {
	case <-discarded:
		t.Fatalf("Discard returned while a save was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(f.store.gate)
	select {
	case <-discarded:
	case <-time.After(2 * time.Second):
		t.Fatalf("Discard did not return")
	}

	// A direct write after Discard is the last word.
	content := f.stored(t).Content
	content.Summary = "PATCHED"
	if _, err := f.store.svc.Update(context.Background(), testOwner, f.cv.ID, cvs.Update{Content: &content}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	f.clock.Advance(5 * time.Second)
	if got := f.stored(t).Content.Summary; got != "PATCHED" {
		t.Fatalf("stored summary = %q, want PATCHED", got)
	}
	if f.store.count() != 1 {
		t.Fatalf("expected only the in-flight write, got %d", f.store.count())
	}
}

func TestExpiredCredentialsBlockWrites(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Open(context.Background(), testOwner, f.cv.ID, f.clock.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.clock.Advance(2 * time.Second)

	if _, err := s.SetFields(map[string]string{"summary": "after expiry"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	f.clock.Advance(2 * time.Second)
	if f.store.count() != 0 {
		t.Fatalf("write attempted with expired credentials")
	}
	if s.Status().State != autosave.Clean {
		t.Fatalf("inactive session should ignore edits")
	}
}

func TestSweepClosesIdleSessions(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.clock.Advance(5 * time.Minute)
	if n := f.manager.Sweep(context.Background()); n != 0 {
		t.Fatalf("swept %d active sessions", n)
	}
	f.clock.Advance(10 * time.Minute)
	if n := f.manager.Sweep(context.Background()); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := f.manager.Lookup(testOwner, f.cv.ID); ok {
		t.Fatalf("idle session still open")
	}
}

func TestOpenReusesSessionAndScopesOwner(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	b := f.open(t)
	if a != b {
		t.Fatalf("expected the same session")
	}
	if _, err := f.manager.Open(context.Background(), "someone-else", f.cv.ID, time.Time{}); !errors.Is(err, cvs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
}

func TestContentPrefersLiveView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.manager.Content(ctx, testOwner, f.cv.ID)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if got.Summary != f.cv.Content.Summary {
		t.Fatalf("expected stored content without a session")
	}

	s := f.open(t)
	_, _ = s.SetFields(map[string]string{"summary": "live"})
	got, err = f.manager.Content(ctx, testOwner, f.cv.ID)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if got.Summary != "live" {
		t.Fatalf("summary = %q, want live", got.Summary)
	}
}

type stubRefiner struct {
	out   string
	err   error
	calls int
}

func (r *stubRefiner) Refine(ctx context.Context, text string) (string, error) {
	r.calls++
	return r.out, r.err
}

func TestSessionRefine(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	got, err := s.Refine(context.Background(), &stubRefiner{out: "Polished."}, "summary")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got != "Polished." || s.View().Content.Summary != "Polished." {
		t.Fatalf("refined summary not applied: %q", s.View().Content.Summary)
	}

	before := s.View().Content.Summary
	if _, err := s.Refine(context.Background(), &stubRefiner{err: errors.New("provider down")}, "summary"); err == nil {
		t.Fatalf("expected provider error")
	}
	if s.View().Content.Summary != before {
		t.Fatalf("field overwritten on error")
	}

	if _, err := s.Refine(context.Background(), &stubRefiner{}, "personal.email"); !errors.Is(err, ErrNotText) {
		t.Fatalf("expected ErrNotText, got %v", err)
	}
}
