package autosave

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

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
	return &fakeClock{now: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
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

// Advance moves time forward and runs due timers in order.
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

type recorder struct {
	mu          sync.Mutex
	saves       []int
	calls       chan int
	gate        chan struct{}
	err         error
	inFlight    int
	maxInFlight int
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan int, 16)}
}

func (r *recorder) save(_ context.Context, v int) error {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	gate := r.gate
	r.mu.Unlock()

	r.calls <- v
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, v)
	return nil
}

func (r *recorder) saved() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.saves...)
}

func newTestSync(clock *fakeClock, rec *recorder, active func() bool) *Synchronizer[int] {
	return New(Config[int]{
		Baseline: 0,
		Save:     rec.save,
		Equal:    func(a, b int) bool { return a == b },
		Active:   active,
		Delay:    1500 * time.Millisecond,
		Clock:    clock,
	})
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

func waitCall(t *testing.T, rec *recorder) int {
	t.Helper()
	select {
	case v := <-rec.calls:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for save call")
	}
	return 0
}

func TestRapidEditsPersistOnlyFinalSnapshot(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	s := newTestSync(clock, rec, nil)

	for v := 1; v <= 5; v++ {
		s.Notify(v)
		clock.Advance(500 * time.Millisecond)
	}
	if got := s.Status().State; got != Dirty {
		t.Fatalf("expected dirty inside the window, got %s", got)
	}
	if len(rec.saved()) != 0 {
		t.Fatalf("no write expected before the window elapses")
	}

	clock.Advance(time.Second)
	waitFor(t, "clean", func() bool { return s.Status().State == Clean })

	if got := rec.saved(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected only final snapshot persisted, got %v", got)
	}
	if s.Baseline() != 5 {
		t.Fatalf("expected baseline 5, got %d", s.Baseline())
	}
}

func TestChangeBackToBaselineReturnsClean(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	s := newTestSync(clock, rec, nil)

	s.Notify(1)
	s.Notify(0)
	if got := s.Status().State; got != Clean {
		t.Fatalf("expected clean, got %s", got)
	}
	clock.Advance(5 * time.Second)
	if len(rec.saved()) != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestInactiveSynchronizerIgnoresEdits(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	s := newTestSync(clock, rec, func() bool { return false })

	s.Notify(1)
	clock.Advance(5 * time.Second)
	if got := s.Status().State; got != Clean {
		t.Fatalf("expected clean, got %s", got)
	}
	if len(rec.saved()) != 0 {
		t.Fatalf("expected no writes while inactive")
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush of clean inactive synchronizer: %v", err)
	}
}

func TestFailedWriteStaysDirtyWithoutRetry(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	rec.err = errors.New("store down")
	s := newTestSync(clock, rec, nil)

	s.Notify(1)
	clock.Advance(1500 * time.Millisecond)
	waitCall(t, rec)
	waitFor(t, "failed status", func() bool {
		st := s.Status()
		return st.State == Dirty && st.LastError != nil
	})
	if s.Baseline() != 0 {
		t.Fatalf("baseline must not change on failure")
	}

	clock.Advance(time.Minute)
	select {
	case v := <-rec.calls:
		t.Fatalf("unexpected automatic retry with %d", v)
	case <-time.After(20 * time.Millisecond):
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	s.Notify(2)
	clock.Advance(1500 * time.Millisecond)
	waitFor(t, "clean", func() bool { return s.Status().State == Clean })
	if st := s.Status(); st.LastError != nil {
		t.Fatalf("expected error cleared, got %v", st.LastError)
	}
	if got := rec.saved(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("unexpected saves %v", got)
	}
}

func TestEditsDuringSaveAreSavedAfterwards(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	rec.gate = make(chan struct{})
	s := newTestSync(clock, rec, nil)

	s.Notify(1)
	clock.Advance(1500 * time.Millisecond)
	if v := waitCall(t, rec); v != 1 {
		t.Fatalf("expected first write of 1, got %d", v)
	}

	s.Notify(2)
	st := s.Status()
	if st.State != Saving || !st.Pending {
		t.Fatalf("expected saving with pending edits, got %+v", st)
	}

	// The window elapses while the first write is in flight.
	clock.Advance(1500 * time.Millisecond)
	select {
	case v := <-rec.calls:
		t.Fatalf("second write %d started while first in flight", v)
	case <-time.After(20 * time.Millisecond):
	}

	rec.gate <- struct{}{}
	if v := waitCall(t, rec); v != 2 {
		t.Fatalf("expected follow-up write of 2, got %d", v)
	}
	rec.gate <- struct{}{}

	waitFor(t, "clean", func() bool { return s.Status().State == Clean })
	if got := rec.saved(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected saves %v", got)
	}
	rec.mu.Lock()
	maxInFlight := rec.maxInFlight
	rec.mu.Unlock()
	if maxInFlight != 1 {
		t.Fatalf("expected single flight, saw %d concurrent writes", maxInFlight)
	}
}

func TestFlushWritesDirtySnapshotImmediately(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	s := newTestSync(clock, rec, nil)

	s.Notify(7)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := rec.saved(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("unexpected saves %v", got)
	}
	if s.Status().State != Clean {
		t.Fatalf("expected clean after flush")
	}

	// The cancelled debounce timer must not write again.
	clock.Advance(5 * time.Second)
	if len(rec.saved()) != 1 {
		t.Fatalf("expected no extra write")
	}
}

func TestFlushKeepsWritingWhileEditsArrive(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	rec.gate = make(chan struct{})
	s := newTestSync(clock, rec, nil)

	s.Notify(1)
	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(context.Background()) }()

	for v := 1; v <= 3; v++ {
		if got := waitCall(t, rec); got != v {
			t.Fatalf("expected write of %d, got %d", v, got)
		}
		if v < 3 {
			s.Notify(v + 1)
		}
		select {
		case err := <-flushed:
			t.Fatalf("Flush returned %v before %d was written", err, v)
		default:
		}
		rec.gate <- struct{}{}
	}

	select {
	case err := <-flushed:
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Flush did not return")
	}
	if st := s.Status(); st.State != Clean {
		t.Fatalf("expected clean after flush, got %v", st.State)
	}
	if got := rec.saved(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected saves %v", got)
	}
}

func TestFlushStopsWhenContextIsDone(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	rec.gate = make(chan struct{})
	s := newTestSync(clock, rec, nil)

	s.Notify(1)
	ctx, cancel := context.WithCancel(context.Background())
	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(ctx) }()
	waitCall(t, rec)
	cancel()

	select {
	case err := <-flushed:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Flush ignored cancellation")
	}
	rec.gate <- struct{}{}
	waitFor(t, "clean", func() bool { return s.Status().State == Clean })
}

func TestResultAfterCloseIsDropped(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	rec.gate = make(chan struct{})
	s := newTestSync(clock, rec, nil)

	s.Notify(3)
	clock.Advance(1500 * time.Millisecond)
	waitCall(t, rec)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatalf("Close returned while a write was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	rec.gate <- struct{}{}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return after the write finished")
	}

	if s.Baseline() != 0 {
		t.Fatalf("late result must not be applied, baseline=%d", s.Baseline())
	}
	s.Notify(4)
	if s.Status().State != Saving {
		t.Fatalf("closed synchronizer must ignore edits")
	}
}

func TestEventsReportCoalescedAndSaved(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	var mu sync.Mutex
	counts := map[EventKind]int{}
	s := New(Config[int]{
		Save:  rec.save,
		Equal: func(a, b int) bool { return a == b },
		Clock: clock,
		OnEvent: func(ev Event) {
			mu.Lock()
			counts[ev.Kind]++
			mu.Unlock()
		},
	})

	s.Notify(1)
	s.Notify(2)
	s.Notify(3)
	clock.Advance(DefaultDelay)
	waitFor(t, "saved event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts[EventSaved] == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if counts[EventCoalesced] != 2 {
		t.Fatalf("expected 2 coalesced edits, got %d", counts[EventCoalesced])
	}
}
