// Package autosave debounces edits of one document and persists the latest
// snapshot with at most one write in flight.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDelay is the debounce window after the last edit.
const DefaultDelay = 1500 * time.Millisecond

const defaultSaveTimeout = 15 * time.Second

// ErrInactive is returned by Flush when the synchronizer may not write.
var ErrInactive = errors.New("autosave inactive")

// State of the synchronized document.
type State int

const (
	Clean State = iota
	Dirty
	Saving
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	}
	return "unknown"
}

// EventKind names what an Event reports.
type EventKind string

const (
	EventSaved     EventKind = "saved"
	EventFailed    EventKind = "failed"
	EventCoalesced EventKind = "coalesced"
)

// Event is emitted after writes and coalesced edits.
type Event struct {
	Kind     EventKind
	Err      error
	Duration time.Duration
}

// Status is a point-in-time view of the synchronizer.
type Status struct {
	State       State
	LastError   error
	LastSavedAt time.Time
	// Pending is set while saving when newer edits wait for the next write.
	Pending bool
}

// Config configures a Synchronizer.
type Config[T any] struct {
	// Baseline is the last persisted snapshot.
	Baseline T
	Save     func(ctx context.Context, snapshot T) error
	Equal    func(a, b T) bool
	// Active reports whether writes are allowed: user authenticated and document id known.
	Active      func() bool
	Delay       time.Duration
	SaveTimeout time.Duration
	Clock       Clock
	OnEvent     func(Event)
}

// Synchronizer implements the Clean, Dirty and Saving state machine for one document.
type Synchronizer[T any] struct {
	cfg Config[T]

	mu          sync.Mutex
	state       State
	baseline    T
	latest      T
	inFlight    T
	timer       Timer
	gen         uint64
	flushQueued bool
	done        chan struct{}
	lastErr     error
	lastSavedAt time.Time
	closed      bool
}

// New creates a Synchronizer in the Clean state.
func New[T any](cfg Config[T]) *Synchronizer[T] {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Active == nil {
		cfg.Active = func() bool { return true }
	}
	return &Synchronizer[T]{
		cfg:      cfg,
		baseline: cfg.Baseline,
		latest:   cfg.Baseline,
	}
}

// Notify records a new form snapshot. It is a no-op while inactive or closed.
func (s *Synchronizer[T]) Notify(snapshot T) {
	var events []Event

	s.mu.Lock()
	if s.closed || !s.cfg.Active() {
		s.mu.Unlock()
		return
	}
	s.latest = snapshot

	switch s.state {
	case Clean:
		if !s.cfg.Equal(snapshot, s.baseline) {
			s.state = Dirty
			s.armLocked()
		}
	case Dirty:
		if s.cfg.Equal(snapshot, s.baseline) {
			s.stopTimerLocked()
			s.state = Clean
			break
		}
		events = append(events, Event{Kind: EventCoalesced})
		s.armLocked()
	case Saving:
		s.armLocked()
	}
	s.mu.Unlock()

	s.emit(events)
}

// Status returns the current status.
func (s *Synchronizer[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		LastError:   s.lastErr,
		LastSavedAt: s.lastSavedAt,
		Pending:     s.state == Saving && !s.cfg.Equal(s.latest, s.inFlight),
	}
}

// Baseline returns the last persisted snapshot.
func (s *Synchronizer[T]) Baseline() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Flush writes until the document is clean, a write fails or ctx is done.
// Edits arriving during a write are written by the next round.
func (s *Synchronizer[T]) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		switch s.state {
		case Clean:
			s.mu.Unlock()
			return nil
		case Dirty:
			if !s.cfg.Active() {
				s.mu.Unlock()
				return ErrInactive
			}
			s.stopTimerLocked()
			s.startSaveLocked()
		}
		done := s.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		state, err := s.state, s.lastErr
		s.mu.Unlock()
		if err != nil {
			return err
		}
		if state == Clean {
			return nil
		}
	}
}

// Close stops the timer and waits for an in-flight write to return, so no
// write of this synchronizer lands after Close. Its result is not applied.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	var done chan struct{}
	if s.state == Saving {
		done = s.done
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Synchronizer[T]) armLocked() {
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	s.timer = s.cfg.Clock.AfterFunc(s.cfg.Delay, func() { s.fire(gen) })
}

func (s *Synchronizer[T]) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Synchronizer[T]) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.timer = nil

	switch s.state {
	case Saving:
		s.flushQueued = true
	case Dirty:
		if s.cfg.Active() {
			s.startSaveLocked()
		}
	}
}

func (s *Synchronizer[T]) startSaveLocked() {
	s.state = Saving
	s.inFlight = s.latest
	s.flushQueued = false
	s.done = make(chan struct{})
	go s.run(s.inFlight, s.done)
}

func (s *Synchronizer[T]) run(snapshot T, done chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	start := s.cfg.Clock.Now()
	err := s.cfg.Save(ctx, snapshot)
	cancel()
	elapsed := s.cfg.Clock.Now().Sub(start)

	s.mu.Lock()
	if s.closed {
		close(done)
		s.mu.Unlock()
		return
	}

	ev := Event{Kind: EventSaved, Duration: elapsed}
	if err != nil {
		ev = Event{Kind: EventFailed, Err: err, Duration: elapsed}
		s.lastErr = err
	} else {
		s.baseline = snapshot
		s.lastErr = nil
		s.lastSavedAt = s.cfg.Clock.Now()
	}

	switch {
	case s.cfg.Equal(s.latest, s.baseline):
		s.stopTimerLocked()
		s.state = Clean
	case s.cfg.Equal(s.latest, snapshot):
		// Failed write with no newer edit: stay dirty until the next edit.
		s.state = Dirty
	default:
		s.state = Dirty
		if s.flushQueued && s.cfg.Active() {
			s.startSaveLocked()
		} else if s.timer == nil {
			s.armLocked()
		}
	}
	s.flushQueued = false
	close(done)
	s.mu.Unlock()

	s.emit([]Event{ev})
}

func (s *Synchronizer[T]) emit(events []Event) {
	if s.cfg.OnEvent == nil {
		return
	}
	for _, ev := range events {
		s.cfg.OnEvent(ev)
	}
}
