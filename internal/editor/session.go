package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vitaeforge/internal/autosave"
	"vitaeforge/internal/cvs"
)

// Session is the open editing state of one CV.
type Session struct {
	OwnerID string
	CVID    string

	form   *Form
	syncer *autosave.Synchronizer[Snapshot]
	clock  autosave.Clock

	mu       sync.Mutex
	expires  time.Time
	lastUsed time.Time
	closed   bool
}

func (s *Session) touch(expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.clock.Now()
	if !expires.IsZero() || s.expires.IsZero() {
		s.expires = expires
	}
}

func (s *Session) lastUse() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// active gates writes on the owner's credentials still being valid.
func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.CVID == "" {
		return false
	}
	return s.expires.IsZero() || s.clock.Now().Before(s.expires)
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.syncer.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) changed() {
	s.syncer.Notify(s.form.Snapshot())
}

// View returns the visible form state.
func (s *Session) View() View {
	return s.form.View()
}

// Status returns the autosave status.
func (s *Session) Status() autosave.Status {
	return s.syncer.Status()
}

// SetFields applies several field edits and returns the field errors they
// produced. An unknown path rejects the whole request and nothing is saved.
func (s *Session) SetFields(fields map[string]string) ([]cvs.FieldError, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	errs, err := s.form.SetFields(fields)
	if err != nil {
		return nil, err
	}
	s.changed()
	return errs, nil
}

// ReplaceContent swaps the whole content.
func (s *Session) ReplaceContent(content cvs.Content) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.form.ReplaceContent(content); err != nil {
		return err
	}
	s.changed()
	return nil
}

// AddEntry appends a blank entry to section.
func (s *Session) AddEntry(section string) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	id, err := s.form.AddEntry(section)
	if err != nil {
		return "", err
	}
	s.changed()
	return id, nil
}

// RemoveEntry deletes an entry.
func (s *Session) RemoveEntry(section, id string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.form.RemoveEntry(section, id); err != nil {
		return err
	}
	s.changed()
	return nil
}

// MoveEntry reorders an entry.
func (s *Session) MoveEntry(section, id string, index int) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.form.MoveEntry(section, id, index); err != nil {
		return err
	}
	s.changed()
	return nil
}

// Refine rewrites a free-text field with r. On error the field keeps its value.
func (s *Session) Refine(ctx context.Context, r Refiner, path string) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	if !IsTextField(path) {
		return "", fmt.Errorf("%w: %s", ErrNotText, path)
	}
	current, err := s.form.Field(path)
	if err != nil {
		return "", err
	}

	refined, err := r.Refine(ctx, current)
	if err != nil {
		return "", err
	}
	if refined == "" {
		// Empty input short-circuits to an empty result; nothing to write.
		return "", nil
	}
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	if _, err := s.form.SetField(path, refined); err != nil {
		return "", err
	}
	s.changed()
	return refined, nil
}

// Flush saves pending edits now.
func (s *Session) Flush(ctx context.Context) error {
	return s.syncer.Flush(ctx)
}
