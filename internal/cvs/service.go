package cvs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vitaeforge/internal/shared/telemetry"
)

const (
	untitledPrefix  = "CV sin título"
	duplicateSuffix = " (copia)"
	maxTitleLength  = 200
)

// Service contains business logic for CVs.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create inserts a new CV. An empty title becomes "CV sin título N" and nil
// content becomes the sample CV.
func (s *Service) Create(ctx context.Context, ownerID, title string, content *Content) (CV, error) {
	if strings.TrimSpace(ownerID) == "" {
		return CV{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		n, err := s.Repo.CountByOwner(ctx, ownerID)
		if err != nil {
			return CV{}, fmt.Errorf("count cvs: %w", err)
		}
		title = fmt.Sprintf("%s %d", untitledPrefix, n+1)
	}
	if err := checkTitle(title); err != nil {
		return CV{}, err
	}

	c := DefaultContent()
	if content != nil {
		c = content.Clone()
	}
	Normalize(&c)
	if err := Validate(c); err != nil {
		return CV{}, err
	}

	now := s.now()
	cv := CV{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   c,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, cv); err != nil {
		return CV{}, fmt.Errorf("create cv: %w", err)
	}
	telemetry.Info("cv.created", map[string]any{"cv_id": cv.ID, "user_id": ownerID})
	return cv, nil
}

// OpenLatest returns the owner's newest CV, creating one when the owner has none.
func (s *Service) OpenLatest(ctx context.Context, ownerID string) (CV, bool, error) {
	list, err := s.List(ctx, ownerID)
	if err != nil {
		return CV{}, false, err
	}
	if len(list) > 0 {
		return list[0], false, nil
	}
	cv, err := s.Create(ctx, ownerID, untitledPrefix, nil)
	if err != nil {
		return CV{}, false, err
	}
	return cv, true, nil
}

// List returns the owner's CVs, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]CV, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	return s.Repo.ListByOwner(ctx, ownerID)
}

// Get returns one CV of the owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (CV, error) {
	if err := checkID(id); err != nil {
		return CV{}, err
	}
	return s.Repo.GetByID(ctx, ownerID, id)
}

// CheckUpdate normalizes and validates a partial update without writing it.
func (s *Service) CheckUpdate(id string, upd Update) (Update, error) {
	if err := checkID(id); err != nil {
		return Update{}, err
	}
	if upd.Title == nil && upd.Content == nil {
		return Update{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := checkTitle(title); err != nil {
			return Update{}, err
		}
		upd.Title = &title
	}
	if upd.Content != nil {
		c := upd.Content.Clone()
		Normalize(&c)
		if err := Validate(c); err != nil {
			return Update{}, err
		}
		upd.Content = &c
	}
	return upd, nil
}

// Update applies a partial update to title and/or content.
func (s *Service) Update(ctx context.Context, ownerID, id string, upd Update) (CV, error) {
	upd, err := s.CheckUpdate(id, upd)
	if err != nil {
		return CV{}, err
	}
	return s.Repo.Update(ctx, ownerID, id, upd, s.now())
}

// SaveContent replaces the content of a CV.
func (s *Service) SaveContent(ctx context.Context, ownerID, id string, content Content) (CV, error) {
	return s.Update(ctx, ownerID, id, Update{Content: &content})
}

// Rename changes the title of a CV.
func (s *Service) Rename(ctx context.Context, ownerID, id, title string) (CV, error) {
	return s.Update(ctx, ownerID, id, Update{Title: &title})
}

// Delete removes a CV.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	telemetry.Info("cv.deleted", map[string]any{"cv_id": id, "user_id": ownerID})
	return nil
}

// Duplicate copies a CV under a new id with the title "<title> (copia)". Long
// titles are shortened so the copy still fits the title limit.
func (s *Service) Duplicate(ctx context.Context, ownerID, id string) (CV, error) {
	src, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return CV{}, err
	}
	content := src.Content.Clone()
	return s.Create(ctx, ownerID, duplicateTitle(src.Title), &content)
}

func duplicateTitle(title string) string {
	limit := maxTitleLength - len([]rune(duplicateSuffix))
	if r := []rune(title); len(r) > limit {
		title = strings.TrimSpace(string(r[:limit]))
	}
	return title + duplicateSuffix
}

// Summary returns the CV count and the most recently edited CV of the owner.
func (s *Service) Summary(ctx context.Context, ownerID string) (Summary, error) {
	list, err := s.List(ctx, ownerID)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Count: len(list)}
	for i := range list {
		if out.LastEdited == nil || list[i].UpdatedAt.After(out.LastEdited.UpdatedAt) {
			out.LastEdited = &list[i]
		}
	}
	return out, nil
}

func checkID(id string) error {
	// Ids are UUIDs; anything else is not found.
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return ErrNotFound
	}
	return nil
}

func checkTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len([]rune(title)) > maxTitleLength {
		return fmt.Errorf("%w: title is too long", ErrInvalidInput)
	}
	return nil
}
