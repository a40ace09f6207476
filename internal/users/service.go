package users

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidUser   = errors.New("invalid user")
	errNotConfigured = errors.New("users service not configured")
)

const guestPrefix = "guest:"

// Service records signed-in accounts for the /me profile.
type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// RecordLogin stores the profile of a user that just signed in. Guest
// identities are rejected since they have nothing to persist.
func (s *Service) RecordLogin(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errNotConfigured
	}
	user.ID = strings.TrimSpace(user.ID)
	switch {
	case user.ID == "":
		return errors.Join(ErrInvalidUser, errors.New("id is required"))
	case strings.HasPrefix(user.ID, guestPrefix):
		return errors.Join(ErrInvalidUser, errors.New("guests are not stored"))
	case strings.TrimSpace(user.Provider) == "":
		return errors.Join(ErrInvalidUser, errors.New("provider is required"))
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.DisplayName = strings.TrimSpace(user.DisplayName)
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.HasPrefix(userID, guestPrefix) {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}
