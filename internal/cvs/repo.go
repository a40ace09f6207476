package cvs

import (
	"context"
	"time"
)

// Repo defines owner-scoped persistence operations for CVs.
type Repo interface {
	Create(ctx context.Context, cv CV) error
	GetByID(ctx context.Context, ownerID, id string) (CV, error)
	// ListByOwner returns the owner's CVs, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]CV, error)
	Update(ctx context.Context, ownerID, id string, upd Update, at time.Time) (CV, error)
	Delete(ctx context.Context, ownerID, id string) error
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}
