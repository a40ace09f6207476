package cvs

import "time"

// CV is a persisted, owner-scoped CV document.
type CV struct {
	ID        string
	OwnerID   string
	Title     string
	Content   Content
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update carries the optional fields of a partial update.
type Update struct {
	Title   *string
	Content *Content
}

// Summary is the dashboard overview of an owner's CVs.
type Summary struct {
	Count      int
	LastEdited *CV
}
