package cvs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vitaeforge/internal/shared/telemetry"
)

// PGRepo implements Repo using Postgres. Content is stored as jsonb.
type PGRepo struct {
	DB *sql.DB
}

const cvColumns = `id, user_id, title, content, created_at, updated_at`

// Create inserts a new CV.
func (r *PGRepo) Create(ctx context.Context, cv CV) error {
	const query = `
INSERT INTO cvs (id, user_id, title, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	raw, err := json.Marshal(cv.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, cv.ID, cv.OwnerID, cv.Title, string(raw), cv.CreatedAt, cv.UpdatedAt)
	return err
}

// GetByID returns a CV by ID for an owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerID, id string) (CV, error) {
	query := `SELECT ` + cvColumns + ` FROM cvs WHERE id = $1 AND user_id = $2`
	return scanCV(r.DB.QueryRowContext(ctx, query, id, ownerID))
}

// ListByOwner returns the owner's CVs, newest first. Rows whose stored content
// no longer decodes are logged and left out.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string) ([]CV, error) {
	query := `SELECT ` + cvColumns + ` FROM cvs WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CV, 0)
	for rows.Next() {
		cv, err := scanCV(rows)
		if errors.Is(err, ErrInvalidContent) {
			telemetry.Warn("cv.list_invalid_row", map[string]any{"user_id": ownerID, "error": err})
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

// Update applies a partial update in a single statement and returns the stored CV.
func (r *PGRepo) Update(ctx context.Context, ownerID, id string, upd Update, at time.Time) (CV, error) {
	query := `
UPDATE cvs
SET title = COALESCE($3, title),
    content = COALESCE($4::jsonb, content),
    updated_at = $5
WHERE id = $1 AND user_id = $2
RETURNING ` + cvColumns

	var title sql.NullString
	if upd.Title != nil {
		title = sql.NullString{String: *upd.Title, Valid: true}
	}
	var content sql.NullString
	if upd.Content != nil {
		raw, err := json.Marshal(upd.Content)
		if err != nil {
			return CV{}, fmt.Errorf("marshal content: %w", err)
		}
		content = sql.NullString{String: string(raw), Valid: true}
	}
	return scanCV(r.DB.QueryRowContext(ctx, query, id, ownerID, title, content, at))
}

// Delete removes a CV.
func (r *PGRepo) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM cvs WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByOwner returns how many CVs an owner has.
func (r *PGRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM cvs WHERE user_id = $1`
	var n int
	if err := r.DB.QueryRowContext(ctx, query, ownerID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCV(row rowScanner) (CV, error) {
	var cv CV
	var raw []byte
	var updatedAt sql.NullTime
	if err := row.Scan(&cv.ID, &cv.OwnerID, &cv.Title, &raw, &cv.CreatedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CV{}, ErrNotFound
		}
		return CV{}, err
	}
	content, err := DecodeContent(raw)
	if err != nil {
		return CV{}, fmt.Errorf("cv %s: %w", cv.ID, err)
	}
	cv.Content = content
	cv.UpdatedAt = cv.CreatedAt
	if updatedAt.Valid {
		cv.UpdatedAt = updatedAt.Time
	}
	return cv, nil
}

var _ Repo = (*PGRepo)(nil)
