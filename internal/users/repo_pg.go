package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, display_name, photo_url, provider, created_at, last_login_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  display_name = COALESCE(EXCLUDED.display_name, users.display_name),
  photo_url = COALESCE(EXCLUDED.photo_url, users.photo_url),
  provider = EXCLUDED.provider,
  last_login_at = now()`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		nullableString(user.DisplayName),
		nullableString(user.PhotoURL),
		user.Provider,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, email, display_name, photo_url, provider, created_at, last_login_at
FROM users
WHERE id = $1
LIMIT 1`
	var user User
	var displayName sql.NullString
	var photoURL sql.NullString
	var lastLogin sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&displayName,
		&photoURL,
		&user.Provider,
		&user.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.DisplayName = displayName.String
	user.PhotoURL = photoURL.String
	if lastLogin.Valid {
		user.LastLoginAt = lastLogin.Time
	} else {
		user.LastLoginAt = user.CreatedAt
	}
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
