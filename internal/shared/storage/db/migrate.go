package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var gooseOnce sync.Once
var gooseErr error

func setupGoose() error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations)
		gooseErr = goose.SetDialect("postgres")
	})
	return gooseErr
}

// Migrate applies pending migrations and returns the schema version reached.
// A nil conn is a no-op at version 0.
func Migrate(ctx context.Context, conn *sql.DB) (int64, error) {
	if conn == nil {
		return 0, nil
	}
	if err := setupGoose(); err != nil {
		return 0, fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn, "migrations"); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
