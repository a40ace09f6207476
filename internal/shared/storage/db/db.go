// Package db opens the Postgres pool behind the cv and user repositories and
// applies the embedded schema.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"vitaeforge/internal/shared/telemetry"
)

// ErrNoURL is returned by Connect when no database url is configured.
var ErrNoURL = errors.New("DATABASE_URL is empty")

// Pool sizes the connection pool. Attempts is how many times Connect pings
// before giving up, waiting RetryDelay between tries.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PingTimeout time.Duration
	Attempts    int
	RetryDelay  time.Duration
}

var openDB = sql.Open

// ServerPool is the pool of the API process, which holds editor sessions
// writing concurrently.
func ServerPool() Pool {
	return Pool{
		MaxOpen:     10,
		MaxIdle:     5,
		MaxLifetime: time.Hour,
		MaxIdleTime: 2 * time.Minute,
		PingTimeout: 5 * time.Second,
		Attempts:    3,
		RetryDelay:  time.Second,
	}
}

// MigratePool is a single connection pool for the migrate command.
func MigratePool() Pool {
	return Pool{
		MaxOpen:     1,
		MaxIdle:     1,
		MaxLifetime: time.Hour,
		PingTimeout: 5 * time.Second,
		Attempts:    1,
	}
}

// FromEnv overrides p with the DB_* variables that are set and valid.
func (p Pool) FromEnv() Pool {
	envInt("DB_MAX_OPEN_CONNS", &p.MaxOpen)
	envInt("DB_MAX_IDLE_CONNS", &p.MaxIdle)
	envInt("DB_CONNECT_ATTEMPTS", &p.Attempts)
	envDuration("DB_CONN_MAX_LIFETIME", &p.MaxLifetime)
	envDuration("DB_CONN_MAX_IDLE_TIME", &p.MaxIdleTime)
	envDuration("DB_PING_TIMEOUT", &p.PingTimeout)
	envDuration("DB_RETRY_DELAY", &p.RetryDelay)
	return p
}

func (p Pool) normalized() Pool {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 10
	}
	if p.MaxIdle <= 0 || p.MaxIdle > p.MaxOpen {
		p.MaxIdle = p.MaxOpen
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = time.Hour
	}
	if p.PingTimeout <= 0 {
		p.PingTimeout = 5 * time.Second
	}
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	return p
}

// Connect opens the pool for databaseURL and pings it until it answers or
// the attempts run out.
func Connect(ctx context.Context, databaseURL string, p Pool) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrNoURL
	}
	p = p.normalized()

	conn, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(p.MaxOpen)
	conn.SetMaxIdleConns(p.MaxIdle)
	conn.SetConnMaxLifetime(p.MaxLifetime)
	if p.MaxIdleTime > 0 {
		conn.SetConnMaxIdleTime(p.MaxIdleTime)
	}

	for attempt := 1; ; attempt++ {
		err = ping(ctx, conn, p.PingTimeout)
		if err == nil {
			break
		}
		if attempt >= p.Attempts || ctx.Err() != nil {
			conn.Close()
			return nil, fmt.Errorf("ping database after %d attempt(s): %w", attempt, err)
		}
		telemetry.Warn("db.ping_retry", map[string]any{"attempt": attempt, "error": err})
		select {
		case <-time.After(p.RetryDelay):
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		}
	}

	stats := conn.Stats()
	telemetry.Info("db.connected", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return conn, nil
}

func ping(ctx context.Context, conn *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.PingContext(ctx)
}

func envInt(key string, dst *int) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err})
		return
	}
	*dst = v
}

func envDuration(key string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err})
		return
	}
	*dst = v
}
