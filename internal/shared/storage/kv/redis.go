// Package kv connects to the optional Redis instance used for short-lived keys.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"vitaeforge/internal/shared/telemetry"
)

const pingTimeout = 3 * time.Second

// Connect parses a redis:// or rediss:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	telemetry.Info("kv.connected", map[string]any{"addr": opts.Addr, "db": opts.DB})
	return client, nil
}
