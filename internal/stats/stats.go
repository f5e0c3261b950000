// Package stats publishes a live active-session gauge to Redis so
// external dashboards can read it.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const activeRoomsKey = "relay-active-rooms"

// Reporter is nil-safe: a nil reporter ignores every call, so callers
// can wire stats unconditionally and disable them by config.
type Reporter struct {
	client *redis.Client
}

func New(url string) (*Reporter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info().Str("module", "stats").Msg("connected to redis")
	return &Reporter{client: client}, nil
}

func (r *Reporter) SetActiveCount(ctx context.Context, count int) error {
	if r == nil {
		return nil
	}
	return r.client.Set(ctx, activeRoomsKey, strconv.Itoa(count), 0).Err()
}

// Run publishes count() every interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context, interval time.Duration, count func() int) {
	if r == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SetActiveCount(ctx, count()); err != nil {
				log.Warn().Err(err).Str("module", "stats").Msg("failed to publish active count")
			}
		}
	}
}

func (r *Reporter) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
