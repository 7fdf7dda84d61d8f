// Package redisstore backs the rate limiter's fixed windows with Redis so
// admission counts are shared across console replicas.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Khaledaun/orion-console/internal/ratelimit"
)

// NewClient parses a redis URL and returns a client for it.
func NewClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// WindowStore counts requests in per-key Redis keys whose TTL is the window.
// Key expiry gives fresh-window semantics without any sweeper of our own.
type WindowStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ratelimit.WindowStore = (*WindowStore)(nil)

func NewWindowStore(client redis.UniversalClient) *WindowStore {
	return &WindowStore{client: client, prefix: "ratelimit:"}
}

func (s *WindowStore) Bump(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	k := s.prefix + key
	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return count, now.Add(window), nil
	}
	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. a crashed PExpire); re-arm it so the
		// window cannot live forever.
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return count, now.Add(ttl), nil
}
