package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// RedisDeduper tracks vendor event IDs in Redis with the dedupe window as
// key TTL. Safe across multiple bridge instances.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
}

// NewRedisDeduper connects to Redis and verifies the connection.
func NewRedisDeduper(redisURL string, window time.Duration) (*RedisDeduper, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisDeduper{client: client, window: window}, nil
}

// SeenEvent records the event ID and reports whether it was already inside
// the window. SET NX with TTL keeps the check-and-set atomic.
func (d *RedisDeduper) SeenEvent(ctx context.Context, platform models.Platform, eventID string) (bool, error) {
	key := fmt.Sprintf("dedupe:%s:%s", platform, eventID)
	set, err := d.client.SetNX(ctx, key, 1, d.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check failed: %w", err)
	}
	return !set, nil
}

// Forget drops an event ID from the window.
func (d *RedisDeduper) Forget(ctx context.Context, platform models.Platform, eventID string) error {
	key := fmt.Sprintf("dedupe:%s:%s", platform, eventID)
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedupe forget failed: %w", err)
	}
	return nil
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
