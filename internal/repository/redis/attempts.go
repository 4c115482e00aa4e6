package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/platform-authn/internal/core/port"
)

// WindowConfig defines the key namespace and TTL for the attempt window.
type WindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// AttemptRepository persists failed login attempts in Redis sorted sets, one
// set per limiter bucket, scored by timestamp. The window is shared across
// processes so a distributed deployment throttles as one.
type AttemptRepository struct {
	client *redis.Client
	cfg    WindowConfig
}

// NewAttemptRepository constructs a repository using the provided Redis client.
func NewAttemptRepository(client *redis.Client, cfg WindowConfig) *AttemptRepository {
	return &AttemptRepository{client: client, cfg: cfg}
}

// RecordAttempt stores the provided timestamp in the bucket and applies TTL.
func (r *AttemptRepository) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := r.key(identifier)
	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	if err := r.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	if r.cfg.TTL > 0 {
		if err := r.client.Expire(ctx, key, r.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}

	return nil
}

// CountAttempts returns how many attempts occurred within the window ending
// at reference time.
func (r *AttemptRepository) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	key := r.key(identifier)
	min := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	max := strconv.FormatInt(reference.UnixNano(), 10)

	count, err := r.client.ZCount(ctx, key, min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// TrimWindow removes attempts older than the window relative to reference time.
func (r *AttemptRepository) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	key := r.key(identifier)
	threshold := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	return nil
}

func (r *AttemptRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

var _ port.RateLimitStore = (*AttemptRepository)(nil)
