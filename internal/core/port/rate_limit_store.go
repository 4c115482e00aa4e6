package port

import (
	"context"
	"time"
)

// RateLimitStore persists failed-attempt timestamps inside a sliding window,
// shared across processes.
type RateLimitStore interface {
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
}
