package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/cache"
	"github.com/arklim/platform-authn/internal/infra/config"
)

// bucketCount spreads limiter state across a fixed number of buckets so the
// key space stays bounded regardless of how many addresses or identities are
// seen. Distinct values may share a bucket; the limit is sized for that.
const bucketCount = 1000

const limiterCacheCapacity = 4096

// AttemptLimiter slows credential stuffing by tracking failed attempts per
// address, identity, and secret bucket. A local token bucket gives a cheap
// in-process answer; the shared Redis window makes the decision hold across
// replicas. Only failed attempts consume budget.
type AttemptLimiter struct {
	store  port.RateLimitStore
	local  *cache.TTL[*rate.Limiter]
	cfg    config.RateLimitSettings
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
}

// NewAttemptLimiter builds a limiter. The store may be nil, in which case
// only the per-process budget applies. Zero-value settings are normalized
// here, once, so every decision below reads the same numbers.
func NewAttemptLimiter(store port.RateLimitStore, cfg config.RateLimitSettings, log *zap.Logger) *AttemptLimiter {
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = time.Minute
	}
	if cfg.LoginMaxAttempts <= 0 {
		cfg.LoginMaxAttempts = 20
	}
	if cfg.PauseThreshold <= 0 {
		cfg.PauseThreshold = 15 * time.Second
	}

	return &AttemptLimiter{
		store:  store,
		local:  cache.NewTTL[*rate.Limiter](limiterCacheCapacity, 2*cfg.WindowDuration),
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// buckets derives the limiter keys for one attempt. Hashing keeps secrets out
// of the limiter state and out of Redis.
func (l *AttemptLimiter) buckets(remoteAddr, identity, secret string) []string {
	keys := make([]string, 0, 3)
	for prefix, value := range map[string]string{
		"addr":     remoteAddr,
		"identity": identity,
		"secret":   secret,
	} {
		if value == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(value))
		keys = append(keys, fmt.Sprintf("%s:%d", prefix, h.Sum32()%bucketCount))
	}
	return keys
}

func (l *AttemptLimiter) limiterFor(key string) *rate.Limiter {
	return l.local.GetOrCreate(key, func() *rate.Limiter {
		interval := l.cfg.WindowDuration / time.Duration(l.cfg.LoginMaxAttempts)
		return rate.NewLimiter(rate.Every(interval), l.cfg.LoginMaxAttempts)
	})
}

// Allow reports whether the attempt may proceed. A true result consumes no
// budget; the attempt is charged later only if it fails. A bucket that would
// impose a short delay slows the attempt down by sleeping it off; a delay
// past the pause threshold rejects the attempt outright.
func (l *AttemptLimiter) Allow(ctx context.Context, remoteAddr, identity, secret string) bool {
	pause := l.cfg.PauseThreshold

	for _, key := range l.buckets(remoteAddr, identity, secret) {
		limiter := l.limiterFor(key)

		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		if delay > pause {
			return false
		}
		if delay > 0 {
			l.sleep(ctx, delay)
		}

		if l.store == nil {
			continue
		}

		count, err := l.store.CountAttempts(ctx, key, l.cfg.WindowDuration, l.now())
		if err != nil {
			// The limiter is advisory; an unavailable window never blocks
			// logins. The store error is still worth an operator's attention.
			l.logger.Warn("attempt window unavailable", zap.Error(err))
			continue
		}
		if count >= l.cfg.LoginMaxAttempts {
			return false
		}
	}

	return true
}

// RecordFailure charges a failed attempt against every bucket.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, remoteAddr, identity, secret string) {
	at := l.now()
	for _, key := range l.buckets(remoteAddr, identity, secret) {
		l.limiterFor(key).Allow()

		if l.store == nil {
			continue
		}
		if err := l.store.RecordAttempt(ctx, key, at); err != nil {
			l.logger.Warn("record failed attempt", zap.Error(err))
		}
	}
}
