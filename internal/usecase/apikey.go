package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/cache"
	"github.com/arklim/platform-authn/internal/infra/config"
	"github.com/arklim/platform-authn/internal/infra/security"
	"github.com/arklim/platform-authn/internal/infra/telemetry"
	"github.com/arklim/platform-authn/internal/repository"
)

// ApiKeyService resolves bearer keys to principals and maintains last-used
// timestamps without writing on every request. Keys are hashed before they
// touch the store or the pending cache, so the raw key lives only on the
// stack of Authenticate.
type ApiKeyService struct {
	keys    port.ApiKeyStore
	pending *cache.TTL[struct{}]
	cfg     config.ApiKeySettings
	logger  *zap.Logger
	metrics *telemetry.Provider
}

// NewApiKeyService constructs an ApiKeyService.
func NewApiKeyService(keys port.ApiKeyStore, cfg config.ApiKeySettings, metrics *telemetry.Provider, log *zap.Logger) *ApiKeyService {
	window := cfg.ThrottleWindow
	if window <= 0 {
		window = time.Minute
	}
	capacity := cfg.ThrottleCapacity
	if capacity <= 0 {
		capacity = 1000
	}

	return &ApiKeyService{
		keys:    keys,
		pending: cache.NewTTL[struct{}](capacity, window),
		cfg:     cfg,
		logger:  log,
		metrics: metrics,
	}
}

// Authenticate resolves a raw key to its principal. A nil principal with a
// nil error means the key is unknown, expired, or revoked; the caller reports
// a single opaque failure for all three.
func (s *ApiKeyService) Authenticate(ctx context.Context, rawKey string) (*domain.Principal, error) {
	if rawKey == "" {
		return nil, nil
	}

	keyHash := security.HashToken(rawKey)

	principal, err := s.keys.LookupPrincipal(ctx, keyHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.touchLastUsed(keyHash)

	return principal, nil
}

// touchLastUsed schedules an asynchronous last-used write, coalesced to at
// most one write per key per throttle window. Concurrent callers race on the
// pending cache; exactly one wins and performs the write.
func (s *ApiKeyService) touchLastUsed(keyHash string) {
	if !s.pending.Once(keyHash, struct{}{}) {
		return
	}

	at := time.Now().UTC()
	go func() {
		timeout := s.cfg.UpdateTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.keys.TouchLastUsed(ctx, keyHash, at); err != nil {
			s.logger.Warn("update api key last used", zap.Error(err))
			return
		}
		s.metrics.ObserveApiKeyTouch()
	}()
}
