package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/config"
	"github.com/arklim/platform-authn/internal/infra/logger"
	"github.com/arklim/platform-authn/internal/infra/security"
	"github.com/arklim/platform-authn/internal/infra/telemetry"
	"github.com/arklim/platform-authn/internal/repository"
)

// AuthenticationRequest carries one authentication attempt. Identity set to
// the configured sentinel switches the secret's interpretation from password
// to API key; everything else stays on the password path.
type AuthenticationRequest struct {
	Identity   string
	Secret     string
	RemoteAddr string
}

// AuthenticationService is the decision engine for primary authentication.
//
// The password path runs a strict sequence: limiter, identity validation,
// principal lookup, hash match, login-time policy, expiration. Each step's
// precondition depends on the prior step's success, so the order never
// changes and nothing runs concurrently within one attempt. Policy runs only
// after the hash matched, which keeps wrong passwords from leaking policy
// signals; expiration runs only after policy passed, so a correct but
// non-compliant password routes to a complexity-driven change even when the
// password is also past expiration.
type AuthenticationService struct {
	creds   port.CredentialStore
	hasher  *security.Hasher
	policy  *security.PasswordPolicy
	apiKeys *ApiKeyService
	limiter *AttemptLimiter
	audit   port.AuditPublisher
	metrics *telemetry.Provider
	logger  *zap.Logger
	cfg     config.PolicySettings
	apiCfg  config.ApiKeySettings
	now     func() time.Time
}

// NewAuthenticationService constructs the decision engine.
func NewAuthenticationService(
	creds port.CredentialStore,
	hasher *security.Hasher,
	policy *security.PasswordPolicy,
	apiKeys *ApiKeyService,
	limiter *AttemptLimiter,
	audit port.AuditPublisher,
	metrics *telemetry.Provider,
	log *zap.Logger,
	cfg config.PolicySettings,
	apiCfg config.ApiKeySettings,
) *AuthenticationService {
	return &AuthenticationService{
		creds:   creds,
		hasher:  hasher,
		policy:  policy,
		apiKeys: apiKeys,
		limiter: limiter,
		audit:   audit,
		metrics: metrics,
		logger:  log,
		cfg:     cfg,
		apiCfg:  apiCfg,
		now:     time.Now,
	}
}

// Authenticate decides one attempt. It never returns an error: every outcome,
// including store failures, maps onto an AuthenticationResult so callers
// handle a single closed set of reasons. A Success result can still carry an
// inactive principal; the caller must check Principal.Active before granting
// access.
func (s *AuthenticationService) Authenticate(ctx context.Context, req AuthenticationRequest) domain.AuthenticationResult {
	if s.limiter != nil && !s.limiter.Allow(ctx, req.RemoteAddr, req.Identity, req.Secret) {
		s.metrics.ObserveThrottledLogin()
		return s.fail(ctx, req, "", domain.FailureThrottled, "")
	}

	if req.Identity == s.apiCfg.Sentinel {
		return s.authenticateApiKey(ctx, req)
	}

	return s.authenticatePassword(ctx, req)
}

func (s *AuthenticationService) authenticateApiKey(ctx context.Context, req AuthenticationRequest) domain.AuthenticationResult {
	principal, err := s.apiKeys.Authenticate(ctx, req.Secret)
	if err != nil {
		s.logger.Error("api key lookup failed", zap.Error(err))
		return s.fail(ctx, req, "", domain.FailureConfigurationError, "")
	}
	if principal == nil {
		if s.limiter != nil {
			s.limiter.RecordFailure(ctx, req.RemoteAddr, req.Identity, req.Secret)
		}
		return s.fail(ctx, req, "", domain.FailureBadApiKey, "")
	}

	// API keys are a distinct trust tier: no policy, expiration, or step-up
	// checks apply.
	result := domain.Success(principal, "")
	result.SecondaryAuthExempt = true
	s.observeSuccess(ctx, principal, "api_key", req.RemoteAddr)
	return result
}

func (s *AuthenticationService) authenticatePassword(ctx context.Context, req AuthenticationRequest) domain.AuthenticationResult {
	identity := security.NormalizeIdentity(req.Identity)

	principal, err := s.creds.LookupPrincipal(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if !security.ValidIdentityFormat(identity) {
				return s.fail(ctx, req, "", domain.FailureInvalidIdentityFormat, "")
			}
			if s.limiter != nil {
				s.limiter.RecordFailure(ctx, req.RemoteAddr, identity, req.Secret)
			}
			return s.fail(ctx, req, "", domain.FailureUserDoesNotExist, "")
		}
		s.logger.Error("principal lookup failed",
			zap.String("identity", logger.MaskIdentity(identity)),
			zap.Error(err),
		)
		return s.fail(ctx, req, "", domain.FailureConfigurationError, "")
	}

	hash, err := s.creds.LookupHash(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// A principal without a credential row cannot log in.
			return s.fail(ctx, req, principal.ID, domain.FailureUserDoesNotExist, "")
		}
		s.logger.Error("hash lookup failed",
			zap.String("identity", logger.MaskIdentity(identity)),
			zap.Error(err),
		)
		return s.fail(ctx, req, principal.ID, domain.FailureConfigurationError, "")
	}

	match, err := s.hasher.Verify(req.Secret, hash)
	if err != nil {
		s.logger.Error("hash verification failed",
			zap.String("identity", logger.MaskIdentity(identity)),
			zap.Error(err),
		)
		return s.fail(ctx, req, principal.ID, domain.FailureConfigurationError, "")
	}
	if !match {
		if s.limiter != nil {
			s.limiter.RecordFailure(ctx, req.RemoteAddr, identity, req.Secret)
		}
		return s.fail(ctx, req, principal.ID, domain.FailureBadPassword, "")
	}

	// The password is correct from here on. Current policy re-validates every
	// login so accounts set under an older, weaker rule are steered to a
	// forced change instead of being locked out.
	if ok, messages := s.policy.ValidForLogin(req.Secret, principal); !ok {
		result := s.fail(ctx, req, principal.ID, domain.FailureComplexity, s.cfg.ChangePasswordTarget)
		result.Messages = messages
		return result
	}

	if s.cfg.ExpirationDays > 0 {
		lastChanged, err := s.creds.LastChanged(ctx, principal.ID)
		if err != nil {
			s.logger.Error("last changed lookup failed",
				zap.String("identity", logger.MaskIdentity(identity)),
				zap.Error(err),
			)
			return s.fail(ctx, req, principal.ID, domain.FailureConfigurationError, "")
		}
		expiresAt := lastChanged.AddDate(0, 0, s.cfg.ExpirationDays)
		if s.now().After(expiresAt) {
			return s.fail(ctx, req, principal.ID, domain.FailureExpired, s.cfg.ChangePasswordTarget)
		}
	}

	s.observeSuccess(ctx, principal, "password", req.RemoteAddr)
	return domain.Success(principal, "")
}

func (s *AuthenticationService) fail(ctx context.Context, req AuthenticationRequest, principalID string, reason domain.FailureReason, redirectTarget string) domain.AuthenticationResult {
	s.metrics.ObserveAttempt(string(reason))

	if s.audit != nil {
		event := domain.LoginFailedEvent{
			EventID:     uuid.NewString(),
			PrincipalID: principalID,
			Identity:    security.NormalizeIdentity(req.Identity),
			Reason:      reason,
			OccurredAt:  s.now().UTC(),
		}
		if req.RemoteAddr != "" {
			addr := req.RemoteAddr
			event.IPAddress = &addr
		}
		if err := s.audit.PublishLoginFailed(ctx, event); err != nil {
			s.logger.Warn("publish login failed event", zap.Error(err))
		}
	}

	return domain.Failure(reason, redirectTarget)
}

func (s *AuthenticationService) observeSuccess(ctx context.Context, principal *domain.Principal, method, remoteAddr string) {
	s.metrics.ObserveAttempt("success")

	if s.audit == nil {
		return
	}
	event := domain.LoginSucceededEvent{
		EventID:     uuid.NewString(),
		PrincipalID: principal.ID,
		Identity:    principal.Identity,
		Method:      method,
		OccurredAt:  s.now().UTC(),
	}
	if remoteAddr != "" {
		addr := remoteAddr
		event.IPAddress = &addr
	}
	if err := s.audit.PublishLoginSucceeded(ctx, event); err != nil {
		s.logger.Warn("publish login succeeded event", zap.Error(err))
	}
}
