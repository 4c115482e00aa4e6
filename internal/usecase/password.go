package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/config"
	"github.com/arklim/platform-authn/internal/infra/logger"
	"github.com/arklim/platform-authn/internal/infra/security"
)

var (
	// ErrPolicyViolation indicates the candidate password failed store-time
	// validation; the returned messages explain which rules failed.
	ErrPolicyViolation = errors.New("password does not satisfy policy")
	// ErrVerificationMismatch indicates the supplied verification token does
	// not match the pending token.
	ErrVerificationMismatch = errors.New("verification token mismatch")
	// ErrAlreadyVerified indicates the identity has no pending verification.
	ErrAlreadyVerified = errors.New("identity already verified")
)

const verificationTokenBytes = 32

// CredentialService manages password lifecycle: provisioning, verification,
// and changes. Authentication never mutates credentials; all writes go
// through here.
type CredentialService struct {
	creds  port.CredentialStore
	hasher *security.Hasher
	policy *security.PasswordPolicy
	audit  port.AuditPublisher
	logger *zap.Logger
	cfg    config.PolicySettings
	now    func() time.Time
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(
	creds port.CredentialStore,
	hasher *security.Hasher,
	policy *security.PasswordPolicy,
	audit port.AuditPublisher,
	log *zap.Logger,
	cfg config.PolicySettings,
) *CredentialService {
	return &CredentialService{
		creds:  creds,
		hasher: hasher,
		policy: policy,
		audit:  audit,
		logger: log,
		cfg:    cfg,
		now:    time.Now,
	}
}

// ProvisionedLogin is the outcome of CreateLogin: the temporary password the
// account holder must rotate on first use, and the verification token to
// deliver out of band. Neither is ever persisted in raw form.
type ProvisionedLogin struct {
	TempPassword      string
	VerificationToken string
}

// CreateLogin provisions a credential for an existing principal with a random
// temporary password and a pending verification token.
func (s *CredentialService) CreateLogin(ctx context.Context, identity string) (*ProvisionedLogin, error) {
	identity = security.NormalizeIdentity(identity)

	tempPassword, err := security.GenerateTempPassword()
	if err != nil {
		return nil, fmt.Errorf("generate temp password: %w", err)
	}

	token, err := security.GenerateSecureToken(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temp password: %w", err)
	}

	if err := s.creds.CreateLogin(ctx, identity, hash, security.HashToken(token)); err != nil {
		return nil, fmt.Errorf("create login: %w", err)
	}

	s.logger.Info("login provisioned",
		zap.String("identity", logger.MaskIdentity(identity)),
	)

	return &ProvisionedLogin{
		TempPassword:      tempPassword,
		VerificationToken: token,
	}, nil
}

// SetPassword validates and persists a new password. On a policy violation it
// returns ErrPolicyViolation together with the rule messages for display.
// The prior hash is pushed onto the bounded history by the store.
func (s *CredentialService) SetPassword(ctx context.Context, identity, secret, confirmation string) ([]string, error) {
	identity = security.NormalizeIdentity(identity)

	principal, err := s.creds.LookupPrincipal(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	historyBound := s.cfg.HistoryLimit
	if historyBound <= 0 {
		historyBound = 10
	}

	history, err := s.creds.ListPasswordHistory(ctx, principal.ID, historyBound)
	if err != nil {
		return nil, fmt.Errorf("list password history: %w", err)
	}

	priorHashes := make([]string, 0, len(history)+1)
	for _, entry := range history {
		priorHashes = append(priorHashes, entry.Hash)
	}
	// The current hash counts as history for the reuse check.
	if current, err := s.creds.LookupHash(ctx, identity); err == nil {
		priorHashes = append(priorHashes, current)
	}

	ok, messages, err := s.policy.ValidToStore(secret, confirmation, principal, priorHashes)
	if err != nil {
		return nil, fmt.Errorf("validate password: %w", err)
	}
	if !ok {
		return messages, ErrPolicyViolation
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.creds.SetPassword(ctx, identity, hash, changedAt, historyBound); err != nil {
		return nil, fmt.Errorf("set password: %w", err)
	}

	if s.audit != nil {
		event := domain.PasswordChangedEvent{
			EventID:     uuid.NewString(),
			PrincipalID: principal.ID,
			Identity:    identity,
			ChangedAt:   changedAt,
			ChangedBy:   principal.ID,
		}
		if err := s.audit.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event", zap.Error(err))
		}
	}

	return nil, nil
}

// Verify consumes a pending verification token. The supplied raw token is
// hashed and compared against the stored token hash.
func (s *CredentialService) Verify(ctx context.Context, identity, token string) error {
	identity = security.NormalizeIdentity(identity)

	state, err := s.creds.VerificationState(ctx, identity)
	if err != nil {
		return fmt.Errorf("lookup verification state: %w", err)
	}

	if state.Verified || state.Token == nil {
		return ErrAlreadyVerified
	}
	if security.HashToken(token) != *state.Token {
		return ErrVerificationMismatch
	}

	if err := s.creds.SetVerification(ctx, identity, nil); err != nil {
		return fmt.Errorf("clear verification token: %w", err)
	}

	s.logger.Info("identity verified",
		zap.String("identity", logger.MaskIdentity(identity)),
	)

	return nil
}

// IsVerified reports whether the identity has completed verification.
func (s *CredentialService) IsVerified(ctx context.Context, identity string) (bool, error) {
	state, err := s.creds.VerificationState(ctx, security.NormalizeIdentity(identity))
	if err != nil {
		return false, fmt.Errorf("lookup verification state: %w", err)
	}
	return state.Verified, nil
}
