package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/infra/config"
	"github.com/arklim/platform-authn/internal/infra/security"
)

func newCredentialFixture(t *testing.T, tier security.PolicyTier) (*CredentialService, *fakeCredentialStore, *fakeAuditPublisher, *security.Hasher) {
	t.Helper()

	log := zaptest.NewLogger(t)
	hasher := security.DefaultHasher()
	policy := security.NewPasswordPolicy(tier, hasher, 0)
	store := newFakeCredentialStore()
	audit := &fakeAuditPublisher{}

	service := NewCredentialService(store, hasher, policy, audit, log, config.PolicySettings{
		HistoryLimit: 10,
	})
	return service, store, audit, hasher
}

func seedAccount(store *fakeCredentialStore, hasher *security.Hasher, identity, password string) (*domain.Principal, error) {
	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	principal := &domain.Principal{
		ID:       "principal-" + identity,
		Identity: identity,
		Active:   true,
	}
	store.principals[identity] = principal
	store.hashes[identity] = hash
	return principal, nil
}

func TestSetPassword(t *testing.T) {
	service, store, audit, hasher := newCredentialFixture(t, security.TierStrong)
	if _, err := seedAccount(store, hasher, "alice@example.com", "OldSecret1!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	messages, err := service.SetPassword(context.Background(), "alice@example.com", "NewSecret2$", "NewSecret2$")
	if err != nil {
		t.Fatalf("SetPassword returned error: %v (messages %v)", err, messages)
	}

	if store.setPasswordCalls != 1 {
		t.Fatalf("expected one store write, got %d", store.setPasswordCalls)
	}
	if store.setPasswordBound != 10 {
		t.Fatalf("expected history bound 10, got %d", store.setPasswordBound)
	}

	match, err := hasher.Verify("NewSecret2$", store.setPasswordHash)
	if err != nil || !match {
		t.Fatalf("stored hash does not verify: match=%v err=%v", match, err)
	}

	if len(audit.changed) != 1 {
		t.Fatalf("expected one password changed event, got %d", len(audit.changed))
	}
}

func TestSetPasswordPolicyViolation(t *testing.T) {
	service, store, _, hasher := newCredentialFixture(t, security.TierStrong)
	if _, err := seedAccount(store, hasher, "alice@example.com", "OldSecret1!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	messages, err := service.SetPassword(context.Background(), "alice@example.com", "weak", "weak")
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}
	if len(messages) == 0 {
		t.Fatal("policy violation must carry messages")
	}
	if store.setPasswordCalls != 0 {
		t.Fatal("rejected password must not be written")
	}
}

func TestSetPasswordRejectsCurrentPassword(t *testing.T) {
	service, store, _, hasher := newCredentialFixture(t, security.TierStrong)
	if _, err := seedAccount(store, hasher, "alice@example.com", "OldSecret1!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := service.SetPassword(context.Background(), "alice@example.com", "OldSecret1!", "OldSecret1!")
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected reuse of the current password to be rejected, got %v", err)
	}
}

func TestSetPasswordRejectsHistoricalPassword(t *testing.T) {
	service, store, _, hasher := newCredentialFixture(t, security.TierStrong)
	principal, err := seedAccount(store, hasher, "alice@example.com", "OldSecret1!")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	priorHash, err := hasher.Hash("Historic3&")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store.history[principal.ID] = []domain.PasswordHistoryEntry{
		{ID: "h1", PrincipalID: principal.ID, Hash: priorHash, SetAt: time.Now().Add(-time.Hour)},
	}

	_, err = service.SetPassword(context.Background(), "alice@example.com", "Historic3&", "Historic3&")
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected historical reuse to be rejected, got %v", err)
	}
}

func TestSetPasswordMismatchedConfirmation(t *testing.T) {
	service, store, _, hasher := newCredentialFixture(t, security.TierStrong)
	if _, err := seedAccount(store, hasher, "alice@example.com", "OldSecret1!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	messages, err := service.SetPassword(context.Background(), "alice@example.com", "NewSecret2$", "Different3%")
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}
	if len(messages) == 0 {
		t.Fatal("mismatch must carry a message")
	}
}

func TestCreateLoginAndVerify(t *testing.T) {
	service, store, _, hasher := newCredentialFixture(t, security.TierStrong)
	store.principals["new@example.com"] = &domain.Principal{
		ID:       "principal-new",
		Identity: "new@example.com",
		Active:   true,
	}

	provisioned, err := service.CreateLogin(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("CreateLogin returned error: %v", err)
	}
	if len(provisioned.TempPassword) != 32 {
		t.Fatalf("expected 32-character temp password, got %d", len(provisioned.TempPassword))
	}
	if provisioned.VerificationToken == "" {
		t.Fatal("expected a verification token")
	}

	// The temp password is stored hashed and verifies.
	match, err := hasher.Verify(provisioned.TempPassword, store.hashes["new@example.com"])
	if err != nil || !match {
		t.Fatalf("temp password does not verify: match=%v err=%v", match, err)
	}

	verified, err := service.IsVerified(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("IsVerified: %v", err)
	}
	if verified {
		t.Fatal("new login must start unverified")
	}

	if err := service.Verify(context.Background(), "new@example.com", "wrong-token"); !errors.Is(err, ErrVerificationMismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}

	if err := service.Verify(context.Background(), "new@example.com", provisioned.VerificationToken); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	verified, err = service.IsVerified(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("IsVerified: %v", err)
	}
	if !verified {
		t.Fatal("expected verified state after consuming the token")
	}

	if err := service.Verify(context.Background(), "new@example.com", provisioned.VerificationToken); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected already verified error, got %v", err)
	}
}
