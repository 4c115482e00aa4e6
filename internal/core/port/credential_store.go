package port

import (
	"context"
	"time"

	"github.com/arklim/platform-authn/internal/core/domain"
)

// CredentialStore exposes persistence behavior for principals and their
// stored credentials. Implementations may block on I/O; every operation
// takes a context. Store unavailability must surface as an error distinct
// from repository.ErrNotFound so the caller can report a configuration
// problem instead of a missing account.
type CredentialStore interface {
	// LookupPrincipal resolves the canonical identity to a principal snapshot.
	LookupPrincipal(ctx context.Context, identity string) (*domain.Principal, error)

	// LookupHash returns the current password hash for the identity.
	LookupHash(ctx context.Context, identity string) (string, error)

	// LastChanged returns the timestamp of the most recent password change.
	LastChanged(ctx context.Context, principalID string) (time.Time, error)

	// CreateLogin provisions a credential row with an initial hash and a
	// pending verification token.
	CreateLogin(ctx context.Context, identity, hash, verification string) error

	// SetPassword replaces the current hash, pushes the prior hash onto the
	// history, and truncates the history to the supplied bound.
	SetPassword(ctx context.Context, identity, hash string, changedAt time.Time, historyBound int) error

	// ListPasswordHistory returns the most recent prior hashes, newest first.
	ListPasswordHistory(ctx context.Context, principalID string, limit int) ([]domain.PasswordHistoryEntry, error)

	// VerificationState reports the pending verification token for the identity.
	VerificationState(ctx context.Context, identity string) (*domain.VerificationState, error)

	// SetVerification stores a pending verification token, or clears it when nil.
	SetVerification(ctx context.Context, identity string, token *string) error
}
