package port

import (
	"context"
	"time"

	"github.com/arklim/platform-authn/internal/core/domain"
)

// ApiKeyStore resolves bearer keys to principals. Keys are persisted only as
// SHA-256 hashes; the raw key never reaches the store.
type ApiKeyStore interface {
	// LookupPrincipal resolves a key hash to its principal.
	LookupPrincipal(ctx context.Context, keyHash string) (*domain.Principal, error)

	// TouchLastUsed records the most recent use of a key. Callers throttle
	// invocations; the store performs one write per call.
	TouchLastUsed(ctx context.Context, keyHash string, at time.Time) error
}
