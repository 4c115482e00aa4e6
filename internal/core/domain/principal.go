package domain

import "time"

// Principal is a resolved account snapshot, loaded once per authentication
// attempt and never mutated by the authentication core.
type Principal struct {
	ID          string
	Identity    string
	DisplayName string
	FirstName   string
	LastName    string
	Active      bool
	SiteAdmin   bool
}

// StoredCredential mirrors the persisted login row for a principal.
type StoredCredential struct {
	PrincipalID string
	Hash        string
	LastChanged time.Time
}

// PasswordHistoryEntry tracks a prior password hash for reuse prevention.
// History is append-and-truncate: the oldest entries are evicted once the
// configured bound is exceeded.
type PasswordHistoryEntry struct {
	ID          string
	PrincipalID string
	Hash        string
	SetAt       time.Time
}

// VerificationState captures the pending verification token for an identity.
// A nil token means the identity has completed verification.
type VerificationState struct {
	Token    *string
	Verified bool
}

// ApiKey maps an opaque bearer key (stored as a SHA-256 hash) to a principal.
// LastUsed is maintained out of band by the throttled updater.
type ApiKey struct {
	KeyHash     string
	PrincipalID string
	CreatedAt   time.Time
	LastUsed    *time.Time
}
