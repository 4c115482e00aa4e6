package domain

import "time"

// LoginSucceededEvent is published after a principal authenticates.
type LoginSucceededEvent struct {
	EventID     string
	PrincipalID string
	Identity    string
	Method      string
	OccurredAt  time.Time
	IPAddress   *string
	Metadata    map[string]any
}

// LoginFailedEvent is published after a failed authentication attempt.
// Identity may belong to no account; PrincipalID is empty in that case.
type LoginFailedEvent struct {
	EventID     string
	PrincipalID string
	Identity    string
	Reason      FailureReason
	OccurredAt  time.Time
	IPAddress   *string
	Metadata    map[string]any
}

// PasswordChangedEvent is published after a credential update.
type PasswordChangedEvent struct {
	EventID     string
	PrincipalID string
	Identity    string
	ChangedAt   time.Time
	ChangedBy   string
	Metadata    map[string]any
}
