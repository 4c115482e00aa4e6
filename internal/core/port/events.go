package port

import (
	"context"

	"github.com/arklim/platform-authn/internal/core/domain"
)

// AuditPublisher publishes authentication audit events to the message bus.
type AuditPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
