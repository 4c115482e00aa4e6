package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginSucceeded logs authn.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"identity": logger.MaskIdentity(event.Identity),
		"method":   event.Method,
	}
	p.logEvent("login.succeeded", event.PrincipalID, event.OccurredAt, payload)
	return nil
}

// PublishLoginFailed logs authn.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	payload := map[string]any{
		"identity": logger.MaskIdentity(event.Identity),
		"reason":   event.Reason,
	}
	p.logEvent("login.failed", event.PrincipalID, event.OccurredAt, payload)
	return nil
}

// PublishPasswordChanged logs authn.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"identity":   logger.MaskIdentity(event.Identity),
		"changed_by": event.ChangedBy,
	}
	p.logEvent("password.changed", event.PrincipalID, event.ChangedAt, payload)
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
