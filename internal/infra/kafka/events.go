package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/cache"
	"github.com/arklim/platform-authn/internal/infra/config"
)

const schemaVersion = "1.0"

// dedupWindow suppresses repeated identical audit events. A credential
// stuffing run against one account produces one failure event per window
// instead of thousands.
const dedupWindow = 10 * time.Minute

const dedupCapacity = 4096

// AuditPublisher implements port.AuditPublisher using Kafka.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	seen     *cache.TTL[struct{}]
}

// NewAuditPublisher constructs a Kafka-backed audit event publisher.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{
		producer: producer,
		appCfg:   appCfg,
		logger:   logger,
		seen:     cache.NewTTL[struct{}](dedupCapacity, dedupWindow),
	}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *AuditPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dedupKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// PublishLoginSucceeded publishes authn.login.succeeded events.
func (p *AuditPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id"`
		Identity    string         `json:"identity"`
		Method      string         `json:"method"`
		OccurredAt  time.Time      `json:"occurred_at"`
		IPAddress   *string        `json:"ip_address,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		Identity:    event.Identity,
		Method:      event.Method,
		OccurredAt:  event.OccurredAt.UTC(),
		IPAddress:   event.IPAddress,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "login.succeeded", event.PrincipalID, event.OccurredAt, payload)
}

// PublishLoginFailed publishes authn.login.failed events. Repeated failures
// for the same identity and reason inside the dedup window are suppressed.
func (p *AuditPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	if !p.seen.Once(dedupKey("login.failed", event.Identity, string(event.Reason)), struct{}{}) {
		return nil
	}

	payload := struct {
		PrincipalID string               `json:"principal_id,omitempty"`
		Identity    string               `json:"identity"`
		Reason      domain.FailureReason `json:"reason"`
		OccurredAt  time.Time            `json:"occurred_at"`
		IPAddress   *string              `json:"ip_address,omitempty"`
		Metadata    map[string]any       `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		Identity:    event.Identity,
		Reason:      event.Reason,
		OccurredAt:  event.OccurredAt.UTC(),
		IPAddress:   event.IPAddress,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "login.failed", event.PrincipalID, event.OccurredAt, payload)
}

// PublishPasswordChanged publishes authn.password.changed events.
func (p *AuditPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id"`
		Identity    string         `json:"identity"`
		ChangedAt   time.Time      `json:"changed_at"`
		ChangedBy   string         `json:"changed_by"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		Identity:    event.Identity,
		ChangedAt:   event.ChangedAt.UTC(),
		ChangedBy:   event.ChangedBy,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "password.changed", event.PrincipalID, event.ChangedAt, payload)
}

var _ port.AuditPublisher = (*AuditPublisher)(nil)
