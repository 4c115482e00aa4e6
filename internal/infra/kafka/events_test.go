package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 8),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, asyncProducer *fakeAsyncProducer) *AuditPublisher {
	t.Helper()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "authn",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	return NewAuditPublisher(producer, config.AppSettings{
		Name: "authn-service",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func TestPublishLoginSucceeded(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	occurredAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	event := domain.LoginSucceededEvent{
		EventID:     "event-123",
		PrincipalID: "principal-456",
		Identity:    "alice@example.com",
		Method:      "password",
		OccurredAt:  occurredAt,
	}

	if err := publisher.PublishLoginSucceeded(context.Background(), event); err != nil {
		t.Fatalf("PublishLoginSucceeded returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "authn.login.succeeded" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_type"]; got != "login.succeeded" {
			t.Fatalf("unexpected event_type: %v", got)
		}
		if got := envelope["event_id"]; got != event.EventID {
			t.Fatalf("unexpected event_id: %v", got)
		}
		if got := envelope["principal_id"]; got != event.PrincipalID {
			t.Fatalf("unexpected principal_id: %v", got)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}
		if got := payload["identity"]; got != event.Identity {
			t.Fatalf("unexpected identity: %v", got)
		}
		if got := payload["method"]; got != "password" {
			t.Fatalf("unexpected method: %v", got)
		}
	default:
		t.Fatal("expected a message on the producer input channel")
	}
}

func TestPublishLoginFailedDeduplicates(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	event := domain.LoginFailedEvent{
		Identity:   "alice@example.com",
		Reason:     domain.FailureBadPassword,
		OccurredAt: time.Now(),
	}

	for i := 0; i < 5; i++ {
		if err := publisher.PublishLoginFailed(context.Background(), event); err != nil {
			t.Fatalf("PublishLoginFailed returned error: %v", err)
		}
	}

	if got := len(asyncProducer.input); got != 1 {
		t.Fatalf("expected a single deduplicated message, got %d", got)
	}

	// A different reason for the same identity is not suppressed.
	event.Reason = domain.FailureExpired
	if err := publisher.PublishLoginFailed(context.Background(), event); err != nil {
		t.Fatalf("PublishLoginFailed returned error: %v", err)
	}
	if got := len(asyncProducer.input); got != 2 {
		t.Fatalf("expected a second message for a new reason, got %d", got)
	}
}
