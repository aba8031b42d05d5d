package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/config"
)

const schemaVersion = "1.0"

// NotificationPublisher implements port.NotificationPublisher on Kafka. Each
// event goes to its own topic under the configured prefix; the mailer worker
// consumes them downstream.
type NotificationPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewNotificationPublisher constructs a Kafka-backed notification publisher.
func NewNotificationPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *NotificationPublisher {
	return &NotificationPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *NotificationPublisher) publish(ctx context.Context, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
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

// PublishPasswordReset publishes auth.password.reset_requested events.
func (p *NotificationPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		Email       string    `json:"email"`
		Token       string    `json:"token"`
		ExpiresAt   time.Time `json:"expires_at"`
		RequestedAt time.Time `json:"requested_at"`
	}{
		UserID:      event.UserID,
		Email:       event.Email,
		Token:       event.Token,
		ExpiresAt:   event.ExpiresAt.UTC(),
		RequestedAt: event.RequestedAt.UTC(),
	}
	return p.publish(ctx, "auth.password.reset_requested", event.UserID, event.RequestedAt, payload)
}

// PublishEmailVerification publishes auth.email.verification_requested events.
func (p *NotificationPublisher) PublishEmailVerification(ctx context.Context, event domain.EmailVerificationEvent) error {
	payload := struct {
		UserID  string    `json:"user_id"`
		EmailID string    `json:"email_id"`
		Email   string    `json:"email"`
		Token   string    `json:"token"`
		SentAt  time.Time `json:"sent_at"`
	}{
		UserID:  event.UserID,
		EmailID: event.EmailID,
		Email:   event.Email,
		Token:   event.Token,
		SentAt:  event.SentAt.UTC(),
	}
	return p.publish(ctx, "auth.email.verification_requested", event.UserID, event.SentAt, payload)
}

// PublishAccountDeletion publishes auth.account.deletion_requested events.
func (p *NotificationPublisher) PublishAccountDeletion(ctx context.Context, event domain.AccountDeletionRequestedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		Email       string    `json:"email"`
		Token       string    `json:"token"`
		ExpiresAt   time.Time `json:"expires_at"`
		RequestedAt time.Time `json:"requested_at"`
	}{
		UserID:      event.UserID,
		Email:       event.Email,
		Token:       event.Token,
		ExpiresAt:   event.ExpiresAt.UTC(),
		RequestedAt: event.RequestedAt.UTC(),
	}
	return p.publish(ctx, "auth.account.deletion_requested", event.UserID, event.RequestedAt, payload)
}

// PublishUnknownAddressReset publishes auth.password.reset_unknown events.
func (p *NotificationPublisher) PublishUnknownAddressReset(ctx context.Context, event domain.UnknownAddressResetEvent) error {
	payload := struct {
		Email        string    `json:"email"`
		AttemptCount int       `json:"attempt_count"`
		AttemptedAt  time.Time `json:"attempted_at"`
	}{
		Email:        event.Email,
		AttemptCount: event.AttemptCount,
		AttemptedAt:  event.AttemptedAt.UTC(),
	}
	return p.publish(ctx, "auth.password.reset_unknown", "", event.AttemptedAt, payload)
}

// PublishProviderLinked publishes auth.provider.linked events.
func (p *NotificationPublisher) PublishProviderLinked(ctx context.Context, event domain.ProviderLinkedEvent) error {
	payload := struct {
		UserID   string    `json:"user_id"`
		Service  string    `json:"service"`
		LinkedAt time.Time `json:"linked_at"`
	}{
		UserID:   event.UserID,
		Service:  event.Service,
		LinkedAt: event.LinkedAt.UTC(),
	}
	return p.publish(ctx, "auth.provider.linked", event.UserID, event.LinkedAt, payload)
}

// PublishPasswordChanged publishes auth.password.changed events.
func (p *NotificationPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID          string    `json:"user_id"`
		ChangedAt       time.Time `json:"changed_at"`
		Reason          string    `json:"reason"`
		SessionsRevoked int       `json:"sessions_revoked"`
	}{
		UserID:          event.UserID,
		ChangedAt:       event.ChangedAt.UTC(),
		Reason:          event.Reason,
		SessionsRevoked: event.SessionsRevoked,
	}
	return p.publish(ctx, "auth.password.changed", event.UserID, event.ChangedAt, payload)
}
