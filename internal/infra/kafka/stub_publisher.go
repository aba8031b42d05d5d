package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// StubPublisher logs events instead of sending them to Kafka. Used when the
// broker is disabled, typically in development.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly notification publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	fields = append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)
	p.logger.Info("stub event published", fields...)
}

// PublishPasswordReset logs auth.password.reset_requested events.
func (p *StubPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent("auth.password.reset_requested", event.UserID, event.RequestedAt,
		zap.String("email", event.MaskedEmail))
	return nil
}

// PublishEmailVerification logs auth.email.verification_requested events.
func (p *StubPublisher) PublishEmailVerification(_ context.Context, event domain.EmailVerificationEvent) error {
	p.logEvent("auth.email.verification_requested", event.UserID, event.SentAt,
		zap.String("email", event.MaskedEmail),
		zap.String("email_id", event.EmailID))
	return nil
}

// PublishAccountDeletion logs auth.account.deletion_requested events.
func (p *StubPublisher) PublishAccountDeletion(_ context.Context, event domain.AccountDeletionRequestedEvent) error {
	p.logEvent("auth.account.deletion_requested", event.UserID, event.RequestedAt,
		zap.String("email", event.MaskedEmail))
	return nil
}

// PublishUnknownAddressReset logs auth.password.reset_unknown events.
func (p *StubPublisher) PublishUnknownAddressReset(_ context.Context, event domain.UnknownAddressResetEvent) error {
	p.logEvent("auth.password.reset_unknown", "", event.AttemptedAt,
		zap.String("email", event.MaskedEmail),
		zap.Int("attempt_count", event.AttemptCount))
	return nil
}

// PublishProviderLinked logs auth.provider.linked events.
func (p *StubPublisher) PublishProviderLinked(_ context.Context, event domain.ProviderLinkedEvent) error {
	p.logEvent("auth.provider.linked", event.UserID, event.LinkedAt,
		zap.String("service", event.Service))
	return nil
}

// PublishPasswordChanged logs auth.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent("auth.password.changed", event.UserID, event.ChangedAt,
		zap.String("reason", event.Reason),
		zap.Int("sessions_revoked", event.SessionsRevoked))
	return nil
}
