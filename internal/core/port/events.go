package port

import (
	"context"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// NotificationPublisher hands audit and mail events to the outbound job
// queue. Publishing is fire-and-forget; failures are logged, never surfaced
// to the request that triggered them.
type NotificationPublisher interface {
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishEmailVerification(ctx context.Context, event domain.EmailVerificationEvent) error
	PublishAccountDeletion(ctx context.Context, event domain.AccountDeletionRequestedEvent) error
	PublishUnknownAddressReset(ctx context.Context, event domain.UnknownAddressResetEvent) error
	PublishProviderLinked(ctx context.Context, event domain.ProviderLinkedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
