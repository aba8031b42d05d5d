package port

import (
	"context"
	"time"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// CredentialRepository owns the per-user secret rows. Only the identity
// service may call it; no transport path reaches these rows directly.
type CredentialRepository interface {
	Create(ctx context.Context, secret domain.UserSecret) error
	Get(ctx context.Context, userID string) (*domain.UserSecret, error)
	// GetForUpdate acquires the row lock that serializes concurrent attempts
	// against the same account.
	GetForUpdate(ctx context.Context, userID string) (*domain.UserSecret, error)
	RecordLoginFailure(ctx context.Context, userID string, count int, firstFailedAt time.Time) error
	RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error
	// SetPassword stores a new hash and clears reset and lockout state.
	SetPassword(ctx context.Context, userID string, hash string, at time.Time) error
	SetResetToken(ctx context.Context, userID string, token string, at time.Time) error
	RecordResetFailure(ctx context.Context, userID string, count int) error
	SetDeleteToken(ctx context.Context, userID string, token string, at time.Time) error
}
