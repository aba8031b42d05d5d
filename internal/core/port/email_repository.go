package port

import (
	"context"
	"time"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// EmailRepository persists user email addresses and their secret rows.
type EmailRepository interface {
	Create(ctx context.Context, email domain.UserEmail, verificationToken *string) error
	GetByID(ctx context.Context, id string) (*domain.UserEmail, error)
	// GetForUpdate locks the row, closing the race between two concurrent
	// deletions of a user's last two emails.
	GetForUpdate(ctx context.Context, id string) (*domain.UserEmail, error)
	// ResolveLogin picks the account for a login identifier: verified
	// addresses first, then earliest registered.
	ResolveLogin(ctx context.Context, address string) (*domain.UserEmail, error)
	// ResolveReset picks the address for a forgot-password request: verified
	// first, tie-broken by most recent.
	ResolveReset(ctx context.Context, address string) (*domain.UserEmail, error)
	FindVerified(ctx context.Context, address string) (*domain.UserEmail, error)
	VerifiedAddressExists(ctx context.Context, address string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.UserEmail, error)
	MarkVerified(ctx context.Context, id string) error
	// SetPrimary atomically clears any existing primary for the owner and
	// promotes the given address.
	SetPrimary(ctx context.Context, userID, emailID string) error
	Delete(ctx context.Context, id string) error
	// CountRemaining reflects post-statement in-table state for the
	// at-least-one-email guard.
	CountRemaining(ctx context.Context, userID string) (int, error)
	GetSecret(ctx context.Context, emailID string) (*domain.UserEmailSecret, error)
	TouchVerificationSent(ctx context.Context, emailID string, at time.Time) error
	TouchResetSent(ctx context.Context, emailID string, at time.Time) error
}
