package port

import (
	"context"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// AuthenticationRepository persists linked OAuth provider identities.
type AuthenticationRepository interface {
	GetByServiceIdentifier(ctx context.Context, service, identifier string) (*domain.UserAuthentication, error)
	Create(ctx context.Context, auth domain.UserAuthentication, secret domain.UserAuthenticationSecret) error
	UpdateDetails(ctx context.Context, id string, details, secretDetails map[string]any) error
	ListByUser(ctx context.Context, userID string) ([]domain.UserAuthentication, error)
}
