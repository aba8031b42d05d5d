package port

import (
	"context"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// UnregisteredResetRepository tracks forgot-password attempts against
// addresses with no account. Rows are never pruned automatically.
type UnregisteredResetRepository interface {
	Get(ctx context.Context, email string) (*domain.UnregisteredPasswordReset, error)
	Upsert(ctx context.Context, record domain.UnregisteredPasswordReset) error
}
