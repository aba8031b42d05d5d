package port

import (
	"context"
	"time"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// SessionLedger is the durable system-of-record for issued sessions. Deletes
// return the affected ids so the corresponding cache entries can be evicted.
type SessionLedger interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) ([]string, error)
	DeleteAllExcept(ctx context.Context, userID, keepID string) ([]string, error)
}

// SessionCache is the hot-path validation store with per-key expiry.
type SessionCache interface {
	Put(ctx context.Context, entry domain.CachedSession, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.CachedSession, error)
	Delete(ctx context.Context, id string) error
}
