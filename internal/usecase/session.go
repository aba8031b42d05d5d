package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/core/port"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/security"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

const sessionTokenBytes = 32

// SessionService issues, validates, and revokes sessions. It is the only
// component that mints tokens or mutates the cache and ledger together.
type SessionService struct {
	users  port.UserRepository
	ledger port.SessionLedger
	cache  port.SessionCache
	logger *zap.Logger
	now    func() time.Time
	ttl    time.Duration
}

// NewSessionService constructs a SessionService.
func NewSessionService(users port.UserRepository, ledger port.SessionLedger, cache port.SessionCache, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		users:  users,
		ledger: ledger,
		cache:  cache,
		logger: logger,
		now:    time.Now,
		ttl:    domain.SessionTTL,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTTL overrides the session lifetime, used in tests.
func (s *SessionService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Create mints a session for the user: a client-visible id and an independent
// secret, with only sha256(secret) stored. The returned bearer token is
// "<id>.<secret>". A missing user is a caller bug, not a policy outcome.
func (s *SessionService) Create(ctx context.Context, userID string) (*domain.IssuedSession, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("create session: user %s does not exist", userID)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	id, err := security.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	secret, err := security.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	secretHash := security.HashToken(secret)

	entry := domain.CachedSession{
		ID:         id,
		SecretHash: secretHash,
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		Verified:   user.Verified,
	}
	if err := s.cache.Put(ctx, entry, s.ttl); err != nil {
		return nil, fmt.Errorf("store session cache entry: %w", err)
	}

	ledgerRow := domain.Session{
		ID:         id,
		UserID:     user.ID,
		SecretHash: &secretHash,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := s.ledger.Create(ctx, ledgerRow); err != nil {
		// Roll the cache entry back so a half-issued session cannot validate.
		if evictErr := s.cache.Delete(ctx, id); evictErr != nil {
			s.logger.Warn("failed to evict cache entry after ledger write failure",
				zap.String("session_id", id), zap.Error(evictErr))
		}
		return nil, fmt.Errorf("store session ledger row: %w", err)
	}

	return &domain.IssuedSession{
		ID:        id,
		Token:     id + "." + secret,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate resolves a bearer token to its user. Malformed input, a cache
// miss, or a secret mismatch all return the nil pair; the ledger is never
// consulted on this path.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.User, *domain.CachedSession, error) {
	id, secret, ok := splitSessionToken(token)
	if !ok {
		return nil, nil, nil
	}

	entry, err := s.cache.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("fetch session cache entry: %w", err)
	}

	computed := security.HashToken(secret)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(entry.SecretHash)) != 1 {
		return nil, nil, nil
	}

	user := &domain.User{
		ID:       entry.UserID,
		Username: entry.Username,
		Role:     entry.Role,
		Verified: entry.Verified,
	}
	return user, entry, nil
}

// Delete revokes a session by id. It tolerates the cache entry already being
// absent; the ledger row is removed only when the cache still linked to it.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}

	if _, err := s.cache.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetch session cache entry: %w", err)
	}

	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("evict session cache entry: %w", err)
	}

	if err := s.ledger.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete session ledger row: %w", err)
	}

	return nil
}

// RevokeAllForUser deletes every ledger row for the user and evicts the
// matching cache entries. Returns the number of sessions revoked.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.ledger.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.evictAll(ctx, ids)
	return len(ids), nil
}

// RevokeAllExcept revokes all the user's sessions but keeps the supplied one,
// used by password change so the caller stays logged in.
func (s *SessionService) RevokeAllExcept(ctx context.Context, userID, keepID string) (int, error) {
	ids, err := s.ledger.DeleteAllExcept(ctx, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.evictAll(ctx, ids)
	return len(ids), nil
}

func (s *SessionService) evictAll(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := s.cache.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to evict revoked session from cache",
				zap.String("session_id", id), zap.Error(err))
		}
	}
}

func splitSessionToken(token string) (id, secret string, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", false
	}
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
