package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

const (
	defaultSessionPrefix = "session"

	fieldSecretHash = "secret_hash"
	fieldUserID     = "user_id"
	fieldUsername   = "username"
	fieldRole       = "role"
	fieldVerified   = "verified"
)

// SessionCache implements port.SessionCache on Redis hashes. Each session is
// one hash under <prefix>:<id> whose TTL enforces expiry, so the validation
// path never consults the ledger.
type SessionCache struct {
	client *red.Client
	prefix string
}

// NewSessionCache constructs a session cache with the provided Redis client
// and key prefix.
func NewSessionCache(client *red.Client, keyPrefix string) *SessionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionCache{client: client, prefix: prefix}
}

// Put stores the session entry with the supplied TTL.
func (c *SessionCache) Put(ctx context.Context, entry domain.CachedSession, ttl time.Duration) error {
	if entry.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	key := c.key(entry.ID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldSecretHash: entry.SecretHash,
		fieldUserID:     entry.UserID,
		fieldUsername:   entry.Username,
		fieldRole:       string(entry.Role),
		fieldVerified:   strconv.FormatBool(entry.Verified),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store session: %w", err)
	}
	return nil
}

// Get retrieves a session entry. An expired key reads as absent.
func (c *SessionCache) Get(ctx context.Context, id string) (*domain.CachedSession, error) {
	values, err := c.client.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch session: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	verified, _ := strconv.ParseBool(values[fieldVerified])
	return &domain.CachedSession{
		ID:         id,
		SecretHash: values[fieldSecretHash],
		UserID:     values[fieldUserID],
		Username:   values[fieldUsername],
		Role:       domain.Role(values[fieldRole]),
		Verified:   verified,
	}, nil
}

// Delete evicts a session entry. Deleting an absent key is not an error.
func (c *SessionCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (c *SessionCache) key(id string) string {
	return c.prefix + ":" + id
}
