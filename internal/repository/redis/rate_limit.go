package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	red "github.com/redis/go-redis/v9"
)

// RateLimitStore records attempt timestamps in sorted sets, one set per
// rule+client key, scored by nanosecond timestamp.
type RateLimitStore struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewRateLimitStore constructs a store. The TTL caps how long an idle key
// lives beyond its window.
func NewRateLimitStore(client *red.Client, keyPrefix string, ttl time.Duration) *RateLimitStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RateLimitStore{client: client, prefix: keyPrefix, ttl: ttl}
}

// RecordAttempt adds the timestamp to the window and refreshes the key TTL.
func (s *RateLimitStore) RecordAttempt(ctx context.Context, key string, at time.Time) error {
	k := s.key(key)
	member := red.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	if err := s.client.ZAdd(ctx, k, member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, k, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}
	return nil
}

// CountAttempts returns the attempts inside the window ending at reference.
func (s *RateLimitStore) CountAttempts(ctx context.Context, key string, window time.Duration, reference time.Time) (int, error) {
	min := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	max := strconv.FormatInt(reference.UnixNano(), 10)

	count, err := s.client.ZCount(ctx, s.key(key), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}
	return int(count), nil
}

// TrimWindow drops attempts older than the window.
func (s *RateLimitStore) TrimWindow(ctx context.Context, key string, window time.Duration, reference time.Time) error {
	threshold := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.key(key), "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}
	return nil
}

// OldestAttempt returns the earliest attempt still inside the window.
func (s *RateLimitStore) OldestAttempt(ctx context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	values, err := s.client.ZRangeByScore(ctx, s.key(key), &red.ZRangeBy{
		Min:   strconv.FormatInt(reference.Add(-window).UnixNano(), 10),
		Max:   strconv.FormatInt(reference.UnixNano(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	ts, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}
	return time.Unix(0, ts), true, nil
}

func (s *RateLimitStore) key(key string) string {
	return s.prefix + ":" + key
}
