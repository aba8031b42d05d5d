package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type memoryRateLimitStore struct {
	attempts map[string][]time.Time
	fail     bool
}

func newMemoryRateLimitStore() *memoryRateLimitStore {
	return &memoryRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *memoryRateLimitStore) TrimWindow(ctx context.Context, key string, window time.Duration, reference time.Time) error {
	if s.fail {
		return errors.New("store down")
	}
	threshold := reference.Add(-window)
	var kept []time.Time
	for _, at := range s.attempts[key] {
		if at.After(threshold) {
			kept = append(kept, at)
		}
	}
	s.attempts[key] = kept
	return nil
}

func (s *memoryRateLimitStore) CountAttempts(ctx context.Context, key string, window time.Duration, reference time.Time) (int, error) {
	if s.fail {
		return 0, errors.New("store down")
	}
	count := 0
	for _, at := range s.attempts[key] {
		if !at.Before(reference.Add(-window)) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (s *memoryRateLimitStore) RecordAttempt(ctx context.Context, key string, at time.Time) error {
	if s.fail {
		return errors.New("store down")
	}
	s.attempts[key] = append(s.attempts[key], at)
	return nil
}

func (s *memoryRateLimitStore) OldestAttempt(ctx context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if s.fail {
		return time.Time{}, false, errors.New("store down")
	}
	var inWindow []time.Time
	for _, at := range s.attempts[key] {
		if !at.Before(reference.Add(-window)) && !at.After(reference) {
			inWindow = append(inWindow, at)
		}
	}
	if len(inWindow) == 0 {
		return time.Time{}, false, nil
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Before(inWindow[j]) })
	return inWindow[0], true, nil
}

func newRateLimitedRouter(limiter *RateLimiter, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", limiter.Limit(rule), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doLogin(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	store := newMemoryRateLimitStore()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(store, nil).WithClock(func() time.Time { return now })
	r := newRateLimitedRouter(limiter, RateLimitRule{Name: "login", Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if rec := doLogin(r, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, rec.Code)
		}
		now = now.Add(time.Second)
	}

	rec := doLogin(r, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected a Retry-After header")
	}

	// Another client is unaffected.
	if rec := doLogin(r, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a different client, got %d", rec.Code)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	store := newMemoryRateLimitStore()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(store, nil).WithClock(func() time.Time { return now })
	r := newRateLimitedRouter(limiter, RateLimitRule{Name: "login", Limit: 2, Window: time.Minute})

	doLogin(r, "10.0.0.1")
	doLogin(r, "10.0.0.1")
	if rec := doLogin(r, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	now = now.Add(2 * time.Minute)
	if rec := doLogin(r, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after the window lapsed, got %d", rec.Code)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	store := newMemoryRateLimitStore()
	store.fail = true
	limiter := NewRateLimiter(store, nil)
	r := newRateLimitedRouter(limiter, RateLimitRule{Name: "login", Limit: 1, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if rec := doLogin(r, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("a failing store must not block traffic, got %d", rec.Code)
		}
	}
}

func TestRateLimiterDisabledRules(t *testing.T) {
	store := newMemoryRateLimitStore()
	limiter := NewRateLimiter(store, nil)
	r := newRateLimitedRouter(limiter, RateLimitRule{Name: "login", Limit: 0, Window: time.Minute})

	for i := 0; i < 5; i++ {
		if rec := doLogin(r, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("a zero limit disables the rule, got %d", rec.Code)
		}
	}
	if len(store.attempts) != 0 {
		t.Fatalf("a disabled rule must not record attempts")
	}
}
