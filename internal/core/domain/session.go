package domain

import "time"

// SessionTTL is the lifetime of both the cache entry and the cookie.
const SessionTTL = 30 * 24 * time.Hour

// Session is the durable ledger record for an issued session. It exists for
// administrative revocation and audit; the hot validation path never reads it.
type Session struct {
	ID         string
	UserID     string
	Data       map[string]any
	SecretHash *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the ledger row is past its expiry at the supplied moment.
func (s Session) Expired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// CachedSession is the hot-path validation record. Absence from the cache
// means the session is invalid regardless of ledger state.
type CachedSession struct {
	ID         string
	SecretHash string
	UserID     string
	Username   string
	Role       Role
	Verified   bool
}

// IssuedSession is returned to callers when a session is minted. Token is the
// opaque bearer value "<id>.<secret>"; the raw secret is never stored.
type IssuedSession struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}
