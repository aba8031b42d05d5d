package oauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateLifetime = 15 * time.Minute

// ErrBadState means the state parameter failed verification: tampered,
// expired, or signed with a different secret.
var ErrBadState = errors.New("oauth: invalid state parameter")

type stateClaims struct {
	RedirectTo string `json:"redirect_to,omitempty"`
	jwt.RegisteredClaims
}

// StateCodec signs and verifies the OAuth state parameter as an HS256 JWT
// carrying the post-login redirect target.
type StateCodec struct {
	secret []byte
	now    func() time.Time
}

// NewStateCodec constructs a codec over the shared signing secret.
func NewStateCodec(secret string) *StateCodec {
	return &StateCodec{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (c *StateCodec) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// Encode signs a state token for the given redirect target. Only local paths
// survive; anything else collapses to the site root.
func (c *StateCodec) Encode(redirectTo string) (string, error) {
	now := c.now().UTC()
	claims := stateClaims{
		RedirectTo: sanitizeRedirect(redirectTo),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Decode verifies a state token and returns the redirect target.
func (c *StateCodec) Decode(state string) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil || !token.Valid {
		return "", ErrBadState
	}
	return sanitizeRedirect(claims.RedirectTo), nil
}

// sanitizeRedirect keeps redirects on-site. Absolute URLs and
// protocol-relative paths are rejected.
func sanitizeRedirect(redirectTo string) string {
	if redirectTo == "" || !strings.HasPrefix(redirectTo, "/") || strings.HasPrefix(redirectTo, "//") {
		return "/"
	}
	return redirectTo
}
