package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

const (
	// UserKey is the gin context key holding the authenticated user.
	UserKey = "auth_user"
	// SessionKey is the gin context key holding the validated session entry.
	SessionKey = "auth_session"
)

// SessionAuth resolves the session cookie on every request. An absent,
// malformed, or revoked token leaves the request anonymous; only an
// infrastructure failure aborts.
func SessionAuth(cookieName string, sessions *usecase.SessionService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		user, entry, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			log.Error("session validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "internal server error"})
			return
		}
		if user != nil {
			c.Set(UserKey, user)
			c.Set(SessionKey, entry)
		}

		c.Next()
	}
}

// RequireUser aborts with 401 when the request carries no valid session.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "You must be logged in"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *domain.User {
	if value, exists := c.Get(UserKey); exists {
		if user, ok := value.(*domain.User); ok {
			return user
		}
	}
	return nil
}

// CurrentSession returns the validated session entry, or nil.
func CurrentSession(c *gin.Context) *domain.CachedSession {
	if value, exists := c.Get(SessionKey); exists {
		if entry, ok := value.(*domain.CachedSession); ok {
			return entry
		}
	}
	return nil
}
