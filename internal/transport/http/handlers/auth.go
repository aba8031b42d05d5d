package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/config"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

// AuthHandler exposes registration, login, logout, and the current-user
// endpoint.
type AuthHandler struct {
	identity     *usecase.IdentityService
	registration *usecase.RegistrationService
	sessions     *usecase.SessionService
	cookies      config.CookieSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(
	identity *usecase.IdentityService,
	registration *usecase.RegistrationService,
	sessions *usecase.SessionService,
	cookies config.CookieSettings,
) *AuthHandler {
	return &AuthHandler{
		identity:     identity,
		registration: registration,
		sessions:     sessions,
		cookies:      cookies,
	}
}

// RegisterRoutes binds the authentication routes. Extra guards run before
// the login handler only.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginGuards ...gin.HandlerFunc) {
	r.POST("/register", h.register)
	r.POST("/login", append(append([]gin.HandlerFunc{}, loginGuards...), h.login)...)
	r.POST("/logout", h.logout)
	r.GET("/me", h.me)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	user, err := h.registration.ReallyCreateUser(c.Request.Context(), domain.NewUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     domain.RoleUser,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	h.setSessionCookie(c, session.Token)

	c.JSON(http.StatusOK, NewUserResponse(user))
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	outcome, err := h.identity.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	switch outcome.Status {
	case usecase.LoginSuccess:
		session, err := h.sessions.Create(c.Request.Context(), outcome.User.ID)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		h.setSessionCookie(c, session.Token)
		c.JSON(http.StatusOK, NewUserResponse(outcome.User))
	case usecase.LoginLocked:
		RespondWithError(c, domain.NewError(domain.CodeLocked,
			"Too many login attempts. Please try again in a few minutes"))
	default:
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Incorrect username or password"))
	}
}

func (h *AuthHandler) logout(c *gin.Context) {
	if session := middleware.CurrentSession(c); session != nil {
		if err := h.identity.Logout(c.Request.Context(), session.ID); err != nil {
			RespondWithError(c, err)
			return
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// me returns the authenticated user, or null for anonymous callers so the
// frontend can probe login state without error handling.
func (h *AuthHandler) me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": NewUserResponse(user)})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.Name, token, int(domain.SessionTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.Name, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}
