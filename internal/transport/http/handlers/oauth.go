package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/config"
	"github.com/DanielFGray/postgres.garden-sub001/internal/oauth"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
)

// bridgeTemplate is the tiny page served after a completed OAuth callback.
// The cookie is already set; the page just moves the browser back into the
// application.
var bridgeTemplate = template.Must(template.New("oauth_bridge").Parse(`<!DOCTYPE html>
<html>
<head><meta http-equiv="refresh" content="0;url={{.RedirectTo}}"></head>
<body>
<p>Signing you in&hellip; <a href="{{.RedirectTo}}">Continue</a></p>
</body>
</html>
`))

// OAuthHandler exposes the provider redirect and callback endpoints.
type OAuthHandler struct {
	service *oauth.Service
	cookies config.CookieSettings
}

// NewOAuthHandler constructs OAuthHandler.
func NewOAuthHandler(service *oauth.Service, cookies config.CookieSettings) *OAuthHandler {
	return &OAuthHandler{service: service, cookies: cookies}
}

// RegisterRoutes binds the OAuth routes.
func (h *OAuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:provider", h.begin)
	r.GET("/:provider/callback", h.callback)
}

func (h *OAuthHandler) begin(c *gin.Context) {
	target, err := h.service.Begin(c.Param("provider"), c.Query("redirectTo"))
	if err != nil {
		if errors.Is(err, oauth.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "Unknown login provider"))
			return
		}
		RespondWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *OAuthHandler) callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Missing code or state parameter"))
		return
	}

	result, err := h.service.Callback(c.Request.Context(), c.Param("provider"), code, state, middleware.CurrentSession(c))
	if err != nil {
		h.callbackError(c, err)
		return
	}

	if result.Session != nil {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookies.Name, result.Session.Token, int(domain.SessionTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = bridgeTemplate.Execute(c.Writer, gin.H{"RedirectTo": result.RedirectTo})
}

func (h *OAuthHandler) callbackError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, oauth.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "Unknown login provider"))
	case errors.Is(err, oauth.ErrBadState):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid state parameter; please try logging in again"))
	case errors.Is(err, oauth.ErrBadCode):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Login expired; please try logging in again"))
	case errors.Is(err, oauth.ErrNoVerifiedEmail):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "No verified email could be read from the login provider"))
	default:
		RespondWithError(c, err)
	}
}
