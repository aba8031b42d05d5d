package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

// PasswordHandler exposes the password lifecycle: forgot, reset, change, and
// account deletion.
type PasswordHandler struct {
	identity *usecase.IdentityService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(identity *usecase.IdentityService) *PasswordHandler {
	return &PasswordHandler{identity: identity}
}

// RegisterRoutes binds the password lifecycle routes. Extra guards run
// before the unauthenticated reset endpoints.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, requireUser gin.HandlerFunc, resetGuards ...gin.HandlerFunc) {
	r.POST("/forgotPassword", append(append([]gin.HandlerFunc{}, resetGuards...), h.forgotPassword)...)
	r.POST("/resetPassword", append(append([]gin.HandlerFunc{}, resetGuards...), h.resetPassword)...)
	r.POST("/changePassword", requireUser, h.changePassword)
	r.POST("/requestAccountDeletion", requireUser, h.requestAccountDeletion)
	r.POST("/confirmAccountDeletion", requireUser, h.confirmAccountDeletion)
}

// forgotPassword always answers OK so responses cannot be used to probe for
// accounts.
func (h *PasswordHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.identity.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (h *PasswordHandler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	// A failed redemption is reported as success=false, not an error status;
	// the caller learns nothing about why the token did not match.
	ok, err := h.identity.ResetPassword(c.Request.Context(), req.UserID, req.Token, req.Password)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func (h *PasswordHandler) changePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	user := middleware.CurrentUser(c)
	session := middleware.CurrentSession(c)

	err := h.identity.ChangePassword(c.Request.Context(), user.ID, session.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (h *PasswordHandler) requestAccountDeletion(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.identity.RequestAccountDeletion(c.Request.Context(), user.ID); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Confirmation email sent"})
}

func (h *PasswordHandler) confirmAccountDeletion(c *gin.Context) {
	var req ConfirmAccountDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.identity.ConfirmAccountDeletion(c.Request.Context(), user.ID, req.Token); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Account deleted"})
}
