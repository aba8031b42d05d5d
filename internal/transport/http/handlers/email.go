package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

// EmailHandler exposes email management: listing, adding, verifying,
// promoting to primary, and deleting addresses.
type EmailHandler struct {
	emails *usecase.EmailService
}

// NewEmailHandler constructs EmailHandler.
func NewEmailHandler(emails *usecase.EmailService) *EmailHandler {
	return &EmailHandler{emails: emails}
}

// RegisterRoutes binds the email routes. Verification is reachable without a
// session; the token in the mailed link is the credential.
func (h *EmailHandler) RegisterRoutes(r *gin.RouterGroup, requireUser gin.HandlerFunc) {
	r.POST("/verifyEmail", h.verifyEmail)
	r.GET("/emails", requireUser, h.listEmails)
	r.POST("/emails", requireUser, h.addEmail)
	r.POST("/makeEmailPrimary", requireUser, h.makeEmailPrimary)
	r.POST("/deleteEmail", requireUser, h.deleteEmail)
}

func (h *EmailHandler) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	// A token mismatch answers success=false rather than an error status, so
	// the endpoint cannot be used to probe token validity by status code.
	ok, err := h.emails.VerifyEmail(c.Request.Context(), req.EmailID, req.Token)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: ok})
}

func (h *EmailHandler) listEmails(c *gin.Context) {
	user := middleware.CurrentUser(c)
	emails, err := h.emails.ListEmails(c.Request.Context(), user.ID)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	out := make([]EmailResponse, 0, len(emails))
	for _, email := range emails {
		out = append(out, NewEmailResponse(email))
	}
	c.JSON(http.StatusOK, gin.H{"emails": out})
}

func (h *EmailHandler) addEmail(c *gin.Context) {
	var req AddEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	user := middleware.CurrentUser(c)
	email, err := h.emails.AddEmail(c.Request.Context(), user.ID, req.Email)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewEmailResponse(*email))
}

func (h *EmailHandler) makeEmailPrimary(c *gin.Context) {
	var req EmailIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.emails.MakeEmailPrimary(c.Request.Context(), user.ID, req.EmailID); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Primary email updated"})
}

func (h *EmailHandler) deleteEmail(c *gin.Context) {
	var req EmailIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.emails.DeleteEmail(c.Request.Context(), user.ID, req.EmailID); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Email deleted"})
}
