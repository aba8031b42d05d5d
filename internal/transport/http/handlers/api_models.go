package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SuccessResponse reports whether an operation took effect. Flows that must
// not reveal why they failed answer 200 with success=false instead of an
// error status.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Role      string    `json:"role"`
	Verified  bool      `json:"is_verified"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps a domain user to its API view.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Bio:       user.Bio,
		Role:      string(user.Role),
		Verified:  user.Verified,
		CreatedAt: user.CreatedAt,
	}
}

// EmailResponse is the owner's view of one of their addresses.
type EmailResponse struct {
	ID        string    `json:"id"`
	Address   string    `json:"email"`
	Verified  bool      `json:"is_verified"`
	Primary   bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEmailResponse maps a domain email to its API view.
func NewEmailResponse(email domain.UserEmail) EmailResponse {
	return EmailResponse{
		ID:        email.ID,
		Address:   email.Address,
		Verified:  email.Verified,
		Primary:   email.Primary,
		CreatedAt: email.CreatedAt,
	}
}

// RegisterRequest defines the payload for account registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// LoginRequest defines the payload for the login endpoint. The identifier is
// a username or an email address.
type LoginRequest struct {
	Identifier string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// ForgotPasswordRequest asks for a reset token to be mailed.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest redeems a mailed reset token.
type ResetPasswordRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest rotates the password of a logged-in user.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// VerifyEmailRequest redeems a mailed verification token.
type VerifyEmailRequest struct {
	EmailID string `json:"email_id" binding:"required"`
	Token   string `json:"token" binding:"required"`
}

// AddEmailRequest attaches a new address to the caller's account.
type AddEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// EmailIDRequest names one of the caller's addresses.
type EmailIDRequest struct {
	EmailID string `json:"email_id" binding:"required"`
}

// ConfirmAccountDeletionRequest redeems a mailed deletion token.
type ConfirmAccountDeletionRequest struct {
	Token string `json:"token" binding:"required"`
}
