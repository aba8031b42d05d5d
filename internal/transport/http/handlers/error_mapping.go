package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

// RespondWithError translates an error into an HTTP response. Policy errors
// surface their message verbatim with a stable code; everything else is a
// generic failure so internals never leak.
func RespondWithError(c *gin.Context, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		status := http.StatusBadRequest
		switch domainErr.Code {
		case domain.CodeLoginRequired:
			status = http.StatusUnauthorized
		case domain.CodeTaken:
			status = http.StatusConflict
		}
		resp := NewErrorResponse(c, domainErr.Message)
		resp.Code = string(domainErr.Code)
		c.JSON(status, resp)
		return
	}

	if errors.Is(err, repository.ErrConflict) {
		c.JSON(http.StatusConflict, NewErrorResponse(c, "That resource already exists"))
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal server error"))
}
