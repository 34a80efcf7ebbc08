package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/middleware"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/Payphone-Digital/portfolio-service/pkg/validation"
	"github.com/gin-gonic/gin"
)

// writeError renders err as {message, code, details}. Server-side failures
// are logged at error level, client mistakes at warn.
func writeError(c *gin.Context, ctx context.Context, action string, err error) {
	status := apperrors.ToHTTPStatus(err)

	entry := logger.WarnWithContext
	if status >= http.StatusInternalServerError {
		entry = logger.ErrorWithContext
	}
	entry(ctx, action+" failed").
		Int("http_status", status).
		String("code", apperrors.GetErrorCode(err)).
		Err(err).
		Log()

	var details any
	if fields := apperrors.GetFieldErrors(err); len(fields) > 0 {
		details = fields
	}
	c.JSON(status, constants.BuildErrorResponse(apperrors.GetErrorMessage(err), apperrors.GetErrorCode(err), details))
}

// bindJSON decodes the body into req and reports binding failures as
// ValidationFailed.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return validation.FromError(err)
	}
	return nil
}

// caller returns the identity set by the auth middleware. Routes using it are
// always behind RequireAuth, so a missing identity is an Unauthorized error.
func caller(c *gin.Context) (string, error) {
	identity := middleware.Identity(c)
	if identity == "" {
		return "", apperrors.ErrUnauthorized
	}
	return identity, nil
}
