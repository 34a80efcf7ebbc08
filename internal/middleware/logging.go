package middleware

import (
	"net/http"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const slowRequest = 2 * time.Second

// RequestLogger logs each completed request at a level chosen by its
// outcome. Bodies are never logged since they may carry codes and passwords.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		ctx := c.Request.Context()
		fields := []zap.Field{
			zap.String("request_id", ctxutil.GetRequestID(ctx)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status_code", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.Int("response_size", c.Writer.Size()),
		}
		if identity := Identity(c); identity != "" {
			fields = append(fields, zap.String("identity", identity))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.GetLogger().Error("Server error", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.GetLogger().Warn("Client error", fields...)
		case latency > slowRequest:
			logger.GetLogger().Warn("Slow request", fields...)
		default:
			logger.GetLogger().Info("Request completed", fields...)
		}
	}
}

// Recovery turns a panic into a 500 with the standard error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.LogPanic(recovered)

		c.AbortWithStatusJSON(http.StatusInternalServerError, constants.BuildErrorResponse(
			constants.MsgInternalError, apperrors.ErrInternal.Code, nil))
	})
}
