package middleware

import (
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext assigns a request id (reusing a caller-supplied
// X-Request-ID) and records client metadata and a per-request timeout.
func RequestContext(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(constants.HeaderXRequestID, requestID)

		ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
		ctx = ctxutil.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		ctx = ctxutil.WithStartTime(ctx, time.Now())

		if timeout > 0 {
			var cancel func()
			ctx, cancel = ctxutil.WithTimeout(ctx, timeout)
			defer cancel()
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
