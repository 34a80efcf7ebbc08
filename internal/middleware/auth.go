package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/pkg/cache"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token to the caller's identity and the
// token's expiry. A zero expiry means the token does not expire.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, time.Time, error)
}

// Authenticator guards routes with bearer tokens. Verified tokens are
// remembered for ttl, or until they expire if that is sooner, so repeated
// calls skip signature checks.
type Authenticator struct {
	verifier TokenVerifier
	tokens   *cache.Cache[string]
	ttl      time.Duration
}

func NewAuthenticator(verifier TokenVerifier, tokens *cache.Cache[string], ttl time.Duration) *Authenticator {
	return &Authenticator{verifier: verifier, tokens: tokens, ttl: ttl}
}

func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, ok := bearerToken(c.GetHeader(constants.HeaderAuthorization))
		if !ok {
			logger.WarnWithContext(ctx, "Missing or malformed Authorization header").
				String("path", c.Request.URL.Path).
				String("method", c.Request.Method).
				Log()
			abortUnauthorized(c)
			return
		}

		identity, err := a.verify(ctx, token)
		if err != nil {
			logger.WarnWithContext(ctx, "Invalid or expired token").
				String("path", c.Request.URL.Path).
				String("method", c.Request.Method).
				Err(err).
				Log()
			abortUnauthorized(c)
			return
		}

		c.Set(constants.GinKeyIdentity, identity)
		c.Request = c.Request.WithContext(ctxutil.WithIdentity(ctx, identity))

		logger.DebugWithContext(c.Request.Context(), "Caller authenticated").
			String("path", c.Request.URL.Path).
			Log()

		c.Next()
	}
}

func (a *Authenticator) verify(ctx context.Context, token string) (string, error) {
	if a.tokens == nil || a.ttl <= 0 {
		identity, _, err := a.verifier.Verify(ctx, token)
		return identity, err
	}

	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])
	if identity, ok := a.tokens.Get(key); ok {
		return identity, nil
	}

	identity, expiresAt, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	if ttl := cacheTTL(a.ttl, expiresAt, time.Now()); ttl > 0 {
		a.tokens.Set(key, identity, ttl)
	}
	return identity, nil
}

// cacheTTL caps ttl at the time the token has left.
func cacheTTL(ttl time.Duration, expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return ttl
	}
	if left := expiresAt.Sub(now); left < ttl {
		return left
	}
	return ttl
}

// Identity returns the caller set by RequireAuth, or "".
func Identity(c *gin.Context) string {
	return c.GetString(constants.GinKeyIdentity)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, constants.BuildErrorResponse(
		constants.MsgUnauthorized, apperrors.ErrUnauthorized.Code, nil))
}
