package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/provider/auth"
	"github.com/Payphone-Digital/portfolio-service/pkg/cache"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVerifier struct {
	calls atomic.Int32
}

func (v *countingVerifier) Verify(_ context.Context, token string) (string, time.Time, error) {
	v.calls.Add(1)
	if token != "good" {
		return "", time.Time{}, errors.New("signature mismatch")
	}
	return "alice", time.Now().Add(time.Hour), nil
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", handlers...)
	return r
}

func get(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestRequireAuth(t *testing.T) {
	verifier := &countingVerifier{}
	tokens := cache.New[string](0)
	defer tokens.Stop()
	auth := NewAuthenticator(verifier, tokens, time.Minute)

	var seen, fromCtx string
	r := newEngine(auth.RequireAuth(), func(c *gin.Context) {
		seen = Identity(c)
		fromCtx = ctxutil.GetIdentity(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		w := get(r, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("bad token", func(t *testing.T) {
		w := get(r, map[string]string{"Authorization": "Bearer forged"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("good token is cached", func(t *testing.T) {
		before := verifier.calls.Load()
		for i := 0; i < 3; i++ {
			w := get(r, map[string]string{"Authorization": "Bearer good"})
			require.Equal(t, http.StatusNoContent, w.Code)
		}
		assert.Equal(t, "alice", seen)
		assert.Equal(t, "alice", fromCtx)
		assert.Equal(t, before+1, verifier.calls.Load())
	})
}

func TestRequireAuthRejectsTokenExpiredWhileCached(t *testing.T) {
	verifier, err := auth.NewVerifier(config.AuthConfig{JWTSecret: "cache-window-secret"})
	require.NoError(t, err)
	tokens := cache.New[string](0)
	defer tokens.Stop()
	r := newEngine(NewAuthenticator(verifier, tokens, time.Minute).RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Second)),
	}).SignedString([]byte("cache-window-secret"))
	require.NoError(t, err)
	header := map[string]string{"Authorization": "Bearer " + token}

	require.Equal(t, http.StatusNoContent, get(r, header).Code)

	time.Sleep(2100 * time.Millisecond)
	assert.Equal(t, http.StatusUnauthorized, get(r, header).Code)
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      time.Duration
	}{
		{"no expiry", time.Time{}, time.Minute},
		{"expires after ttl", now.Add(time.Hour), time.Minute},
		{"expires inside ttl", now.Add(10 * time.Second), 10 * time.Second},
		{"already expired", now.Add(-time.Second), -time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cacheTTL(time.Minute, tt.expiresAt, now))
		})
	}
}

func TestRequireAuthWithoutCache(t *testing.T) {
	verifier := &countingVerifier{}
	r := newEngine(NewAuthenticator(verifier, nil, 0).RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusNoContent, get(r, map[string]string{"Authorization": "Bearer good"}).Code)
	}
	assert.EqualValues(t, 2, verifier.calls.Load())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("test", 2, time.Hour)
	defer rl.Stop()
	r := newEngine(rl.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		w := get(r, nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := get(r, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1800", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter("test", 1, time.Hour)
	defer rl.Stop()
	r := gin.New()
	r.GET("/", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, from("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1:5001"))
	assert.Equal(t, http.StatusNoContent, from("10.0.0.2:5000"))
}

func TestRequestContext(t *testing.T) {
	var requestID string
	var hasDeadline bool
	r := newEngine(RequestContext(time.Second), func(c *gin.Context) {
		requestID = ctxutil.GetRequestID(c.Request.Context())
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})

	w := get(r, nil)
	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get("X-Request-ID"))
	assert.True(t, hasDeadline)

	w = get(r, map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", requestID)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery(), func(*gin.Context) { panic("boom") })

	w := get(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
