package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusDisabled  = "disabled"
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// statsReporter is implemented by pinged dependencies that expose pool counters.
type statsReporter interface {
	Stats() map[string]interface{}
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	database Pinger
	redis    Pinger
	breakers *circuit.Group
}

type HealthCheckResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
	Providers []circuit.Snapshot     `json:"providers,omitempty"`
}

type HealthCheck struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}

// NewHealthHandler reports on database and redis. A nil database means the
// in-memory stores are in use; a nil redis means redis is disabled.
func NewHealthHandler(database, redis Pinger, breakers *circuit.Group) *HealthHandler {
	return &HealthHandler{
		database: database,
		redis:    redis,
		breakers: breakers,
	}
}

// HealthCheck returns 503 only when the database is down. Redis and open
// provider circuits degrade the status without failing it.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthCheckResponse{
		Status:    statusHealthy,
		Version:   constants.AppVersion,
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck),
	}

	dbStatus := probe(ctx, h.database, "Database")
	if h.database == nil {
		dbStatus = HealthCheck{Status: statusHealthy, Message: "In-memory store"}
	}
	response.Checks["database"] = dbStatus
	if dbStatus.Status != statusHealthy {
		response.Status = statusUnhealthy
	}

	redisStatus := probe(ctx, h.redis, "Redis")
	response.Checks["redis"] = redisStatus
	if redisStatus.Status == statusUnhealthy && response.Status == statusHealthy {
		response.Status = statusDegraded
	}

	if h.breakers != nil {
		response.Providers = h.breakers.Snapshots()
		for _, snap := range response.Providers {
			if snap.State != circuit.StateClosed.String() && response.Status == statusHealthy {
				response.Status = statusDegraded
			}
		}
	}

	statusCode := http.StatusOK
	if response.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	logger.GetLogger().Debug("Health check performed",
		zap.String("overall_status", response.Status),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, response)
}

func probe(ctx context.Context, p Pinger, name string) HealthCheck {
	if p == nil {
		return HealthCheck{Status: statusDisabled, Message: name + " is disabled"}
	}
	if err := p.Ping(ctx); err != nil {
		logger.GetLogger().Warn(name+" ping failed", zap.Error(err))
		return HealthCheck{Status: statusUnhealthy, Message: name + " ping failed: " + err.Error()}
	}
	check := HealthCheck{Status: statusHealthy, Message: name + " connection is healthy"}
	if sr, ok := p.(statsReporter); ok {
		check.Stats = sr.Stats()
	}
	return check
}
