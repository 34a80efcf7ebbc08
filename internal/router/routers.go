package router

import (
	"time"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/handler"
	"github.com/Payphone-Digital/portfolio-service/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health    *handler.HealthHandler
	Check     *handler.CheckHandler
	OTP       *handler.OTPHandler
	Profile   *handler.ProfileHandler
	Portfolio *handler.PortfolioHandler
	Post      *handler.PostHandler
}

type Router struct {
	handlers Handlers
	auth     *middleware.Authenticator
	config   *config.Config

	limiters []*middleware.RateLimiter
}

func NewRouter(handlers Handlers, auth *middleware.Authenticator, cfg *config.Config) *Router {
	return &Router{
		handlers: handlers,
		auth:     auth,
		config:   cfg,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestContext(r.config.App.Timeout))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())

	api := router.Group("/api")
	{
		api.GET("/health", r.handlers.Health.HealthCheck)

		v1 := api.Group("/v1")
		{
			v1.Use(r.limiter("global", r.config.RateLimit.Request, r.config.RateLimit.Duration).Handler())

			r.otpRoutes(v1)
			r.profileRoutes(v1)
			r.userRoutes(v1)
			r.portfolioRoutes(v1)
			r.postRoutes(v1)
		}
	}

	return router
}

func (r *Router) limiter(name string, maxRequest int, duration time.Duration) *middleware.RateLimiter {
	l := middleware.NewRateLimiter(name, maxRequest, duration)
	r.limiters = append(r.limiters, l)
	return l
}

// Close stops the limiter janitors.
func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Stop()
	}
}
