package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configs "github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/internal/events"
	"github.com/Payphone-Digital/portfolio-service/internal/handler"
	"github.com/Payphone-Digital/portfolio-service/internal/middleware"
	"github.com/Payphone-Digital/portfolio-service/internal/provider"
	"github.com/Payphone-Digital/portfolio-service/internal/provider/auth"
	"github.com/Payphone-Digital/portfolio-service/internal/provider/email/brevo"
	"github.com/Payphone-Digital/portfolio-service/internal/provider/media/s3"
	"github.com/Payphone-Digital/portfolio-service/internal/provider/sms/twilio"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/Payphone-Digital/portfolio-service/internal/repository/memory"
	"github.com/Payphone-Digital/portfolio-service/internal/router"
	"github.com/Payphone-Digital/portfolio-service/internal/service"
	"github.com/Payphone-Digital/portfolio-service/pkg/cache"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
	"github.com/Payphone-Digital/portfolio-service/pkg/database"
	"github.com/Payphone-Digital/portfolio-service/pkg/housekeeping"
	"github.com/Payphone-Digital/portfolio-service/pkg/httpclient"
	"github.com/Payphone-Digital/portfolio-service/pkg/lock"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/Payphone-Digital/portfolio-service/pkg/redis"
	"github.com/Payphone-Digital/portfolio-service/pkg/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

// unconfiguredMedia stands in when no bucket is set, so post uploads fail
// as an upstream error instead of the service refusing to start.
type unconfiguredMedia struct{}

func (unconfiguredMedia) Store(context.Context, string, string, io.Reader, int64) (string, string, error) {
	return "", "", provider.ErrNotConfigured
}

func (unconfiguredMedia) Delete(context.Context, string) error { return provider.ErrNotConfigured }

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.GetLogger()
	log.Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
		zap.String("version", constants.AppVersion),
		zap.String("db_driver", config.Database.Driver),
		zap.String("portfolio_name_scope", config.Policy.PortfolioNameScope),
		zap.String("relationship_lock", config.Policy.RelationshipLock),
		zap.String("sms_mode", config.SMS.Mode),
	)

	// Storage
	var (
		db     *gorm.DB
		stores *repository.Stores
	)
	switch config.Database.Driver {
	case configs.DriverMemory:
		stores = memory.NewStores(config.GlobalPortfolioNames())
		log.Warn("Using in-memory stores; data is lost on restart")
	default:
		db, err = database.NewPostgresDB(database.ConfigFrom(config))
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.CloseDB(db)

		if err := database.Migrate(db, config.GlobalPortfolioNames()); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}
		log.Info("Database migrated successfully")
		stores = repository.NewStores(db)
	}

	// Redis is optional unless the relationship lock lives there.
	var redisClient *redis.Client
	if config.Redis.Enabled {
		redisClient, err = redis.NewClient(config)
		if err != nil {
			if config.Policy.RelationshipLock == configs.LockModeRedis {
				log.Fatal("Redis is required for RELATIONSHIP_LOCK=redis", zap.Error(err))
			}
			log.Warn("Redis unavailable, falling back to in-process throttling", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var locker lock.PairLocker
	switch config.Policy.RelationshipLock {
	case configs.LockModeNone:
		locker = lock.Noop{}
	case configs.LockModeRedis:
		locker = lock.NewDistributed(redisClient, constants.RedisKeyPairLock, config.Policy.LockTTL, log)
	default:
		locker = lock.NewLocal()
	}

	var throttle service.SendThrottle
	if redisClient != nil {
		throttle = redisClient
	} else {
		windows := cache.New[struct{}](time.Minute)
		defer windows.Stop()
		throttle = service.NewLocalThrottle(windows)
	}

	var publisher events.Publisher = events.Noop{}
	if len(config.Events.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(config.Events.Brokers, config.Events.Topic)
		log.Info("Publishing domain events to Kafka",
			zap.Strings("brokers", config.Events.Brokers),
			zap.String("topic", config.Events.Topic),
		)
	}
	defer publisher.Close()

	// Providers
	settings := circuit.DefaultSettings()
	settings.Trips = provider.Trips
	breakers := circuit.NewGroup(settings, log)

	pool := httpclient.NewPool(httpclient.DefaultConfig(), log)
	defer pool.Close()

	verifier, err := auth.NewVerifier(config.Auth)
	if err != nil {
		log.Fatal("Failed to build token verifier", zap.Error(err))
	}
	authAdmin := auth.NewAdminClient(config.Auth.AdminURL, config.Auth.AdminAPIKey, pool.Client("auth"), breakers.Get("auth"))
	sms := twilio.NewClient(config.SMS, pool.Client(twilio.ProviderName), breakers.Get(twilio.ProviderName))
	mailer := brevo.NewClient(config.Email, pool.Client(brevo.ProviderName), breakers.Get(brevo.ProviderName))

	var media service.MediaStore = unconfiguredMedia{}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	bucket, err := s3.NewStore(startCtx, config.Media, pool.Client(s3.ProviderName), breakers.Get(s3.ProviderName))
	cancelStart()
	switch {
	case err == nil:
		media = bucket
	case errors.Is(err, provider.ErrNotConfigured):
		log.Warn("S3_BUCKET not set; post uploads are disabled")
	default:
		log.Fatal("Failed to initialize media store", zap.Error(err))
	}

	// Services
	guard := service.NewUniquenessGuard(stores.Users, stores.Portfolios, config.GlobalPortfolioNames())
	ledger := service.NewOTPLedger(stores.OTPs, throttle, service.LedgerConfig{
		TTL:          config.OTP.TTL,
		MaxAttempts:  config.OTP.MaxAttempts,
		SendInterval: config.OTP.SendInterval,
		Production:   config.IsProduction(),
	})
	coordinator := service.NewRelationshipCoordinator(stores, locker, publisher)
	phoneVerifier := service.NewPhoneVerifier(config.SMS.Mode, ledger, sms, sms)

	profileService := service.NewProfileService(stores.Users, guard, publisher)
	portfolioService := service.NewPortfolioService(stores, guard, coordinator)
	postService := service.NewPostService(stores, media)
	phoneService := service.NewPhoneService(stores.Users, guard, phoneVerifier, ledger)
	accountService := service.NewAccountService(stores.Users, ledger, mailer, phoneVerifier, authAdmin)

	// Background workers
	runner := housekeeping.NewRunner(config.Housekeeping.Interval, log,
		service.HousekeepingTasks(ledger, coordinator, service.HousekeepingConfig{
			RepairBatch: config.Housekeeping.RepairBatch,
			FullScan:    config.Housekeeping.FullScan,
			ScanBatch:   config.Housekeeping.BatchSize,
		})...)
	runner.Start()
	defer runner.Stop()

	// Handlers
	var dbPinger, redisPinger handler.Pinger
	if db != nil {
		dbPinger = handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) })
	}
	if redisClient != nil {
		redisPinger = redisClient
	}

	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(dbPinger, redisPinger, breakers),
		Check:     handler.NewCheckHandler(guard),
		OTP:       handler.NewOTPHandler(accountService, phoneService),
		Profile:   handler.NewProfileHandler(profileService, phoneService, coordinator),
		Portfolio: handler.NewPortfolioHandler(portfolioService, coordinator),
		Post:      handler.NewPostHandler(postService),
	}

	// Middleware
	validation.RegisterGin()
	tokens := cache.New[string](time.Minute)
	defer tokens.Stop()
	authenticator := middleware.NewAuthenticator(verifier, tokens, config.Auth.TokenCacheTTL)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.NewRouter(handlers, authenticator, config)
	defer r.Close()

	srv := &http.Server{
		Addr:              ":" + config.App.Port,
		Handler:           r.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shut down", zap.Error(err))
	}
	log.Info("Server stopped")
}
