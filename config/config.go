package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/joho/godotenv"
)

// Portfolio name uniqueness policies.
const (
	PortfolioNameScopeOwner  = "owner"
	PortfolioNameScopeGlobal = "global"
)

// Relationship pair lock modes.
const (
	LockModeNone  = "none"
	LockModeLocal = "local"
	LockModeRedis = "redis"
)

// Phone verification modes.
const (
	SMSModeVerify = "verify"
	SMSModeLedger = "ledger"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Policy       PolicyConfig
	OTP          OTPConfig
	Housekeeping HousekeepingConfig
	SMS          SMSConfig
	Email        EmailConfig
	Media        MediaConfig
	Events       EventsConfig
	RateLimit    RateLimitConfig
}

type AppConfig struct {
	Name          string        `mapstructure:"name"`
	Environment   string        `mapstructure:"environment"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Port          string        `mapstructure:"port"`
	LogLevel      string        `mapstructure:"log_level"`
	LogsPath      string        `mapstructure:"logs_path"`
	LogMaxSizeMB  int           `mapstructure:"log_max_size_mb"`
	LogMaxBackups int           `mapstructure:"log_max_backups"`
	LogMaxAgeDays int           `mapstructure:"log_max_age_days"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTPublicKey  string        `mapstructure:"jwt_public_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	AdminURL      string        `mapstructure:"admin_url"`
	AdminAPIKey   string        `mapstructure:"admin_api_key"`
	TokenCacheTTL time.Duration `mapstructure:"token_cache_ttl"`
}

type PolicyConfig struct {
	PortfolioNameScope string        `mapstructure:"portfolio_name_scope"`
	RelationshipLock   string        `mapstructure:"relationship_lock"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

type OTPConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	SendInterval time.Duration `mapstructure:"send_interval"`
}

type HousekeepingConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	FullScan    bool          `mapstructure:"full_scan"`
	BatchSize   int           `mapstructure:"batch_size"`
	RepairBatch int           `mapstructure:"repair_batch"`
}

type SMSConfig struct {
	Mode             string `mapstructure:"mode"`
	AccountSID       string `mapstructure:"account_sid"`
	AuthToken        string `mapstructure:"auth_token"`
	VerifyServiceSID string `mapstructure:"verify_service_sid"`
	FromNumber       string `mapstructure:"from_number"`
}

type EmailConfig struct {
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

type MediaConfig struct {
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RateLimitConfig struct {
	Request     int           `mapstructure:"request"`
	Duration    time.Duration `mapstructure:"duration"`
	OTPRequest  int           `mapstructure:"otp_request"`
	OTPDuration time.Duration `mapstructure:"otp_duration"`
}

func LoadConfig() (*Config, error) {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:          getEnv("APP_NAME", constants.AppName),
			Environment:   getEnv("APP_ENV", constants.DefaultEnvironment),
			Port:          getEnv("APP_PORT", constants.DefaultPort),
			Timeout:       getEnvAsDuration("APP_TIMEOUT", 30*time.Second),
			LogLevel:      getEnv("LOG_LEVEL", ""),
			LogsPath:      getEnv("LOGS_PATH", "./logs"),
			LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", DriverPostgres),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "portfolio_db"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", ""),
			JWTPublicKey:  getEnv("AUTH_JWT_PUBLIC_KEY", ""),
			Issuer:        getEnv("AUTH_JWT_ISSUER", ""),
			Audience:      getEnv("AUTH_JWT_AUDIENCE", ""),
			AdminURL:      getEnv("AUTH_ADMIN_URL", ""),
			AdminAPIKey:   getEnv("AUTH_ADMIN_API_KEY", ""),
			TokenCacheTTL: getEnvAsDuration("AUTH_TOKEN_CACHE_TTL", time.Minute),
		},
		Policy: PolicyConfig{
			PortfolioNameScope: getEnv("PORTFOLIO_NAME_SCOPE", PortfolioNameScopeOwner),
			RelationshipLock:   getEnv("RELATIONSHIP_LOCK", LockModeLocal),
			LockTTL:            getEnvAsDuration("RELATIONSHIP_LOCK_TTL", 5*time.Second),
		},
		OTP: OTPConfig{
			TTL:          getEnvAsDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:  getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
			SendInterval: getEnvAsDuration("OTP_SEND_INTERVAL", 30*time.Second),
		},
		Housekeeping: HousekeepingConfig{
			Interval:    getEnvAsDuration("HOUSEKEEPING_INTERVAL", 5*time.Minute),
			FullScan:    getEnvAsBool("RECONCILE_FULL_SCAN", false),
			BatchSize:   getEnvAsInt("RECONCILE_BATCH_SIZE", 200),
			RepairBatch: getEnvAsInt("RECONCILE_REPAIR_BATCH", 100),
		},
		SMS: SMSConfig{
			Mode:             getEnv("SMS_VERIFICATION_MODE", SMSModeVerify),
			AccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
			VerifyServiceSID: getEnv("TWILIO_VERIFY_SERVICE_SID", ""),
			FromNumber:       getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Email: EmailConfig{
			APIKey:      getEnv("BREVO_API_KEY", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
			FromName:    getEnv("EMAIL_FROM_NAME", "Portfolio"),
		},
		Media: MediaConfig{
			Bucket:        getEnv("S3_BUCKET", ""),
			Region:        getEnv("S3_REGION", "us-east-1"),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		},
		Events: EventsConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "portfolio.events"),
		},
		RateLimit: RateLimitConfig{
			Request:     getEnvAsInt("RATE_LIMIT_MAX_REQUEST", 100),
			Duration:    getEnvAsDuration("RATE_LIMIT_DURATION", time.Minute),
			OTPRequest:  getEnvAsInt("OTP_RATE_LIMIT_MAX_REQUEST", 5),
			OTPDuration: getEnvAsDuration("OTP_RATE_LIMIT_DURATION", 15*time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects policy values that would otherwise be silently ignored.
func (c *Config) Validate() error {
	switch c.Policy.PortfolioNameScope {
	case PortfolioNameScopeOwner, PortfolioNameScopeGlobal:
	default:
		return fmt.Errorf("invalid PORTFOLIO_NAME_SCOPE %q: want %q or %q",
			c.Policy.PortfolioNameScope, PortfolioNameScopeOwner, PortfolioNameScopeGlobal)
	}

	switch c.Policy.RelationshipLock {
	case LockModeNone, LockModeLocal:
	case LockModeRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("RELATIONSHIP_LOCK=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("invalid RELATIONSHIP_LOCK %q", c.Policy.RelationshipLock)
	}

	switch c.SMS.Mode {
	case SMSModeVerify, SMSModeLedger:
	default:
		return fmt.Errorf("invalid SMS_VERIFICATION_MODE %q", c.SMS.Mode)
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.Database.Driver)
	}

	if c.OTP.MaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// GlobalPortfolioNames reports whether portfolio names are unique across all owners.
func (c *Config) GlobalPortfolioNames() bool {
	return c.Policy.PortfolioNameScope == PortfolioNameScopeGlobal
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == constants.EnvProduction
}

func (c *Config) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
