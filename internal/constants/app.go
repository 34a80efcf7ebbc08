package constants

// Application Information
const (
	AppName    = "portfolio-service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Default Application Settings
const (
	DefaultPort        = "8080"
	DefaultEnvironment = EnvDevelopment
)

// Redis Key Prefixes
const (
	RedisKeyPrefix      = "folio:"
	RedisKeyPairLock    = RedisKeyPrefix + "lock:pair:"
	RedisKeyOTPThrottle = RedisKeyPrefix + "otp:throttle:"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)
