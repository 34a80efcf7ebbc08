package constants

import "time"

// Field Length Limits
const (
	MinUsernameLength      = 3
	MaxUsernameLength      = 30
	MinPortfolioNameLength = 3
	MaxPortfolioNameLength = 50
	MaxEmailLength         = 254
	MinPasswordLength      = 8
	MaxPasswordLength      = 128
	MaxCaptionLength       = 2200
	MaxCommentLength       = 1000
)

// Validation Patterns
const (
	UsernamePattern      = `^[a-zA-Z0-9_]+$`
	PortfolioNamePattern = `^[a-zA-Z0-9_\s-]+$`
	OTPPattern           = `^[0-9]{6}$`
)

// One-time code defaults
const (
	OTPDefaultTTL         = 10 * time.Minute
	OTPDefaultMaxAttempts = 3
)

// MaxUploadSize bounds multipart post uploads.
const MaxUploadSize = 50 << 20
