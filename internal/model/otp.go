package model

import "time"

// OTPPurpose scopes a one-time code.
type OTPPurpose string

const (
	PurposeRegistration      OTPPurpose = "registration"
	PurposePasswordReset     OTPPurpose = "password_reset"
	PurposePhoneVerification OTPPurpose = "phone_verification"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposePasswordReset, PurposePhoneVerification:
		return true
	}
	return false
}

// OneTimeCode stores only the salted hash of a code; at most one row exists per (identifier, purpose).
type OneTimeCode struct {
	ID         uint       `gorm:"column:id;primaryKey"`
	Identifier string     `gorm:"column:identifier;size:254;not null;uniqueIndex:idx_otp_identifier_purpose,priority:1"`
	Purpose    OTPPurpose `gorm:"column:purpose;size:32;not null;uniqueIndex:idx_otp_identifier_purpose,priority:2"`
	CodeHash   string     `gorm:"column:code_hash;size:128;not null"`
	Salt       string     `gorm:"column:salt;size:32;not null"`
	Attempts   int        `gorm:"column:attempts;not null;default:0"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null;index:idx_otp_expires_at"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

func (OneTimeCode) TableName() string { return "one_time_codes" }

func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
