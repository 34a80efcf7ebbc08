package service

import (
	"context"
	"io"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
)

// External collaborators. Implementations live under internal/provider and
// report outages as plain errors; services wrap them as UpstreamFailure.

// PasswordUpdater changes the password held by the auth provider. Ready is
// checked before a reset code is consumed.
type PasswordUpdater interface {
	Ready(ctx context.Context) error
	UpdatePassword(ctx context.Context, identity, newPassword string) error
}

// CodeMailer delivers a one-time code by email.
type CodeMailer interface {
	SendCode(ctx context.Context, to string, purpose model.OTPPurpose, code string, ttl time.Duration) error
}

// SMSVerifier is a provider that owns the code: it sends one and later
// approves or denies a candidate.
type SMSVerifier interface {
	SendCode(ctx context.Context, phone string) error
	CheckCode(ctx context.Context, phone, code string) (bool, error)
}

// SMSSender delivers a plain text message.
type SMSSender interface {
	SendMessage(ctx context.Context, phone, body string) error
}

// MediaStore keeps uploaded post media and returns its public URL and the
// handle needed to delete it.
type MediaStore interface {
	Store(ctx context.Context, name, contentType string, body io.Reader, size int64) (url, handle string, err error)
	Delete(ctx context.Context, handle string) error
}
