package service

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/Payphone-Digital/portfolio-service/pkg/cache"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"golang.org/x/crypto/pbkdf2"
)

const (
	codeHashIterations = 10000
	codeHashKeyLength  = 64
	codeSaltBytes      = 16
)

var codeSpace = big.NewInt(1_000_000)

// SendThrottle limits how often a code may be sent to one identifier.
type SendThrottle interface {
	Throttle(ctx context.Context, key string, interval time.Duration) (bool, time.Duration, error)
}

// LocalThrottle keeps throttle windows in process memory.
type LocalThrottle struct {
	windows *cache.Cache[struct{}]
}

func NewLocalThrottle(windows *cache.Cache[struct{}]) *LocalThrottle {
	return &LocalThrottle{windows: windows}
}

func (t *LocalThrottle) Throttle(_ context.Context, key string, interval time.Duration) (bool, time.Duration, error) {
	ok, remaining := t.windows.SetIfAbsent(key, struct{}{}, interval)
	return ok, remaining, nil
}

type LedgerConfig struct {
	TTL          time.Duration
	MaxAttempts  int
	SendInterval time.Duration
	// Production suppresses the debug log of plaintext codes.
	Production bool
}

// OTPLedger issues and verifies hashed, attempt-limited one-time codes with
// at most one live code per (identifier, purpose).
type OTPLedger struct {
	codes    repository.OTPStore
	throttle SendThrottle
	config   LedgerConfig
	now      func() time.Time
	random   io.Reader
}

// NewOTPLedger builds a ledger. A nil throttle disables resend throttling.
func NewOTPLedger(codes repository.OTPStore, throttle SendThrottle, config LedgerConfig) *OTPLedger {
	if config.TTL <= 0 {
		config.TTL = constants.OTPDefaultTTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = constants.OTPDefaultMaxAttempts
	}
	return &OTPLedger{
		codes:    codes,
		throttle: throttle,
		config:   config,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// TTL is how long an issued code stays live.
func (l *OTPLedger) TTL() time.Duration {
	return l.config.TTL
}

// AllowSend applies the resend throttle for (identifier, purpose). Throttle
// backend failures are logged and let the send through.
func (l *OTPLedger) AllowSend(ctx context.Context, identifier string, purpose model.OTPPurpose) error {
	if l.throttle == nil || l.config.SendInterval <= 0 {
		return nil
	}

	key := constants.RedisKeyOTPThrottle + string(purpose) + ":" + identifier
	allowed, remaining, err := l.throttle.Throttle(ctx, key, l.config.SendInterval)
	if err != nil {
		logger.WarnWithContext(ctx, "Code send throttle unavailable").
			String("purpose", string(purpose)).
			Err(err).
			Log()
		return nil
	}
	if !allowed {
		seconds := int(remaining.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		return apperrors.WithMessage(apperrors.ErrCodeSendThrottled,
			fmt.Sprintf("a code was sent recently, try again in %d seconds", seconds))
	}
	return nil
}

// Create replaces any code for (identifier, purpose) and returns the new
// plaintext code once. Only its salted hash is stored.
func (l *OTPLedger) Create(ctx context.Context, identifier string, purpose model.OTPPurpose) (string, time.Time, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "CreateCode")

	if !purpose.Valid() {
		return "", time.Time{}, apperrors.Validation(apperrors.FieldError{
			Field:   "purpose",
			Message: "unknown code purpose",
			Reason:  apperrors.ReasonFormat,
		})
	}
	if err := l.AllowSend(ctx, identifier, purpose); err != nil {
		return "", time.Time{}, err
	}

	code, err := l.generateCode()
	if err != nil {
		return "", time.Time{}, apperrors.Internal(err)
	}
	salt, err := l.generateSalt()
	if err != nil {
		return "", time.Time{}, apperrors.Internal(err)
	}

	expiresAt := l.now().Add(l.config.TTL)
	record := &model.OneTimeCode{
		Identifier: identifier,
		Purpose:    purpose,
		CodeHash:   hashCode(code, salt),
		Salt:       salt,
		ExpiresAt:  expiresAt,
	}
	if err := l.codes.Replace(ctx, record); err != nil {
		logger.ErrorWithContext(ctx, "Failed to store one-time code").
			String("purpose", string(purpose)).
			Err(err).
			Log()
		return "", time.Time{}, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "One-time code issued").
		String("purpose", string(purpose)).
		Log()
	if !l.config.Production {
		logger.DebugWithContext(ctx, "One-time code value").
			String("identifier", identifier).
			String("purpose", string(purpose)).
			String("code", code).
			Log()
	}

	return code, expiresAt, nil
}

// Verify consumes the live code for (identifier, purpose) when candidate
// matches. Every check past the expiry test spends an attempt, and a correct
// code cannot override an exhausted record.
func (l *OTPLedger) Verify(ctx context.Context, identifier string, purpose model.OTPPurpose, candidate string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyCode")

	record, err := l.codes.Get(ctx, identifier, purpose)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrCodeNotFound
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to load one-time code").
			String("purpose", string(purpose)).
			Err(err).
			Log()
		return apperrors.Internal(err)
	}

	if record.Expired(l.now()) {
		if _, err := l.codes.Delete(ctx, record.ID); err != nil {
			logger.WarnWithContext(ctx, "Failed to drop expired code").
				Err(err).
				Log()
		}
		return apperrors.ErrCodeNotFound
	}

	if record.Attempts >= l.config.MaxAttempts {
		return apperrors.ErrTooManyAttempts
	}

	counted, err := l.codes.IncrementAttempts(ctx, record.ID, l.config.MaxAttempts)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !counted {
		// A concurrent attempt used the last slot, or the record was replaced.
		return apperrors.ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(candidate, record.Salt)), []byte(record.CodeHash)) != 1 {
		logger.InfoWithContext(ctx, "One-time code mismatch").
			String("purpose", string(purpose)).
			Int("attempt", record.Attempts+1).
			Log()
		return apperrors.ErrInvalidCode
	}

	consumed, err := l.codes.Delete(ctx, record.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !consumed {
		// Another request consumed or replaced it first.
		return apperrors.ErrCodeNotFound
	}

	logger.InfoWithContext(ctx, "One-time code verified").
		String("purpose", string(purpose)).
		Log()
	return nil
}

// SweepExpired physically deletes codes past their expiry.
func (l *OTPLedger) SweepExpired(ctx context.Context) (int64, error) {
	return l.codes.DeleteExpired(ctx, l.now())
}

func (l *OTPLedger) generateCode() (string, error) {
	n, err := rand.Int(l.random, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (l *OTPLedger) generateSalt() (string, error) {
	b := make([]byte, codeSaltBytes)
	if _, err := io.ReadFull(l.random, b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashCode(code, salt string) string {
	return hex.EncodeToString(pbkdf2.Key([]byte(code), []byte(salt), codeHashIterations, codeHashKeyLength, sha512.New))
}
