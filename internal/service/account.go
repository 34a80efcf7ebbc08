package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/Payphone-Digital/portfolio-service/pkg/validation"
)

// AccountService runs the code-gated account flows: registration email
// verification and password reset.
type AccountService struct {
	users  repository.UserStore
	ledger *OTPLedger
	mailer CodeMailer
	phones PhoneVerifier
	auth   PasswordUpdater
}

func NewAccountService(users repository.UserStore, ledger *OTPLedger, mailer CodeMailer, phones PhoneVerifier, auth PasswordUpdater) *AccountService {
	return &AccountService{
		users:  users,
		ledger: ledger,
		mailer: mailer,
		phones: phones,
		auth:   auth,
	}
}

// SendRegistrationCode emails a registration code to an address no user has claimed.
func (s *AccountService) SendRegistrationCode(ctx context.Context, rawEmail string) (*dto.CodeSentResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SendRegistrationCode")

	email, err := normalizedEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByField(ctx, repository.FieldEmail, email, "")
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if exists {
		return nil, apperrors.WithMessage(apperrors.ErrAlreadyExists, "email is already registered")
	}

	if err := s.sendEmailCode(ctx, email, model.PurposeRegistration); err != nil {
		return nil, err
	}
	return &dto.CodeSentResponse{Destination: maskEmail(email), ExpiresIn: int(s.ledger.TTL().Seconds())}, nil
}

// VerifyRegistrationCode consumes the code. The profile itself is created
// later through CreateOrGet.
func (s *AccountService) VerifyRegistrationCode(ctx context.Context, rawEmail, code string) (*dto.CodeVerifiedResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyRegistrationCode")

	email, err := normalizedEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Verify(ctx, email, model.PurposeRegistration, code); err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "Registration email verified").Log()
	return &dto.CodeVerifiedResponse{Verified: true}, nil
}

// SendPasswordResetCode sends a reset code by email or SMS to an existing user.
func (s *AccountService) SendPasswordResetCode(ctx context.Context, req dto.SendPasswordResetRequest) (*dto.CodeSentResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SendPasswordResetCode")

	ttl := int(s.ledger.TTL().Seconds())
	switch req.Method {
	case dto.MethodEmail:
		email, err := normalizedEmail(req.Email)
		if err != nil {
			return nil, err
		}
		if _, err := s.resolveUser(ctx, req.Method, email); err != nil {
			return nil, err
		}
		if err := s.sendEmailCode(ctx, email, model.PurposePasswordReset); err != nil {
			return nil, err
		}
		return &dto.CodeSentResponse{Destination: maskEmail(email), ExpiresIn: ttl}, nil

	case dto.MethodSMS:
		phone, err := normalizedPhone(req.Phone)
		if err != nil {
			return nil, err
		}
		if _, err := s.resolveUser(ctx, req.Method, phone); err != nil {
			return nil, err
		}
		if err := s.phones.Send(ctx, phone, model.PurposePasswordReset); err != nil {
			return nil, err
		}
		return &dto.CodeSentResponse{Destination: maskPhone(phone), ExpiresIn: ttl}, nil
	}
	return nil, invalidMethod()
}

// ResetPassword checks password strength, resolves the user, verifies the
// code, and hands the new password to the auth provider. Everything that can
// fail without the provider is checked before the code is consumed; a
// provider error after that still spends the code.
func (s *AccountService) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ResetPassword")

	if !validation.StrongPassword(req.NewPassword) {
		return apperrors.Validation(apperrors.FieldError{
			Field:   "new_password",
			Message: validation.Message("new_password", "strong_password", ""),
			Reason:  apperrors.ReasonFormat,
		})
	}

	var identifier string
	var err error
	switch req.Method {
	case dto.MethodEmail:
		identifier, err = normalizedEmail(req.Email)
	case dto.MethodSMS:
		identifier, err = normalizedPhone(req.Phone)
	default:
		return invalidMethod()
	}
	if err != nil {
		return err
	}

	user, err := s.resolveUser(ctx, req.Method, identifier)
	if err != nil {
		return err
	}
	if err := s.auth.Ready(ctx); err != nil {
		logger.WarnWithContext(ctx, "Auth provider unavailable, reset code kept").
			String("identity", user.Identity).
			Err(err).
			Log()
		return apperrors.Upstream("auth", err)
	}

	if req.Method == dto.MethodSMS {
		err = s.phones.Check(ctx, identifier, model.PurposePasswordReset, req.Code)
	} else {
		err = s.ledger.Verify(ctx, identifier, model.PurposePasswordReset, req.Code)
	}
	if err != nil {
		return err
	}

	if err := s.auth.UpdatePassword(ctx, user.Identity, req.NewPassword); err != nil {
		logger.ErrorWithContext(ctx, "Auth provider rejected password update").
			String("identity", user.Identity).
			Err(err).
			Log()
		return apperrors.WithMessage(apperrors.Upstream("auth", err), "auth provider failure; request a new code")
	}

	logger.InfoWithContext(ctx, "Password reset").
		String("identity", user.Identity).
		String("method", req.Method).
		Log()
	return nil
}

func (s *AccountService) sendEmailCode(ctx context.Context, email string, purpose model.OTPPurpose) error {
	code, _, err := s.ledger.Create(ctx, email, purpose)
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(ctx, email, purpose, code, s.ledger.TTL()); err != nil {
		logger.ErrorWithContext(ctx, "Failed to email code").
			String("purpose", string(purpose)).
			Err(err).
			Log()
		return apperrors.Upstream("email", err)
	}
	return nil
}

func (s *AccountService) resolveUser(ctx context.Context, method, identifier string) (*model.User, error) {
	var user *model.User
	var err error
	if method == dto.MethodSMS {
		user, err = s.users.GetByPhone(ctx, identifier)
	} else {
		user, err = s.users.GetByEmail(ctx, identifier)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.WithMessage(apperrors.ErrUserNotFound, "no account uses this "+methodNoun(method))
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func normalizedEmail(raw string) (string, error) {
	email := validation.NormalizeEmail(raw)
	if fe := formatError(repository.FieldEmail, email); fe != nil {
		return "", apperrors.Validation(*fe)
	}
	return email, nil
}

func invalidMethod() error {
	return apperrors.Validation(apperrors.FieldError{
		Field:   "method",
		Message: "method must be email or sms",
		Reason:  apperrors.ReasonFormat,
	})
}

func methodNoun(method string) string {
	if method == dto.MethodSMS {
		return "phone number"
	}
	return "email"
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
