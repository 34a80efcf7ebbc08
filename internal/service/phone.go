package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
)

// PhoneVerifier sends a code to a phone and checks a candidate. Check
// returns nil only when the code is approved.
type PhoneVerifier interface {
	Send(ctx context.Context, phone string, purpose model.OTPPurpose) error
	Check(ctx context.Context, phone string, purpose model.OTPPurpose, code string) error
}

// NewPhoneVerifier picks the provider-owned flow or the ledger flow by mode.
func NewPhoneVerifier(mode string, ledger *OTPLedger, verifier SMSVerifier, sender SMSSender) PhoneVerifier {
	if mode == config.SMSModeLedger {
		return &ledgerPhoneVerifier{ledger: ledger, sms: sender}
	}
	return &providerPhoneVerifier{ledger: ledger, sms: verifier}
}

// providerPhoneVerifier delegates the code to the SMS provider. The ledger
// is only consulted for its resend throttle.
type providerPhoneVerifier struct {
	ledger *OTPLedger
	sms    SMSVerifier
}

func (v *providerPhoneVerifier) Send(ctx context.Context, phone string, purpose model.OTPPurpose) error {
	if err := v.ledger.AllowSend(ctx, phone, purpose); err != nil {
		return err
	}
	if err := v.sms.SendCode(ctx, phone); err != nil {
		return apperrors.Upstream("sms", err)
	}
	return nil
}

func (v *providerPhoneVerifier) Check(ctx context.Context, phone string, _ model.OTPPurpose, code string) error {
	approved, err := v.sms.CheckCode(ctx, phone, code)
	if err != nil {
		return apperrors.Upstream("sms", err)
	}
	if !approved {
		return apperrors.ErrInvalidCode
	}
	return nil
}

// ledgerPhoneVerifier issues codes from the ledger and only uses the
// provider to deliver the text.
type ledgerPhoneVerifier struct {
	ledger *OTPLedger
	sms    SMSSender
}

func (v *ledgerPhoneVerifier) Send(ctx context.Context, phone string, purpose model.OTPPurpose) error {
	code, _, err := v.ledger.Create(ctx, phone, purpose)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(v.ledger.TTL().Minutes()))
	if err := v.sms.SendMessage(ctx, phone, body); err != nil {
		return apperrors.Upstream("sms", err)
	}
	return nil
}

func (v *ledgerPhoneVerifier) Check(ctx context.Context, phone string, purpose model.OTPPurpose, code string) error {
	return v.ledger.Verify(ctx, phone, purpose, code)
}

type PhoneService struct {
	users    repository.UserStore
	guard    *UniquenessGuard
	verifier PhoneVerifier
	ttl      int
}

func NewPhoneService(users repository.UserStore, guard *UniquenessGuard, verifier PhoneVerifier, ledger *OTPLedger) *PhoneService {
	return &PhoneService{
		users:    users,
		guard:    guard,
		verifier: verifier,
		ttl:      int(ledger.TTL().Seconds()),
	}
}

// SendCode sends a phone verification code. No store state changes.
func (s *PhoneService) SendCode(ctx context.Context, rawPhone string) (*dto.CodeSentResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SendPhoneCode")

	phone, err := normalizedPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.Send(ctx, phone, model.PurposePhoneVerification); err != nil {
		logger.WarnWithContext(ctx, "Phone code not sent").
			Err(err).
			Log()
		return nil, err
	}

	logger.InfoWithContext(ctx, "Phone code sent").Log()
	return &dto.CodeSentResponse{Destination: maskPhone(phone), ExpiresIn: s.ttl}, nil
}

// VerifyCode checks a code without touching any profile.
func (s *PhoneService) VerifyCode(ctx context.Context, rawPhone, code string) (*dto.CodeVerifiedResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyPhoneCode")

	phone, err := normalizedPhone(rawPhone)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.Check(ctx, phone, model.PurposePhoneVerification, code); err != nil {
		return nil, err
	}
	return &dto.CodeVerifiedResponse{Verified: true}, nil
}

// VerifyForProfile binds phone to the caller's profile once the code is
// approved, marking it verified.
func (s *PhoneService) VerifyForProfile(ctx context.Context, identity, rawPhone, code string) (*dto.ProfileResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyPhoneForProfile")
	return s.bind(ctx, identity, rawPhone, code, false)
}

// ChangePhone is VerifyForProfile for a number that must differ from the current one.
func (s *PhoneService) ChangePhone(ctx context.Context, identity, rawPhone, code string) (*dto.ProfileResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ChangePhone")
	return s.bind(ctx, identity, rawPhone, code, true)
}

func (s *PhoneService) bind(ctx context.Context, identity, rawPhone, code string, mustDiffer bool) (*dto.ProfileResponse, error) {
	phone, err := normalizedPhone(rawPhone)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByIdentity(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if mustDiffer && model.Deref(user.Phone) == phone {
		return nil, apperrors.Validation(apperrors.FieldError{
			Field:   repository.FieldPhone,
			Message: "new phone number must differ from the current one",
			Reason:  apperrors.ReasonFormat,
		})
	}

	if err := s.guard.CheckIdentity(ctx, IdentityFields{Phone: phone}, identity); err != nil {
		return nil, err
	}
	if err := s.verifier.Check(ctx, phone, model.PurposePhoneVerification, code); err != nil {
		return nil, err
	}

	err = s.users.UpdateFields(ctx, identity, map[string]interface{}{
		repository.ColPhone:           phone,
		repository.ColIsPhoneVerified: true,
	})
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return nil, conflict
		}
		logger.ErrorWithContext(ctx, "Failed to store verified phone").
			String("identity", identity).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}

	updated, err := s.users.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	logger.InfoWithContext(ctx, "Phone verified for profile").
		String("identity", identity).
		Log()
	resp := dto.NewProfileResponse(updated)
	return &resp, nil
}

func normalizedPhone(raw string) (string, error) {
	phone := IdentityFields{Phone: raw}.Normalize().Phone
	if phone == "" {
		return "", apperrors.Validation(apperrors.FieldError{
			Field:   repository.FieldPhone,
			Message: "phone is required",
			Reason:  apperrors.ReasonFormat,
		})
	}
	if fe := formatError(repository.FieldPhone, phone); fe != nil {
		return "", apperrors.Validation(*fe)
	}
	return phone, nil
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 && phone[i] != '+' {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
