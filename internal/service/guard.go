package service

import (
	"context"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/Payphone-Digital/portfolio-service/pkg/validation"
)

var formatMessages = map[string]string{
	repository.FieldEmail:         "email is not a valid address",
	repository.FieldUsername:      "username must be 3-30 characters of letters, digits, or underscores",
	repository.FieldPhone:         "phone must be a valid international number, e.g. +14155550100",
	repository.FieldPortfolioName: "portfolio name must be 3-50 characters of letters, digits, spaces, hyphens, or underscores",
}

var uniqueMessages = map[string]string{
	repository.FieldEmail:    "email already in use",
	repository.FieldUsername: "username already taken",
	repository.FieldPhone:    "phone number already in use",
}

const (
	msgPortfolioNameOwner  = "you already have a portfolio with this name"
	msgPortfolioNameGlobal = "portfolio name already taken"
)

// IdentityFields holds candidate values for the user's unique fields. An
// empty value is absent and never checked.
type IdentityFields struct {
	Email    string
	Username string
	Phone    string
}

// Normalize canonicalizes each value. A phone with no digits keeps its raw
// form so the format check rejects it instead of treating it as absent.
func (f IdentityFields) Normalize() IdentityFields {
	phone := validation.NormalizePhone(f.Phone)
	if phone == "" {
		phone = strings.TrimSpace(f.Phone)
	}
	return IdentityFields{
		Email:    validation.NormalizeEmail(f.Email),
		Username: validation.NormalizeUsername(f.Username),
		Phone:    phone,
	}
}

func (f IdentityFields) each(fn func(field, value string)) {
	for _, kv := range [][2]string{
		{repository.FieldEmail, f.Email},
		{repository.FieldUsername, f.Username},
		{repository.FieldPhone, f.Phone},
	} {
		if kv[1] != "" {
			fn(kv[0], kv[1])
		}
	}
}

// UniquenessGuard is the advisory pre-check in front of every write that
// establishes an email, username, phone, or portfolio name. The stores'
// unique indexes stay authoritative; conflicts they raise are mapped to the
// same error shape through uniqueConflict.
type UniquenessGuard struct {
	users       repository.UserStore
	portfolios  repository.PortfolioStore
	globalNames bool
}

func NewUniquenessGuard(users repository.UserStore, portfolios repository.PortfolioStore, globalNames bool) *UniquenessGuard {
	return &UniquenessGuard{
		users:       users,
		portfolios:  portfolios,
		globalNames: globalNames,
	}
}

// GlobalNames reports the active portfolio name policy.
func (g *UniquenessGuard) GlobalNames() bool {
	return g.globalNames
}

// CheckIdentity format-checks every present field, then looks each one up
// excluding excludeIdentity. Format failures are reported before any lookup.
func (g *UniquenessGuard) CheckIdentity(ctx context.Context, fields IdentityFields, excludeIdentity string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "CheckIdentity")

	var invalid []apperrors.FieldError
	fields.each(func(field, value string) {
		if fe := formatError(field, value); fe != nil {
			invalid = append(invalid, *fe)
		}
	})
	if len(invalid) > 0 {
		return apperrors.Validation(invalid...)
	}

	var taken []apperrors.FieldError
	var lookupErr error
	fields.each(func(field, value string) {
		if lookupErr != nil {
			return
		}
		exists, err := g.users.ExistsByField(ctx, field, value, excludeIdentity)
		if err != nil {
			lookupErr = err
			return
		}
		if exists {
			taken = append(taken, apperrors.FieldError{
				Field:   field,
				Message: uniqueMessages[field],
				Reason:  apperrors.ReasonUnique,
			})
		}
	})
	if lookupErr != nil {
		logger.ErrorWithContext(ctx, "Uniqueness lookup failed").
			Err(lookupErr).
			Log()
		return apperrors.Internal(lookupErr)
	}
	if len(taken) > 0 {
		logger.InfoWithContext(ctx, "Identity fields already in use").
			Int("fields", len(taken)).
			Log()
		return apperrors.NotUnique(taken...)
	}
	return nil
}

// CheckPortfolioName validates name and checks the per-owner scope, then the
// global scope when that policy is on. excludeID skips the portfolio being renamed.
func (g *UniquenessGuard) CheckPortfolioName(ctx context.Context, name, owner, excludeID string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "CheckPortfolioName")

	if fe := formatError(repository.FieldPortfolioName, name); fe != nil {
		return apperrors.Validation(*fe)
	}

	exists, err := g.portfolios.ExistsByName(ctx, name, owner, excludeID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Portfolio name lookup failed").
			String("owner", owner).
			Err(err).
			Log()
		return apperrors.Internal(err)
	}
	if exists {
		return portfolioNameTaken(false)
	}

	if !g.globalNames {
		return nil
	}
	exists, err = g.portfolios.ExistsByName(ctx, name, "", excludeID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Portfolio name lookup failed").
			Bool("global", true).
			Err(err).
			Log()
		return apperrors.Internal(err)
	}
	if exists {
		return portfolioNameTaken(true)
	}
	return nil
}

// Availability answers the check endpoints for email, username, and phone.
func (g *UniquenessGuard) Availability(ctx context.Context, field, value, excludeIdentity string) (*dto.AvailabilityResponse, error) {
	var fields IdentityFields
	switch field {
	case repository.FieldEmail:
		fields.Email = value
	case repository.FieldUsername:
		fields.Username = value
	case repository.FieldPhone:
		fields.Phone = value
	default:
		return nil, apperrors.Validation(apperrors.FieldError{
			Field:   "field",
			Message: "unknown field " + field,
			Reason:  apperrors.ReasonFormat,
		})
	}
	fields = fields.Normalize()

	var normalized string
	fields.each(func(_, v string) { normalized = v })
	if normalized == "" {
		return nil, apperrors.Validation(apperrors.FieldError{
			Field:   field,
			Message: field + " is required",
			Reason:  apperrors.ReasonFormat,
		})
	}

	err := g.CheckIdentity(ctx, fields, excludeIdentity)
	return availability(field, normalized, err)
}

// PortfolioNameAvailability checks the owner scope when owner is set and
// the global scope otherwise.
func (g *UniquenessGuard) PortfolioNameAvailability(ctx context.Context, name, owner string) (*dto.AvailabilityResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "PortfolioNameAvailability")
	name = strings.TrimSpace(name)

	if fe := formatError(repository.FieldPortfolioName, name); fe != nil {
		return nil, apperrors.Validation(*fe)
	}

	exists, err := g.portfolios.ExistsByName(ctx, name, owner, "")
	if err != nil {
		logger.ErrorWithContext(ctx, "Portfolio name lookup failed").
			String("owner", owner).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return &dto.AvailabilityResponse{
		Field:     repository.FieldPortfolioName,
		Value:     name,
		Available: !exists,
	}, nil
}

func availability(field, value string, err error) (*dto.AvailabilityResponse, error) {
	switch {
	case err == nil:
		return &dto.AvailabilityResponse{Field: field, Value: value, Available: true}, nil
	case apperrors.KindOf(err) == apperrors.KindConflict:
		return &dto.AvailabilityResponse{Field: field, Value: value, Available: false}, nil
	default:
		return nil, err
	}
}

func formatError(field, value string) *apperrors.FieldError {
	var ok bool
	switch field {
	case repository.FieldEmail:
		ok = validation.ValidEmail(value)
	case repository.FieldUsername:
		ok = validation.ValidUsername(value)
	case repository.FieldPhone:
		ok = validation.ValidE164(value)
	case repository.FieldPortfolioName:
		ok = validation.ValidPortfolioName(value)
	default:
		ok = true
	}
	if ok {
		return nil
	}
	return &apperrors.FieldError{
		Field:   field,
		Message: formatMessages[field],
		Reason:  apperrors.ReasonFormat,
	}
}

func portfolioNameTaken(global bool) error {
	msg := msgPortfolioNameOwner
	if global {
		msg = msgPortfolioNameGlobal
	}
	return apperrors.NotUnique(apperrors.FieldError{
		Field:   repository.FieldPortfolioName,
		Message: msg,
		Reason:  apperrors.ReasonUnique,
	})
}

// uniqueConflict maps a store-level unique violation to the same NotUnique
// shape the guard reports. It returns nil for any other error.
func uniqueConflict(err error) error {
	uv, ok := repository.AsUniqueViolation(err)
	if !ok {
		return nil
	}
	field := uv.Field()
	if field == repository.FieldPortfolioName {
		return portfolioNameTaken(uv.GlobalScope())
	}
	msg, ok := uniqueMessages[field]
	if !ok {
		msg = "value already in use"
	}
	return apperrors.NotUnique(apperrors.FieldError{
		Field:   field,
		Message: msg,
		Reason:  apperrors.ReasonUnique,
	})
}
