package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups domain error codes into the classes callers can act on.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindRateExceeded
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateExceeded:
		return "rate_exceeded"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "internal"
	}
}

// Field error reasons.
const (
	ReasonFormat = "format"
	ReasonUnique = "unique"
)

// FieldError attributes a validation or uniqueness failure to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Kind    Kind
	Fields  []FieldError
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so specialized copies still compare equal to the predefined values.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind Kind, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Kind:    domainErr.Kind,
		Fields:  domainErr.Fields,
		Err:     err,
	}
}

// WithMessage returns a copy of domainErr carrying a more specific message.
func WithMessage(domainErr *DomainError, message string) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: message,
		Kind:    domainErr.Kind,
		Fields:  domainErr.Fields,
		Err:     domainErr.Err,
	}
}

// Predefined domain errors
var (
	// Validation and uniqueness
	ErrValidationFailed = NewDomainError(KindValidation, "VALIDATION_FAILED", "validation failed")
	ErrNotUnique        = NewDomainError(KindConflict, "NOT_UNIQUE", "value already in use")
	ErrAlreadyExists    = NewDomainError(KindConflict, "ALREADY_EXISTS", "already exists")

	// Lookups
	ErrUserNotFound      = NewDomainError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrPortfolioNotFound = NewDomainError(KindNotFound, "PORTFOLIO_NOT_FOUND", "portfolio not found")
	ErrPostNotFound      = NewDomainError(KindNotFound, "POST_NOT_FOUND", "post not found")

	// Relationships
	ErrSelfFollowDenied         = NewDomainError(KindForbidden, "SELF_FOLLOW_DENIED", "you cannot follow yourself")
	ErrCannotFollowOwnPortfolio = NewDomainError(KindForbidden, "CANNOT_FOLLOW_OWN_PORTFOLIO", "you cannot follow your own portfolio")
	ErrAlreadyFollowing         = NewDomainError(KindConflict, "ALREADY_FOLLOWING", "already following")
	ErrNotFollowing             = NewDomainError(KindConflict, "NOT_FOLLOWING", "not following")
	ErrAlreadyLiked             = NewDomainError(KindConflict, "ALREADY_LIKED", "already liked")
	ErrNotLiked                 = NewDomainError(KindConflict, "NOT_LIKED", "not liked yet")

	// One-time codes
	ErrCodeNotFound      = NewDomainError(KindNotFound, "CODE_NOT_FOUND", "code expired or not found")
	ErrInvalidCode       = NewDomainError(KindValidation, "INVALID_CODE", "invalid code")
	ErrTooManyAttempts   = NewDomainError(KindRateExceeded, "TOO_MANY_ATTEMPTS", "too many attempts, request a new code")
	ErrCodeSendThrottled = NewDomainError(KindRateExceeded, "CODE_SEND_THROTTLED", "a code was sent recently, try again later")

	// Access
	ErrUnauthorized = NewDomainError(KindUnauthorized, "UNAUTHORIZED", "unauthorized")
	ErrForbidden    = NewDomainError(KindForbidden, "FORBIDDEN", "forbidden")

	// System errors
	ErrUpstream = NewDomainError(KindUpstream, "UPSTREAM_FAILURE", "upstream provider failure")
	ErrInternal = NewDomainError(KindInternal, "INTERNAL_ERROR", "internal server error")
)

// Validation builds a ValidationFailed error carrying format field errors.
func Validation(fields ...FieldError) *DomainError {
	e := WithMessage(ErrValidationFailed, "validation failed")
	e.Fields = fields
	return e
}

// NotUnique builds a NotUnique error carrying uniqueness field errors.
func NotUnique(fields ...FieldError) *DomainError {
	msg := "value already in use"
	if len(fields) == 1 {
		msg = fields[0].Message
	}
	e := WithMessage(ErrNotUnique, msg)
	e.Fields = fields
	return e
}

// Upstream wraps a provider failure.
func Upstream(provider string, err error) *DomainError {
	return WrapError(WithMessage(ErrUpstream, provider+" provider failure"), err)
}

// Internal wraps an unexpected failure.
func Internal(err error) *DomainError {
	return WrapError(ErrInternal, err)
}

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// KindOf returns the error class, KindInternal for foreign errors.
func KindOf(err error) Kind {
	if de := GetDomainError(err); de != nil {
		return de.Kind
	}
	return KindInternal
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateExceeded:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage returns a caller-safe message; internal details never leak.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if de := GetDomainError(err); de != nil {
		return de.Message
	}

	return ErrInternal.Message
}

// GetErrorCode returns the domain code, INTERNAL_ERROR for foreign errors.
func GetErrorCode(err error) string {
	if de := GetDomainError(err); de != nil {
		return de.Code
	}
	return ErrInternal.Code
}

// GetFieldErrors returns field attribution, if any.
func GetFieldErrors(err error) []FieldError {
	if de := GetDomainError(err); de != nil {
		return de.Fields
	}
	return nil
}
