package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	usernameRegex      = regexp.MustCompile(constants.UsernamePattern)
	portfolioNameRegex = regexp.MustCompile(constants.PortfolioNamePattern)
	otpRegex           = regexp.MustCompile(constants.OTPPattern)

	instance *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator with the domain tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds a validator that reports json field names and knows the
// username, portfolio_name, strong_password, and otp_code tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	Register(v)
	return v
}

// RegisterGin installs the domain tags on gin's binding engine so `binding`
// struct tags can use them.
func RegisterGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register adds the json tag name func and the domain tags to v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("portfolio_name", func(fl validator.FieldLevel) bool {
		return ValidPortfolioName(fl.Field().String())
	})
	_ = v.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("otp_code", func(fl validator.FieldLevel) bool {
		return otpRegex.MatchString(fl.Field().String())
	})
}

func ValidUsername(s string) bool {
	n := len(s)
	return n >= constants.MinUsernameLength && n <= constants.MaxUsernameLength && usernameRegex.MatchString(s)
}

func ValidPortfolioName(s string) bool {
	n := len(strings.TrimSpace(s))
	return n >= constants.MinPortfolioNameLength && n <= constants.MaxPortfolioNameLength && portfolioNameRegex.MatchString(s)
}

// StrongPassword requires upper, lower, digit, and a symbol within the length bounds.
func StrongPassword(s string) bool {
	if len(s) < constants.MinPasswordLength || len(s) > constants.MaxPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// Struct validates req and converts failures into a ValidationFailed domain error.
func Struct(req interface{}) error {
	return FromError(Validator().Struct(req))
}

// FromError converts a validator or binding error into a ValidationFailed
// domain error. Malformed bodies surface as a single unattributed field error.
func FromError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(apperrors.FieldError{
			Message: err.Error(),
			Reason:  apperrors.ReasonFormat,
		})
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Message: Message(fe.Field(), fe.Tag(), fe.Param()),
			Reason:  apperrors.ReasonFormat,
		})
	}
	return apperrors.Validation(fields...)
}
