package validation

import (
	"fmt"
	"strings"
)

var customMessages = map[string]map[string]string{
	"email": {
		"required": "email is required",
		"email":    "email is not a valid address",
	},
	"phone": {
		"required": "phone is required",
		"e164":     "phone must be in E.164 format, e.g. +14155550100",
	},
	"password": {
		"required":        "password is required",
		"strong_password": "password must be 8-128 characters with upper and lower case letters, a digit, and a symbol",
	},
	"new_password": {
		"strong_password": "password must be 8-128 characters with upper and lower case letters, a digit, and a symbol",
	},
	"code": {
		"required": "code is required",
		"otp_code": "code must be 6 digits",
	},
}

// Message returns the user-facing text for a failed validation tag.
func Message(field, tag, param string) string {
	if msgs, ok := customMessages[field]; ok {
		if msg, ok := msgs[tag]; ok {
			return msg
		}
	}

	field = strings.ToLower(field)
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "e164":
		return fmt.Sprintf("%s must be in E.164 format", field)
	case "username":
		return fmt.Sprintf("%s must be 3-30 letters, digits, or underscores", field)
	case "portfolio_name":
		return fmt.Sprintf("%s must be 3-50 letters, digits, spaces, hyphens, or underscores", field)
	case "strong_password":
		return fmt.Sprintf("%s is not strong enough", field)
	case "otp_code":
		return fmt.Sprintf("%s must be 6 digits", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is absent", field, strings.ToLower(param))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
