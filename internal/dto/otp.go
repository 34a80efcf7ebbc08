package dto

// Password reset delivery methods.
const (
	MethodEmail = "email"
	MethodSMS   = "sms"
)

type SendRegistrationCodeRequest struct {
	Email string `json:"email" binding:"required,max=254"`
}

type VerifyRegistrationCodeRequest struct {
	Email string `json:"email" binding:"required,max=254"`
	Code  string `json:"code" binding:"required,otp_code"`
}

type SendPasswordResetRequest struct {
	Method string `json:"method" binding:"required,oneof=email sms"`
	Email  string `json:"email" binding:"required_if=Method email,max=254"`
	Phone  string `json:"phone" binding:"required_if=Method sms,max=32"`
}

type ResetPasswordRequest struct {
	Method      string `json:"method" binding:"required,oneof=email sms"`
	Email       string `json:"email" binding:"required_if=Method email,max=254"`
	Phone       string `json:"phone" binding:"required_if=Method sms,max=32"`
	Code        string `json:"code" binding:"required,otp_code"`
	NewPassword string `json:"new_password" binding:"required,strong_password"`
}

type SendPhoneCodeRequest struct {
	Phone string `json:"phone" binding:"required,max=32"`
}

type CodeSentResponse struct {
	Destination string `json:"destination"`
	ExpiresIn   int    `json:"expires_in"`
}

type CodeVerifiedResponse struct {
	Verified bool `json:"verified"`
}
