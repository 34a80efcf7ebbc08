package router

import "github.com/gin-gonic/gin"

// otpRoutes send codes to email inboxes and phones, so they get a tighter
// limiter on top of the global one.
func (r *Router) otpRoutes(rg *gin.RouterGroup) {
	otp := rg.Group("/otp")
	otp.Use(r.limiter("otp", r.config.RateLimit.OTPRequest, r.config.RateLimit.OTPDuration).Handler())
	{
		otp.POST("/registration/send", r.handlers.OTP.SendRegistrationCode)
		otp.POST("/registration/verify", r.handlers.OTP.VerifyRegistrationCode)

		otp.POST("/password-reset/send", r.handlers.OTP.SendPasswordResetCode)
		otp.POST("/password-reset/reset", r.handlers.OTP.ResetPassword)

		otp.POST("/phone/send", r.handlers.OTP.SendPhoneCode)
		otp.POST("/phone/verify", r.handlers.OTP.VerifyPhoneCode)
	}
}
