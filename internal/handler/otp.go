package handler

import (
	"net/http"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	"github.com/Payphone-Digital/portfolio-service/internal/service"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// OTPHandler serves the public one-time code flows: registration email
// codes, password reset, and phone verification without an account.
type OTPHandler struct {
	accounts *service.AccountService
	phones   *service.PhoneService
}

func NewOTPHandler(accounts *service.AccountService, phones *service.PhoneService) *OTPHandler {
	return &OTPHandler{accounts: accounts, phones: phones}
}

func (h *OTPHandler) SendRegistrationCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "SendRegistrationCode")

	var req dto.SendRegistrationCodeRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Send registration code", err)
		return
	}

	resp, err := h.accounts.SendRegistrationCode(ctx, req.Email)
	if err != nil {
		writeError(c, ctx, "Send registration code", err)
		return
	}

	logger.InfoWithContext(ctx, "Registration code sent").
		String("destination", resp.Destination).
		Log()
	c.JSON(http.StatusOK, constants.BuildDataResponse("Verification code sent", resp))
}

func (h *OTPHandler) VerifyRegistrationCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "VerifyRegistrationCode")

	var req dto.VerifyRegistrationCodeRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Verify registration code", err)
		return
	}

	resp, err := h.accounts.VerifyRegistrationCode(ctx, req.Email, req.Code)
	if err != nil {
		writeError(c, ctx, "Verify registration code", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Email verified", resp))
}

func (h *OTPHandler) SendPasswordResetCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "SendPasswordResetCode")

	var req dto.SendPasswordResetRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Send password reset code", err)
		return
	}

	resp, err := h.accounts.SendPasswordResetCode(ctx, req)
	if err != nil {
		writeError(c, ctx, "Send password reset code", err)
		return
	}

	logger.InfoWithContext(ctx, "Password reset code sent").
		String("method", req.Method).
		String("destination", resp.Destination).
		Log()
	c.JSON(http.StatusOK, constants.BuildDataResponse("Reset code sent", resp))
}

func (h *OTPHandler) ResetPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ResetPassword")

	var req dto.ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Reset password", err)
		return
	}

	if err := h.accounts.ResetPassword(ctx, req); err != nil {
		writeError(c, ctx, "Reset password", err)
		return
	}

	logger.InfoWithContext(ctx, "Password reset").
		String("method", req.Method).
		Log()
	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Password updated"))
}

func (h *OTPHandler) SendPhoneCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "SendPhoneCode")

	var req dto.SendPhoneCodeRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Send phone code", err)
		return
	}

	resp, err := h.phones.SendCode(ctx, req.Phone)
	if err != nil {
		writeError(c, ctx, "Send phone code", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Verification code sent", resp))
}

func (h *OTPHandler) VerifyPhoneCode(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "VerifyPhoneCode")

	var req dto.VerifyPhoneRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Verify phone code", err)
		return
	}

	resp, err := h.phones.VerifyCode(ctx, req.Phone, req.Code)
	if err != nil {
		writeError(c, ctx, "Verify phone code", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Phone verified", resp))
}
