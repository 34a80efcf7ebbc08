package handler

import (
	"net/http"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/Payphone-Digital/portfolio-service/internal/service"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// CheckHandler serves the availability endpoints used by sign-up and edit
// forms. Answers are advisory; writes re-check under the store's unique
// indexes.
type CheckHandler struct {
	guard *service.UniquenessGuard
}

func NewCheckHandler(guard *service.UniquenessGuard) *CheckHandler {
	return &CheckHandler{guard: guard}
}

func (h *CheckHandler) CheckEmail(c *gin.Context)    { h.checkIdentityField(c, repository.FieldEmail) }
func (h *CheckHandler) CheckUsername(c *gin.Context) { h.checkIdentityField(c, repository.FieldUsername) }
func (h *CheckHandler) CheckPhone(c *gin.Context)    { h.checkIdentityField(c, repository.FieldPhone) }

func (h *CheckHandler) checkIdentityField(c *gin.Context, field string) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Check")

	value := c.Query("value")
	exclude := c.Query("exclude")

	logger.DebugWithContext(ctx, "Availability check").
		String("field", field).
		Bool("has_exclude", exclude != "").
		Log()

	resp, err := h.guard.Availability(ctx, field, value, exclude)
	if err != nil {
		writeError(c, ctx, "Availability check", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, resp))
}

// CheckPortfolioName checks the global scope, or the scope of :owner when
// the route carries one.
func (h *CheckHandler) CheckPortfolioName(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CheckPortfolioName")

	resp, err := h.guard.PortfolioNameAvailability(ctx, c.Query("name"), c.Param("owner"))
	if err != nil {
		writeError(c, ctx, "Portfolio name check", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, resp))
}
