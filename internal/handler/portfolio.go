package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	"github.com/Payphone-Digital/portfolio-service/internal/service"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type PortfolioHandler struct {
	portfolios  *service.PortfolioService
	coordinator *service.RelationshipCoordinator
}

func NewPortfolioHandler(portfolios *service.PortfolioService, coordinator *service.RelationshipCoordinator) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios, coordinator: coordinator}
}

func (h *PortfolioHandler) Create(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CreatePortfolio")

	owner, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Create portfolio", err)
		return
	}

	var req dto.CreatePortfolioRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Create portfolio", err)
		return
	}

	portfolio, err := h.portfolios.Create(ctx, owner, req)
	if err != nil {
		writeError(c, ctx, "Create portfolio", err)
		return
	}

	logger.InfoWithContext(ctx, "Portfolio created").
		String("portfolio_id", portfolio.ID).
		String("owner", owner).
		Log()
	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgCreated, portfolio))
}

func (h *PortfolioHandler) Get(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetPortfolio")

	portfolio, err := h.portfolios.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, ctx, "Get portfolio", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, portfolio))
}

func (h *PortfolioHandler) ListByOwner(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListPortfolios")

	portfolios, err := h.portfolios.ListByOwner(ctx, c.Param("owner"))
	if err != nil {
		writeError(c, ctx, "List portfolios", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, portfolios))
}

func (h *PortfolioHandler) Update(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdatePortfolio")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Update portfolio", err)
		return
	}

	var req dto.UpdatePortfolioRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Update portfolio", err)
		return
	}

	portfolio, err := h.portfolios.Update(ctx, actor, c.Param("id"), req)
	if err != nil {
		writeError(c, ctx, "Update portfolio", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgUpdated, portfolio))
}

func (h *PortfolioHandler) Delete(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "DeletePortfolio")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Delete portfolio", err)
		return
	}
	id := c.Param("id")

	if err := h.portfolios.Delete(ctx, actor, id); err != nil {
		writeError(c, ctx, "Delete portfolio", err)
		return
	}

	logger.InfoWithContext(ctx, "Portfolio deleted").
		String("portfolio_id", id).
		Log()
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgDeleted))
}

func (h *PortfolioHandler) ListFollowers(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListPortfolioFollowers")

	users, err := h.portfolios.ListFollowers(ctx, c.Param("id"))
	if err != nil {
		writeError(c, ctx, "List portfolio followers", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, users))
}

func (h *PortfolioHandler) Follow(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "FollowPortfolio")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Follow portfolio", err)
		return
	}
	id := c.Param("id")

	if err := h.coordinator.FollowPortfolio(ctx, actor, id); err != nil {
		writeError(c, ctx, "Follow portfolio", err)
		return
	}
	h.writeFollowStatus(c, ctx, actor, id, "Followed")
}

func (h *PortfolioHandler) Unfollow(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UnfollowPortfolio")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Unfollow portfolio", err)
		return
	}
	id := c.Param("id")

	if err := h.coordinator.UnfollowPortfolio(ctx, actor, id); err != nil {
		writeError(c, ctx, "Unfollow portfolio", err)
		return
	}
	h.writeFollowStatus(c, ctx, actor, id, "Unfollowed")
}

func (h *PortfolioHandler) FollowStatus(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "PortfolioFollowStatus")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Portfolio follow status", err)
		return
	}

	status, err := h.coordinator.PortfolioFollowStatus(ctx, actor, c.Param("id"))
	if err != nil {
		writeError(c, ctx, "Portfolio follow status", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, status))
}

func (h *PortfolioHandler) writeFollowStatus(c *gin.Context, ctx context.Context, actor, id, message string) {
	status, err := h.coordinator.PortfolioFollowStatus(ctx, actor, id)
	if err != nil {
		logger.WarnWithContext(ctx, "Portfolio follow status unavailable after mutation").
			String("portfolio_id", id).
			Err(err).
			Log()
		c.JSON(http.StatusOK, constants.BuildSuccessResponse(message))
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(message, status))
}
