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

// ProfileHandler serves the caller's own profile and the public user
// endpoints, including user-to-user follows.
type ProfileHandler struct {
	profiles    *service.ProfileService
	phones      *service.PhoneService
	coordinator *service.RelationshipCoordinator
}

func NewProfileHandler(profiles *service.ProfileService, phones *service.PhoneService, coordinator *service.RelationshipCoordinator) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, phones: phones, coordinator: coordinator}
}

// CreateProfile binds the caller's identity to a profile. A second call
// returns the existing profile with 200 instead of 201.
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CreateProfile")

	identity, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Create profile", err)
		return
	}

	var req dto.CreateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Create profile", err)
		return
	}

	profile, created, err := h.profiles.CreateOrGet(ctx, identity, req)
	if err != nil {
		writeError(c, ctx, "Create profile", err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, constants.BuildDataResponse("Profile already exists", profile))
		return
	}
	logger.InfoWithContext(ctx, "Profile created").
		String("identity", identity).
		Log()
	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgCreated, profile))
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetProfile")

	identity, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Get profile", err)
		return
	}

	profile, err := h.profiles.Get(ctx, identity)
	if err != nil {
		writeError(c, ctx, "Get profile", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, profile))
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdateProfile")

	identity, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Update profile", err)
		return
	}

	var req dto.UpdateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Update profile", err)
		return
	}

	profile, err := h.profiles.Update(ctx, identity, req)
	if err != nil {
		writeError(c, ctx, "Update profile", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgUpdated, profile))
}

func (h *ProfileHandler) VerifyPhone(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "VerifyPhone")

	identity, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Verify phone", err)
		return
	}

	var req dto.VerifyPhoneRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Verify phone", err)
		return
	}

	profile, err := h.phones.VerifyForProfile(ctx, identity, req.Phone, req.Code)
	if err != nil {
		writeError(c, ctx, "Verify phone", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Phone verified", profile))
}

func (h *ProfileHandler) ChangePhone(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ChangePhone")

	identity, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Change phone", err)
		return
	}

	var req dto.VerifyPhoneRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Change phone", err)
		return
	}

	profile, err := h.phones.ChangePhone(ctx, identity, req.Phone, req.Code)
	if err != nil {
		writeError(c, ctx, "Change phone", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Phone changed", profile))
}

func (h *ProfileHandler) FollowedPortfolios(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "FollowedPortfolios")

	identity, err := caller(c)
	if err != nil {
		writeError(c, ctx, "List followed portfolios", err)
		return
	}

	portfolios, err := h.coordinator.ListFollowedPortfolios(ctx, identity)
	if err != nil {
		writeError(c, ctx, "List followed portfolios", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, portfolios))
}

// GetUser returns a public profile without contact details.
func (h *ProfileHandler) GetUser(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetUser")

	profile, err := h.profiles.GetPublic(ctx, c.Param("identity"))
	if err != nil {
		writeError(c, ctx, "Get user", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, profile))
}

func (h *ProfileHandler) SearchUsers(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "SearchUsers")

	pagination := constants.ParsePaginationParams(c)
	query := c.DefaultQuery(constants.QueryParamSearch, "")

	users, total, err := h.profiles.Search(ctx, query, pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(c, ctx, "Search users", err)
		return
	}

	logger.DebugWithContext(ctx, "Users searched").
		String("query", query).
		Int("page", pagination.Page).
		Int64("total", total).
		Log()
	c.JSON(http.StatusOK, constants.BuildListResponse(total, pagination.Page, pagination.PageTotal(total), users))
}

func (h *ProfileHandler) ListFollowers(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListFollowers")

	users, err := h.profiles.ListFollowers(ctx, c.Param("identity"))
	if err != nil {
		writeError(c, ctx, "List followers", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, users))
}

func (h *ProfileHandler) ListFollowing(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListFollowing")

	users, err := h.profiles.ListFollowing(ctx, c.Param("identity"))
	if err != nil {
		writeError(c, ctx, "List following", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, users))
}

func (h *ProfileHandler) Follow(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Follow")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Follow user", err)
		return
	}
	target := c.Param("identity")

	if err := h.coordinator.Follow(ctx, actor, target); err != nil {
		writeError(c, ctx, "Follow user", err)
		return
	}
	h.writeFollowStatus(c, ctx, actor, target, "Followed")
}

func (h *ProfileHandler) Unfollow(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Unfollow")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Unfollow user", err)
		return
	}
	target := c.Param("identity")

	if err := h.coordinator.Unfollow(ctx, actor, target); err != nil {
		writeError(c, ctx, "Unfollow user", err)
		return
	}
	h.writeFollowStatus(c, ctx, actor, target, "Unfollowed")
}

func (h *ProfileHandler) FollowStatus(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "FollowStatus")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Follow status", err)
		return
	}

	status, err := h.coordinator.FollowStatus(ctx, actor, c.Param("identity"))
	if err != nil {
		writeError(c, ctx, "Follow status", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, status))
}

// writeFollowStatus reports the target's counts after a mutation. The
// mutation already succeeded, so a failed read still answers 200.
func (h *ProfileHandler) writeFollowStatus(c *gin.Context, ctx context.Context, actor, target, message string) {
	status, err := h.coordinator.FollowStatus(ctx, actor, target)
	if err != nil {
		logger.WarnWithContext(ctx, "Follow status unavailable after mutation").
			String("target", target).
			Err(err).
			Log()
		c.JSON(http.StatusOK, constants.BuildSuccessResponse(message))
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(message, status))
}
