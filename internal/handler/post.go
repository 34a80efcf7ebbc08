package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/service"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

func fileError(message string) error {
	return apperrors.Validation(apperrors.FieldError{
		Field:   "file",
		Message: message,
		Reason:  apperrors.ReasonFormat,
	})
}

// Create accepts a multipart upload with a "file" part and an optional
// "caption". The media type is sniffed from the content, not taken from the
// client's header.
func (h *PostHandler) Create(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CreatePost")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Create post", err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxUploadSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, ctx, "Create post", fileError("file is too large"))
			return
		}
		writeError(c, ctx, "Create post", fileError("file is required"))
		return
	}
	if header.Size > constants.MaxUploadSize {
		writeError(c, ctx, "Create post", fileError("file is too large"))
		return
	}

	caption := c.PostForm("caption")
	if len([]rune(caption)) > constants.MaxCaptionLength {
		writeError(c, ctx, "Create post", apperrors.Validation(apperrors.FieldError{
			Field:   "caption",
			Message: "caption is too long",
			Reason:  apperrors.ReasonFormat,
		}))
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, ctx, "Create post", apperrors.Internal(err))
		return
	}
	defer file.Close()

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		writeError(c, ctx, "Create post", fileError("file could not be read"))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(c, ctx, "Create post", apperrors.Internal(err))
		return
	}

	post, err := h.posts.Create(ctx, actor, dto.CreatePostInput{
		PortfolioID: c.Param("id"),
		Caption:     caption,
		FileName:    header.Filename,
		ContentType: mime.String(),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(c, ctx, "Create post", err)
		return
	}

	logger.InfoWithContext(ctx, "Post created").
		String("post_id", post.ID).
		String("portfolio_id", post.PortfolioID).
		String("media_type", post.MediaType).
		Int64("size", header.Size).
		Log()
	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgCreated, post))
}

func (h *PostHandler) ListByPortfolio(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListPosts")

	pagination := constants.ParsePaginationParams(c)
	posts, total, err := h.posts.ListByPortfolio(ctx, c.Param("id"), pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(c, ctx, "List posts", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildListResponse(total, pagination.Page, pagination.PageTotal(total), posts))
}

func (h *PostHandler) Delete(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "DeletePost")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Delete post", err)
		return
	}
	id := c.Param("id")

	if err := h.posts.Delete(ctx, actor, id); err != nil {
		writeError(c, ctx, "Delete post", err)
		return
	}

	logger.InfoWithContext(ctx, "Post deleted").
		String("post_id", id).
		Log()
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgDeleted))
}

func (h *PostHandler) Like(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "LikePost")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Like post", err)
		return
	}

	status, err := h.posts.Like(ctx, actor, c.Param("id"))
	if err != nil {
		writeError(c, ctx, "Like post", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Liked", status))
}

func (h *PostHandler) Unlike(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UnlikePost")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Unlike post", err)
		return
	}

	status, err := h.posts.Unlike(ctx, actor, c.Param("id"))
	if err != nil {
		writeError(c, ctx, "Unlike post", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse("Unliked", status))
}

func (h *PostHandler) ListLikers(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListPostLikers")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "List post likers", err)
		return
	}

	users, err := h.posts.Likers(ctx, actor, c.Param("id"))
	if err != nil {
		writeError(c, ctx, "List post likers", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, users))
}

func (h *PostHandler) AddComment(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "AddComment")

	actor, err := caller(c)
	if err != nil {
		writeError(c, ctx, "Add comment", err)
		return
	}

	var req dto.CreateCommentRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, ctx, "Add comment", err)
		return
	}

	comment, err := h.posts.AddComment(ctx, actor, c.Param("id"), req)
	if err != nil {
		writeError(c, ctx, "Add comment", err)
		return
	}
	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgCreated, comment))
}

func (h *PostHandler) ListComments(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListComments")

	pagination := constants.ParsePaginationParams(c)
	comments, total, err := h.posts.ListComments(ctx, c.Param("id"), pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(c, ctx, "List comments", err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildListResponse(total, pagination.Page, pagination.PageTotal(total), comments))
}
