package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/google/uuid"
)

var allowedMediaPrefixes = []string{"image/", "video/", "audio/"}

type PostService struct {
	posts      repository.PostStore
	portfolios repository.PortfolioStore
	users      repository.UserStore
	media      MediaStore
}

func NewPostService(stores *repository.Stores, media MediaStore) *PostService {
	return &PostService{
		posts:      stores.Posts,
		portfolios: stores.Portfolios,
		users:      stores.Users,
		media:      media,
	}
}

// Create uploads the media, then records the post. If the insert fails the
// upload is deleted best-effort.
func (s *PostService) Create(ctx context.Context, actor string, in dto.CreatePostInput) (*dto.PostResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "CreatePost")

	portfolio, err := s.portfolios.GetByID(ctx, in.PortfolioID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if portfolio.OwnerID != actor {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "only the owner can post to this portfolio")
	}
	if !allowedMedia(in.ContentType) {
		return nil, apperrors.Validation(apperrors.FieldError{
			Field:   "file",
			Message: "file must be an image, a video or an audio clip",
			Reason:  apperrors.ReasonFormat,
		})
	}

	id := uuid.NewString()
	objectName := path.Join(in.PortfolioID, id+path.Ext(in.FileName))
	url, handle, err := s.media.Store(ctx, objectName, in.ContentType, in.Body, in.Size)
	if err != nil {
		logger.ErrorWithContext(ctx, "Media upload failed").
			String("portfolio_id", in.PortfolioID).
			Err(err).
			Log()
		return nil, apperrors.Upstream("media", err)
	}

	post := &model.Post{
		ID:          id,
		PortfolioID: in.PortfolioID,
		OwnerID:     actor,
		Caption:     in.Caption,
		MediaURL:    url,
		MediaHandle: handle,
		MediaType:   in.ContentType,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		logger.ErrorWithContext(ctx, "Failed to record post, removing upload").
			String("portfolio_id", in.PortfolioID).
			Err(err).
			Log()
		s.deleteMedia(context.WithoutCancel(ctx), handle)
		return nil, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Post created").
		String("post_id", post.ID).
		String("portfolio_id", post.PortfolioID).
		Int64("size", in.Size).
		Log()
	resp := dto.NewPostResponse(post)
	return &resp, nil
}

func (s *PostService) ListByPortfolio(ctx context.Context, portfolioID string, limit, offset int) ([]dto.PostResponse, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListPosts")

	if _, err := s.portfolios.GetByID(ctx, portfolioID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, apperrors.ErrPortfolioNotFound
		}
		return nil, 0, apperrors.Internal(err)
	}

	posts, total, err := s.posts.ListByPortfolio(ctx, portfolioID, limit, offset)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list posts").
			String("portfolio_id", portfolioID).
			Err(err).
			Log()
		return nil, 0, apperrors.Internal(err)
	}
	return dto.NewPostResponses(posts), total, nil
}

// Delete removes the post row first; the media delete that follows is
// best-effort and only logged.
func (s *PostService) Delete(ctx context.Context, actor, id string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "DeletePost")

	post, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrPostNotFound
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if post.OwnerID != actor {
		return apperrors.WithMessage(apperrors.ErrForbidden, "only the owner can delete this post")
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrPostNotFound
		}
		return apperrors.Internal(err)
	}
	s.deleteMedia(context.WithoutCancel(ctx), post.MediaHandle)

	logger.InfoWithContext(ctx, "Post deleted").
		String("post_id", id).
		Log()
	return nil
}

// Like adds actor to the post's likers. The store only inserts when actor is
// absent, so of two concurrent likes exactly one succeeds.
func (s *PostService) Like(ctx context.Context, actor, id string) (*dto.LikeResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "LikePost")

	post, err := s.loadForActor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if post.LikedByIdentity(actor) {
		return nil, apperrors.ErrAlreadyLiked
	}

	added, err := s.posts.AddLike(ctx, id, actor)
	if err != nil {
		return nil, s.postError(ctx, err)
	}
	if !added {
		return nil, apperrors.ErrAlreadyLiked
	}

	logger.InfoWithContext(ctx, "Post liked").
		String("actor", actor).
		String("post_id", id).
		Log()
	return s.likeStatus(ctx, id, true)
}

func (s *PostService) Unlike(ctx context.Context, actor, id string) (*dto.LikeResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "UnlikePost")

	if _, err := s.loadForActor(ctx, actor, id); err != nil {
		return nil, err
	}

	removed, err := s.posts.RemoveLike(ctx, id, actor)
	if err != nil {
		return nil, s.postError(ctx, err)
	}
	if !removed {
		return nil, apperrors.ErrNotLiked
	}

	logger.InfoWithContext(ctx, "Post unliked").
		String("actor", actor).
		String("post_id", id).
		Log()
	return s.likeStatus(ctx, id, false)
}

// Likers lists who liked the post. Only the post owner may see it.
func (s *PostService) Likers(ctx context.Context, actor, id string) ([]dto.UserSummary, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListPostLikers")

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.postError(ctx, err)
	}
	if post.OwnerID != actor {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "only the owner can see who liked this post")
	}
	if len(post.LikedBy) == 0 {
		return []dto.UserSummary{}, nil
	}
	users, err := s.users.ListByIdentities(ctx, post.LikedBy)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return dto.NewUserSummaries(users), nil
}

func (s *PostService) AddComment(ctx context.Context, actor, id string, req dto.CreateCommentRequest) (*dto.CommentResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "AddComment")

	body := strings.TrimSpace(req.Comment)
	if body == "" || len([]rune(body)) > constants.MaxCommentLength {
		return nil, apperrors.Validation(apperrors.FieldError{
			Field:   "comment",
			Message: "comment must be between 1 and 1000 characters",
			Reason:  apperrors.ReasonFormat,
		})
	}

	author, err := s.users.GetByIdentity(ctx, actor)
	if err != nil {
		return nil, s.userError(ctx, err)
	}

	comment := &model.PostComment{PostID: id, AuthorID: actor, Body: body}
	if err := s.posts.AddComment(ctx, comment); err != nil {
		return nil, s.postError(ctx, err)
	}

	logger.InfoWithContext(ctx, "Comment added").
		String("actor", actor).
		String("post_id", id).
		Log()
	resp := dto.NewCommentResponse(comment, dto.NewUserSummaries([]model.User{*author})[0])
	return &resp, nil
}

// ListComments returns a page of comments, oldest first, with each author's summary.
func (s *PostService) ListComments(ctx context.Context, id string, limit, offset int) ([]dto.CommentResponse, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListComments")

	if _, err := s.posts.GetByID(ctx, id); err != nil {
		return nil, 0, s.postError(ctx, err)
	}
	comments, total, err := s.posts.ListComments(ctx, id, limit, offset)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list comments").
			String("post_id", id).
			Err(err).
			Log()
		return nil, 0, apperrors.Internal(err)
	}

	authors := make(map[string]dto.UserSummary)
	var identities []string
	for _, c := range comments {
		if _, seen := authors[c.AuthorID]; !seen {
			authors[c.AuthorID] = dto.UserSummary{}
			identities = append(identities, c.AuthorID)
		}
	}
	if len(identities) > 0 {
		users, err := s.users.ListByIdentities(ctx, identities)
		if err != nil {
			return nil, 0, apperrors.Internal(err)
		}
		for _, summary := range dto.NewUserSummaries(users) {
			authors[summary.Identity] = summary
		}
	}

	out := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, dto.NewCommentResponse(&comments[i], authors[comments[i].AuthorID]))
	}
	return out, total, nil
}

func (s *PostService) loadForActor(ctx context.Context, actor, id string) (*model.Post, error) {
	if _, err := s.users.GetByIdentity(ctx, actor); err != nil {
		return nil, s.userError(ctx, err)
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.postError(ctx, err)
	}
	return post, nil
}

func (s *PostService) likeStatus(ctx context.Context, id string, liked bool) (*dto.LikeResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, s.postError(ctx, err)
	}
	return &dto.LikeResponse{Liked: liked, Likes: len(post.LikedBy)}, nil
}

func (s *PostService) postError(ctx context.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrPostNotFound
	}
	logger.ErrorWithContext(ctx, "Post store failure").
		Err(err).
		Log()
	return apperrors.Internal(err)
}

func (s *PostService) userError(ctx context.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.WithMessage(apperrors.ErrUserNotFound, "actor profile not found")
	}
	logger.ErrorWithContext(ctx, "User store failure").
		Err(err).
		Log()
	return apperrors.Internal(err)
}

func (s *PostService) deleteMedia(ctx context.Context, handle string) {
	if err := s.media.Delete(ctx, handle); err != nil {
		logger.WarnWithContext(ctx, "Media delete failed").
			String("handle", handle).
			Err(err).
			Log()
	}
}

func allowedMedia(contentType string) bool {
	for _, prefix := range allowedMediaPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
