package repository

import (
	"context"
	"errors"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "CreatePost")

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to create post").
			String("portfolio_id", post.PortfolioID).
			Err(err).
			Log()
		return translateError(err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, translateError(err)
	}
	return &post, nil
}

func (r *PostRepository) ListByPortfolio(ctx context.Context, portfolioID string, limit, offset int) ([]model.Post, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ListPosts")

	base := r.db.WithContext(ctx).Model(&model.Post{}).Where("portfolio_id = ?", portfolioID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var posts []model.Post
	if err := base.Order("created_at DESC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list posts").
			String("portfolio_id", portfolioID).
			Err(err).
			Log()
		return nil, 0, translateError(err)
	}
	return posts, total, nil
}

// Delete removes the post and its comments together.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "DeletePost")

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&model.PostComment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Post{})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to delete post").
			String("post_id", id).
			Err(err).
			Log()
		return translateError(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) AddLike(ctx context.Context, id, identity string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "AddPostLike")

	element, err := jsonElement(identity)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Where("NOT (liked_by @> ?::jsonb)", element).
		Update("liked_by", gorm.Expr("liked_by || ?::jsonb", element))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to like post").
			String("post_id", id).
			String("identity", identity).
			Err(result.Error).
			Log()
		return false, translateError(result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, id)
}

func (r *PostRepository) RemoveLike(ctx context.Context, id, identity string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RemovePostLike")

	element, err := jsonElement(identity)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Where("liked_by @> ?::jsonb", element).
		Update("liked_by", gorm.Expr("liked_by - ?::text", identity))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to unlike post").
			String("post_id", id).
			String("identity", identity).
			Err(result.Error).
			Log()
		return false, translateError(result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, id)
}

func (r *PostRepository) mustExist(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translateError(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment inserts the comment only while its post still exists.
func (r *PostRepository) AddComment(ctx context.Context, comment *model.PostComment) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "AddPostComment")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id").Where("id = ?", comment.PostID).First(&post).Error; err != nil {
			return err
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, ErrNotFound) {
			logger.ErrorWithContext(ctx, "Failed to add comment").
				String("post_id", comment.PostID).
				Err(err).
				Log()
		}
		return err
	}
	return nil
}

func (r *PostRepository) ListComments(ctx context.Context, postID string, limit, offset int) ([]model.PostComment, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ListPostComments")

	base := r.db.WithContext(ctx).Model(&model.PostComment{}).Where("post_id = ?", postID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var comments []model.PostComment
	if err := base.Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&comments).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list comments").
			String("post_id", postID).
			Err(err).
			Log()
		return nil, 0, translateError(err)
	}
	return comments, total, nil
}
