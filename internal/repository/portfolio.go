package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PortfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepository(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) Create(ctx context.Context, portfolio *model.Portfolio) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "CreatePortfolio")

	if portfolio.Followers == nil {
		portfolio.Followers = datatypes.JSONSlice[string]{}
	}

	start := time.Now()
	result := r.db.WithContext(ctx).Create(portfolio)
	duration := time.Since(start)

	if result.Error != nil {
		err := translateError(result.Error)
		if _, ok := AsUniqueViolation(err); !ok {
			logger.ErrorWithContext(ctx, "Failed to create portfolio").
				String("owner_id", portfolio.OwnerID).
				String("name", portfolio.Name).
				Duration(duration).
				Err(result.Error).
				Log()
		}
		return err
	}

	logger.DebugWithContext(ctx, "Portfolio created").
		String("portfolio_id", portfolio.ID).
		Duration(duration).
		Log()
	return nil
}

func (r *PortfolioRepository) GetByID(ctx context.Context, id string) (*model.Portfolio, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetPortfolioByID")

	var portfolio model.Portfolio
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&portfolio).Error; err != nil {
		err = translateError(err)
		if err != ErrNotFound {
			logger.ErrorWithContext(ctx, "Failed to load portfolio").
				String("portfolio_id", id).
				Err(err).
				Log()
		}
		return nil, err
	}
	return &portfolio, nil
}

func (r *PortfolioRepository) ListByOwner(ctx context.Context, owner string) ([]model.Portfolio, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ListPortfoliosByOwner")

	var portfolios []model.Portfolio
	if err := r.db.WithContext(ctx).Where("owner_id = ?", owner).Order("created_at").Find(&portfolios).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list portfolios").
			String("owner_id", owner).
			Err(err).
			Log()
		return nil, translateError(err)
	}
	return portfolios, nil
}

// ExistsByName checks name within owner's portfolios, or across all owners when owner is empty.
func (r *PortfolioRepository) ExistsByName(ctx context.Context, name, owner, excludeID string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "PortfolioNameExists")

	query := r.db.WithContext(ctx).Model(&model.Portfolio{}).Where("name = ?", name)
	if owner != "" {
		query = query.Where("owner_id = ?", owner)
	}
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Limit(1).Count(&count).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to check portfolio name").
			String("name", name).
			String("owner_id", owner).
			Err(err).
			Log()
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *PortfolioRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "UpdatePortfolioFields")

	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&model.Portfolio{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		err := translateError(result.Error)
		if _, ok := AsUniqueViolation(err); !ok {
			logger.ErrorWithContext(ctx, "Failed to update portfolio").
				String("portfolio_id", id).
				Err(result.Error).
				Log()
		}
		return err
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PortfolioRepository) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "DeletePortfolio")

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Portfolio{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to delete portfolio").
			String("portfolio_id", id).
			Err(result.Error).
			Log()
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PortfolioRepository) AddFollower(ctx context.Context, id, identity string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "AddPortfolioFollower")

	element, err := jsonElement(identity)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&model.Portfolio{}).
		Where("id = ?", id).
		Where("NOT (followers @> ?::jsonb)", element).
		Update("followers", gorm.Expr("followers || ?::jsonb", element))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to add portfolio follower").
			String("portfolio_id", id).
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

func (r *PortfolioRepository) RemoveFollower(ctx context.Context, id, identity string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RemovePortfolioFollower")

	element, err := jsonElement(identity)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&model.Portfolio{}).
		Where("id = ?", id).
		Where("followers @> ?::jsonb", element).
		Update("followers", gorm.Expr("followers - ?::text", identity))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to remove portfolio follower").
			String("portfolio_id", id).
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

func (r *PortfolioRepository) mustExist(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Portfolio{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translateError(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFollowedBy scans portfolios whose followers contain identity (GIN-indexed).
func (r *PortfolioRepository) ListFollowedBy(ctx context.Context, identity string) ([]model.Portfolio, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ListFollowedPortfolios")

	element, err := jsonElement(identity)
	if err != nil {
		return nil, err
	}

	var portfolios []model.Portfolio
	if err := r.db.WithContext(ctx).Where("followers @> ?::jsonb", element).Order("created_at").Find(&portfolios).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list followed portfolios").
			String("identity", identity).
			Err(err).
			Log()
		return nil, translateError(err)
	}
	return portfolios, nil
}
