package repository

import (
	"context"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RepairRepository struct {
	db *gorm.DB
}

func NewRepairRepository(db *gorm.DB) *RepairRepository {
	return &RepairRepository{db: db}
}

// Enqueue records a pair for repair; a pair already queued is left as is.
func (r *RepairRepository) Enqueue(ctx context.Context, repair *model.RelationshipRepair) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "EnqueueRepair")

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(repair).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to enqueue relationship repair").
			String("kind", string(repair.Kind)).
			String("actor", repair.Actor).
			String("target", repair.Target).
			Err(err).
			Log()
		return translateError(err)
	}
	return nil
}

func (r *RepairRepository) List(ctx context.Context, limit int) ([]model.RelationshipRepair, error) {
	var repairs []model.RelationshipRepair
	if err := r.db.WithContext(ctx).Order("created_at").Limit(limit).Find(&repairs).Error; err != nil {
		return nil, translateError(err)
	}
	return repairs, nil
}

func (r *RepairRepository) Delete(ctx context.Context, id uint) error {
	return translateError(r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.RelationshipRepair{}).Error)
}
