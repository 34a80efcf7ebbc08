package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Replace stores code as the only one for its (identifier, purpose). It is a
// single upsert, so concurrent sends for the same pair never collide on the
// unique index. The id is taken from the new row, which keeps a verify racing
// against a resend from consuming the replacement.
func (r *OTPRepository) Replace(ctx context.Context, code *model.OneTimeCode) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "ReplaceCode")

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}, {Name: "purpose"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "code_hash", "salt", "attempts", "expires_at", "created_at"}),
	}).Create(code).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to store one-time code").
			String("purpose", string(code.Purpose)).
			Err(err).
			Log()
		return translateError(err)
	}
	return nil
}

func (r *OTPRepository) Get(ctx context.Context, identifier string, purpose model.OTPPurpose) (*model.OneTimeCode, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "GetCode")

	var code model.OneTimeCode
	if err := r.db.WithContext(ctx).
		Where("identifier = ? AND purpose = ?", identifier, purpose).
		First(&code).Error; err != nil {
		return nil, translateError(err)
	}
	return &code, nil
}

// IncrementAttempts counts one attempt unless the cap is already reached.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id uint, maxAttempts int) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "IncrementAttempts")

	result := r.db.WithContext(ctx).Model(&model.OneTimeCode{}).
		Where("id = ? AND attempts < ?", id, maxAttempts).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to count code attempt").
			Err(result.Error).
			Log()
		return false, translateError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Delete reports whether this call removed the row, so a code is consumed exactly once.
func (r *OTPRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.OneTimeCode{})
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "DeleteExpiredCodes")

	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.OneTimeCode{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to sweep expired codes").
			Err(result.Error).
			Log()
		return 0, translateError(result.Error)
	}
	return result.RowsAffected, nil
}
