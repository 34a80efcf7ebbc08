package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

var userUniqueColumns = map[string]string{
	FieldEmail:    "email",
	FieldUsername: "username",
	FieldPhone:    "phone",
}

var userSetColumns = map[model.UserSet]string{
	model.SetFollowers:     "followers",
	model.SetFollowing:     "following",
	model.SetPortfolioRefs: "portfolio_refs",
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "CreateUser")

	normalizeSets(user)

	start := time.Now()
	result := r.db.WithContext(ctx).Create(user)
	duration := time.Since(start)

	if result.Error != nil {
		err := translateError(result.Error)
		if _, ok := AsUniqueViolation(err); ok {
			logger.WarnWithContext(ctx, "User insert hit unique constraint").
				String("identity", user.Identity).
				Duration(duration).
				Err(err).
				Log()
			return err
		}
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("identity", user.Identity).
			Duration(duration).
			Err(result.Error).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "User created").
		String("identity", user.Identity).
		Duration(duration).
		Log()
	return nil
}

func (r *UserRepository) GetByIdentity(ctx context.Context, identity string) (*model.User, error) {
	return r.first(ctxutil.WithFunction(ctx, "repository", "GetByIdentity"), "identity = ?", identity)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctxutil.WithFunction(ctx, "repository", "GetByEmail"), "email = ?", email)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.first(ctxutil.WithFunction(ctx, "repository", "GetByPhone"), "phone = ?", phone)
}

func (r *UserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var user model.User
	result := r.db.WithContext(ctx).Where(query, arg).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		err := translateError(result.Error)
		if err != ErrNotFound {
			logger.ErrorWithContext(ctx, "Failed to load user").
				Duration(duration).
				Err(result.Error).
				Log()
		}
		return nil, err
	}

	return &user, nil
}

// ExistsByField reports whether another user holds value in field.
func (r *UserRepository) ExistsByField(ctx context.Context, field, value, excludeIdentity string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ExistsByField")

	column, ok := userUniqueColumns[field]
	if !ok {
		return false, fmt.Errorf("repository: %q is not a unique user field", field)
	}

	query := r.db.WithContext(ctx).Model(&model.User{}).Where(column+" = ?", value)
	if excludeIdentity != "" {
		query = query.Where("identity <> ?", excludeIdentity)
	}

	var count int64
	if err := query.Limit(1).Count(&count).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to check field existence").
			String("field", field).
			Err(err).
			Log()
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *UserRepository) UpdateFields(ctx context.Context, identity string, fields map[string]interface{}) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "UpdateUserFields")

	if len(fields) == 0 {
		return nil
	}

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("identity = ?", identity).Updates(fields)
	duration := time.Since(start)

	if result.Error != nil {
		err := translateError(result.Error)
		if _, ok := AsUniqueViolation(err); !ok {
			logger.ErrorWithContext(ctx, "Failed to update user").
				String("identity", identity).
				Duration(duration).
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

// AddMember appends member to set unless it is already present.
func (r *UserRepository) AddMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "AddMember")

	column, ok := userSetColumns[set]
	if !ok {
		return false, fmt.Errorf("repository: unknown user set %q", set)
	}
	element, err := jsonElement(member)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("identity = ?", identity).
		Where("NOT ("+column+" @> ?::jsonb)", element).
		Update(column, gorm.Expr(column+" || ?::jsonb", element))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to add set member").
			String("identity", identity).
			String("set", column).
			String("member", member).
			Err(result.Error).
			Log()
		return false, translateError(result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, identity)
}

// RemoveMember removes member from set, reporting whether it was present.
func (r *UserRepository) RemoveMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RemoveMember")

	column, ok := userSetColumns[set]
	if !ok {
		return false, fmt.Errorf("repository: unknown user set %q", set)
	}
	element, err := jsonElement(member)
	if err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("identity = ?", identity).
		Where(column+" @> ?::jsonb", element).
		Update(column, gorm.Expr(column+" - ?::text", member))
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to remove set member").
			String("identity", identity).
			String("set", column).
			String("member", member).
			Err(result.Error).
			Log()
		return false, translateError(result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	return false, r.mustExist(ctx, identity)
}

func (r *UserRepository) mustExist(ctx context.Context, identity string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("identity = ?", identity).Count(&count).Error; err != nil {
		return translateError(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListByIdentities(ctx context.Context, identities []string) ([]model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ListByIdentities")

	if len(identities) == 0 {
		return []model.User{}, nil
	}

	var users []model.User
	if err := r.db.WithContext(ctx).Where("identity IN ?", identities).Order("identity").Find(&users).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list users").
			Int("count", len(identities)).
			Err(err).
			Log()
		return nil, translateError(err)
	}
	return users, nil
}

// Search matches a case-insensitive prefix of username or display name.
func (r *UserRepository) Search(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "SearchUsers")

	// Matches the lower(...) text_pattern_ops indexes, which ILIKE cannot use.
	pattern := escapeLike(strings.ToLower(query)) + "%"
	base := r.db.WithContext(ctx).Model(&model.User{}).
		Where("lower(username) LIKE ? OR lower(display_name) LIKE ?", pattern, pattern)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to count users").
			String("query", query).
			Err(err).
			Log()
		return nil, 0, translateError(err)
	}

	var users []model.User
	if err := base.Order("username").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to search users").
			String("query", query).
			Err(err).
			Log()
		return nil, 0, translateError(err)
	}
	return users, total, nil
}

// ScanPage returns up to limit users ordered by identity, strictly after the cursor.
func (r *UserRepository) ScanPage(ctx context.Context, after string, limit int) ([]model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "ScanPage")

	var users []model.User
	if err := r.db.WithContext(ctx).Where("identity > ?", after).Order("identity").Limit(limit).Find(&users).Error; err != nil {
		return nil, translateError(err)
	}
	return users, nil
}

func normalizeSets(user *model.User) {
	if user.Followers == nil {
		user.Followers = datatypes.JSONSlice[string]{}
	}
	if user.Following == nil {
		user.Following = datatypes.JSONSlice[string]{}
	}
	if user.PortfolioRefs == nil {
		user.PortfolioRefs = datatypes.JSONSlice[string]{}
	}
}

// jsonElement encodes member as a one-element jsonb array for @> and || operators.
func jsonElement(member string) (string, error) {
	b, err := json.Marshal([]string{member})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
