package repository

import (
	"context"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"gorm.io/gorm"
)

// Column names accepted by the UpdateFields methods.
const (
	ColEmail           = "email"
	ColUsername        = "username"
	ColPhone           = "phone"
	ColIsPhoneVerified = "is_phone_verified"
	ColDisplayName     = "display_name"
	ColBio             = "bio"
	ColAvatarURL       = "avatar_url"
	ColName            = "name"
	ColCategory        = "category"
	ColDescription     = "description"
)

// UserStore persists users keyed by external identity. Set mutations are
// single-row atomic: AddMember only inserts when absent and RemoveMember
// only reports true when the member was present.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByIdentity(ctx context.Context, identity string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	ExistsByField(ctx context.Context, field, value, excludeIdentity string) (bool, error)
	UpdateFields(ctx context.Context, identity string, fields map[string]interface{}) error
	AddMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error)
	RemoveMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error)
	ListByIdentities(ctx context.Context, identities []string) ([]model.User, error)
	Search(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error)
	ScanPage(ctx context.Context, after string, limit int) ([]model.User, error)
}

// PortfolioStore persists portfolios. An empty owner in ExistsByName means global scope.
type PortfolioStore interface {
	Create(ctx context.Context, portfolio *model.Portfolio) error
	GetByID(ctx context.Context, id string) (*model.Portfolio, error)
	ListByOwner(ctx context.Context, owner string) ([]model.Portfolio, error)
	ExistsByName(ctx context.Context, name, owner, excludeID string) (bool, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	AddFollower(ctx context.Context, id, identity string) (bool, error)
	RemoveFollower(ctx context.Context, id, identity string) (bool, error)
	ListFollowedBy(ctx context.Context, identity string) ([]model.Portfolio, error)
}

// OTPStore persists one-time codes, one row per (identifier, purpose).
type OTPStore interface {
	Replace(ctx context.Context, code *model.OneTimeCode) error
	Get(ctx context.Context, identifier string, purpose model.OTPPurpose) (*model.OneTimeCode, error)
	IncrementAttempts(ctx context.Context, id uint, maxAttempts int) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostStore persists posts and their comments. AddLike and RemoveLike are
// conditional on the current likers, like the follower set mutations.
type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	ListByPortfolio(ctx context.Context, portfolioID string, limit, offset int) ([]model.Post, int64, error)
	Delete(ctx context.Context, id string) error
	AddLike(ctx context.Context, id, identity string) (bool, error)
	RemoveLike(ctx context.Context, id, identity string) (bool, error)
	AddComment(ctx context.Context, comment *model.PostComment) error
	ListComments(ctx context.Context, postID string, limit, offset int) ([]model.PostComment, int64, error)
}

// RepairStore queues pairs whose two-sided write was only half applied.
type RepairStore interface {
	Enqueue(ctx context.Context, repair *model.RelationshipRepair) error
	List(ctx context.Context, limit int) ([]model.RelationshipRepair, error)
	Delete(ctx context.Context, id uint) error
}

// Stores bundles every store the services need.
type Stores struct {
	Users      UserStore
	Portfolios PortfolioStore
	OTPs       OTPStore
	Posts      PostStore
	Repairs    RepairStore
}

// NewStores builds the Postgres-backed stores over db.
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:      NewUserRepository(db),
		Portfolios: NewPortfolioRepository(db),
		OTPs:       NewOTPRepository(db),
		Posts:      NewPostRepository(db),
		Repairs:    NewRepairRepository(db),
	}
}
