package model

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// User is keyed by the identity issued by the external auth provider.
// Email, username, and phone are NULL when absent so the partial unique
// indexes never see two "empty" values collide.
type User struct {
	Identity        string                      `gorm:"column:identity;primaryKey;size:128"`
	Email           *string                     `gorm:"column:email;size:254;uniqueIndex:idx_users_email,where:email IS NOT NULL"`
	Username        *string                     `gorm:"column:username;size:30;uniqueIndex:idx_users_username,where:username IS NOT NULL"`
	Phone           *string                     `gorm:"column:phone;size:20;uniqueIndex:idx_users_phone,where:phone IS NOT NULL"`
	IsPhoneVerified bool                        `gorm:"column:is_phone_verified;not null;default:false"`
	DisplayName     string                      `gorm:"column:display_name;size:100"`
	Bio             string                      `gorm:"column:bio;size:500"`
	AvatarURL       string                      `gorm:"column:avatar_url"`
	Followers       datatypes.JSONSlice[string] `gorm:"column:followers;type:jsonb;not null;default:'[]'"`
	Following       datatypes.JSONSlice[string] `gorm:"column:following;type:jsonb;not null;default:'[]'"`
	PortfolioRefs   datatypes.JSONSlice[string] `gorm:"column:portfolio_refs;type:jsonb;not null;default:'[]'"`
	CreatedAt       time.Time                   `gorm:"column:created_at"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

// UserSet names one of the denormalized reference sets on a user row.
type UserSet string

const (
	SetFollowers     UserSet = "followers"
	SetFollowing     UserSet = "following"
	SetPortfolioRefs UserSet = "portfolio_refs"
)

// Members returns the set named by s.
func (u *User) Members(s UserSet) []string {
	switch s {
	case SetFollowers:
		return u.Followers
	case SetFollowing:
		return u.Following
	case SetPortfolioRefs:
		return u.PortfolioRefs
	}
	return nil
}

func (u *User) IsFollowing(identity string) bool {
	return slices.Contains(u.Following, identity)
}

func (u *User) HasFollower(identity string) bool {
	return slices.Contains(u.Followers, identity)
}

// Deref returns the string behind an optional column, or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Optional maps "" to NULL.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
