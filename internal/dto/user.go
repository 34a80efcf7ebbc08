package dto

import (
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
)

// CreateProfileRequest binds the caller's identity to a new profile. Email,
// username, and phone are format-checked by the uniqueness guard after
// normalization, so only length bounds live here.
type CreateProfileRequest struct {
	Email       string `json:"email" binding:"omitempty,max=254"`
	Username    string `json:"username" binding:"omitempty,max=30"`
	Phone       string `json:"phone" binding:"omitempty,max=32"`
	DisplayName string `json:"display_name" binding:"omitempty,max=100"`
	Bio         string `json:"bio" binding:"omitempty,max=500"`
	AvatarURL   string `json:"avatar_url" binding:"omitempty,url"`
}

// UpdateProfileRequest is a partial update; nil fields are left unchanged and
// an empty string clears an optional field.
type UpdateProfileRequest struct {
	Email       *string `json:"email" binding:"omitempty,max=254"`
	Username    *string `json:"username" binding:"omitempty,max=30"`
	Phone       *string `json:"phone" binding:"omitempty,max=32"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,max=2048"`
}

func (r UpdateProfileRequest) Empty() bool {
	return r.Email == nil && r.Username == nil && r.Phone == nil &&
		r.DisplayName == nil && r.Bio == nil && r.AvatarURL == nil
}

type ProfileResponse struct {
	Identity        string    `json:"identity"`
	Email           string    `json:"email,omitempty"`
	Username        string    `json:"username,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	IsPhoneVerified bool      `json:"is_phone_verified"`
	DisplayName     string    `json:"display_name,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	FollowersCount  int       `json:"followers_count"`
	FollowingCount  int       `json:"following_count"`
	PortfoliosCount int       `json:"portfolios_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewProfileResponse derives the counts from the live set sizes.
func NewProfileResponse(u *model.User) ProfileResponse {
	return ProfileResponse{
		Identity:        u.Identity,
		Email:           model.Deref(u.Email),
		Username:        model.Deref(u.Username),
		Phone:           model.Deref(u.Phone),
		IsPhoneVerified: u.IsPhoneVerified,
		DisplayName:     u.DisplayName,
		Bio:             u.Bio,
		AvatarURL:       u.AvatarURL,
		FollowersCount:  len(u.Followers),
		FollowingCount:  len(u.Following),
		PortfoliosCount: len(u.PortfolioRefs),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// NewPublicProfileResponse omits contact details.
func NewPublicProfileResponse(u *model.User) ProfileResponse {
	resp := NewProfileResponse(u)
	resp.Email = ""
	resp.Phone = ""
	resp.IsPhoneVerified = false
	return resp
}

// UserSummary is the compact form used in follower lists and search results.
type UserSummary struct {
	Identity    string `json:"identity"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func NewUserSummaries(users []model.User) []UserSummary {
	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, UserSummary{
			Identity:    users[i].Identity,
			Username:    model.Deref(users[i].Username),
			DisplayName: users[i].DisplayName,
			AvatarURL:   users[i].AvatarURL,
		})
	}
	return out
}

type FollowStatusResponse struct {
	IsFollowing    bool `json:"is_following"`
	FollowersCount int  `json:"followers_count"`
	FollowingCount int  `json:"following_count"`
}

type PortfolioFollowStatusResponse struct {
	IsFollowing    bool `json:"is_following"`
	FollowersCount int  `json:"followers_count"`
}

type AvailabilityResponse struct {
	Field     string `json:"field"`
	Value     string `json:"value"`
	Available bool   `json:"available"`
}

type VerifyPhoneRequest struct {
	Phone string `json:"phone" binding:"required,max=32"`
	Code  string `json:"code" binding:"required,otp_code"`
}
