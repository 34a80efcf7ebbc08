package model

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

type Post struct {
	ID          string                      `gorm:"column:id;primaryKey;size:36"`
	PortfolioID string                      `gorm:"column:portfolio_id;size:36;not null;index:idx_posts_portfolio_created,priority:1"`
	OwnerID     string                      `gorm:"column:owner_id;size:128;not null;index"`
	Caption     string                      `gorm:"column:caption;size:2200"`
	MediaURL    string                      `gorm:"column:media_url;not null"`
	MediaHandle string                      `gorm:"column:media_handle;not null"`
	MediaType   string                      `gorm:"column:media_type;size:100"`
	LikedBy     datatypes.JSONSlice[string] `gorm:"column:liked_by;type:jsonb;not null;default:'[]'"`
	CreatedAt   time.Time                   `gorm:"column:created_at;index:idx_posts_portfolio_created,priority:2,sort:desc"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at"`
}

func (Post) TableName() string { return "posts" }

func (p *Post) LikedByIdentity(identity string) bool {
	return slices.Contains(p.LikedBy, identity)
}

// PostComment rows go away with their post.
type PostComment struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	PostID    string    `gorm:"column:post_id;size:36;not null;index:idx_post_comments_post_created,priority:1"`
	AuthorID  string    `gorm:"column:author_id;size:128;not null"`
	Body      string    `gorm:"column:body;size:1000;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_post_comments_post_created,priority:2"`
}

func (PostComment) TableName() string { return "post_comments" }
