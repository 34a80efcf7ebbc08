package dto

import (
	"io"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
)

// CreatePostInput carries an upload already opened by the handler.
type CreatePostInput struct {
	PortfolioID string
	Caption     string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type PostResponse struct {
	ID          string    `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	OwnerID     string    `json:"owner_id"`
	Caption     string    `json:"caption,omitempty"`
	MediaURL    string    `json:"media_url"`
	MediaType   string    `json:"media_type,omitempty"`
	Likes       int       `json:"likes"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewPostResponse(p *model.Post) PostResponse {
	return PostResponse{
		ID:          p.ID,
		PortfolioID: p.PortfolioID,
		OwnerID:     p.OwnerID,
		Caption:     p.Caption,
		MediaURL:    p.MediaURL,
		MediaType:   p.MediaType,
		Likes:       len(p.LikedBy),
		CreatedAt:   p.CreatedAt,
	}
}

func NewPostResponses(posts []model.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for i := range posts {
		out = append(out, NewPostResponse(&posts[i]))
	}
	return out
}

type LikeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

type CreateCommentRequest struct {
	Comment string `json:"comment" binding:"required,max=1000"`
}

// CommentResponse carries the author's summary. Only the identity is set
// when the author's profile is gone.
type CommentResponse struct {
	ID        uint        `json:"id"`
	PostID    string      `json:"post_id"`
	Comment   string      `json:"comment"`
	Author    UserSummary `json:"author"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewCommentResponse(c *model.PostComment, author UserSummary) CommentResponse {
	if author.Identity == "" {
		author.Identity = c.AuthorID
	}
	return CommentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		Comment:   c.Body,
		Author:    author,
		CreatedAt: c.CreatedAt,
	}
}
