package dto

import (
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
)

type CreatePortfolioRequest struct {
	Name        string `json:"name" binding:"required,portfolio_name"`
	Category    string `json:"category" binding:"required,max=50"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

type UpdatePortfolioRequest struct {
	Name        *string `json:"name" binding:"omitempty,portfolio_name"`
	Category    *string `json:"category" binding:"omitempty,min=1,max=50"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

func (r UpdatePortfolioRequest) Empty() bool {
	return r.Name == nil && r.Category == nil && r.Description == nil
}

type PortfolioResponse struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Description    string    `json:"description,omitempty"`
	FollowersCount int       `json:"followers_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewPortfolioResponse(p *model.Portfolio) PortfolioResponse {
	return PortfolioResponse{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		Name:           p.Name,
		Category:       p.Category,
		Description:    p.Description,
		FollowersCount: len(p.Followers),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func NewPortfolioResponses(portfolios []model.Portfolio) []PortfolioResponse {
	out := make([]PortfolioResponse, 0, len(portfolios))
	for i := range portfolios {
		out = append(out, NewPortfolioResponse(&portfolios[i]))
	}
	return out
}
