package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/google/uuid"
)

type PortfolioService struct {
	portfolios  repository.PortfolioStore
	users       repository.UserStore
	guard       *UniquenessGuard
	coordinator *RelationshipCoordinator
}

func NewPortfolioService(stores *repository.Stores, guard *UniquenessGuard, coordinator *RelationshipCoordinator) *PortfolioService {
	return &PortfolioService{
		portfolios:  stores.Portfolios,
		users:       stores.Users,
		guard:       guard,
		coordinator: coordinator,
	}
}

// Create inserts the portfolio, then links it into the owner's refs. A
// failed link is queued for repair and not reported.
func (s *PortfolioService) Create(ctx context.Context, owner string, req dto.CreatePortfolioRequest) (*dto.PortfolioResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "CreatePortfolio")

	if _, err := s.users.GetByIdentity(ctx, owner); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrUserNotFound, "create your profile before adding portfolios")
		}
		return nil, apperrors.Internal(err)
	}

	name := strings.TrimSpace(req.Name)
	if err := s.guard.CheckPortfolioName(ctx, name, owner, ""); err != nil {
		return nil, err
	}

	portfolio := &model.Portfolio{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Name:        name,
		Category:    strings.TrimSpace(req.Category),
		Description: req.Description,
	}
	if err := s.portfolios.Create(ctx, portfolio); err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			logger.InfoWithContext(ctx, "Portfolio name taken at commit").
				String("owner", owner).
				Log()
			return nil, conflict
		}
		logger.ErrorWithContext(ctx, "Failed to create portfolio").
			String("owner", owner).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}

	s.coordinator.LinkPortfolio(ctx, owner, portfolio.ID)

	logger.InfoWithContext(ctx, "Portfolio created").
		String("owner", owner).
		String("portfolio_id", portfolio.ID).
		Log()
	resp := dto.NewPortfolioResponse(portfolio)
	return &resp, nil
}

func (s *PortfolioService) Get(ctx context.Context, id string) (*dto.PortfolioResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "GetPortfolio")

	portfolio, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewPortfolioResponse(portfolio)
	return &resp, nil
}

func (s *PortfolioService) ListByOwner(ctx context.Context, owner string) ([]dto.PortfolioResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListPortfolios")

	portfolios, err := s.portfolios.ListByOwner(ctx, owner)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list portfolios").
			String("owner", owner).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return dto.NewPortfolioResponses(portfolios), nil
}

// Update is owner-only. A rename is re-validated excluding the portfolio itself.
func (s *PortfolioService) Update(ctx context.Context, actor, id string, req dto.UpdatePortfolioRequest) (*dto.PortfolioResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "UpdatePortfolio")

	portfolio, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != portfolio.Name {
			if err := s.guard.CheckPortfolioName(ctx, name, portfolio.OwnerID, id); err != nil {
				return nil, err
			}
			updates[repository.ColName] = name
		}
	}
	if req.Category != nil {
		updates[repository.ColCategory] = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		updates[repository.ColDescription] = *req.Description
	}
	if len(updates) == 0 {
		resp := dto.NewPortfolioResponse(portfolio)
		return &resp, nil
	}

	if err := s.portfolios.UpdateFields(ctx, id, updates); err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return nil, conflict
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrPortfolioNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to update portfolio").
			String("portfolio_id", id).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Portfolio updated").
		String("portfolio_id", id).
		Int("fields", len(updates)).
		Log()
	return s.Get(ctx, id)
}

// Delete is owner-only and unlinks the portfolio from the owner's refs.
// Posts are left in place.
func (s *PortfolioService) Delete(ctx context.Context, actor, id string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "DeletePortfolio")

	portfolio, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.portfolios.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrPortfolioNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to delete portfolio").
			String("portfolio_id", id).
			Err(err).
			Log()
		return apperrors.Internal(err)
	}
	s.coordinator.UnlinkPortfolio(ctx, portfolio.OwnerID, id)

	logger.InfoWithContext(ctx, "Portfolio deleted").
		String("portfolio_id", id).
		Log()
	return nil
}

func (s *PortfolioService) ListFollowers(ctx context.Context, id string) ([]dto.UserSummary, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListPortfolioFollowers")

	portfolio, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(portfolio.Followers) == 0 {
		return []dto.UserSummary{}, nil
	}
	users, err := s.users.ListByIdentities(ctx, portfolio.Followers)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return dto.NewUserSummaries(users), nil
}

func (s *PortfolioService) load(ctx context.Context, id string) (*model.Portfolio, error) {
	portfolio, err := s.portfolios.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to load portfolio").
			String("portfolio_id", id).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return portfolio, nil
}

func (s *PortfolioService) loadOwned(ctx context.Context, actor, id string) (*model.Portfolio, error) {
	portfolio, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if portfolio.OwnerID != actor {
		logger.WarnWithContext(ctx, "Portfolio change by non-owner").
			String("portfolio_id", id).
			String("actor", actor).
			Log()
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "only the owner can change this portfolio")
	}
	return portfolio, nil
}
