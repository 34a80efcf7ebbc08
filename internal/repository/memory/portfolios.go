package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"gorm.io/datatypes"
)

type PortfolioStore struct {
	mu          sync.RWMutex
	portfolios  map[string]*model.Portfolio
	globalNames bool
	now         func() time.Time
}

// NewPortfolioStore returns a store whose names are unique per owner, and
// additionally across all owners when globalNames is set.
func NewPortfolioStore(globalNames bool) *PortfolioStore {
	return &PortfolioStore{
		portfolios:  make(map[string]*model.Portfolio),
		globalNames: globalNames,
		now:         time.Now,
	}
}

func (s *PortfolioStore) Create(ctx context.Context, portfolio *model.Portfolio) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[portfolio.ID]; ok {
		return &repository.UniqueViolationError{Constraint: repository.ConstraintPortfolioID}
	}
	if err := s.checkName(portfolio.OwnerID, portfolio.Name, ""); err != nil {
		return err
	}

	now := s.now()
	if portfolio.CreatedAt.IsZero() {
		portfolio.CreatedAt = now
	}
	portfolio.UpdatedAt = now
	if portfolio.Followers == nil {
		portfolio.Followers = datatypes.JSONSlice[string]{}
	}
	s.portfolios[portfolio.ID] = clonePortfolio(portfolio)
	return nil
}

// checkName must be called with s.mu held.
func (s *PortfolioStore) checkName(owner, name, exclude string) error {
	for id, p := range s.portfolios {
		if id == exclude || p.Name != name {
			continue
		}
		if p.OwnerID == owner {
			return &repository.UniqueViolationError{Constraint: repository.ConstraintPortfolioOwnerName}
		}
		if s.globalNames {
			return &repository.UniqueViolationError{Constraint: repository.ConstraintPortfolioNameGlobal}
		}
	}
	return nil
}

func (s *PortfolioStore) GetByID(ctx context.Context, id string) (*model.Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePortfolio(p), nil
}

func (s *PortfolioStore) ListByOwner(ctx context.Context, owner string) ([]model.Portfolio, error) {
	return s.list(ctx, func(p *model.Portfolio) bool { return p.OwnerID == owner })
}

func (s *PortfolioStore) ListFollowedBy(ctx context.Context, identity string) ([]model.Portfolio, error) {
	return s.list(ctx, func(p *model.Portfolio) bool { return p.HasFollower(identity) })
}

func (s *PortfolioStore) list(ctx context.Context, match func(*model.Portfolio) bool) ([]model.Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	portfolios := []model.Portfolio{}
	for _, p := range s.portfolios {
		if match(p) {
			portfolios = append(portfolios, *clonePortfolio(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(portfolios, func(i, j int) bool {
		if portfolios[i].CreatedAt.Equal(portfolios[j].CreatedAt) {
			return portfolios[i].ID < portfolios[j].ID
		}
		return portfolios[i].CreatedAt.Before(portfolios[j].CreatedAt)
	})
	return portfolios, nil
}

func (s *PortfolioStore) ExistsByName(ctx context.Context, name, owner, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, p := range s.portfolios {
		if id == excludeID || p.Name != name {
			continue
		}
		if owner == "" || p.OwnerID == owner {
			return true, nil
		}
	}
	return false, nil
}

func (s *PortfolioStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.portfolios[id]
	if !ok {
		return repository.ErrNotFound
	}
	updated := clonePortfolio(current)
	for column, value := range fields {
		switch column {
		case repository.ColName:
			updated.Name = stringValue(value)
		case repository.ColCategory:
			updated.Category = stringValue(value)
		case repository.ColDescription:
			updated.Description = stringValue(value)
		default:
			return fmt.Errorf("memory: unknown portfolio column %q", column)
		}
	}
	if updated.Name != current.Name {
		if err := s.checkName(updated.OwnerID, updated.Name, id); err != nil {
			return err
		}
	}
	updated.UpdatedAt = s.now()
	s.portfolios[id] = updated
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.portfolios[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.portfolios, id)
	return nil
}

func (s *PortfolioStore) AddFollower(ctx context.Context, id, identity string) (bool, error) {
	return s.mutateFollowers(ctx, id, func(followers []string) ([]string, bool) {
		if slices.Contains(followers, identity) {
			return followers, false
		}
		return append(followers, identity), true
	})
}

func (s *PortfolioStore) RemoveFollower(ctx context.Context, id, identity string) (bool, error) {
	return s.mutateFollowers(ctx, id, func(followers []string) ([]string, bool) {
		i := slices.Index(followers, identity)
		if i < 0 {
			return followers, false
		}
		return slices.Delete(followers, i, i+1), true
	})
}

func (s *PortfolioStore) mutateFollowers(ctx context.Context, id string, fn func([]string) ([]string, bool)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.portfolios[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	next, changed := fn(slices.Clone([]string(p.Followers)))
	if changed {
		p.Followers = next
		p.UpdatedAt = s.now()
	}
	return changed, nil
}

func clonePortfolio(p *model.Portfolio) *model.Portfolio {
	c := *p
	c.Followers = slices.Clone(p.Followers)
	return &c
}
