package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
)

type repairKey struct {
	kind   model.RepairKind
	actor  string
	target string
}

type RepairStore struct {
	mu      sync.Mutex
	repairs map[repairKey]*model.RelationshipRepair
	nextID  uint
	now     func() time.Time
}

func NewRepairStore() *RepairStore {
	return &RepairStore{repairs: make(map[repairKey]*model.RelationshipRepair), now: time.Now}
}

func (s *RepairStore) Enqueue(ctx context.Context, repair *model.RelationshipRepair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := repairKey{repair.Kind, repair.Actor, repair.Target}
	if _, ok := s.repairs[key]; ok {
		return nil
	}
	s.nextID++
	repair.ID = s.nextID
	if repair.CreatedAt.IsZero() {
		repair.CreatedAt = s.now()
	}
	r := *repair
	s.repairs[key] = &r
	return nil
}

func (s *RepairStore) List(ctx context.Context, limit int) ([]model.RelationshipRepair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	repairs := make([]model.RelationshipRepair, 0, len(s.repairs))
	for _, r := range s.repairs {
		repairs = append(repairs, *r)
	}
	s.mu.Unlock()

	sort.Slice(repairs, func(i, j int) bool { return repairs[i].ID < repairs[j].ID })
	return page(repairs, limit, 0), nil
}

func (s *RepairStore) Delete(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, r := range s.repairs {
		if r.ID == id {
			delete(s.repairs, k)
		}
	}
	return nil
}

// NewStores wires a complete in-memory backend.
func NewStores(globalPortfolioNames bool) *repository.Stores {
	return &repository.Stores{
		Users:      NewUserStore(),
		Portfolios: NewPortfolioStore(globalPortfolioNames),
		OTPs:       NewOTPStore(),
		Posts:      NewPostStore(),
		Repairs:    NewRepairStore(),
	}
}
