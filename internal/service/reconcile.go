package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Payphone-Digital/portfolio-service/internal/events"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
)

// ReconcileEdge re-derives target.followers ∋ actor from actor.following ∋ target
// under the pair lock. It reports whether anything changed.
func (c *RelationshipCoordinator) ReconcileEdge(ctx context.Context, actor, target string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ReconcileEdge")

	release, err := c.locker.Lock(ctx, actor, target)
	if err != nil {
		return false, fmt.Errorf("lock pair: %w", err)
	}
	defer release()

	targetUser, err := c.users.GetByIdentity(ctx, target)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	want := false
	actorUser, err := c.users.GetByIdentity(ctx, actor)
	switch {
	case err == nil:
		want = actorUser.IsFollowing(target)
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	var changed bool
	switch has := targetUser.HasFollower(actor); {
	case want && !has:
		changed, err = c.users.AddMember(ctx, target, model.SetFollowers, actor)
	case !want && has:
		changed, err = c.users.RemoveMember(ctx, target, model.SetFollowers, actor)
	}
	if err != nil {
		return false, err
	}

	if changed {
		logger.InfoWithContext(ctx, "Relationship edge repaired").
			String("actor", actor).
			String("target", target).
			Bool("following", want).
			Log()
		c.publish(ctx, events.New(events.RelationshipRepaired, actor, target))
	}
	return changed, nil
}

// ReconcilePortfolioRef re-derives owner.portfolio_refs ∋ portfolioID from
// the portfolio row's owner.
func (c *RelationshipCoordinator) ReconcilePortfolioRef(ctx context.Context, owner, portfolioID string) (bool, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ReconcilePortfolioRef")

	want := false
	portfolio, err := c.portfolios.GetByID(ctx, portfolioID)
	switch {
	case err == nil:
		want = portfolio.OwnerID == owner
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	var changed bool
	if want {
		changed, err = c.users.AddMember(ctx, owner, model.SetPortfolioRefs, portfolioID)
	} else {
		changed, err = c.users.RemoveMember(ctx, owner, model.SetPortfolioRefs, portfolioID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if changed {
		logger.InfoWithContext(ctx, "Portfolio ref repaired").
			String("owner", owner).
			String("portfolio_id", portfolioID).
			Bool("linked", want).
			Log()
	}
	return changed, nil
}

// DrainRepairs applies up to limit queued repairs. An entry is removed only
// once its pair has been re-derived.
func (c *RelationshipCoordinator) DrainRepairs(ctx context.Context, limit int) (int, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "DrainRepairs")

	queued, err := c.repairs.List(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list repairs: %w", err)
	}

	applied := 0
	for _, r := range queued {
		var err error
		switch r.Kind {
		case model.RepairUserEdge:
			_, err = c.ReconcileEdge(ctx, r.Actor, r.Target)
		case model.RepairPortfolioRef:
			_, err = c.ReconcilePortfolioRef(ctx, r.Actor, r.Target)
		default:
			logger.WarnWithContext(ctx, "Dropping repair of unknown kind").
				String("kind", string(r.Kind)).
				Log()
		}
		if err != nil {
			logger.WarnWithContext(ctx, "Repair attempt failed, will retry").
				String("kind", string(r.Kind)).
				String("actor", r.Actor).
				String("target", r.Target).
				Err(err).
				Log()
			continue
		}
		if err := c.repairs.Delete(ctx, r.ID); err != nil {
			return applied, fmt.Errorf("delete repair %d: %w", r.ID, err)
		}
		applied++
	}
	return applied, nil
}

// ReconcileAll walks every user in identity order. For each user A it
// restores A in B.followers for every B in A.following, and drops any
// follower F of A whose following set lacks A.
func (c *RelationshipCoordinator) ReconcileAll(ctx context.Context, batchSize int) (int, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ReconcileAll")
	if batchSize <= 0 {
		batchSize = 200
	}

	fixed := 0
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}

		page, err := c.users.ScanPage(ctx, after, batchSize)
		if err != nil {
			return fixed, fmt.Errorf("scan users after %q: %w", after, err)
		}

		for i := range page {
			n, err := c.reconcileUser(ctx, &page[i])
			fixed += n
			if err != nil {
				return fixed, err
			}
		}

		if len(page) < batchSize {
			return fixed, nil
		}
		after = page[len(page)-1].Identity
	}
}

func (c *RelationshipCoordinator) reconcileUser(ctx context.Context, a *model.User) (int, error) {
	refs := make([]string, 0, len(a.Following)+len(a.Followers))
	refs = append(refs, a.Following...)
	refs = append(refs, a.Followers...)
	if len(refs) == 0 {
		return 0, nil
	}

	others, err := c.users.ListByIdentities(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("load relations of %s: %w", a.Identity, err)
	}
	byID := make(map[string]*model.User, len(others))
	for i := range others {
		byID[others[i].Identity] = &others[i]
	}

	fixed := 0
	for _, b := range a.Following {
		if other, ok := byID[b]; ok && !other.HasFollower(a.Identity) {
			changed, err := c.ReconcileEdge(ctx, a.Identity, b)
			if err != nil {
				return fixed, err
			}
			if changed {
				fixed++
			}
		}
	}
	for _, f := range a.Followers {
		if other, ok := byID[f]; !ok || !other.IsFollowing(a.Identity) {
			changed, err := c.ReconcileEdge(ctx, f, a.Identity)
			if err != nil {
				return fixed, err
			}
			if changed {
				fixed++
			}
		}
	}
	return fixed, nil
}
