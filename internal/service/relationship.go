package service

import (
	"context"
	"errors"

	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/events"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/lock"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
)

const maxRepairReason = 255

// RelationshipCoordinator owns every mutation of the denormalized
// relationship sets: user follow edges (actor.following and target.followers),
// portfolio followers, and the owner's portfolio refs.
//
// Two-sided writes always go actor side first. If the second write fails the
// pair is queued for repair and the caller still sees success; the queue is
// drained by the housekeeping reconciler.
type RelationshipCoordinator struct {
	users      repository.UserStore
	portfolios repository.PortfolioStore
	repairs    repository.RepairStore
	locker     lock.PairLocker
	events     events.Publisher
}

func NewRelationshipCoordinator(stores *repository.Stores, locker lock.PairLocker, publisher events.Publisher) *RelationshipCoordinator {
	if locker == nil {
		locker = lock.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &RelationshipCoordinator{
		users:      stores.Users,
		portfolios: stores.Portfolios,
		repairs:    stores.Repairs,
		locker:     locker,
		events:     publisher,
	}
}

// Follow adds the edge actor -> target. Self-follow is rejected before any lookup.
func (c *RelationshipCoordinator) Follow(ctx context.Context, actor, target string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Follow")

	if actor == target {
		return apperrors.ErrSelfFollowDenied
	}

	release, err := c.lockPair(ctx, actor, target)
	if err != nil {
		return err
	}
	defer release()

	actorUser, targetUser, err := c.loadPair(ctx, actor, target)
	if err != nil {
		return err
	}
	if actorUser.IsFollowing(target) {
		return apperrors.ErrAlreadyFollowing
	}

	added, err := c.users.AddMember(ctx, actor, model.SetFollowing, target)
	if err != nil {
		return c.storeError(ctx, err, "actor profile not found")
	}
	if !added {
		return apperrors.ErrAlreadyFollowing
	}

	// The first write is committed; finish the pair even if the caller goes away.
	detached := context.WithoutCancel(ctx)
	if _, err := c.users.AddMember(detached, target, model.SetFollowers, actor); err != nil {
		c.flagRepair(detached, model.RepairUserEdge, actor, target, err)
	}

	logger.InfoWithContext(ctx, "User followed").
		String("actor", actor).
		String("target", target).
		Int("target_followers", len(targetUser.Followers)+1).
		Log()
	c.publish(detached, events.New(events.UserFollowed, actor, target))
	return nil
}

// Unfollow removes the edge from whichever side still has it. It fails only
// when neither side records the edge.
func (c *RelationshipCoordinator) Unfollow(ctx context.Context, actor, target string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "Unfollow")

	if actor == target {
		return apperrors.ErrSelfFollowDenied
	}

	release, err := c.lockPair(ctx, actor, target)
	if err != nil {
		return err
	}
	defer release()

	actorUser, targetUser, err := c.loadPair(ctx, actor, target)
	if err != nil {
		return err
	}
	if !actorUser.IsFollowing(target) && !targetUser.HasFollower(actor) {
		return apperrors.ErrNotFollowing
	}

	removedFollowing, err := c.users.RemoveMember(ctx, actor, model.SetFollowing, target)
	if err != nil {
		return c.storeError(ctx, err, "actor profile not found")
	}

	detached := context.WithoutCancel(ctx)
	removedFollower, err := c.users.RemoveMember(detached, target, model.SetFollowers, actor)
	if err != nil {
		c.flagRepair(detached, model.RepairUserEdge, actor, target, err)
	}

	if !removedFollowing && !removedFollower && err == nil {
		// A concurrent unfollow emptied both sides between the read and the writes.
		return apperrors.ErrNotFollowing
	}

	logger.InfoWithContext(ctx, "User unfollowed").
		String("actor", actor).
		String("target", target).
		Bool("one_sided", removedFollowing != removedFollower).
		Log()
	c.publish(detached, events.New(events.UserUnfollowed, actor, target))
	return nil
}

// FollowStatus reports whether actor follows target, read from the actor's
// following set, along with the target's counts.
func (c *RelationshipCoordinator) FollowStatus(ctx context.Context, actor, target string) (*dto.FollowStatusResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "FollowStatus")

	targetUser, err := c.users.GetByIdentity(ctx, target)
	if err != nil {
		return nil, c.storeError(ctx, err, "user not found")
	}

	following := false
	if actor != "" && actor != target {
		actorUser, err := c.users.GetByIdentity(ctx, actor)
		switch {
		case err == nil:
			following = actorUser.IsFollowing(target)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.Internal(err)
		}
	}

	return &dto.FollowStatusResponse{
		IsFollowing:    following,
		FollowersCount: len(targetUser.Followers),
		FollowingCount: len(targetUser.Following),
	}, nil
}

// FollowPortfolio adds actor to the portfolio's followers. Only the portfolio
// row carries the edge, so there is no second write to coordinate.
func (c *RelationshipCoordinator) FollowPortfolio(ctx context.Context, actor, portfolioID string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "FollowPortfolio")

	portfolio, err := c.loadPortfolioForActor(ctx, actor, portfolioID)
	if err != nil {
		return err
	}
	if portfolio.OwnerID == actor {
		return apperrors.ErrCannotFollowOwnPortfolio
	}
	if portfolio.HasFollower(actor) {
		return apperrors.ErrAlreadyFollowing
	}

	added, err := c.portfolios.AddFollower(ctx, portfolioID, actor)
	if err != nil {
		return c.portfolioError(ctx, err)
	}
	if !added {
		return apperrors.ErrAlreadyFollowing
	}

	logger.InfoWithContext(ctx, "Portfolio followed").
		String("actor", actor).
		String("portfolio_id", portfolioID).
		Log()
	c.publish(context.WithoutCancel(ctx), events.New(events.PortfolioFollowed, actor, portfolioID))
	return nil
}

func (c *RelationshipCoordinator) UnfollowPortfolio(ctx context.Context, actor, portfolioID string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "UnfollowPortfolio")

	portfolio, err := c.loadPortfolioForActor(ctx, actor, portfolioID)
	if err != nil {
		return err
	}
	if portfolio.OwnerID == actor {
		return apperrors.ErrCannotFollowOwnPortfolio
	}

	removed, err := c.portfolios.RemoveFollower(ctx, portfolioID, actor)
	if err != nil {
		return c.portfolioError(ctx, err)
	}
	if !removed {
		return apperrors.ErrNotFollowing
	}

	logger.InfoWithContext(ctx, "Portfolio unfollowed").
		String("actor", actor).
		String("portfolio_id", portfolioID).
		Log()
	c.publish(context.WithoutCancel(ctx), events.New(events.PortfolioUnfollowed, actor, portfolioID))
	return nil
}

func (c *RelationshipCoordinator) PortfolioFollowStatus(ctx context.Context, actor, portfolioID string) (*dto.PortfolioFollowStatusResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "PortfolioFollowStatus")

	portfolio, err := c.portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, c.portfolioError(ctx, err)
	}
	return &dto.PortfolioFollowStatusResponse{
		IsFollowing:    actor != "" && portfolio.HasFollower(actor),
		FollowersCount: len(portfolio.Followers),
	}, nil
}

// ListFollowedPortfolios scans portfolios whose followers contain identity.
func (c *RelationshipCoordinator) ListFollowedPortfolios(ctx context.Context, identity string) ([]dto.PortfolioResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListFollowedPortfolios")

	portfolios, err := c.portfolios.ListFollowedBy(ctx, identity)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list followed portfolios").
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return dto.NewPortfolioResponses(portfolios), nil
}

// LinkPortfolio records portfolioID in the owner's portfolio refs. The
// portfolio row is already committed, so a failure here is queued for repair
// rather than returned.
func (c *RelationshipCoordinator) LinkPortfolio(ctx context.Context, owner, portfolioID string) {
	ctx = context.WithoutCancel(ctxutil.WithFunction(ctx, "service", "LinkPortfolio"))
	if _, err := c.users.AddMember(ctx, owner, model.SetPortfolioRefs, portfolioID); err != nil {
		c.flagRepair(ctx, model.RepairPortfolioRef, owner, portfolioID, err)
	}
}

// UnlinkPortfolio drops portfolioID from the owner's refs after deletion.
func (c *RelationshipCoordinator) UnlinkPortfolio(ctx context.Context, owner, portfolioID string) {
	ctx = context.WithoutCancel(ctxutil.WithFunction(ctx, "service", "UnlinkPortfolio"))
	if _, err := c.users.RemoveMember(ctx, owner, model.SetPortfolioRefs, portfolioID); err != nil {
		c.flagRepair(ctx, model.RepairPortfolioRef, owner, portfolioID, err)
	}
}

func (c *RelationshipCoordinator) lockPair(ctx context.Context, a, b string) (func(), error) {
	release, err := c.locker.Lock(ctx, a, b)
	if err != nil {
		logger.WarnWithContext(ctx, "Failed to acquire pair lock").
			String("actor", a).
			String("target", b).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return release, nil
}

func (c *RelationshipCoordinator) loadPair(ctx context.Context, actor, target string) (*model.User, *model.User, error) {
	actorUser, err := c.users.GetByIdentity(ctx, actor)
	if err != nil {
		return nil, nil, c.storeError(ctx, err, "actor profile not found")
	}
	targetUser, err := c.users.GetByIdentity(ctx, target)
	if err != nil {
		return nil, nil, c.storeError(ctx, err, "target user not found")
	}
	return actorUser, targetUser, nil
}

func (c *RelationshipCoordinator) loadPortfolioForActor(ctx context.Context, actor, portfolioID string) (*model.Portfolio, error) {
	if _, err := c.users.GetByIdentity(ctx, actor); err != nil {
		return nil, c.storeError(ctx, err, "actor profile not found")
	}
	portfolio, err := c.portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, c.portfolioError(ctx, err)
	}
	return portfolio, nil
}

// storeError maps a user store failure, naming the missing side on ErrNotFound.
func (c *RelationshipCoordinator) storeError(ctx context.Context, err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.WithMessage(apperrors.ErrUserNotFound, notFound)
	}
	logger.ErrorWithContext(ctx, "User store failure").
		Err(err).
		Log()
	return apperrors.Internal(err)
}

func (c *RelationshipCoordinator) portfolioError(ctx context.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrPortfolioNotFound
	}
	logger.ErrorWithContext(ctx, "Portfolio store failure").
		Err(err).
		Log()
	return apperrors.Internal(err)
}

// flagRepair records a half-applied pair. ctx must already be detached.
func (c *RelationshipCoordinator) flagRepair(ctx context.Context, kind model.RepairKind, actor, target string, cause error) {
	reason := cause.Error()
	if len(reason) > maxRepairReason {
		reason = reason[:maxRepairReason]
	}

	logger.ErrorWithContext(ctx, "Two-sided write left half applied").
		String("kind", string(kind)).
		String("actor", actor).
		String("target", target).
		Err(cause).
		Log()

	repair := &model.RelationshipRepair{
		Kind:   kind,
		Actor:  actor,
		Target: target,
		Reason: reason,
	}
	if err := c.repairs.Enqueue(ctx, repair); err != nil {
		logger.ErrorWithContext(ctx, "Failed to queue relationship repair").
			String("kind", string(kind)).
			String("actor", actor).
			String("target", target).
			Err(err).
			Log()
		return
	}
	c.publish(ctx, events.New(events.RepairQueued, actor, target))
}

func (c *RelationshipCoordinator) publish(ctx context.Context, event events.Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		logger.WarnWithContext(ctx, "Failed to publish event").
			String("type", string(event.Type)).
			Err(err).
			Log()
	}
}
