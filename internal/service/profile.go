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
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
)

type ProfileService struct {
	users  repository.UserStore
	guard  *UniquenessGuard
	events events.Publisher
}

func NewProfileService(users repository.UserStore, guard *UniquenessGuard, publisher events.Publisher) *ProfileService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ProfileService{
		users:  users,
		guard:  guard,
		events: publisher,
	}
}

// CreateOrGet binds identity to a new profile, or returns the existing one
// untouched. created is false whenever a profile already existed, including
// when a concurrent request created it between the lookup and the insert.
func (s *ProfileService) CreateOrGet(ctx context.Context, identity string, req dto.CreateProfileRequest) (*dto.ProfileResponse, bool, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "CreateOrGetProfile")

	existing, err := s.users.GetByIdentity(ctx, identity)
	if err == nil {
		logger.InfoWithContext(ctx, "Profile already exists").
			String("identity", identity).
			Log()
		resp := dto.NewProfileResponse(existing)
		return &resp, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logger.ErrorWithContext(ctx, "Failed to load profile").
			String("identity", identity).
			Err(err).
			Log()
		return nil, false, apperrors.Internal(err)
	}

	fields := IdentityFields{Email: req.Email, Username: req.Username, Phone: req.Phone}.Normalize()
	if err := s.guard.CheckIdentity(ctx, fields, identity); err != nil {
		return nil, false, err
	}

	user := &model.User{
		Identity:    identity,
		Email:       model.Optional(fields.Email),
		Username:    model.Optional(fields.Username),
		Phone:       model.Optional(fields.Phone),
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if uv, ok := repository.AsUniqueViolation(err); ok && uv.Field() == repository.FieldIdentity {
			existing, getErr := s.users.GetByIdentity(ctx, identity)
			if getErr != nil {
				return nil, false, apperrors.Internal(getErr)
			}
			logger.InfoWithContext(ctx, "Profile created concurrently, returning existing").
				String("identity", identity).
				Log()
			resp := dto.NewProfileResponse(existing)
			return &resp, false, nil
		}
		if conflict := uniqueConflict(err); conflict != nil {
			return nil, false, conflict
		}
		logger.ErrorWithContext(ctx, "Failed to create profile").
			String("identity", identity).
			Err(err).
			Log()
		return nil, false, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Profile created").
		String("identity", identity).
		Bool("has_phone", user.Phone != nil).
		Log()
	if err := s.events.Publish(context.WithoutCancel(ctx), events.New(events.ProfileCreated, identity, "")); err != nil {
		logger.WarnWithContext(ctx, "Failed to publish event").
			Err(err).
			Log()
	}

	resp := dto.NewProfileResponse(user)
	return &resp, true, nil
}

func (s *ProfileService) Get(ctx context.Context, identity string) (*dto.ProfileResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "GetProfile")

	user, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	resp := dto.NewProfileResponse(user)
	return &resp, nil
}

// GetPublic returns the profile without contact details.
func (s *ProfileService) GetPublic(ctx context.Context, identity string) (*dto.ProfileResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "GetPublicProfile")

	user, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	resp := dto.NewPublicProfileResponse(user)
	return &resp, nil
}

// Update applies a partial update. Changed unique fields go through the
// guard excluding the caller, and a direct phone change clears verification.
func (s *ProfileService) Update(ctx context.Context, identity string, req dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "UpdateProfile")

	user, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		resp := dto.NewProfileResponse(user)
		return &resp, nil
	}

	updates := make(map[string]interface{})
	var changed IdentityFields

	requested := IdentityFields{
		Email:    model.Deref(req.Email),
		Username: model.Deref(req.Username),
		Phone:    model.Deref(req.Phone),
	}.Normalize()

	if req.Email != nil {
		if email := requested.Email; email != model.Deref(user.Email) {
			changed.Email = email
			updates[repository.ColEmail] = model.Optional(email)
		}
	}
	if req.Username != nil {
		if username := requested.Username; username != model.Deref(user.Username) {
			changed.Username = username
			updates[repository.ColUsername] = model.Optional(username)
		}
	}
	if req.Phone != nil {
		if phone := requested.Phone; phone != model.Deref(user.Phone) {
			changed.Phone = phone
			updates[repository.ColPhone] = model.Optional(phone)
			updates[repository.ColIsPhoneVerified] = false
		}
	}
	if req.DisplayName != nil {
		updates[repository.ColDisplayName] = *req.DisplayName
	}
	if req.Bio != nil {
		updates[repository.ColBio] = *req.Bio
	}
	if req.AvatarURL != nil {
		updates[repository.ColAvatarURL] = *req.AvatarURL
	}

	if err := s.guard.CheckIdentity(ctx, changed, identity); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		resp := dto.NewProfileResponse(user)
		return &resp, nil
	}

	if err := s.users.UpdateFields(ctx, identity, updates); err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return nil, conflict
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to update profile").
			String("identity", identity).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}

	logger.InfoWithContext(ctx, "Profile updated").
		String("identity", identity).
		Int("fields", len(updates)).
		Log()
	return s.Get(ctx, identity)
}

// Search matches a case-insensitive prefix of username or display name.
func (s *ProfileService) Search(ctx context.Context, query string, limit, offset int) ([]dto.UserSummary, int64, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "SearchUsers")

	users, total, err := s.users.Search(ctx, query, limit, offset)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to search users").
			String("query", query).
			Err(err).
			Log()
		return nil, 0, apperrors.Internal(err)
	}
	return dto.NewUserSummaries(users), total, nil
}

func (s *ProfileService) ListFollowers(ctx context.Context, identity string) ([]dto.UserSummary, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListFollowers")
	return s.listSet(ctx, identity, model.SetFollowers)
}

func (s *ProfileService) ListFollowing(ctx context.Context, identity string) ([]dto.UserSummary, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ListFollowing")
	return s.listSet(ctx, identity, model.SetFollowing)
}

func (s *ProfileService) listSet(ctx context.Context, identity string, set model.UserSet) ([]dto.UserSummary, error) {
	user, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	members := user.Members(set)
	if len(members) == 0 {
		return []dto.UserSummary{}, nil
	}

	users, err := s.users.ListByIdentities(ctx, members)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to load related users").
			String("set", string(set)).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return dto.NewUserSummaries(users), nil
}

func (s *ProfileService) load(ctx context.Context, identity string) (*model.User, error) {
	user, err := s.users.GetByIdentity(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to load profile").
			String("identity", identity).
			Err(err).
			Log()
		return nil, apperrors.Internal(err)
	}
	return user, nil
}
