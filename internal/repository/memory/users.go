// Package memory holds in-process implementations of the repository stores.
// They enforce the same constraints as the Postgres schema and report
// violations with the same constraint names, so services behave identically
// on either backend.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"gorm.io/datatypes"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
	now   func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*model.User), now: time.Now}
}

type uniqueColumn struct {
	field      string
	constraint string
	get        func(*model.User) *string
}

var userUniqueConstraints = []uniqueColumn{
	{repository.FieldEmail, repository.ConstraintUserEmail, func(u *model.User) *string { return u.Email }},
	{repository.FieldUsername, repository.ConstraintUserUsername, func(u *model.User) *string { return u.Username }},
	{repository.FieldPhone, repository.ConstraintUserPhone, func(u *model.User) *string { return u.Phone }},
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Identity]; ok {
		return &repository.UniqueViolationError{Constraint: repository.ConstraintUserIdentity}
	}
	if err := s.checkUnique(user, ""); err != nil {
		return err
	}

	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Followers == nil {
		user.Followers = datatypes.JSONSlice[string]{}
	}
	if user.Following == nil {
		user.Following = datatypes.JSONSlice[string]{}
	}
	if user.PortfolioRefs == nil {
		user.PortfolioRefs = datatypes.JSONSlice[string]{}
	}
	s.users[user.Identity] = cloneUser(user)
	return nil
}

// checkUnique must be called with s.mu held.
func (s *UserStore) checkUnique(candidate *model.User, exclude string) error {
	for _, c := range userUniqueConstraints {
		value := c.get(candidate)
		if value == nil {
			continue
		}
		for id, u := range s.users {
			if id == exclude {
				continue
			}
			if other := c.get(u); other != nil && *other == *value {
				return &repository.UniqueViolationError{Constraint: c.constraint}
			}
		}
	}
	return nil
}

func (s *UserStore) GetByIdentity(ctx context.Context, identity string) (*model.User, error) {
	return s.find(ctx, func(u *model.User) bool { return u.Identity == identity })
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.find(ctx, func(u *model.User) bool { return model.Deref(u.Email) == email })
}

func (s *UserStore) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return s.find(ctx, func(u *model.User) bool { return model.Deref(u.Phone) == phone })
}

func (s *UserStore) find(ctx context.Context, match func(*model.User) bool) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) ExistsByField(ctx context.Context, field, value, excludeIdentity string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	idx := slices.IndexFunc(userUniqueConstraints, func(c uniqueColumn) bool { return c.field == field })
	if idx < 0 {
		return false, fmt.Errorf("memory: %q is not a unique user field", field)
	}
	get := userUniqueConstraints[idx].get

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if id == excludeIdentity {
			continue
		}
		if v := get(u); v != nil && *v == value {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) UpdateFields(ctx context.Context, identity string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[identity]
	if !ok {
		return repository.ErrNotFound
	}
	updated := cloneUser(current)
	for column, value := range fields {
		if err := applyUserField(updated, column, value); err != nil {
			return err
		}
	}
	if err := s.checkUnique(updated, identity); err != nil {
		return err
	}
	updated.UpdatedAt = s.now()
	s.users[identity] = updated
	return nil
}

func applyUserField(u *model.User, column string, value interface{}) error {
	switch column {
	case repository.ColEmail:
		u.Email = optionalValue(value)
	case repository.ColUsername:
		u.Username = optionalValue(value)
	case repository.ColPhone:
		u.Phone = optionalValue(value)
	case repository.ColIsPhoneVerified:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("memory: %s expects bool, got %T", column, value)
		}
		u.IsPhoneVerified = b
	case repository.ColDisplayName:
		u.DisplayName = stringValue(value)
	case repository.ColBio:
		u.Bio = stringValue(value)
	case repository.ColAvatarURL:
		u.AvatarURL = stringValue(value)
	default:
		return fmt.Errorf("memory: unknown user column %q", column)
	}
	return nil
}

func (s *UserStore) AddMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error) {
	return s.mutateSet(ctx, identity, set, func(members []string) ([]string, bool) {
		if slices.Contains(members, member) {
			return members, false
		}
		return append(members, member), true
	})
}

func (s *UserStore) RemoveMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error) {
	return s.mutateSet(ctx, identity, set, func(members []string) ([]string, bool) {
		i := slices.Index(members, member)
		if i < 0 {
			return members, false
		}
		return slices.Delete(members, i, i+1), true
	})
}

func (s *UserStore) mutateSet(ctx context.Context, identity string, set model.UserSet, fn func([]string) ([]string, bool)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[identity]
	if !ok {
		return false, repository.ErrNotFound
	}
	var target *datatypes.JSONSlice[string]
	switch set {
	case model.SetFollowers:
		target = &u.Followers
	case model.SetFollowing:
		target = &u.Following
	case model.SetPortfolioRefs:
		target = &u.PortfolioRefs
	default:
		return false, fmt.Errorf("memory: unknown user set %q", set)
	}

	next, changed := fn(slices.Clone([]string(*target)))
	if changed {
		*target = next
		u.UpdatedAt = s.now()
	}
	return changed, nil
}

func (s *UserStore) ListByIdentities(ctx context.Context, identities []string) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(identities))
	for _, id := range identities {
		if u, ok := s.users[id]; ok {
			users = append(users, *cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Identity < users[j].Identity })
	return users, nil
}

func (s *UserStore) Search(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	prefix := strings.ToLower(query)

	s.mu.RLock()
	var matched []model.User
	for _, u := range s.users {
		if strings.HasPrefix(strings.ToLower(model.Deref(u.Username)), prefix) ||
			strings.HasPrefix(strings.ToLower(u.DisplayName), prefix) {
			matched = append(matched, *cloneUser(u))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return model.Deref(matched[i].Username) < model.Deref(matched[j].Username)
	})
	return page(matched, limit, offset), int64(len(matched)), nil
}

func (s *UserStore) ScanPage(ctx context.Context, after string, limit int) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var users []model.User
	for id, u := range s.users {
		if id > after {
			users = append(users, *cloneUser(u))
		}
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Identity < users[j].Identity })
	return page(users, limit, 0), nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Email = cloneString(u.Email)
	c.Username = cloneString(u.Username)
	c.Phone = cloneString(u.Phone)
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	c.PortfolioRefs = slices.Clone(u.PortfolioRefs)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func optionalValue(value interface{}) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case *string:
		return cloneString(v)
	case string:
		return model.Optional(v)
	}
	return nil
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case *string:
		return model.Deref(v)
	}
	return ""
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
