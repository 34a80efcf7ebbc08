package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestUserStore_SparseUniqueness(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()

	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1", Email: str("a@x.io")}))
	// Two users without username or phone never collide.
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u2"}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u3"}))

	err := users.Create(ctx, &model.User{Identity: "u4", Email: str("a@x.io")})
	uv, ok := repository.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, repository.FieldEmail, uv.Field())

	err = users.Create(ctx, &model.User{Identity: "u1"})
	uv, ok = repository.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, repository.FieldIdentity, uv.Field())
}

func TestUserStore_UpdateFieldsConflict(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1", Username: str("alice")}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u2", Username: str("bob")}))

	err := users.UpdateFields(ctx, "u2", map[string]interface{}{repository.ColUsername: "alice"})
	uv, ok := repository.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, repository.FieldUsername, uv.Field())

	// Re-saving your own value is not a conflict.
	require.NoError(t, users.UpdateFields(ctx, "u1", map[string]interface{}{repository.ColUsername: "alice"}))

	require.NoError(t, users.UpdateFields(ctx, "u2", map[string]interface{}{repository.ColUsername: nil}))
	u2, err := users.GetByIdentity(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, u2.Username)

	err = users.UpdateFields(ctx, "missing", map[string]interface{}{repository.ColBio: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserStore_ExistsByFieldExclude(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1", Phone: str("+14155550100")}))

	exists, err := users.ExistsByField(ctx, repository.FieldPhone, "+14155550100", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.ExistsByField(ctx, repository.FieldPhone, "+14155550100", "u1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = users.ExistsByField(ctx, "bio", "x", "")
	assert.Error(t, err)
}

func TestUserStore_SetMembership(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1"}))

	added, err := users.AddMember(ctx, "u1", model.SetFollowing, "u2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = users.AddMember(ctx, "u1", model.SetFollowing, "u2")
	require.NoError(t, err)
	assert.False(t, added, "adding an existing member must not duplicate it")

	u1, err := users.GetByIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, []string(u1.Following))

	removed, err := users.RemoveMember(ctx, "u1", model.SetFollowing, "u2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = users.RemoveMember(ctx, "u1", model.SetFollowing, "u2")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = users.AddMember(ctx, "nobody", model.SetFollowers, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1"}))

	u, err := users.GetByIdentity(ctx, "u1")
	require.NoError(t, err)
	u.Followers = append(u.Followers, "intruder")

	fresh, err := users.GetByIdentity(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Followers)
}

func TestUserStore_SearchAndScan(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore()
	require.NoError(t, users.Create(ctx, &model.User{Identity: "a", Username: str("alice")}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "b", Username: str("alan")}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "c", Username: str("bob"), DisplayName: "Alfred"}))

	found, total, err := users.Search(ctx, "AL", 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, found, 2)

	scanned, err := users.ScanPage(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, scanned, 2)
	assert.Equal(t, "b", scanned[0].Identity)
}

func TestPortfolioStore_NameScopes(t *testing.T) {
	ctx := context.Background()

	t.Run("per owner", func(t *testing.T) {
		portfolios := NewPortfolioStore(false)
		require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "Shots"}))
		require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p2", OwnerID: "u2", Name: "Shots"}))

		err := portfolios.Create(ctx, &model.Portfolio{ID: "p3", OwnerID: "u1", Name: "Shots"})
		uv, ok := repository.AsUniqueViolation(err)
		require.True(t, ok)
		assert.False(t, uv.GlobalScope())
	})

	t.Run("global", func(t *testing.T) {
		portfolios := NewPortfolioStore(true)
		require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "Shots"}))

		err := portfolios.Create(ctx, &model.Portfolio{ID: "p2", OwnerID: "u2", Name: "Shots"})
		uv, ok := repository.AsUniqueViolation(err)
		require.True(t, ok)
		assert.True(t, uv.GlobalScope())
		assert.Equal(t, repository.FieldPortfolioName, uv.Field())
	})
}

func TestPortfolioStore_ExistsByNameAndRename(t *testing.T) {
	ctx := context.Background()
	portfolios := NewPortfolioStore(false)
	require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "One"}))
	require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p2", OwnerID: "u1", Name: "Two"}))

	exists, err := portfolios.ExistsByName(ctx, "One", "u1", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = portfolios.ExistsByName(ctx, "One", "u2", "")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = portfolios.ExistsByName(ctx, "One", "", "p1")
	require.NoError(t, err)
	assert.False(t, exists)

	err = portfolios.UpdateFields(ctx, "p2", map[string]interface{}{repository.ColName: "One"})
	_, ok := repository.AsUniqueViolation(err)
	assert.True(t, ok)
}

func TestPortfolioStore_Followers(t *testing.T) {
	ctx := context.Background()
	portfolios := NewPortfolioStore(false)
	require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "One"}))

	added, err := portfolios.AddFollower(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = portfolios.AddFollower(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.False(t, added)

	followed, err := portfolios.ListFollowedBy(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, "p1", followed[0].ID)

	removed, err := portfolios.RemoveFollower(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = portfolios.AddFollower(ctx, "missing", "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOTPStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	codes := NewOTPStore()
	now := time.Now()

	first := &model.OneTimeCode{Identifier: "a@x.io", Purpose: model.PurposeRegistration, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, codes.Replace(ctx, first))
	second := &model.OneTimeCode{Identifier: "a@x.io", Purpose: model.PurposeRegistration, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, codes.Replace(ctx, second))

	got, err := codes.Get(ctx, "a@x.io", model.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "replace must leave only the newest code")

	for i := 0; i < 3; i++ {
		ok, err := codes.IncrementAttempts(ctx, got.ID, 3)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := codes.IncrementAttempts(ctx, got.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := codes.Delete(ctx, got.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = codes.Delete(ctx, got.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "a code can only be consumed once")
}

func TestOTPStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	codes := NewOTPStore()
	now := time.Now()

	require.NoError(t, codes.Replace(ctx, &model.OneTimeCode{Identifier: "old", Purpose: model.PurposePasswordReset, ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, codes.Replace(ctx, &model.OneTimeCode{Identifier: "new", Purpose: model.PurposePasswordReset, ExpiresAt: now.Add(time.Minute)}))

	n, err := codes.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = codes.Get(ctx, "old", model.PurposePasswordReset)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	posts := NewPostStore()
	base := time.Now()

	require.NoError(t, posts.Create(ctx, &model.Post{ID: "a", PortfolioID: "p1", CreatedAt: base}))
	require.NoError(t, posts.Create(ctx, &model.Post{ID: "b", PortfolioID: "p1", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, posts.Create(ctx, &model.Post{ID: "c", PortfolioID: "p2", CreatedAt: base}))

	list, total, err := posts.ListByPortfolio(ctx, "p1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	require.NoError(t, posts.Delete(ctx, "a"))
	assert.ErrorIs(t, posts.Delete(ctx, "a"), repository.ErrNotFound)
}

func TestPostStore_LikesAndComments(t *testing.T) {
	ctx := context.Background()
	posts := NewPostStore()
	require.NoError(t, posts.Create(ctx, &model.Post{ID: "a", PortfolioID: "p1"}))

	added, err := posts.AddLike(ctx, "a", "bob")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = posts.AddLike(ctx, "a", "bob")
	require.NoError(t, err)
	assert.False(t, added)

	got, err := posts.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, []string(got.LikedBy))
	got.LikedBy[0] = "mallory"
	again, _ := posts.GetByID(ctx, "a")
	assert.Equal(t, "bob", again.LikedBy[0], "reads return copies")

	removed, err := posts.RemoveLike(ctx, "a", "bob")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = posts.RemoveLike(ctx, "a", "bob")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = posts.AddLike(ctx, "missing", "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	first := &model.PostComment{PostID: "a", AuthorID: "bob", Body: "one"}
	require.NoError(t, posts.AddComment(ctx, first))
	require.NoError(t, posts.AddComment(ctx, &model.PostComment{PostID: "a", AuthorID: "carol", Body: "two"}))
	assert.NotZero(t, first.ID)
	assert.ErrorIs(t, posts.AddComment(ctx, &model.PostComment{PostID: "missing", AuthorID: "bob", Body: "x"}), repository.ErrNotFound)

	comments, total, err := posts.ListComments(ctx, "a", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, comments, 2)
	assert.Equal(t, "one", comments[0].Body)

	require.NoError(t, posts.Delete(ctx, "a"))
	comments, total, err = posts.ListComments(ctx, "a", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, comments)
}

func TestRepairStore_DeduplicatesPairs(t *testing.T) {
	ctx := context.Background()
	repairs := NewRepairStore()

	require.NoError(t, repairs.Enqueue(ctx, &model.RelationshipRepair{Kind: model.RepairUserEdge, Actor: "a", Target: "b"}))
	require.NoError(t, repairs.Enqueue(ctx, &model.RelationshipRepair{Kind: model.RepairUserEdge, Actor: "a", Target: "b"}))
	require.NoError(t, repairs.Enqueue(ctx, &model.RelationshipRepair{Kind: model.RepairPortfolioRef, Actor: "a", Target: "p1"}))

	list, err := repairs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, repairs.Delete(ctx, list[0].ID))
	list, err = repairs.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
