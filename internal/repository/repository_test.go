package repository_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/Payphone-Digital/portfolio-service/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// setupPostgres starts a throwaway Postgres and returns a migrated connection.
func setupPostgres(t *testing.T, globalNames bool) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "folio",
			"POSTGRES_PASSWORD": "folio",
			"POSTGRES_DB":       "folio",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.NewPostgresDB(database.Config{
		DSN:          fmt.Sprintf("host=%s port=%s user=folio password=folio dbname=folio sslmode=disable", host, port.Port()),
		MaxIdleConns: 2,
		MaxOpenConns: 10,
		PingTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(db) })

	require.NoError(t, database.Migrate(db, globalNames))
	return db
}

func str(s string) *string { return &s }

func TestPostgres_UserConstraints(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1", Email: str("a@x.io"), Username: str("alice")}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u2"}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u3"}), "absent usernames must not collide")

	err := users.Create(ctx, &model.User{Identity: "u4", Email: str("a@x.io")})
	uv, ok := repository.AsUniqueViolation(err)
	require.True(t, ok, "expected unique violation, got %v", err)
	assert.Equal(t, repository.FieldEmail, uv.Field())

	err = users.Create(ctx, &model.User{Identity: "u1"})
	uv, ok = repository.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, repository.FieldIdentity, uv.Field())

	err = users.UpdateFields(ctx, "u2", map[string]interface{}{repository.ColUsername: "alice"})
	uv, ok = repository.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, repository.FieldUsername, uv.Field())

	_, err = users.GetByIdentity(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgres_SetMembershipIsAtomic(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	require.NoError(t, users.Create(ctx, &model.User{Identity: "target"}))

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := users.AddMember(ctx, "target", model.SetFollowers, "same-actor")
			assert.NoError(t, err)
			results <- added
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for added := range results {
		if added {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent add may win")

	u, err := users.GetByIdentity(ctx, "target")
	require.NoError(t, err)
	assert.Equal(t, []string{"same-actor"}, []string(u.Followers))

	removed, err := users.RemoveMember(ctx, "target", model.SetFollowers, "same-actor")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = users.AddMember(ctx, "ghost", model.SetFollowing, "x")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgres_PortfolioNamePolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("owner scope", func(t *testing.T) {
		portfolios := repository.NewPortfolioRepository(setupPostgres(t, false))
		require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "Shots", Category: "photo"}))
		require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p2", OwnerID: "u2", Name: "Shots", Category: "photo"}))

		err := portfolios.Create(ctx, &model.Portfolio{ID: "p3", OwnerID: "u1", Name: "Shots", Category: "photo"})
		uv, ok := repository.AsUniqueViolation(err)
		require.True(t, ok)
		assert.False(t, uv.GlobalScope())
	})

	t.Run("global scope", func(t *testing.T) {
		portfolios := repository.NewPortfolioRepository(setupPostgres(t, true))
		require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "Shots", Category: "photo"}))

		err := portfolios.Create(ctx, &model.Portfolio{ID: "p2", OwnerID: "u2", Name: "Shots", Category: "photo"})
		uv, ok := repository.AsUniqueViolation(err)
		require.True(t, ok)
		assert.True(t, uv.GlobalScope())
	})
}

func TestPostgres_PortfolioFollowers(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	portfolios := repository.NewPortfolioRepository(db)
	require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "u1", Name: "One", Category: "art"}))
	require.NoError(t, portfolios.Create(ctx, &model.Portfolio{ID: "p2", OwnerID: "u1", Name: "Two", Category: "art"}))

	added, err := portfolios.AddFollower(ctx, "p2", "u9")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = portfolios.AddFollower(ctx, "p2", "u9")
	require.NoError(t, err)
	assert.False(t, added)

	followed, err := portfolios.ListFollowedBy(ctx, "u9")
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, "p2", followed[0].ID)
}

func TestPostgres_OTPLedger(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	codes := repository.NewOTPRepository(db)
	now := time.Now()

	first := &model.OneTimeCode{Identifier: "a@x.io", Purpose: model.PurposeRegistration, CodeHash: "h1", Salt: "s1", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, codes.Replace(ctx, first))
	second := &model.OneTimeCode{Identifier: "a@x.io", Purpose: model.PurposeRegistration, CodeHash: "h2", Salt: "s2", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, codes.Replace(ctx, second))

	got, err := codes.Get(ctx, "a@x.io", model.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CodeHash)

	ok, err := codes.IncrementAttempts(ctx, got.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = codes.IncrementAttempts(ctx, got.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := codes.Delete(ctx, got.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = codes.Delete(ctx, got.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, codes.Replace(ctx, &model.OneTimeCode{Identifier: "old", Purpose: model.PurposePasswordReset, CodeHash: "h", Salt: "s", ExpiresAt: now.Add(-time.Minute)}))
	n, err := codes.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPostgres_OTPReplaceIsAtomic(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	codes := repository.NewOTPRepository(db)
	expiresAt := time.Now().Add(time.Minute)

	const senders = 16
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- codes.Replace(ctx, &model.OneTimeCode{
				Identifier: "race@x.io",
				Purpose:    model.PurposePasswordReset,
				CodeHash:   fmt.Sprintf("h%d", i),
				Salt:       "s",
				ExpiresAt:  expiresAt,
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var rows int64
	require.NoError(t, db.Model(&model.OneTimeCode{}).
		Where("identifier = ? AND purpose = ?", "race@x.io", model.PurposePasswordReset).
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	current, err := codes.Get(ctx, "race@x.io", model.PurposePasswordReset)
	require.NoError(t, err)
	_, err = codes.IncrementAttempts(ctx, current.ID, 5)
	require.NoError(t, err)

	replacement := &model.OneTimeCode{Identifier: "race@x.io", Purpose: model.PurposePasswordReset, CodeHash: "fresh", Salt: "s", ExpiresAt: expiresAt}
	require.NoError(t, codes.Replace(ctx, replacement))
	assert.NotEqual(t, current.ID, replacement.ID, "a replaced code gets a new id")

	got, err := codes.Get(ctx, "race@x.io", model.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.CodeHash)
	assert.Zero(t, got.Attempts, "attempts reset with the new code")

	deleted, err := codes.Delete(ctx, current.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "the old id no longer consumes anything")
}

func TestPostgres_SearchUsesPrefixIndexes(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	require.NoError(t, users.Create(ctx, &model.User{Identity: "u1", Username: str("Alice"), DisplayName: "Wonderland"}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u2", Username: str("bob"), DisplayName: "Alfred B"}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u3", Username: str("carol"), DisplayName: "Carol"}))
	require.NoError(t, users.Create(ctx, &model.User{Identity: "u4", Username: str("al_x"), DisplayName: "X"}))

	found, total, err := users.Search(ctx, "AL", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, found, 3)

	found, _, err = users.Search(ctx, "al_", 10, 0)
	require.NoError(t, err)
	require.Len(t, found, 1, "underscore is matched literally")
	assert.Equal(t, "u4", found[0].Identity)

	var plan []string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET LOCAL enable_seqscan = off").Error; err != nil {
			return err
		}
		return tx.Raw("EXPLAIN SELECT * FROM users WHERE lower(username) LIKE ? OR lower(display_name) LIKE ?", "al%", "al%").
			Scan(&plan).Error
	}))
	joined := strings.Join(plan, "\n")
	assert.Contains(t, joined, "idx_users_username_prefix")
	assert.Contains(t, joined, "idx_users_display_name_prefix")
}

func TestPostgres_PostLikesAndComments(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	posts := repository.NewPostRepository(db)

	require.NoError(t, posts.Create(ctx, &model.Post{ID: "post-1", PortfolioID: "p1", OwnerID: "alice", MediaURL: "u", MediaHandle: "h"}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := posts.AddLike(ctx, "post-1", "bob")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, added, "exactly one concurrent like lands")

	post, err := posts.GetByID(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, []string(post.LikedBy))

	removed, err := posts.RemoveLike(ctx, "post-1", "bob")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = posts.RemoveLike(ctx, "post-1", "bob")
	require.NoError(t, err)
	assert.False(t, removed)
	_, err = posts.AddLike(ctx, "missing", "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, posts.AddComment(ctx, &model.PostComment{PostID: "post-1", AuthorID: "bob", Body: "one"}))
	require.NoError(t, posts.AddComment(ctx, &model.PostComment{PostID: "post-1", AuthorID: "carol", Body: "two"}))
	assert.ErrorIs(t, posts.AddComment(ctx, &model.PostComment{PostID: "missing", AuthorID: "bob", Body: "x"}), repository.ErrNotFound)

	comments, total, err := posts.ListComments(ctx, "post-1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, comments, 2)
	assert.Equal(t, "one", comments[0].Body)

	require.NoError(t, posts.Delete(ctx, "post-1"))
	_, total, err = posts.ListComments(ctx, "post-1", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total, "comments go with their post")
}

func TestPostgres_RepairQueueDeduplicates(t *testing.T) {
	db := setupPostgres(t, false)
	ctx := context.Background()
	repairs := repository.NewRepairRepository(db)

	require.NoError(t, repairs.Enqueue(ctx, &model.RelationshipRepair{Kind: model.RepairUserEdge, Actor: "a", Target: "b"}))
	require.NoError(t, repairs.Enqueue(ctx, &model.RelationshipRepair{Kind: model.RepairUserEdge, Actor: "a", Target: "b"}))

	list, err := repairs.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
