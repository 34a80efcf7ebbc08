package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPosts struct {
	repository.PostStore
}

func (failingPosts) Create(context.Context, *model.Post) error { return errStoreDown }

func newPostFixture(t *testing.T) (*fixture, *PostService, *fakeMedia, string) {
	t.Helper()
	f := newFixture(t, false)
	f.createUser(t, "alice", "alice")
	f.createUser(t, "bob", "bob")
	p, err := f.portfolios.Create(context.Background(), "alice", dto.CreatePortfolioRequest{Name: "Music", Category: "art"})
	require.NoError(t, err)

	media := newFakeMedia()
	return f, NewPostService(f.stores, media), media, p.ID
}

func upload(portfolioID, contentType string) dto.CreatePostInput {
	return dto.CreatePostInput{
		PortfolioID: portfolioID,
		Caption:     "first take",
		FileName:    "take.jpg",
		ContentType: contentType,
		Size:        5,
		Body:        strings.NewReader("bytes"),
	}
}

func TestPost_CreateListDelete(t *testing.T) {
	_, posts, media, portfolioID := newPostFixture(t)
	ctx := context.Background()

	post, err := posts.Create(ctx, "alice", upload(portfolioID, "image/jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(post.MediaURL, "https://media.example.com/"+portfolioID+"/"))
	assert.True(t, strings.HasSuffix(post.MediaURL, ".jpg"))
	assert.Equal(t, 1, media.count())

	list, total, err := posts.ListByPortfolio(ctx, portfolioID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, post.ID, list[0].ID)

	assert.ErrorIs(t, posts.Delete(ctx, "bob", post.ID), apperrors.ErrForbidden)
	require.NoError(t, posts.Delete(ctx, "alice", post.ID))
	assert.Zero(t, media.count())
	assert.ErrorIs(t, posts.Delete(ctx, "alice", post.ID), apperrors.ErrPostNotFound)
}

func TestPost_CreateRules(t *testing.T) {
	_, posts, media, portfolioID := newPostFixture(t)
	ctx := context.Background()

	_, err := posts.Create(ctx, "bob", upload(portfolioID, "image/png"))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = posts.Create(ctx, "alice", upload(portfolioID, "application/pdf"))
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, "file", apperrors.GetFieldErrors(err)[0].Field)

	_, err = posts.Create(ctx, "alice", upload("missing", "image/png"))
	assert.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)

	assert.Zero(t, media.count(), "nothing uploaded for rejected posts")

	for _, contentType := range []string{"image/png", "video/mp4", "audio/mpeg"} {
		_, err = posts.Create(ctx, "alice", upload(portfolioID, contentType))
		assert.NoError(t, err, contentType)
	}
	assert.Equal(t, 3, media.count())
}

func TestPost_MediaFailure(t *testing.T) {
	_, posts, media, portfolioID := newPostFixture(t)
	media.storeErr = errors.New("s3: request timeout")

	_, err := posts.Create(context.Background(), "alice", upload(portfolioID, "video/mp4"))
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestPost_InsertFailureRemovesUpload(t *testing.T) {
	f, _, media, portfolioID := newPostFixture(t)
	stores := *f.stores
	stores.Posts = failingPosts{PostStore: f.stores.Posts}
	posts := NewPostService(&stores, media)

	_, err := posts.Create(context.Background(), "alice", upload(portfolioID, "image/png"))
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Zero(t, media.count())
}

func TestPost_DeleteToleratesMediaFailure(t *testing.T) {
	_, posts, media, portfolioID := newPostFixture(t)
	ctx := context.Background()

	post, err := posts.Create(ctx, "alice", upload(portfolioID, "image/png"))
	require.NoError(t, err)

	media.deleteErr = errors.New("s3: access denied")
	assert.NoError(t, posts.Delete(ctx, "alice", post.ID))
}

func TestPost_ListUnknownPortfolio(t *testing.T) {
	_, posts, _, _ := newPostFixture(t)

	_, _, err := posts.ListByPortfolio(context.Background(), "missing", 10, 0)
	assert.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)
}

func TestPost_LikeUnlike(t *testing.T) {
	_, posts, _, portfolioID := newPostFixture(t)
	ctx := context.Background()
	post, err := posts.Create(ctx, "alice", upload(portfolioID, "image/png"))
	require.NoError(t, err)
	assert.Zero(t, post.Likes)

	status, err := posts.Like(ctx, "bob", post.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.LikeResponse{Liked: true, Likes: 1}, *status)

	_, err = posts.Like(ctx, "bob", post.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyLiked)

	status, err = posts.Like(ctx, "alice", post.ID)
	require.NoError(t, err, "owners may like their own post")
	assert.Equal(t, 2, status.Likes)

	list, _, err := posts.ListByPortfolio(ctx, portfolioID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, list[0].Likes)

	status, err = posts.Unlike(ctx, "bob", post.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.LikeResponse{Liked: false, Likes: 1}, *status)

	_, err = posts.Unlike(ctx, "bob", post.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotLiked)

	_, err = posts.Like(ctx, "ghost", post.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = posts.Like(ctx, "bob", "missing")
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
}

func TestPost_ConcurrentLikesCountOnce(t *testing.T) {
	_, posts, _, portfolioID := newPostFixture(t)
	ctx := context.Background()
	post, err := posts.Create(ctx, "alice", upload(portfolioID, "image/png"))
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	var liked, already atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := posts.Like(ctx, "bob", post.ID)
			switch {
			case err == nil:
				liked.Add(1)
			case errors.Is(err, apperrors.ErrAlreadyLiked):
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, liked.Load())
	assert.EqualValues(t, attempts-1, already.Load())
}

func TestPost_LikersOwnerOnly(t *testing.T) {
	_, posts, _, portfolioID := newPostFixture(t)
	ctx := context.Background()
	post, err := posts.Create(ctx, "alice", upload(portfolioID, "image/png"))
	require.NoError(t, err)

	likers, err := posts.Likers(ctx, "alice", post.ID)
	require.NoError(t, err)
	assert.Empty(t, likers)

	_, err = posts.Like(ctx, "bob", post.ID)
	require.NoError(t, err)

	likers, err = posts.Likers(ctx, "alice", post.ID)
	require.NoError(t, err)
	require.Len(t, likers, 1)
	assert.Equal(t, "bob", likers[0].Identity)
	assert.Equal(t, "bob", likers[0].Username)

	_, err = posts.Likers(ctx, "bob", post.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = posts.Likers(ctx, "alice", "missing")
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
}

func TestPost_Comments(t *testing.T) {
	_, posts, _, portfolioID := newPostFixture(t)
	ctx := context.Background()
	post, err := posts.Create(ctx, "alice", upload(portfolioID, "image/png"))
	require.NoError(t, err)

	_, err = posts.AddComment(ctx, "bob", post.ID, dto.CreateCommentRequest{Comment: "   "})
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, "comment", apperrors.GetFieldErrors(err)[0].Field)

	first, err := posts.AddComment(ctx, "bob", post.ID, dto.CreateCommentRequest{Comment: "  great take  "})
	require.NoError(t, err)
	assert.Equal(t, "great take", first.Comment)
	assert.Equal(t, "bob", first.Author.Username)

	_, err = posts.AddComment(ctx, "alice", post.ID, dto.CreateCommentRequest{Comment: "thanks"})
	require.NoError(t, err)

	_, err = posts.AddComment(ctx, "ghost", post.ID, dto.CreateCommentRequest{Comment: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	_, err = posts.AddComment(ctx, "bob", "missing", dto.CreateCommentRequest{Comment: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)

	comments, total, err := posts.ListComments(ctx, post.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, comments, 2)
	assert.Equal(t, "great take", comments[0].Comment)
	assert.Equal(t, "bob", comments[0].Author.Identity)
	assert.Equal(t, "alice", comments[1].Author.Username)

	page, total, err := posts.ListComments(ctx, post.ID, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "thanks", page[0].Comment)

	require.NoError(t, posts.Delete(ctx, "alice", post.ID))
	_, _, err = posts.ListComments(ctx, post.ID, 10, 0)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)
}
