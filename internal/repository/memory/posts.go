package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
)

type PostStore struct {
	mu          sync.RWMutex
	posts       map[string]*model.Post
	comments    map[string][]model.PostComment
	nextComment uint
	now         func() time.Time
}

func NewPostStore() *PostStore {
	return &PostStore{
		posts:    make(map[string]*model.Post),
		comments: make(map[string][]model.PostComment),
		now:      time.Now,
	}
}

func (s *PostStore) Create(ctx context.Context, post *model.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[post.ID]; ok {
		return &repository.UniqueViolationError{Constraint: repository.ConstraintPostID}
	}
	now := s.now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}
	s.posts[post.ID] = clonePost(post)
	return nil
}

func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePost(p), nil
}

func (s *PostStore) ListByPortfolio(ctx context.Context, portfolioID string, limit, offset int) ([]model.Post, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	var posts []model.Post
	for _, p := range s.posts {
		if p.PortfolioID == portfolioID {
			posts = append(posts, *clonePost(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return page(posts, limit, offset), int64(len(posts)), nil
}

func (s *PostStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.posts, id)
	delete(s.comments, id)
	return nil
}

func (s *PostStore) AddLike(ctx context.Context, id, identity string) (bool, error) {
	return s.mutateLikes(ctx, id, func(likedBy []string) ([]string, bool) {
		if slices.Contains(likedBy, identity) {
			return likedBy, false
		}
		return append(likedBy, identity), true
	})
}

func (s *PostStore) RemoveLike(ctx context.Context, id, identity string) (bool, error) {
	return s.mutateLikes(ctx, id, func(likedBy []string) ([]string, bool) {
		i := slices.Index(likedBy, identity)
		if i < 0 {
			return likedBy, false
		}
		return slices.Delete(likedBy, i, i+1), true
	})
}

func (s *PostStore) mutateLikes(ctx context.Context, id string, fn func([]string) ([]string, bool)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	next, changed := fn(slices.Clone([]string(p.LikedBy)))
	if changed {
		p.LikedBy = next
		p.UpdatedAt = s.now()
	}
	return changed, nil
}

func (s *PostStore) AddComment(ctx context.Context, comment *model.PostComment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return repository.ErrNotFound
	}
	s.nextComment++
	comment.ID = s.nextComment
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now()
	}
	s.comments[comment.PostID] = append(s.comments[comment.PostID], *comment)
	return nil
}

// ListComments returns comments oldest first.
func (s *PostStore) ListComments(ctx context.Context, postID string, limit, offset int) ([]model.PostComment, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	comments := slices.Clone(s.comments[postID])
	s.mu.RUnlock()

	return page(comments, limit, offset), int64(len(comments)), nil
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.LikedBy = slices.Clone(p.LikedBy)
	return &c
}
