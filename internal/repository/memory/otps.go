package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
)

type codeKey struct {
	identifier string
	purpose    model.OTPPurpose
}

type OTPStore struct {
	mu     sync.Mutex
	codes  map[codeKey]*model.OneTimeCode
	nextID uint
	now    func() time.Time
}

func NewOTPStore() *OTPStore {
	return &OTPStore{codes: make(map[codeKey]*model.OneTimeCode), now: time.Now}
}

func (s *OTPStore) Replace(ctx context.Context, code *model.OneTimeCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	code.ID = s.nextID
	if code.CreatedAt.IsZero() {
		code.CreatedAt = s.now()
	}
	c := *code
	s.codes[codeKey{code.Identifier, code.Purpose}] = &c
	return nil
}

func (s *OTPStore) Get(ctx context.Context, identifier string, purpose model.OTPPurpose) (*model.OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[codeKey{identifier, purpose}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *OTPStore) IncrementAttempts(ctx context.Context, id uint, maxAttempts int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byID(id)
	if c == nil || c.Attempts >= maxAttempts {
		return false, nil
	}
	c.Attempts++
	return true, nil
}

func (s *OTPStore) Delete(ctx context.Context, id uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byID(id)
	if c == nil {
		return false, nil
	}
	delete(s.codes, codeKey{c.Identifier, c.Purpose})
	return true, nil
}

func (s *OTPStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, c := range s.codes {
		if c.Expired(now) {
			delete(s.codes, k)
			n++
		}
	}
	return n, nil
}

// byID must be called with s.mu held.
func (s *OTPStore) byID(id uint) *model.OneTimeCode {
	for _, c := range s.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}
