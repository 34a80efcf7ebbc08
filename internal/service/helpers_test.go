package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/dto"
	"github.com/Payphone-Digital/portfolio-service/internal/events"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/Payphone-Digital/portfolio-service/internal/repository/memory"
	"github.com/Payphone-Digital/portfolio-service/pkg/lock"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("connection reset by peer")

type fixture struct {
	stores      *repository.Stores
	guard       *UniquenessGuard
	coordinator *RelationshipCoordinator
	events      *events.Recorder
	profiles    *ProfileService
	portfolios  *PortfolioService
}

func newFixture(t *testing.T, globalNames bool) *fixture {
	t.Helper()
	return newFixtureWithStores(t, memory.NewStores(globalNames), globalNames)
}

func newFixtureWithStores(t *testing.T, stores *repository.Stores, globalNames bool) *fixture {
	t.Helper()
	recorder := &events.Recorder{}
	guard := NewUniquenessGuard(stores.Users, stores.Portfolios, globalNames)
	coordinator := NewRelationshipCoordinator(stores, lock.NewLocal(), recorder)
	return &fixture{
		stores:      stores,
		guard:       guard,
		coordinator: coordinator,
		events:      recorder,
		profiles:    NewProfileService(stores.Users, guard, recorder),
		portfolios:  NewPortfolioService(stores, guard, coordinator),
	}
}

func (f *fixture) createUser(t *testing.T, identity, username string) {
	t.Helper()
	_, created, err := f.profiles.CreateOrGet(context.Background(), identity, dto.CreateProfileRequest{Username: username})
	require.NoError(t, err)
	require.True(t, created)
}

func (f *fixture) user(t *testing.T, identity string) *model.User {
	t.Helper()
	u, err := f.stores.Users.GetByIdentity(context.Background(), identity)
	require.NoError(t, err)
	return u
}

// flakyUsers fails the next failures mutations of one set.
type flakyUsers struct {
	repository.UserStore
	mu       sync.Mutex
	set      model.UserSet
	failures int
}

func (f *flakyUsers) fail(set model.UserSet) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set == f.set && f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *flakyUsers) AddMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error) {
	if f.fail(set) {
		return false, errStoreDown
	}
	return f.UserStore.AddMember(ctx, identity, set, member)
}

func (f *flakyUsers) RemoveMember(ctx context.Context, identity string, set model.UserSet, member string) (bool, error) {
	if f.fail(set) {
		return false, errStoreDown
	}
	return f.UserStore.RemoveMember(ctx, identity, set, member)
}

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *fakeMailer) SendCode(_ context.Context, to string, _ model.OTPPurpose, code string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) last(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

// fakeSMS plays both provider roles: a verify service that always issues
// approvedCode, and a plain message sender.
type fakeSMS struct {
	mu           sync.Mutex
	approvedCode string
	pending      map[string]bool
	messages     map[string]string
	err          error
}

func newFakeSMS() *fakeSMS {
	return &fakeSMS{
		approvedCode: "424242",
		pending:      make(map[string]bool),
		messages:     make(map[string]string),
	}
}

func (s *fakeSMS) SendCode(_ context.Context, phone string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[phone] = true
	return nil
}

func (s *fakeSMS) CheckCode(_ context.Context, phone, code string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending[phone] || code != s.approvedCode {
		return false, nil
	}
	delete(s.pending, phone)
	return true, nil
}

func (s *fakeSMS) SendMessage(_ context.Context, phone, body string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[phone] = body
	return nil
}

var sixDigits = regexp.MustCompile(`\d{6}`)

// codeSentTo extracts the code from the last message sent to phone.
func (s *fakeSMS) codeSentTo(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sixDigits.FindString(s.messages[phone])
}

type fakeAuth struct {
	mu        sync.Mutex
	passwords map[string]string
	err       error
	down      error
}

func (a *fakeAuth) Ready(context.Context) error { return a.down }

func (a *fakeAuth) UpdatePassword(_ context.Context, identity, newPassword string) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.passwords == nil {
		a.passwords = make(map[string]string)
	}
	a.passwords[identity] = newPassword
	return nil
}

type fakeMedia struct {
	mu        sync.Mutex
	objects   map[string]string
	storeErr  error
	deleteErr error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: make(map[string]string)}
}

func (m *fakeMedia) Store(_ context.Context, name, contentType string, body io.Reader, _ int64) (string, string, error) {
	if m.storeErr != nil {
		return "", "", m.storeErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = string(data)
	return "https://media.example.com/" + name, name, nil
}

func (m *fakeMedia) Delete(_ context.Context, handle string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, handle)
	return nil
}

func (m *fakeMedia) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// wrongCode returns a six-digit code guaranteed to differ from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
