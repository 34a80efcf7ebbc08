// Package circuit guards calls to outbound providers (SMS, email, object
// storage, the auth admin API) so an outage fails fast instead of tying up
// request handlers until their timeouts fire.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast
	StateHalfOpen              // probing recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrOpen            = errors.New("circuit: provider unavailable")
	ErrTooManyRequests = errors.New("circuit: too many probes in half-open state")
)

type Settings struct {
	Threshold        int           // consecutive failures before opening
	Cooldown         time.Duration // wait before probing
	SuccessThreshold int           // probe successes needed to close
	MaxProbes        int           // concurrent calls while half-open
	// Trips decides whether an error counts against the provider. Nil counts every error.
	Trips func(error) bool
}

func DefaultSettings() Settings {
	return Settings{
		Threshold:        5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 2,
		MaxProbes:        1,
	}
}

// Snapshot is a point-in-time view for health reporting.
type Snapshot struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

type Breaker struct {
	mu          sync.Mutex
	name        string
	settings    Settings
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
	now         func() time.Time
	logger      *zap.Logger
}

func NewBreaker(name string, settings Settings, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Threshold <= 0 {
		settings.Threshold = 1
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.MaxProbes <= 0 {
		settings.MaxProbes = 1
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
		logger:   logger,
	}
}

// Do runs fn unless the circuit is open. Cancellation by the caller is not
// held against the provider.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if errors.Is(err, context.Canceled) {
		b.release()
		return err
	}
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.settings.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probes = 1
		return nil
	case StateHalfOpen:
		if b.probes >= b.settings.MaxProbes {
			return ErrTooManyRequests
		}
		b.probes++
		return nil
	}
	return nil
}

// release returns a half-open probe slot without recording an outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && (b.settings.Trips == nil || b.settings.Trips(err)) {
		b.failures++
		b.successes = 0
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failures >= b.settings.Threshold {
			b.transition(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.probes--
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.probes = 0
	if to == StateClosed {
		b.failures = 0
		b.successes = 0
	}

	b.logger.Warn("Provider circuit state changed",
		zap.String("provider", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("failures", b.failures),
	)
}

// Ready reports whether a call made now would be let through, without
// taking a half-open probe slot.
func (b *Breaker) Ready() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.settings.Cooldown {
			return ErrOpen
		}
	case StateHalfOpen:
		if b.probes >= b.settings.MaxProbes {
			return ErrTooManyRequests
		}
	}
	return nil
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:        b.name,
		State:       b.state.String(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
}

// Group hands out one breaker per provider name.
type Group struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	settings Settings
	logger   *zap.Logger
}

func NewGroup(settings Settings, logger *zap.Logger) *Group {
	return &Group{
		breakers: make(map[string]*Breaker),
		settings: settings,
		logger:   logger,
	}
}

func (g *Group) Get(name string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, g.settings, g.logger)
	g.breakers[name] = b
	return b
}

func (g *Group) Snapshots() []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Snapshot, 0, len(g.breakers))
	for _, b := range g.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}
