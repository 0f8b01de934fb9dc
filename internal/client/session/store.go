package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/client/token"
	"github.com/dmitrijs2005/certhub/internal/common"
	"github.com/dmitrijs2005/certhub/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshMargin    = 5 * time.Minute
	DefaultFallbackInterval = 5 * time.Minute
	DefaultLogoutTimeout    = 5 * time.Second
	DefaultRefreshTimeout   = 15 * time.Second

	// DefaultMinRefreshInterval is the shortest wait after a refresh that
	// handed back a token already inside the refresh margin.
	DefaultMinRefreshInterval = 30 * time.Second
)

// AuthAPI is the subset of the auth endpoints the store talks to.
// *authapi.Client satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, c models.Credentials) (*models.AuthResult, error)
	Register(ctx context.Context, p models.Profile) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error)
	Logout(ctx context.Context, accessToken string) error
}

type Option func(*Store)

func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

func WithLogger(l logging.Logger) Option { return func(s *Store) { s.log = l } }

// WithRefreshMargin sets how long before expiry the access token is renewed.
func WithRefreshMargin(d time.Duration) Option { return func(s *Store) { s.refreshMargin = d } }

// WithFallbackInterval sets the cadence of the missed-timer check. Zero disables it.
func WithFallbackInterval(d time.Duration) Option { return func(s *Store) { s.fallbackInterval = d } }

// WithLogoutTimeout bounds the best-effort server logout call.
func WithLogoutTimeout(d time.Duration) Option { return func(s *Store) { s.logoutTimeout = d } }

// WithRefreshTimeout bounds a single refresh call.
func WithRefreshTimeout(d time.Duration) Option { return func(s *Store) { s.refreshTimeout = d } }

// WithMinRefreshInterval sets the floor used to schedule the next refresh when
// the server issues tokens that live shorter than the refresh margin.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(s *Store) { s.minRefreshInterval = d }
}

// WithRestoreDegraded controls whether a persisted identity without an access
// token restores as an active session that recovers on the first 401.
func WithRestoreDegraded(v bool) Option { return func(s *Store) { s.restoreDegraded = v } }

// Store owns the session. It is safe for concurrent use.
type Store struct {
	api       AuthAPI
	persister Persister
	clock     Clock
	log       logging.Logger

	refreshMargin    time.Duration
	fallbackInterval time.Duration
	logoutTimeout    time.Duration
	refreshTimeout   time.Duration
	restoreDegraded  bool

	minRefreshInterval time.Duration

	group singleflight.Group

	mu            sync.Mutex
	state         State
	identity      *models.Identity
	tokens        models.TokenPair
	degraded      bool
	generation    uint64
	refreshTimer  Timer
	fallbackTimer Timer
	closed        bool

	subMu   sync.Mutex
	subs    map[uint64]func(Event)
	nextSub uint64

	ready     chan struct{}
	readyOnce sync.Once
}

func New(api AuthAPI, persister Persister, opts ...Option) *Store {
	s := &Store{
		api:              api,
		persister:        persister,
		clock:            SystemClock,
		log:              logging.Discard(),
		refreshMargin:    DefaultRefreshMargin,
		fallbackInterval: DefaultFallbackInterval,
		logoutTimeout:    DefaultLogoutTimeout,
		refreshTimeout:   DefaultRefreshTimeout,

		minRefreshInterval: DefaultMinRefreshInterval,
		restoreDegraded:  true,
		subs:             make(map[uint64]func(Event)),
		ready:            make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login authenticates and, on success, replaces any current session.
// On failure the current state is left untouched.
func (s *Store) Login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, models.Credentials{Email: email, Password: password})
	if err != nil {
		s.log.Info(ctx, "login failed", "error", err)
		return err
	}
	if !usable(res) {
		return common.ErrInvalidAuthResponse
	}
	s.establish(ctx, res, "login")
	return nil
}

// Register creates an account and establishes its session. An empty role
// becomes models.DefaultRole.
func (s *Store) Register(ctx context.Context, p models.Profile) error {
	if p.Role == "" {
		p.Role = models.DefaultRole
	}
	res, err := s.api.Register(ctx, p)
	if err != nil {
		s.log.Info(ctx, "register failed", "error", err)
		return err
	}
	if !usable(res) {
		return common.ErrInvalidAuthResponse
	}
	s.establish(ctx, res, "register")
	return nil
}

// Logout clears local state first, then tells the server on a best-effort
// basis. Calling it without a session is a no-op apart from wiping storage.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	access := s.tokens.Access
	ev, changed := s.expireLocked(ctx, ReasonLogout)
	s.mu.Unlock()

	if changed {
		s.emit(ev)
	}

	if access == "" {
		return
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
	defer cancel()
	if err := s.api.Logout(lctx, access); err != nil {
		s.log.Warn(ctx, "server logout failed", "error", err)
	}
}

// Expire drops the session without notifying the server.
func (s *Store) Expire(ctx context.Context, reason Reason) {
	s.mu.Lock()
	ev, changed := s.expireLocked(ctx, reason)
	s.mu.Unlock()
	if changed {
		s.emit(ev)
	}
}

// CurrentIdentity returns a copy of the logged-in identity, or nil.
func (s *Store) CurrentIdentity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Clone()
}

// AccessToken returns the bearer credential, or "" when there is none.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Access
}

func (s *Store) HasRefreshToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Refresh != ""
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Degraded reports an active session restored without an access token.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Loading is true until Init has finished.
func (s *Store) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

// Ready is closed once Init has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe registers fn for session events and returns a func that
// unregisters it. fn runs on the goroutine that caused the transition and
// must not block.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Close stops the timers. The session itself is kept.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimersLocked()
}

func (s *Store) emit(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func usable(res *models.AuthResult) bool {
	return res != nil && res.User != nil && res.AccessToken != ""
}

func (s *Store) establish(ctx context.Context, res *models.AuthResult, via string) {
	s.mu.Lock()
	s.generation++
	s.identity = res.User.Clone()
	s.tokens = models.TokenPair{Access: res.AccessToken, Refresh: res.RefreshToken}
	s.degraded = false
	s.state = StateActive
	s.persistLocked(ctx)
	s.armLocked(ctx, false)
	ev := Event{Type: EventEstablished, Identity: s.identity.Clone()}
	s.mu.Unlock()

	s.log.Info(ctx, "session established", "via", via, "user", ev.Identity.ID, "role", ev.Identity.Role)
	s.emit(ev)
}

// expireLocked resets memory and storage to Anonymous. It reports whether a
// session actually existed.
func (s *Store) expireLocked(ctx context.Context, reason Reason) (Event, bool) {
	had := s.identity != nil || s.tokens.Access != "" || s.tokens.Refresh != ""

	s.generation++
	s.stopTimersLocked()
	s.identity = nil
	s.tokens = models.TokenPair{}
	s.degraded = false
	s.state = StateAnonymous

	if err := s.persister.Clear(ctx); err != nil {
		s.log.Warn(ctx, "clear persisted session failed", "error", err)
	}

	if had {
		s.log.Info(ctx, "session cleared", "reason", string(reason))
	}
	return Event{Type: EventCleared, Reason: reason}, had
}

func (s *Store) persistLocked(ctx context.Context) {
	rec := Record{AccessToken: s.tokens.Access, RefreshToken: s.tokens.Refresh}
	if s.identity != nil {
		b, err := models.MarshalIdentity(s.identity)
		if err != nil {
			s.log.Warn(ctx, "encode identity failed", "error", err)
		}
		rec.UserData = b
	}
	if err := s.persister.Save(ctx, rec); err != nil {
		s.log.Warn(ctx, "persist session failed", "error", err)
	}
}

func (s *Store) stopTimersLocked() {
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	if s.fallbackTimer != nil {
		s.fallbackTimer.Stop()
		s.fallbackTimer = nil
	}
}

// armLocked replaces both timers for the current generation. A token inside
// the margin is refreshed at once, unless it was just handed out by a refresh:
// then the next attempt waits half its remaining life, never less than
// minRefreshInterval, so short-lived tokens cannot cause a refresh loop.
func (s *Store) armLocked(ctx context.Context, afterRefresh bool) {
	s.stopTimersLocked()
	if s.closed {
		return
	}
	gen := s.generation

	if s.tokens.Access != "" {
		remaining := token.TimeUntilExpiry(s.tokens.Access, s.clock.Now())
		delay := remaining - s.refreshMargin
		if delay < 0 {
			delay = 0
			if afterRefresh {
				delay = max(remaining/2, s.minRefreshInterval)
			}
		}
		s.log.Debug(ctx, "refresh scheduled", "in", delay)
		s.refreshTimer = s.clock.AfterFunc(delay, func() { s.scheduledRefresh(gen) })
	}
	s.armFallbackLocked(gen)
}

func (s *Store) armFallbackLocked(gen uint64) {
	if s.fallbackInterval <= 0 {
		return
	}
	s.fallbackTimer = s.clock.AfterFunc(s.fallbackInterval, func() { s.fallbackCheck(gen) })
}
