package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// ---- clock ----

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc fires non-positive durations right away on a new goroutine, the
// way time.AfterFunc does.
func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), d: d, f: f}
	c.timers = append(c.timers, t)
	if d <= 0 {
		t.fired = true
		go f()
	}
	return t
}

// Advance moves time forward and runs due timers in order on the caller's goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending returns the delays of timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

// Immediate counts timers requested with a non-positive delay.
func (c *fakeClock) Immediate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.d <= 0 {
			n++
		}
	}
	return n
}

// ---- auth API ----

type fakeAPI struct {
	mu sync.Mutex

	LoginRes *models.AuthResult
	LoginErr error

	RegisterRes *models.AuthResult
	RegisterErr error

	RefreshFn func(ctx context.Context, rt string) (*models.AuthResult, error)

	LogoutErr error

	LastCredentials  models.Credentials
	LastProfile      models.Profile
	LastRefreshToken string
	LastLogoutToken  string

	LoginCalls   int
	RefreshCalls int
	LogoutCalls  int
}

func (f *fakeAPI) Login(ctx context.Context, c models.Credentials) (*models.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	f.LastCredentials = c
	return f.LoginRes, f.LoginErr
}

func (f *fakeAPI) Register(ctx context.Context, p models.Profile) (*models.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastProfile = p
	return f.RegisterRes, f.RegisterErr
}

func (f *fakeAPI) Refresh(ctx context.Context, rt string) (*models.AuthResult, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.LastRefreshToken = rt
	fn := f.RefreshFn
	f.mu.Unlock()
	if fn == nil {
		return nil, context.DeadlineExceeded
	}
	return fn(ctx, rt)
}

func (f *fakeAPI) Logout(ctx context.Context, at string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	f.LastLogoutToken = at
	return f.LogoutErr
}

func (f *fakeAPI) refreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RefreshCalls
}

// ---- persister ----

type memPersister struct {
	mu      sync.Mutex
	slots   map[Slot][]byte
	SaveErr error
	LoadErr error
	Saves   int
	Clears  int
}

func newMemPersister() *memPersister {
	return &memPersister{slots: map[Slot][]byte{}}
}

func (m *memPersister) Load(ctx context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return Record{}, m.LoadErr
	}
	return Record{
		AccessToken:  string(m.slots[SlotAccessToken]),
		RefreshToken: string(m.slots[SlotRefreshToken]),
		UserData:     m.slots[SlotUserData],
	}, nil
}

func (m *memPersister) Save(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.put(SlotAccessToken, []byte(r.AccessToken))
	m.put(SlotRefreshToken, []byte(r.RefreshToken))
	m.put(SlotUserData, r.UserData)
	return nil
}

func (m *memPersister) put(s Slot, v []byte) {
	if len(v) == 0 {
		delete(m.slots, s)
		return
	}
	m.slots[s] = v
}

func (m *memPersister) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	m.slots = map[Slot][]byte{}
	return nil
}

func (m *memPersister) ClearSlots(ctx context.Context, slots ...Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range slots {
		delete(m.slots, s)
	}
	return nil
}

func (m *memPersister) get(s Slot) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[s]
}

func (m *memPersister) set(s Slot, v []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s] = v
}

// ---- helpers ----

func mintToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func alice() *models.Identity {
	return &models.Identity{ID: "u1", FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com", Role: models.RoleStudent}
}

func identityBytes(t *testing.T, i *models.Identity) []byte {
	t.Helper()
	b, err := models.MarshalIdentity(i)
	require.NoError(t, err)
	return b
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	store *Store
	api   *fakeAPI
	pers  *memPersister
	clock *fakeClock
	rec   *recorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{api: &fakeAPI{}, pers: newMemPersister(), clock: newFakeClock(), rec: &recorder{}}
	opts = append([]Option{WithClock(h.clock)}, opts...)
	h.store = New(h.api, h.pers, opts...)
	cancel := h.store.Subscribe(h.rec.add)
	t.Cleanup(func() {
		cancel()
		h.store.Close()
	})
	return h
}
