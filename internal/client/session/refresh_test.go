package session

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rotatingRefresh hands out a fresh hour-long access token and, when rotate
// is set, a new refresh token on every call.
func rotatingRefresh(t *testing.T, h *harness, rotate bool) func(context.Context, string) (*models.AuthResult, error) {
	return func(ctx context.Context, rt string) (*models.AuthResult, error) {
		res := &models.AuthResult{AccessToken: mintToken(t, "u1", h.clock.Now().Add(time.Hour))}
		if rotate {
			res.RefreshToken = rt + "+"
		}
		return res, nil
	}
}

func loggedIn(t *testing.T, ttl time.Duration, opts ...Option) *harness {
	t.Helper()
	ctx := context.Background()
	h := newHarness(t, opts...)
	require.NoError(t, h.store.Init(ctx))
	h.api.LoginRes = loginResult(t, h, ttl)
	return h
}

func TestSchedule_OneTimerAtExpiryMinusMargin(t *testing.T) {
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	assert.ElementsMatch(t, []time.Duration{55 * time.Minute, 5 * time.Minute}, h.clock.Pending())
	assert.Zero(t, h.clock.Immediate())
}

func TestSchedule_TimerFiresAtMargin(t *testing.T) {
	h := loggedIn(t, time.Hour)
	h.api.RefreshFn = rotatingRefresh(t, h, false)
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	h.clock.Advance(54 * time.Minute)
	assert.Zero(t, h.api.refreshCalls())

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.api.refreshCalls())
	assert.Equal(t, "rt-1", h.api.LastRefreshToken)
	assert.Equal(t, StateActive, h.store.State())
}

func TestSchedule_NearExpiryRefreshesImmediately(t *testing.T) {
	h := loggedIn(t, 2*time.Minute)
	h.api.RefreshFn = rotatingRefresh(t, h, true)
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	// The immediate refresh runs on its own goroutine and may be reported
	// before the login itself.
	require.Eventually(t, func() bool {
		return len(h.rec.types()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []EventType{EventEstablished, EventRefreshed}, h.rec.types())

	assert.Equal(t, 1, h.api.refreshCalls())
	assert.Equal(t, 1, h.clock.Immediate())
	assert.ElementsMatch(t, []time.Duration{55 * time.Minute, 5 * time.Minute}, h.clock.Pending())
	assert.True(t, h.store.HasRefreshToken())
	assert.Equal(t, "rt-1+", string(h.pers.get(SlotRefreshToken)))
}

func TestRefresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	h.api.RefreshFn = rotatingRefresh(t, h, false)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))
	old := h.store.AccessToken()

	h.clock.Advance(time.Minute)
	require.NoError(t, h.store.Refresh(ctx))

	assert.NotEqual(t, old, h.store.AccessToken())
	assert.Equal(t, h.store.AccessToken(), string(h.pers.get(SlotAccessToken)))
	assert.Equal(t, "rt-1", string(h.pers.get(SlotRefreshToken)))
	assert.Equal(t, "u1", h.store.CurrentIdentity().ID)
}

func TestRefresh_ReplacesIdentityWhenReturned(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	promoted := alice()
	promoted.Role = models.RoleInstitutionAdmin
	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		return &models.AuthResult{User: promoted, AccessToken: mintToken(t, "u1", h.clock.Now().Add(time.Hour))}, nil
	}

	require.NoError(t, h.store.Refresh(ctx))
	assert.Equal(t, models.RoleInstitutionAdmin, h.store.CurrentIdentity().Role)
}

func TestRefresh_FailureClearsSession(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		return nil, common.ErrRefreshRejected
	}

	err := h.store.Refresh(ctx)
	require.ErrorIs(t, err, common.ErrSessionExpired)
	require.ErrorIs(t, err, common.ErrRefreshRejected)

	assert.Equal(t, StateAnonymous, h.store.State())
	assert.Nil(t, h.pers.get(SlotAccessToken))
	assert.Empty(t, h.clock.Pending())

	ev := h.rec.last()
	assert.Equal(t, EventCleared, ev.Type)
	assert.Equal(t, ReasonExpired, ev.Reason)
}

func TestRefresh_NetworkFailureClearsSession(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		return nil, common.ErrNetworkFailure
	}

	require.ErrorIs(t, h.store.Refresh(ctx), common.ErrNetworkFailure)
	assert.Equal(t, StateAnonymous, h.store.State())
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	h.api.LoginRes.RefreshToken = ""
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	err := h.store.Refresh(ctx)
	require.ErrorIs(t, err, common.ErrRefreshUnavailable)
	require.ErrorIs(t, err, common.ErrSessionExpired)
	assert.Zero(t, h.api.refreshCalls())
	assert.Equal(t, StateAnonymous, h.store.State())
}

func TestRefresh_Anonymous(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Init(ctx))

	require.ErrorIs(t, h.store.Refresh(ctx), common.ErrSessionExpired)
	assert.Zero(t, h.api.refreshCalls())
}

func TestRefresh_EmptyAccessTokenInResponse(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		return &models.AuthResult{}, nil
	}
	require.ErrorIs(t, h.store.Refresh(ctx), common.ErrInvalidAuthResponse)
	assert.Equal(t, StateAnonymous, h.store.State())
}

// blockingRefresh parks every call until release is closed.
func blockingRefresh(t *testing.T, h *harness) (started chan struct{}, release chan struct{}) {
	started = make(chan struct{}, 8)
	release = make(chan struct{})
	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		started <- struct{}{}
		<-release
		return &models.AuthResult{AccessToken: mintToken(t, "u1", h.clock.Now().Add(time.Hour)), RefreshToken: "rt-2"}, nil
	}
	return started, release
}

func TestRefresh_ConcurrentTriggersShareOneCall(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))
	started, release := blockingRefresh(t, h)

	errs := make(chan error, 2)
	go func() { errs <- h.store.Refresh(ctx) }()
	<-started
	assert.Equal(t, StateRefreshing, h.store.State())

	go func() { errs <- h.store.Refresh(ctx) }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, 1, h.api.refreshCalls())
	assert.Equal(t, "rt-1", h.api.LastRefreshToken)
	assert.Equal(t, StateActive, h.store.State())
}

func TestRefresh_CallerCancelDoesNotAbortSharedCall(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))
	started, release := blockingRefresh(t, h)

	cctx, cancel := context.WithCancel(ctx)
	errs := make(chan error, 1)
	go func() { errs <- h.store.Refresh(cctx) }()
	<-started
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)

	other := make(chan error, 1)
	go func() { other <- h.store.Refresh(ctx) }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-other)
	assert.Equal(t, 1, h.api.refreshCalls())
	assert.Equal(t, "rt-2", string(h.pers.get(SlotRefreshToken)))
}

func TestRefresh_LogoutWinsOverInFlightRefresh(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))
	started, release := blockingRefresh(t, h)

	errs := make(chan error, 1)
	go func() { errs <- h.store.Refresh(ctx) }()
	<-started

	h.store.Logout(ctx)
	close(release)

	require.ErrorIs(t, <-errs, common.ErrSessionExpired)
	assert.Equal(t, StateAnonymous, h.store.State())
	assert.Empty(t, h.store.AccessToken())
	assert.Nil(t, h.pers.get(SlotAccessToken))
	assert.Nil(t, h.pers.get(SlotRefreshToken))
	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, []EventType{EventEstablished, EventCleared}, h.rec.types())
}

func TestRefresh_StaleResultAfterReloginIsDiscarded(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))
	started, release := blockingRefresh(t, h)

	errs := make(chan error, 1)
	go func() { errs <- h.store.Refresh(ctx) }()
	<-started

	second := loginResult(t, h, time.Hour)
	second.RefreshToken = "rt-new-login"
	h.api.LoginRes = second
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))
	close(release)

	require.NoError(t, <-errs)
	assert.Equal(t, second.AccessToken, h.store.AccessToken())
	assert.Equal(t, "rt-new-login", string(h.pers.get(SlotRefreshToken)))
}

func TestFallbackCheck_CatchesMissedTimer(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour)
	h.api.RefreshFn = rotatingRefresh(t, h, false)
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	// Lose the primary timer, as a suspended host would.
	h.store.mu.Lock()
	h.store.refreshTimer.Stop()
	h.store.mu.Unlock()

	h.clock.Advance(56 * time.Minute)

	assert.Equal(t, 1, h.api.refreshCalls())
	assert.Equal(t, StateActive, h.store.State())
}

func TestFallbackCheck_RearmsWhenNotDue(t *testing.T) {
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	h.clock.Advance(5 * time.Minute)

	assert.Zero(t, h.api.refreshCalls())
	assert.ElementsMatch(t, []time.Duration{55 * time.Minute, 5 * time.Minute}, h.clock.Pending())
}

func TestFallbackCheck_Disabled(t *testing.T) {
	h := loggedIn(t, time.Hour, WithFallbackInterval(0))
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	assert.Equal(t, []time.Duration{55 * time.Minute}, h.clock.Pending())
}

func TestCustomMargin(t *testing.T) {
	h := loggedIn(t, time.Hour, WithRefreshMargin(10*time.Minute), WithFallbackInterval(time.Minute))
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	assert.ElementsMatch(t, []time.Duration{50 * time.Minute, time.Minute}, h.clock.Pending())
}

func TestClose_StopsTimers(t *testing.T) {
	h := loggedIn(t, time.Hour)
	require.NoError(t, h.store.Login(context.Background(), "alice@example.com", "secret"))

	h.store.Close()

	assert.Empty(t, h.clock.Pending())
	assert.Equal(t, StateActive, h.store.State())
}

func TestSchedule_ShortLivedTokensDoNotLoop(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, 3*time.Minute)
	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		return &models.AuthResult{AccessToken: mintToken(t, "u1", h.clock.Now().Add(3*time.Minute))}, nil
	}
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	// The login token is inside the margin, so one refresh runs at once.
	// The token it returns is too, and the next one waits half its life.
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]time.Duration{90 * time.Second, 5 * time.Minute}, h.clock.Pending())
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.api.refreshCalls())
	assert.Equal(t, 1, h.clock.Immediate())

	for i := 0; i < 3; i++ {
		h.clock.Advance(90 * time.Second)
	}
	assert.Equal(t, 4, h.api.refreshCalls())
	assert.Equal(t, 1, h.clock.Immediate())
	assert.Equal(t, StateActive, h.store.State())
}

func TestSchedule_ExpiredTokenFromRefreshUsesFloor(t *testing.T) {
	ctx := context.Background()
	h := loggedIn(t, time.Hour, WithMinRefreshInterval(45*time.Second))
	h.api.RefreshFn = func(ctx context.Context, rt string) (*models.AuthResult, error) {
		// A server clock behind ours hands out tokens that already look expired.
		return &models.AuthResult{AccessToken: mintToken(t, "u1", h.clock.Now().Add(-time.Minute))}, nil
	}
	require.NoError(t, h.store.Login(ctx, "alice@example.com", "secret"))

	require.NoError(t, h.store.Refresh(ctx))
	assert.ElementsMatch(t, []time.Duration{45 * time.Second, 5 * time.Minute}, h.clock.Pending())
	assert.Zero(t, h.clock.Immediate())

	h.clock.Advance(44 * time.Second)
	assert.Equal(t, 1, h.api.refreshCalls())
	h.clock.Advance(time.Second)
	assert.Equal(t, 2, h.api.refreshCalls())
}
