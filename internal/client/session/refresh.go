package session

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/certhub/internal/client/token"
	"github.com/dmitrijs2005/certhub/internal/common"
)

const refreshKey = "refresh"

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share one exchange and all observe its outcome. The exchange is
// not cancelled when ctx is; only this caller stops waiting.
//
// Any failure clears the session and returns an error wrapping
// common.ErrSessionExpired.
func (s *Store) Refresh(ctx context.Context) error {
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		return nil, s.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) doRefresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateAnonymous || s.state == StateUninitialized {
		s.mu.Unlock()
		return common.ErrSessionExpired
	}
	gen := s.generation
	rt := s.tokens.Refresh
	if rt == "" {
		ev, changed := s.expireLocked(ctx, ReasonExpired)
		s.mu.Unlock()
		if changed {
			s.emit(ev)
		}
		return fmt.Errorf("%w: %w", common.ErrSessionExpired, common.ErrRefreshUnavailable)
	}
	s.state = StateRefreshing
	s.mu.Unlock()

	s.log.Debug(ctx, "refreshing access token")

	rctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	res, err := s.api.Refresh(rctx, rt)
	cancel()

	s.mu.Lock()
	if gen != s.generation {
		// Logout or a new login happened while the call was in flight.
		active := s.state == StateActive
		s.mu.Unlock()
		s.log.Debug(ctx, "discarding stale refresh result")
		if active {
			return nil
		}
		return common.ErrSessionExpired
	}

	if err == nil && (res == nil || res.AccessToken == "") {
		err = common.ErrInvalidAuthResponse
	}
	if err != nil {
		ev, changed := s.expireLocked(ctx, ReasonExpired)
		s.mu.Unlock()
		s.log.Warn(ctx, "refresh failed", "error", err)
		if changed {
			s.emit(ev)
		}
		return fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
	}

	s.tokens.Access = res.AccessToken
	if res.RefreshToken != "" {
		s.tokens.Refresh = res.RefreshToken
	}
	if res.User != nil {
		s.identity = res.User.Clone()
	}
	if s.identity == nil {
		ev, changed := s.expireLocked(ctx, ReasonCorrupt)
		s.mu.Unlock()
		if changed {
			s.emit(ev)
		}
		return fmt.Errorf("%w: %w", common.ErrSessionExpired, common.ErrMalformedPersistedState)
	}
	s.degraded = false
	s.state = StateActive
	s.persistLocked(ctx)
	s.armLocked(ctx, true)
	ev := Event{Type: EventRefreshed, Identity: s.identity.Clone()}
	s.mu.Unlock()

	s.log.Debug(ctx, "access token refreshed")
	s.emit(ev)
	return nil
}

func (s *Store) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation && !s.closed
}

func (s *Store) scheduledRefresh(gen uint64) {
	if !s.current(gen) {
		return
	}
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		s.log.Debug(ctx, "scheduled refresh failed", "error", err)
	}
}

// fallbackCheck re-arms itself and triggers a refresh when the token is
// within the margin, covering timers lost to sleep or clock jumps.
func (s *Store) fallbackCheck(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return
	}
	access := s.tokens.Access
	due := access != "" && token.TimeUntilExpiry(access, s.clock.Now()) < s.refreshMargin
	s.armFallbackLocked(gen)
	s.mu.Unlock()

	if due {
		ctx := context.Background()
		s.log.Debug(ctx, "fallback check found token near expiry")
		if err := s.Refresh(ctx); err != nil {
			s.log.Debug(ctx, "fallback refresh failed", "error", err)
		}
	}
}
