package session

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/certhub/internal/client/models"
	"github.com/dmitrijs2005/certhub/internal/client/token"
	"github.com/dmitrijs2005/certhub/internal/common"
)

// Init restores the persisted session. It must be called once before the
// other operations; Loading stays true until it returns.
//
// Corrupt slots are cleared and treated as absent. An error is returned only
// when storage itself cannot be read, in which case the store is Anonymous.
func (s *Store) Init(ctx context.Context) error {
	defer s.markReady()

	s.mu.Lock()
	if s.state != StateUninitialized {
		// Already restored, or a Login/Register got there first.
		s.mu.Unlock()
		return nil
	}
	s.state = StateRestoring
	s.mu.Unlock()

	rec, err := s.persister.Load(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.mu.Unlock()
		s.log.Warn(ctx, "load persisted session failed", "error", err)
		return fmt.Errorf("load session: %w", err)
	}

	s.restore(ctx, rec)
	return nil
}

func (s *Store) restore(ctx context.Context, rec Record) {
	var identity *models.Identity
	if len(rec.UserData) > 0 {
		id, err := models.UnmarshalIdentity(rec.UserData)
		if err != nil {
			s.dropSlot(ctx, SlotUserData, err)
		} else {
			identity = id
		}
	}

	access := rec.AccessToken
	expired := false
	if access != "" {
		exp, err := token.DecodeExpiry(access)
		switch {
		case err != nil:
			s.dropSlot(ctx, SlotAccessToken, err)
			access = ""
		case !exp.After(s.clock.Now()):
			expired = true
		}
	}

	switch {
	case access == "" && identity == nil:
		if rec.Empty() {
			s.mu.Lock()
			s.state = StateAnonymous
			s.mu.Unlock()
			return
		}
		s.discard(ctx)

	case access == "":
		if !s.restoreDegraded {
			s.discard(ctx)
			return
		}
		s.adopt(ctx, identity, models.TokenPair{Refresh: rec.RefreshToken}, true)

	case expired:
		s.mu.Lock()
		s.generation++
		s.identity = identity
		s.tokens = models.TokenPair{Access: access, Refresh: rec.RefreshToken}
		s.mu.Unlock()

		if err := s.Refresh(ctx); err != nil {
			s.log.Info(ctx, "restore refresh failed", "error", err)
			return
		}
		s.mu.Lock()
		ev := Event{Type: EventEstablished, Identity: s.identity.Clone()}
		s.mu.Unlock()
		s.log.Info(ctx, "session established", "via", "restore", "user", ev.Identity.ID)
		s.emit(ev)

	case identity == nil:
		s.discard(ctx)

	default:
		s.adopt(ctx, identity, models.TokenPair{Access: access, Refresh: rec.RefreshToken}, false)
	}
}

// adopt installs a restored session without writing it back.
func (s *Store) adopt(ctx context.Context, identity *models.Identity, tokens models.TokenPair, degraded bool) {
	s.mu.Lock()
	s.generation++
	s.identity = identity
	s.tokens = tokens
	s.degraded = degraded
	s.state = StateActive
	s.armLocked(ctx, false)
	ev := Event{Type: EventEstablished, Identity: identity.Clone()}
	s.mu.Unlock()

	s.log.Info(ctx, "session established", "via", "restore", "user", identity.ID, "degraded", degraded)
	s.emit(ev)
}

// discard wipes a persisted record that cannot become a session.
func (s *Store) discard(ctx context.Context) {
	s.mu.Lock()
	ev, _ := s.expireLocked(ctx, ReasonCorrupt)
	s.mu.Unlock()
	s.log.Info(ctx, "persisted session discarded")
	s.emit(ev)
}

func (s *Store) dropSlot(ctx context.Context, slot Slot, cause error) {
	s.log.Warn(ctx, "discarding persisted slot", "slot", string(slot),
		"error", fmt.Errorf("%w: %w", common.ErrMalformedPersistedState, cause))
	if err := s.persister.ClearSlots(ctx, slot); err != nil {
		s.log.Warn(ctx, "clear persisted slot failed", "slot", string(slot), "error", err)
	}
}
