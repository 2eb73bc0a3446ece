package heartlink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// profileStore is the slice of Client the session manager drives profile
// activation through.
type profileStore interface {
	ActiveProfile(ctx context.Context) (*Profile, error)
	ManagedProfiles(ctx context.Context) ([]Profile, error)
	deactivateAll(ctx context.Context) error
	activateOne(ctx context.Context, profileID string) (*Profile, error)
}

// sessionAuth is the auth teardown the session manager invokes on sign-out.
type sessionAuth interface {
	logout(ctx context.Context) error
}

// presenceSetter writes presence as a side effect. Satisfied by
// PresenceTracker.
type presenceSetter interface {
	SetPresence(ctx context.Context, profileID string, online bool)
}

// ProfileSession manages which of an account's profiles is active. The
// backend invariant is at-most-one active row per account; switching
// deactivates everything first and then activates the target, so a crash
// between the two steps can leave zero active but never two. Zero active is
// a recoverable state surfaced as ErrNoActiveProfile.
type ProfileSession struct {
	store    profileStore
	auth     sessionAuth
	presence presenceSetter
	log      zerolog.Logger

	mu        sync.Mutex
	listeners []func(Profile)
}

// NewProfileSession builds the session manager sharing the given tracker for
// presence side effects. A nil tracker gets a dedicated one.
func (c *Client) NewProfileSession(tracker *PresenceTracker) *ProfileSession {
	var presence presenceSetter
	if tracker != nil {
		presence = tracker
	} else {
		presence = newPresenceTracker(c, c, c.log)
	}
	return newProfileSession(c, c, presence, c.log)
}

// SignOut writes the active profile offline and revokes the session. It is a
// convenience over ProfileSession.SignOut for callers that never construct a
// session manager.
func (c *Client) SignOut(ctx context.Context) error {
	return c.NewProfileSession(nil).SignOut(ctx)
}

func newProfileSession(store profileStore, auth sessionAuth, presence presenceSetter, log zerolog.Logger) *ProfileSession {
	return &ProfileSession{
		store:    store,
		auth:     auth,
		presence: presence,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// Active returns the account's active profile, or ErrNoActiveProfile.
func (s *ProfileSession) Active(ctx context.Context) (*Profile, error) {
	return s.store.ActiveProfile(ctx)
}

// OnSwitch registers a listener notified with the new profile after every
// successful switch. Listeners run outside the manager's lock.
func (s *ProfileSession) OnSwitch(fn func(Profile)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// SwitchTo makes profileID the account's single active profile. The previous
// profile is written offline first (best effort), then all profiles are
// deactivated and the target activated, then the target is written online.
// A failure between deactivation and activation leaves zero profiles active;
// callers see the error, and Active reports ErrNoActiveProfile until a retry
// or RepairActive resolves it.
func (s *ProfileSession) SwitchTo(ctx context.Context, profileID string) (*Profile, error) {
	old, err := s.store.ActiveProfile(ctx)
	if err != nil && !errors.Is(err, ErrNoActiveProfile) {
		return nil, fmt.Errorf("switch profile: %w", err)
	}
	if old != nil && old.ID == profileID {
		return old, nil
	}
	if old != nil {
		s.presence.SetPresence(ctx, old.ID, false)
	}

	if err := s.store.deactivateAll(ctx); err != nil {
		return nil, fmt.Errorf("switch profile: deactivate: %w", err)
	}
	next, err := s.store.activateOne(ctx, profileID)
	if err != nil {
		// Zero profiles are active now. Recoverable: retry, or RepairActive.
		return nil, fmt.Errorf("switch profile: activate %s: %w", profileID, err)
	}

	s.presence.SetPresence(ctx, next.ID, true)
	s.log.Info().Str("profile", next.ID).Msg("profile switched")
	s.notifySwitch(*next)
	return next, nil
}

// RepairActive restores the at-most-one-active invariant after an
// interrupted switch or a backend anomaly. More than one active profile
// collapses to the earliest-created one; zero active stays zero and returns
// ErrNoActiveProfile so the caller can prompt for a choice.
func (s *ProfileSession) RepairActive(ctx context.Context) (*Profile, error) {
	profiles, err := s.store.ManagedProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair active: %w", err)
	}

	var active []Profile
	for _, p := range profiles {
		if p.IsActive {
			active = append(active, p)
		}
	}
	switch len(active) {
	case 0:
		return nil, ErrNoActiveProfile
	case 1:
		return &active[0], nil
	}

	// ManagedProfiles is ordered oldest first, so active[0] is the keeper.
	keep := active[0]
	s.log.Warn().Int("active", len(active)).Str("keep", keep.ID).
		Msg("multiple active profiles, collapsing")
	if err := s.store.deactivateAll(ctx); err != nil {
		return nil, fmt.Errorf("repair active: deactivate: %w", err)
	}
	next, err := s.store.activateOne(ctx, keep.ID)
	if err != nil {
		return nil, fmt.Errorf("repair active: activate %s: %w", keep.ID, err)
	}
	s.notifySwitch(*next)
	return next, nil
}

// SignOut writes the active profile offline and then revokes the session.
// The offline write runs first: once the token is revoked the presence row
// can no longer be touched. Presence failure never blocks sign-out.
func (s *ProfileSession) SignOut(ctx context.Context) error {
	if active, err := s.store.ActiveProfile(ctx); err == nil && active != nil {
		s.presence.SetPresence(ctx, active.ID, false)
	}
	return s.auth.logout(ctx)
}

func (s *ProfileSession) notifySwitch(p Profile) {
	s.mu.Lock()
	listeners := make([]func(Profile), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}
