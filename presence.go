package heartlink

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apierrors "github.com/heartlink/heartlink-client/internal/errors"
	"github.com/heartlink/heartlink-client/internal/types"
)

// AppState mirrors the host application's lifecycle notifications.
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateInactive   AppState = "inactive"
	AppStateBackground AppState = "background"
)

// presenceStore is the narrow slice of Client the tracker writes through.
// Three independent strategies, tried in order, so one failing path cannot
// leave a profile stuck online.
type presenceStore interface {
	upsertPresence(ctx context.Context, w types.PresenceWrite) error
	updatePresence(ctx context.Context, w types.PresenceWrite) error
	insertPresence(ctx context.Context, w types.PresenceWrite) error
}

// activeSource resolves the currently active profile. Re-fetched on every
// heartbeat tick: the active profile may have changed under a running
// tracker.
type activeSource interface {
	ActiveProfile(ctx context.Context) (*Profile, error)
}

// PresenceTracker reflects the active profile's foreground/background state
// into the shared presence row and keeps it alive with a heartbeat while the
// app is foregrounded. Transitions are edge-triggered via HandleAppState;
// nothing is polled besides the heartbeat itself.
//
// Presence is a soft, last-write-wins indicator. A stale tick racing a fresh
// transition may apply out of order; that is accepted, not coordinated.
type PresenceTracker struct {
	store    presenceStore
	source   activeSource
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{} // non-nil while the heartbeat runs
}

// TrackerOption tunes a PresenceTracker.
type TrackerOption func(*PresenceTracker)

// WithHeartbeatInterval overrides the default 30s heartbeat period.
func WithHeartbeatInterval(d time.Duration) TrackerOption {
	return func(t *PresenceTracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// NewPresenceTracker builds a tracker writing through the client. One
// tracker instance owns at most one heartbeat timer; Close releases it.
func (c *Client) NewPresenceTracker(opts ...TrackerOption) *PresenceTracker {
	if c.heartbeat > 0 {
		opts = append([]TrackerOption{WithHeartbeatInterval(c.heartbeat)}, opts...)
	}
	return newPresenceTracker(c, c, c.log, opts...)
}

func newPresenceTracker(store presenceStore, source activeSource, log zerolog.Logger, opts ...TrackerOption) *PresenceTracker {
	t := &PresenceTracker{
		store:    store,
		source:   source,
		interval: 30 * time.Second,
		log:      log.With().Str("component", "presence").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleAppState processes one lifecycle transition. Foreground marks the
// active profile online and starts the heartbeat; background and inactive
// cancel the heartbeat and issue best-effort offline writes without blocking
// the transition.
func (t *PresenceTracker) HandleAppState(ctx context.Context, state AppState) {
	switch state {
	case AppStateActive:
		t.enterForeground(ctx)
	case AppStateBackground, AppStateInactive:
		t.enterBackground()
	default:
		t.log.Debug().Str("state", string(state)).Msg("ignoring unknown app state")
	}
}

// Close cancels the heartbeat and writes the active profile offline, best
// effort. Used on sign-out and component teardown.
func (t *PresenceTracker) Close() {
	t.enterBackground()
}

func (t *PresenceTracker) enterForeground(ctx context.Context) {
	profile, err := t.source.ActiveProfile(ctx)
	if err != nil || profile == nil {
		// No user or no active profile: nothing to track.
		t.log.Debug().Err(err).Msg("foreground without active profile")
		return
	}

	t.SetPresence(ctx, profile.ID, true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		// Re-entry into foreground restarts the timer.
		close(t.stop)
	}
	t.stop = make(chan struct{})
	go t.runHeartbeat(t.stop)
}

func (t *PresenceTracker) enterBackground() {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.mu.Unlock()

	// Fire-and-forget: the transition must not block on network reads or
	// writes. SetPresence already falls back across strategies; the direct
	// update is the redundant second path in case the chain raced a teardown.
	go func() {
		profile, err := t.source.ActiveProfile(context.Background())
		if err != nil || profile == nil {
			t.log.Debug().Err(err).Msg("background without active profile")
			return
		}
		profileID := profile.ID
		t.SetPresence(context.Background(), profileID, false)
		w := types.PresenceWrite{ProfileID: profileID, Online: false, LastSeen: t.now().UTC()}
		if err := t.store.updatePresence(context.Background(), w); err != nil && !apierrors.IsAuthExpired(err) {
			t.log.Warn().Err(err).Str("profile", profileID).Msg("redundant offline write failed")
		}
	}()
}

// runHeartbeat re-writes online presence every interval until stopped,
// resolving the current active profile on each tick.
func (t *PresenceTracker) runHeartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), t.interval)
			profile, err := t.source.ActiveProfile(ctx)
			if err == nil && profile != nil {
				t.SetPresence(ctx, profile.ID, true)
			} else {
				t.log.Debug().Err(err).Msg("heartbeat skipped")
			}
			cancel()
		}
	}
}

// SetPresence writes the presence row through an ordered fallback chain:
// upsert, then conditional update, then plain insert. It is a side effect
// only and never propagates an error to the caller; failures are logged and
// counted. An authorization failure means the session already ended (e.g.
// a sign-out race) and is silently expected.
func (t *PresenceTracker) SetPresence(ctx context.Context, profileID string, online bool) {
	w := types.PresenceWrite{ProfileID: profileID, Online: online, LastSeen: t.now().UTC()}

	strategies := []struct {
		name  string
		write func(context.Context, types.PresenceWrite) error
	}{
		{"upsert", t.store.upsertPresence},
		{"update", t.store.updatePresence},
		{"insert", t.store.insertPresence},
	}

	var lastErr error
	for _, s := range strategies {
		err := s.write(ctx, w)
		if err == nil {
			presenceWritesTotal.WithLabelValues(s.name, "ok").Inc()
			return
		}
		if apierrors.IsAuthExpired(err) {
			t.log.Debug().Str("profile", profileID).Msg("presence write skipped, session ended")
			return
		}
		presenceWritesTotal.WithLabelValues(s.name, "error").Inc()
		lastErr = err
	}

	t.log.Warn().Err(lastErr).Str("profile", profileID).Bool("online", online).
		Msg("all presence write strategies failed")
}
