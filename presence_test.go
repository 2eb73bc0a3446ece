package heartlink

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apierrors "github.com/heartlink/heartlink-client/internal/errors"
	"github.com/heartlink/heartlink-client/internal/types"
)

type fakePresenceStore struct {
	mu        sync.Mutex
	calls     []string
	upsertErr error
	updateErr error
	insertErr error
}

func (f *fakePresenceStore) record(strategy string, w types.PresenceWrite) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%v", strategy, w.ProfileID, w.Online))
	f.mu.Unlock()
}

func (f *fakePresenceStore) upsertPresence(_ context.Context, w types.PresenceWrite) error {
	f.record("upsert", w)
	return f.upsertErr
}

func (f *fakePresenceStore) updatePresence(_ context.Context, w types.PresenceWrite) error {
	f.record("update", w)
	return f.updateErr
}

func (f *fakePresenceStore) insertPresence(_ context.Context, w types.PresenceWrite) error {
	f.record("insert", w)
	return f.insertErr
}

func (f *fakePresenceStore) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeActiveSource struct {
	mu      sync.Mutex
	profile *Profile
	err     error
}

func (f *fakeActiveSource) ActiveProfile(context.Context) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeActiveSource) set(p *Profile) {
	f.mu.Lock()
	f.profile = p
	f.mu.Unlock()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSetPresence_UpsertFirst(t *testing.T) {
	store := &fakePresenceStore{}
	tr := newPresenceTracker(store, &fakeActiveSource{}, zerolog.Nop())

	tr.SetPresence(context.Background(), "p-1", true)
	tr.SetPresence(context.Background(), "p-1", true) // idempotent re-write

	calls := store.snapshot()
	if len(calls) != 2 || calls[0] != "upsert:p-1:true" || calls[1] != "upsert:p-1:true" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestSetPresence_FallbackChain(t *testing.T) {
	store := &fakePresenceStore{
		upsertErr: apierrors.NewHTTPError(500, "", "upsert presence"),
		updateErr: apierrors.NewHTTPError(404, "", "update presence"),
	}
	tr := newPresenceTracker(store, &fakeActiveSource{}, zerolog.Nop())

	tr.SetPresence(context.Background(), "p-1", false)

	calls := store.snapshot()
	want := []string{"upsert:p-1:false", "update:p-1:false", "insert:p-1:false"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestSetPresence_AllStrategiesFailSilently(t *testing.T) {
	boom := apierrors.NewHTTPError(500, "", "presence")
	store := &fakePresenceStore{upsertErr: boom, updateErr: boom, insertErr: boom}
	tr := newPresenceTracker(store, &fakeActiveSource{}, zerolog.Nop())

	// Must not panic or propagate anything.
	tr.SetPresence(context.Background(), "p-1", true)

	if got := len(store.snapshot()); got != 3 {
		t.Fatalf("attempted %d strategies, want 3", got)
	}
}

func TestSetPresence_AuthExpiredStopsChain(t *testing.T) {
	store := &fakePresenceStore{upsertErr: apierrors.NewHTTPError(401, "JWT expired", "upsert presence")}
	tr := newPresenceTracker(store, &fakeActiveSource{}, zerolog.Nop())

	tr.SetPresence(context.Background(), "p-1", false)

	if calls := store.snapshot(); len(calls) != 1 {
		t.Fatalf("auth-expired should stop the chain, got %v", calls)
	}
}

func TestHandleAppState_ForegroundHeartbeat(t *testing.T) {
	store := &fakePresenceStore{}
	source := &fakeActiveSource{profile: &Profile{ID: "p-1"}}
	tr := newPresenceTracker(store, source, zerolog.Nop(), WithHeartbeatInterval(15*time.Millisecond))
	defer tr.Close()

	tr.HandleAppState(context.Background(), AppStateActive)

	// Immediate online write plus at least two heartbeat ticks.
	waitFor(t, 2*time.Second, func() bool {
		return countOnline(store.snapshot(), "p-1") >= 3
	}, "heartbeat did not keep writing online presence")
}

func TestHandleAppState_BackgroundStopsHeartbeatAndGoesOffline(t *testing.T) {
	store := &fakePresenceStore{}
	source := &fakeActiveSource{profile: &Profile{ID: "p-1"}}
	tr := newPresenceTracker(store, source, zerolog.Nop(), WithHeartbeatInterval(15*time.Millisecond))

	tr.HandleAppState(context.Background(), AppStateActive)
	waitFor(t, 2*time.Second, func() bool {
		return countOnline(store.snapshot(), "p-1") >= 2
	}, "heartbeat never ran")

	tr.HandleAppState(context.Background(), AppStateBackground)

	// Offline goes through the strategy chain plus the redundant direct update.
	waitFor(t, 2*time.Second, func() bool {
		calls := store.snapshot()
		return contains(calls, "upsert:p-1:false") && contains(calls, "update:p-1:false")
	}, "offline writes not issued")

	// The heartbeat must be dead: no online writes after settling.
	time.Sleep(30 * time.Millisecond)
	before := countOnline(store.snapshot(), "p-1")
	time.Sleep(60 * time.Millisecond)
	if after := countOnline(store.snapshot(), "p-1"); after != before {
		t.Fatalf("heartbeat still writing after background: %d -> %d", before, after)
	}
}

func TestHeartbeat_TracksActiveProfileSwitch(t *testing.T) {
	store := &fakePresenceStore{}
	source := &fakeActiveSource{profile: &Profile{ID: "p-old"}}
	tr := newPresenceTracker(store, source, zerolog.Nop(), WithHeartbeatInterval(15*time.Millisecond))
	defer tr.Close()

	tr.HandleAppState(context.Background(), AppStateActive)
	waitFor(t, 2*time.Second, func() bool {
		return countOnline(store.snapshot(), "p-old") >= 1
	}, "heartbeat never ran for the first profile")

	source.set(&Profile{ID: "p-new"})

	// Each tick re-resolves the active profile, so writes move to the new one.
	waitFor(t, 2*time.Second, func() bool {
		return countOnline(store.snapshot(), "p-new") >= 1
	}, "heartbeat did not follow the profile switch")
}

func TestForeground_WithoutActiveProfile(t *testing.T) {
	store := &fakePresenceStore{}
	source := &fakeActiveSource{err: ErrNoActiveProfile}
	tr := newPresenceTracker(store, source, zerolog.Nop(), WithHeartbeatInterval(10*time.Millisecond))
	defer tr.Close()

	tr.HandleAppState(context.Background(), AppStateActive)

	time.Sleep(40 * time.Millisecond)
	if calls := store.snapshot(); len(calls) != 0 {
		t.Fatalf("no writes expected without an active profile, got %v", calls)
	}
}

func TestTracker_CloseTwice(t *testing.T) {
	tr := newPresenceTracker(&fakePresenceStore{}, &fakeActiveSource{}, zerolog.Nop())
	tr.Close()
	tr.Close()
}

// A source may report no active profile as a nil profile without an error.
// Lifecycle transitions must treat that like the error case: no writes, no
// crash.
func TestTracker_NilProfileWithoutError(t *testing.T) {
	store := &fakePresenceStore{}
	source := &fakeActiveSource{} // profile nil, err nil
	tr := newPresenceTracker(store, source, zerolog.Nop(), WithHeartbeatInterval(10*time.Millisecond))

	tr.HandleAppState(context.Background(), AppStateActive)
	tr.HandleAppState(context.Background(), AppStateBackground)
	tr.Close()

	time.Sleep(40 * time.Millisecond)
	if calls := store.snapshot(); len(calls) != 0 {
		t.Fatalf("writes issued without an active profile: %v", calls)
	}
}

// The background transition itself must not block on resolving the active
// profile; the lookup and offline writes run off the calling goroutine.
func TestEnterBackground_DoesNotBlockOnLookup(t *testing.T) {
	release := make(chan struct{})
	source := &slowActiveSource{release: release, profile: &Profile{ID: "p-1"}}
	store := &fakePresenceStore{}
	tr := newPresenceTracker(store, source, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		tr.HandleAppState(context.Background(), AppStateBackground)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background transition blocked on the profile lookup")
	}

	close(release)
	waitFor(t, 2*time.Second, func() bool {
		return contains(store.snapshot(), "upsert:p-1:false")
	}, "offline write never issued")
}

type slowActiveSource struct {
	release chan struct{}
	profile *Profile
}

func (s *slowActiveSource) ActiveProfile(context.Context) (*Profile, error) {
	<-s.release
	return s.profile, nil
}

func countOnline(calls []string, profileID string) int {
	n := 0
	for _, c := range calls {
		if strings.HasSuffix(c, ":"+profileID+":true") {
			n++
		}
	}
	return n
}

func contains(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}
