package heartlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// callLog records call order across the store, presence, and auth fakes so
// tests can assert the switch sequencing.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type fakeProfileStore struct {
	log         *callLog
	mu          sync.Mutex
	profiles    []Profile
	activateErr error
}

func (f *fakeProfileStore) ActiveProfile(context.Context) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		if f.profiles[i].IsActive {
			p := f.profiles[i]
			return &p, nil
		}
	}
	return nil, ErrNoActiveProfile
}

func (f *fakeProfileStore) ManagedProfiles(context.Context) ([]Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Profile, len(f.profiles))
	copy(out, f.profiles)
	return out, nil
}

func (f *fakeProfileStore) deactivateAll(context.Context) error {
	f.log.add("deactivate-all")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		f.profiles[i].IsActive = false
	}
	return nil
}

func (f *fakeProfileStore) activateOne(_ context.Context, profileID string) (*Profile, error) {
	f.log.add("activate:" + profileID)
	if f.activateErr != nil {
		return nil, f.activateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.profiles {
		if f.profiles[i].ID == profileID {
			f.profiles[i].IsActive = true
			p := f.profiles[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

type fakePresenceSetter struct{ log *callLog }

func (f *fakePresenceSetter) SetPresence(_ context.Context, profileID string, online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	f.log.add(fmt.Sprintf("presence:%s:%s", state, profileID))
}

type fakeAuth struct {
	log       *callLog
	logoutErr error
}

func (f *fakeAuth) logout(context.Context) error {
	f.log.add("logout")
	return f.logoutErr
}

func newTestSession(profiles []Profile) (*ProfileSession, *fakeProfileStore, *callLog) {
	log := &callLog{}
	store := &fakeProfileStore{log: log, profiles: profiles}
	sess := newProfileSession(store, &fakeAuth{log: log}, &fakePresenceSetter{log: log}, zerolog.Nop())
	return sess, store, log
}

func TestSwitchTo_Sequencing(t *testing.T) {
	sess, _, log := newTestSession([]Profile{
		{ID: "p-1", IsActive: true},
		{ID: "p-2"},
	})

	var notified []string
	sess.OnSwitch(func(p Profile) { notified = append(notified, p.ID) })

	next, err := sess.SwitchTo(context.Background(), "p-2")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if next.ID != "p-2" || !next.IsActive {
		t.Fatalf("next = %+v", next)
	}

	want := []string{"presence:offline:p-1", "deactivate-all", "activate:p-2", "presence:online:p-2"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}

	if len(notified) != 1 || notified[0] != "p-2" {
		t.Fatalf("listeners notified with %v", notified)
	}
}

func TestSwitchTo_AlreadyActiveIsNoop(t *testing.T) {
	sess, _, log := newTestSession([]Profile{{ID: "p-1", IsActive: true}})

	p, err := sess.SwitchTo(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if p.ID != "p-1" {
		t.Fatalf("profile = %+v", p)
	}
	if calls := log.snapshot(); len(calls) != 0 {
		t.Fatalf("no-op switch issued calls: %v", calls)
	}
}

func TestSwitchTo_NoActiveProfileYet(t *testing.T) {
	// Interrupted previous switch: zero profiles active. Switching must still
	// work and skip the offline write for a previous profile.
	sess, _, log := newTestSession([]Profile{{ID: "p-1"}, {ID: "p-2"}})

	next, err := sess.SwitchTo(context.Background(), "p-2")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if next.ID != "p-2" {
		t.Fatalf("next = %+v", next)
	}
	for _, c := range log.snapshot() {
		if c == "presence:offline:p-1" {
			t.Fatal("offline write issued without a previous active profile")
		}
	}
}

func TestSwitchTo_ActivateFailureLeavesZeroActive(t *testing.T) {
	sess, store, _ := newTestSession([]Profile{
		{ID: "p-1", IsActive: true},
		{ID: "p-2"},
	})
	store.activateErr = errors.New("backend down")

	if _, err := sess.SwitchTo(context.Background(), "p-2"); err == nil {
		t.Fatal("expected switch error")
	}

	// The failure window is between the two statements: all deactivated,
	// none activated. Recoverable, surfaced as ErrNoActiveProfile.
	if _, err := sess.Active(context.Background()); !errors.Is(err, ErrNoActiveProfile) {
		t.Fatalf("active after failed switch: %v", err)
	}
}

func TestRepairActive_ZeroActive(t *testing.T) {
	sess, _, _ := newTestSession([]Profile{{ID: "p-1"}, {ID: "p-2"}})

	if _, err := sess.RepairActive(context.Background()); !errors.Is(err, ErrNoActiveProfile) {
		t.Fatalf("repair with zero active: %v", err)
	}
}

func TestRepairActive_SingleActive(t *testing.T) {
	sess, _, log := newTestSession([]Profile{
		{ID: "p-1"},
		{ID: "p-2", IsActive: true},
	})

	p, err := sess.RepairActive(context.Background())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if p.ID != "p-2" {
		t.Fatalf("repair kept %s", p.ID)
	}
	if calls := log.snapshot(); len(calls) != 0 {
		t.Fatalf("healthy state triggered writes: %v", calls)
	}
}

func TestRepairActive_CollapsesToEarliest(t *testing.T) {
	// ManagedProfiles is ordered oldest first; both rows active is the
	// anomaly RepairActive exists for.
	sess, store, log := newTestSession([]Profile{
		{ID: "p-old", IsActive: true},
		{ID: "p-new", IsActive: true},
	})

	p, err := sess.RepairActive(context.Background())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if p.ID != "p-old" {
		t.Fatalf("repair kept %s, want p-old", p.ID)
	}

	active, err := store.ActiveProfile(context.Background())
	if err != nil || active.ID != "p-old" {
		t.Fatalf("active after repair = %v, %v", active, err)
	}

	got := log.snapshot()
	if len(got) != 2 || got[0] != "deactivate-all" || got[1] != "activate:p-old" {
		t.Fatalf("calls = %v", got)
	}
}

func TestSignOut_OfflineBeforeLogout(t *testing.T) {
	sess, _, log := newTestSession([]Profile{{ID: "p-1", IsActive: true}})

	if err := sess.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	got := log.snapshot()
	if len(got) != 2 || got[0] != "presence:offline:p-1" || got[1] != "logout" {
		t.Fatalf("calls = %v, want offline write before logout", got)
	}
}

func TestSignOut_WithoutActiveProfile(t *testing.T) {
	sess, _, log := newTestSession(nil)

	if err := sess.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	got := log.snapshot()
	if len(got) != 1 || got[0] != "logout" {
		t.Fatalf("calls = %v", got)
	}
}
