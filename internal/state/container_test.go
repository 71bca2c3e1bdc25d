package state

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miktsoan/core/internal/domain"
)

// memStore keeps the snapshot blob in memory and counts saves.
type memStore struct {
	blob  []byte
	saves int
	fail  bool
}

func (m *memStore) Save(_ context.Context, blob []byte) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.blob = append([]byte(nil), blob...)
	m.saves++
	return nil
}

func (m *memStore) Load(context.Context) ([]byte, error) {
	return m.blob, nil
}

func testProfile(id string) *domain.UserProfile {
	return &domain.UserProfile{
		ID:        id,
		Name:      "Test User",
		Phone:     "0501234567",
		Role:      domain.RoleUser,
		Language:  domain.LangHebrew,
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func TestSingleSessionInvariant(t *testing.T) {
	t.Parallel()

	c := New(nil)
	ctx := context.Background()

	if c.Session() != nil {
		t.Fatal("expected no session initially")
	}

	c.SetSession(ctx, testProfile("u_1"))
	c.SetSession(ctx, testProfile("u_2"))
	if got := c.Session(); got == nil || got.ID != "u_2" {
		t.Fatalf("expected session u_2, got %+v", got)
	}

	c.Logout(ctx)
	if c.Session() != nil {
		t.Fatal("expected no session after logout")
	}
}

func TestLogoutKeepsHistoryAndLanguage(t *testing.T) {
	t.Parallel()

	c := New(nil)
	ctx := context.Background()

	c.SetSession(ctx, testProfile("u_1"))
	c.SetLanguage(ctx, domain.LangEnglish)
	c.AppendHistory(ctx, domain.ActionSearch, nil)

	c.Logout(ctx)

	if c.Language() != domain.LangEnglish {
		t.Fatalf("expected language to survive logout, got %q", c.Language())
	}
	if len(c.History()) != 1 {
		t.Fatalf("expected history to survive logout, got %d entries", len(c.History()))
	}
}

func TestHistoryAppendOnlyNewestFirst(t *testing.T) {
	t.Parallel()

	c := New(nil)
	ctx := context.Background()

	actions := []domain.Action{
		domain.ActionLogin,
		domain.ActionSearch,
		domain.ActionViewPro,
		domain.ActionChatMessage,
	}
	for _, a := range actions {
		c.AppendHistory(ctx, a, nil)
	}

	history := c.History()
	if len(history) != len(actions) {
		t.Fatalf("expected %d entries, got %d", len(actions), len(history))
	}

	seen := make(map[string]bool)
	for i, ev := range history {
		want := actions[len(actions)-1-i]
		if ev.Action != want {
			t.Errorf("entry %d: expected action %q, got %q", i, want, ev.Action)
		}
		if ev.ID == "" || seen[ev.ID] {
			t.Errorf("entry %d: expected unique non-empty ID, got %q", i, ev.ID)
		}
		seen[ev.ID] = true
	}
}

func TestHistoryStampsGuestWithoutSession(t *testing.T) {
	t.Parallel()

	c := New(nil)
	ctx := context.Background()

	c.AppendHistory(ctx, domain.ActionSearch, nil)
	c.SetSession(ctx, testProfile("u_42"))
	c.AppendHistory(ctx, domain.ActionSearch, nil)

	history := c.History()
	if history[0].UserID != "u_42" {
		t.Errorf("expected newest entry stamped u_42, got %q", history[0].UserID)
	}
	if history[1].UserID != domain.GuestUserID {
		t.Errorf("expected oldest entry stamped guest, got %q", history[1].UserID)
	}
}

func TestPersistsOnEveryMutationOfSubset(t *testing.T) {
	t.Parallel()

	ms := &memStore{}
	c := New(ms)
	ctx := context.Background()

	c.SetSession(ctx, testProfile("u_1"))
	c.SetLanguage(ctx, domain.LangArabic)
	c.AppendHistory(ctx, domain.ActionLogin, nil)
	if ms.saves != 3 {
		t.Fatalf("expected 3 snapshot saves, got %d", ms.saves)
	}

	// Location is not part of the persisted subset.
	c.SetLocation(&domain.GeoLocation{Lat: 32.0853, Lng: 34.7818})
	if ms.saves != 3 {
		t.Fatalf("expected location change not to persist, got %d saves", ms.saves)
	}
}

func TestAppendHistoryNeverFailsOnStorageError(t *testing.T) {
	t.Parallel()

	c := New(&memStore{fail: true})
	ctx := context.Background()

	c.AppendHistory(ctx, domain.ActionSearch, nil)
	if len(c.History()) != 1 {
		t.Fatal("expected history append to succeed despite storage failure")
	}
}

func TestRehydrationRoundTrip(t *testing.T) {
	t.Parallel()

	ms := &memStore{}
	ctx := context.Background()

	first := New(ms)
	first.SetSession(ctx, testProfile("u_1"))
	first.SetLanguage(ctx, domain.LangEnglish)
	first.AppendHistory(ctx, domain.ActionLogin, map[string]any{"stage": "success"})
	saved := append([]byte(nil), ms.blob...)

	second := New(ms)
	second.Rehydrate(ctx)

	if got := second.Session(); got == nil || got.ID != "u_1" {
		t.Fatalf("expected rehydrated session u_1, got %+v", got)
	}
	if second.Language() != domain.LangEnglish {
		t.Fatalf("expected rehydrated language en, got %q", second.Language())
	}
	if len(second.History()) != 1 {
		t.Fatalf("expected 1 rehydrated history entry, got %d", len(second.History()))
	}

	// Serialize-deserialize-reserialize yields an identical blob.
	second.SetLanguage(ctx, domain.LangEnglish)
	if !bytes.Equal(saved, ms.blob) {
		t.Errorf("expected reserialized snapshot to match original\nwant: %s\ngot:  %s", saved, ms.blob)
	}
}

func TestRehydrationCorruptSnapshotResetsToDefaults(t *testing.T) {
	t.Parallel()

	ms := &memStore{blob: []byte("{not json")}
	c := New(ms)
	c.Rehydrate(context.Background())

	if c.Session() != nil {
		t.Error("expected no session after corrupt snapshot")
	}
	if c.Language() != domain.DefaultLanguage {
		t.Errorf("expected default language, got %q", c.Language())
	}
	if len(c.History()) != 0 {
		t.Errorf("expected empty history, got %d entries", len(c.History()))
	}
}

func TestRehydrationAppliesLanguageSideEffectOnce(t *testing.T) {
	t.Parallel()

	ms := &memStore{}
	ctx := context.Background()

	first := New(ms)
	first.SetLanguage(ctx, domain.LangEnglish)

	second := New(ms)
	var events []Event
	second.Subscribe(func(ev Event) {
		if ev.Region == RegionLanguage {
			events = append(events, ev)
		}
	})
	second.Rehydrate(ctx)

	if len(events) != 1 {
		t.Fatalf("expected exactly one language notification, got %d", len(events))
	}
	if events[0].Language != domain.LangEnglish {
		t.Errorf("expected notification for en, got %q", events[0].Language)
	}
	if events[0].Language.Direction() != domain.DirLTR {
		t.Errorf("expected ltr direction for en, got %q", events[0].Language.Direction())
	}
}
