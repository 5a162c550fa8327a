package track

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	w := &StreamWatch{
		Tenant:      "guild1",
		EntityID:    "123",
		Login:       "alice",
		DisplayName: "Alice",
		IsLive:      true,
		SessionID:   "s1",
		GameID:      "g1",
		GameName:    "Chess",
		Title:       "Road to GM",
		SessionStartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastViewerCount:  42,
		Notification:     &MessageRef{ChannelID: "c", MessageID: "m"},
		Stats:            Stats{PeakViewers: 50, TotalViewers: 60, SampleCount: 2},
		AnnounceText:     "come hang",
	}
	if err := s.Put(ctx, w); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "guild1", "123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Login != "alice" || got.SessionID != "s1" || got.Stats.TotalViewers != 60 {
		t.Errorf("round trip lost data: %+v", got)
	}
	if got.Notification == nil || got.Notification.MessageID != "m" {
		t.Errorf("notification = %+v", got.Notification)
	}

	// The returned record is a copy; mutating it must not touch the store.
	got.Login = "mallory"
	got.Notification.MessageID = "hijacked"
	again, _ := s.Get(ctx, "guild1", "123")
	if again.Login != "alice" || again.Notification.MessageID != "m" {
		t.Error("store handed out shared state")
	}
}

func TestMemoryStoreGetByLogin(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, &StreamWatch{Tenant: "guild1", EntityID: "123", Login: "Alice"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByLogin(ctx, "guild1", "alice")
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
	if got.EntityID != "123" {
		t.Errorf("entity = %q", got.EntityID)
	}
	if _, err := s.GetByLogin(ctx, "guild2", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant lookup err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, &StreamWatch{Tenant: "guild1", EntityID: "123", Login: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "guild1", "123"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "guild1", "123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "guild1", "123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSetAnnounceText(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, &StreamWatch{Tenant: "guild1", EntityID: "123", Login: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnnounceText(ctx, "guild1", "123", "big show tonight"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, "guild1", "123")
	if got.AnnounceText != "big show tonight" {
		t.Errorf("announce = %q", got.AnnounceText)
	}
	if err := s.SetAnnounceText(ctx, "guild1", "999", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown entity err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListAllIsPerTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, w := range []*StreamWatch{
		{Tenant: "guild1", EntityID: "1", Login: "bob"},
		{Tenant: "guild1", EntityID: "2", Login: "alice"},
		{Tenant: "guild2", EntityID: "3", Login: "carol"},
	} {
		if err := s.Put(ctx, w); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListAll(ctx, "guild1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Login != "alice" || got[1].Login != "bob" {
		t.Errorf("list = %+v, want alice,bob", got)
	}
}

func TestMemoryStoreTenantConfig(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.GetTenant(ctx, "guild1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing tenant err = %v, want ErrNotFound", err)
	}
	tc := &TenantConfig{Tenant: "guild1", LiveChannelID: "c1", ClipsChannelID: "c2", ChatAnnounceLogin: "alice"}
	if err := s.PutTenant(ctx, tc); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTenant(ctx, "guild1")
	if err != nil {
		t.Fatal(err)
	}
	if *got != *tc {
		t.Errorf("tenant = %+v, want %+v", got, tc)
	}
	all, err := s.Tenants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Tenant != "guild1" {
		t.Errorf("tenants = %+v", all)
	}
}
