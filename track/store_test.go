package track_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/stream-herald/testutil"
	"github.com/onnwee/stream-herald/track"
)

// Postgres round-trip tests; skipped unless TEST_PG_DSN points at a database.

func TestPostgresStoreRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	s := &track.PostgresStore{DB: database}
	ctx := context.Background()

	w := &track.StreamWatch{
		Tenant:           "guild-rt",
		EntityID:         "123",
		Login:            "alice",
		DisplayName:      "Alice",
		IsLive:           true,
		SessionID:        "s1",
		GameID:           "g1",
		GameName:         "Chess",
		Title:            "Road to GM",
		SessionStartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ThumbnailURL:     "https://cdn/preview-{width}x{height}.jpg",
		LastViewerCount:  42,
		Notification:     &track.MessageRef{ChannelID: "c1", MessageID: "m1"},
		Stats:            track.Stats{PeakViewers: 50, TotalViewers: 60, SampleCount: 2},
		AnnounceText:     "come hang",
	}
	if err := s.Put(ctx, w); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, "guild-rt", "123") })

	got, err := s.Get(ctx, "guild-rt", "123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Login != "alice" || got.SessionID != "s1" || got.GameName != "Chess" {
		t.Errorf("identity/session fields lost: %+v", got)
	}
	if !got.SessionStartedAt.Equal(w.SessionStartedAt) {
		t.Errorf("session start = %v, want %v", got.SessionStartedAt, w.SessionStartedAt)
	}
	if got.Notification == nil || *got.Notification != *w.Notification {
		t.Errorf("notification = %+v", got.Notification)
	}
	if got.Stats != w.Stats || got.LastViewerCount != 42 {
		t.Errorf("stats = %+v last=%d", got.Stats, got.LastViewerCount)
	}
	if got.AnnounceText != "come hang" {
		t.Errorf("announce = %q", got.AnnounceText)
	}

	// Upsert to offline: the nulled session fields must come back zero.
	w.IsLive = false
	w.SessionID = ""
	w.SessionStartedAt = time.Time{}
	w.Notification = nil
	w.Stats = track.Stats{}
	w.LastViewerCount = 0
	if err := s.Put(ctx, w); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "guild-rt", "123")
	if err != nil {
		t.Fatal(err)
	}
	if got.IsLive || got.SessionID != "" || !got.SessionStartedAt.IsZero() {
		t.Errorf("offline reset not persisted: %+v", got)
	}
	if got.Notification != nil || (got.Stats != track.Stats{}) {
		t.Errorf("ref/stats not cleared: %+v %+v", got.Notification, got.Stats)
	}

	if byLogin, err := s.GetByLogin(ctx, "guild-rt", "ALICE"); err != nil || byLogin.EntityID != "123" {
		t.Errorf("GetByLogin = %+v, %v", byLogin, err)
	}
}

func TestPostgresStoreDeleteAndNotFound(t *testing.T) {
	database := testutil.SetupTestDB(t)
	s := &track.PostgresStore{DB: database}
	ctx := context.Background()

	if _, err := s.Get(ctx, "guild-del", "nope"); !errors.Is(err, track.ErrNotFound) {
		t.Errorf("missing record err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "guild-del", "nope"); !errors.Is(err, track.ErrNotFound) {
		t.Errorf("delete missing err = %v, want ErrNotFound", err)
	}

	w := &track.StreamWatch{Tenant: "guild-del", EntityID: "7", Login: "bob"}
	if err := s.Put(ctx, w); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "guild-del", "7"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "guild-del", "7"); !errors.Is(err, track.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreSetAnnounceText(t *testing.T) {
	database := testutil.SetupTestDB(t)
	s := &track.PostgresStore{DB: database}
	ctx := context.Background()

	w := &track.StreamWatch{Tenant: "guild-ann", EntityID: "9", Login: "carol"}
	if err := s.Put(ctx, w); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, "guild-ann", "9") })

	if err := s.SetAnnounceText(ctx, "guild-ann", "9", "big show"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "guild-ann", "9")
	if err != nil {
		t.Fatal(err)
	}
	if got.AnnounceText != "big show" {
		t.Errorf("announce = %q", got.AnnounceText)
	}
	if err := s.SetAnnounceText(ctx, "guild-ann", "404", "x"); !errors.Is(err, track.ErrNotFound) {
		t.Errorf("unknown entity err = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreTenantConfig(t *testing.T) {
	database := testutil.SetupTestDB(t)
	s := &track.PostgresStore{DB: database}
	ctx := context.Background()

	if _, err := s.GetTenant(ctx, "guild-tc"); !errors.Is(err, track.ErrNotFound) {
		t.Errorf("missing tenant err = %v, want ErrNotFound", err)
	}
	tc := &track.TenantConfig{
		Tenant:            "guild-tc",
		LiveChannelID:     "c-live",
		ClipsChannelID:    "c-clips",
		ChatAnnounceLogin: "alice",
	}
	if err := s.PutTenant(ctx, tc); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTenant(ctx, "guild-tc")
	if err != nil {
		t.Fatal(err)
	}
	if *got != *tc {
		t.Errorf("tenant = %+v, want %+v", got, tc)
	}

	// Upsert overwrites.
	tc.LiveChannelID = "c-live-2"
	if err := s.PutTenant(ctx, tc); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetTenant(ctx, "guild-tc")
	if got.LiveChannelID != "c-live-2" {
		t.Errorf("live channel = %q after upsert", got.LiveChannelID)
	}
}
