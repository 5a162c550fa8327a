package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/stream-herald/testutil"
)

func newTestClient(t *testing.T) (*HelixClient, *testutil.MockTwitchServer) {
	t.Helper()
	srv := testutil.NewMockTwitchServer(t)
	srv.MockOAuthTokenResponse("tok", 3600)
	hc := &HelixClient{
		AppTokenSource: &TokenSource{
			ClientID:     "cid",
			ClientSecret: "secret",
			TokenURL:     srv.URL + "/oauth2/token",
		},
		ClientID: "cid",
		BaseURL:  srv.URL,
	}
	return hc, srv
}

func TestGetUserByLogin(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.MockUserResponse("123", "alice", "Alice", "https://cdn/avatar.png")

	u, err := hc.GetUserByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "123" || u.DisplayName != "Alice" {
		t.Errorf("user = %+v", u)
	}
}

func TestGetUserByLoginUnknown(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}
	_, err := hc.GetUserByLogin(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetStreamLive(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.MockStreamsResponse([]map[string]any{{
		"id":            "s1",
		"user_id":       "123",
		"user_login":    "alice",
		"user_name":     "Alice",
		"game_id":       "g1",
		"game_name":     "Chess",
		"title":         "Road to GM",
		"viewer_count":  42,
		"started_at":    "2025-06-01T12:00:00Z",
		"thumbnail_url": "https://cdn/preview-{width}x{height}.jpg",
	}})

	s, err := hc.GetStream(context.Background(), "123")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("expected a live stream")
	}
	if s.ID != "s1" || s.GameName != "Chess" || s.ViewerCount != 42 {
		t.Errorf("stream = %+v", s)
	}
	if !s.StartedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("started_at = %v", s.StartedAt)
	}
}

// An empty data array means offline, not an error.
func TestGetStreamOffline(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.MockStreamsResponse([]map[string]any{})

	s, err := hc.GetStream(context.Background(), "123")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("stream = %+v, want nil for offline", s)
	}
}

func TestGetStreamErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
	}
	for _, c := range cases {
		hc, srv := newTestClient(t)
		srv.MockErrorResponse("/helix/streams", c.status)
		_, err := hc.GetStream(context.Background(), "123")
		if !errors.Is(err, c.want) {
			t.Errorf("status %d: err = %v, want %v", c.status, err, c.want)
		}
	}
}

// A 401 from Helix means the cached token was revoked or the secret rotated;
// the next attempt must fetch a fresh token rather than replay the stale one
// until its natural expiry.
func TestAuthRejectionForcesTokenRefresh(t *testing.T) {
	hc, srv := newTestClient(t)
	var tokenHits atomic.Int32
	inner := srv.Handlers["/oauth2/token"]
	srv.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		tokenHits.Add(1)
		inner(w, r)
	}
	srv.MockErrorResponse("/helix/streams", http.StatusUnauthorized)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := hc.GetStream(ctx, "123"); !errors.Is(err, ErrAuth) {
			t.Fatalf("attempt %d: err = %v, want ErrAuth", i+1, err)
		}
	}
	if got := tokenHits.Load(); got != 2 {
		t.Errorf("token endpoint hit %d times, want a fresh fetch per attempt after rejection", got)
	}
}

func TestGetStreamBadRequestHasNoSentinel(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.MockErrorResponse("/helix/streams", http.StatusBadRequest)
	_, err := hc.GetStream(context.Background(), "123")
	if err == nil {
		t.Fatal("expected error on 400")
	}
	for _, sentinel := range []error{ErrAuth, ErrNotFound, ErrTransient} {
		if errors.Is(err, sentinel) {
			t.Errorf("400 wrongly classified as %v", sentinel)
		}
	}
}

func TestHelixSendsAuthHeaders(t *testing.T) {
	hc, srv := newTestClient(t)
	var gotClientID, gotAuth string
	srv.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		gotClientID = r.Header.Get("Client-Id")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}
	if _, err := hc.GetStream(context.Background(), "123"); err != nil {
		t.Fatal(err)
	}
	if gotClientID != "cid" {
		t.Errorf("Client-Id = %q", gotClientID)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestGetGame(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.MockGamesResponse("g1", "Chess", "https://cdn/box-{width}x{height}.jpg")

	g, err := hc.GetGame(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "Chess" || g.BoxArtURL == "" {
		t.Errorf("game = %+v", g)
	}
}

func TestGetClips(t *testing.T) {
	hc, srv := newTestClient(t)
	var gotQuery map[string]string
	srv.MockClipsResponse([]map[string]any{
		{"id": "c1", "url": "https://clips/c1", "title": "Big blunder", "creator_name": "bob", "view_count": 12},
	})
	inner := srv.Handlers["/helix/clips"]
	srv.Handlers["/helix/clips"] = func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"broadcaster_id": r.URL.Query().Get("broadcaster_id"),
			"started_at":     r.URL.Query().Get("started_at"),
			"first":          r.URL.Query().Get("first"),
		}
		inner(w, r)
	}

	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clips, err := hc.GetClips(context.Background(), "123", since, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 1 || clips[0].Title != "Big blunder" {
		t.Errorf("clips = %+v", clips)
	}
	if gotQuery["broadcaster_id"] != "123" || gotQuery["first"] != "5" {
		t.Errorf("query = %+v", gotQuery)
	}
	if gotQuery["started_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("started_at = %q, want RFC3339 UTC", gotQuery["started_at"])
	}
}

func TestGetClipsEmpty(t *testing.T) {
	hc, srv := newTestClient(t)
	srv.MockClipsResponse([]map[string]any{})
	clips, err := hc.GetClips(context.Background(), "123", time.Now(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 0 {
		t.Errorf("clips = %+v, want none", clips)
	}
}

func TestEmptyIDValidation(t *testing.T) {
	hc, _ := newTestClient(t)
	ctx := context.Background()
	if _, err := hc.GetStream(ctx, ""); err == nil {
		t.Error("GetStream accepted empty id")
	}
	if _, err := hc.GetUserByLogin(ctx, ""); err == nil {
		t.Error("GetUserByLogin accepted empty login")
	}
	if _, err := hc.GetGame(ctx, ""); err == nil {
		t.Error("GetGame accepted empty id")
	}
	if _, err := hc.GetClips(ctx, "", time.Now(), 5); err == nil {
		t.Error("GetClips accepted empty id")
	}
}
