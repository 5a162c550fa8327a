// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for stream status polling and best-effort enrichment lookups (users, games,
// clips), using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.twitch.tv"

// HelixClient provides the Helix calls needed by the poller and renderer.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string // override for tests; defaults to api.twitch.tv
	HTTPClient     *http.Client
	Limiter        *rate.Limiter // optional; paces all Helix requests
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultBaseURL
}

// get performs an authenticated Helix GET and decodes the JSON body into out.
// Non-200 responses are wrapped with a sentinel error kind where one applies.
func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if hc.Limiter != nil {
		if err := hc.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return fmt.Errorf("helix %s: %w: %w", path, ErrTransient, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if kind := classifyStatus(resp.StatusCode); kind != nil {
			if kind == ErrAuth {
				// The token was rejected before its expiry; drop it so the
				// next attempt fetches a fresh one.
				hc.AppTokenSource.Invalidate()
			}
			return fmt.Errorf("helix %s: %s: %s: %w", path, resp.Status, string(b), kind)
		}
		return fmt.Errorf("helix %s: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// User is a Helix user record, trimmed to the fields the service needs.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Stream is one entry of a /helix/streams response.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameID       string    `json:"game_id"`
	GameName     string    `json:"game_name"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// Game is a Helix game/category record.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// Clip is a Helix clip record.
type Clip struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	CreatorName string `json:"creator_name"`
	ViewCount   int    `json:"view_count"`
}

// GetUserByLogin resolves a login name to its user record.
func (hc *HelixClient) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	q := url.Values{}
	q.Set("login", login)
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "/helix/users", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("user %q: %w", login, ErrNotFound)
	}
	return &body.Data[0], nil
}

// GetUserByID fetches a user record (for profile image enrichment).
func (hc *HelixClient) GetUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("user id empty")
	}
	q := url.Values{}
	q.Set("id", id)
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "/helix/users", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("user id %q: %w", id, ErrNotFound)
	}
	return &body.Data[0], nil
}

// GetStream returns the current live stream for a user, or nil when offline.
// An empty data array is Twitch's way of saying "not live" and is not an error.
func (hc *HelixClient) GetStream(ctx context.Context, userID string) (*Stream, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	q := url.Values{}
	q.Set("user_id", userID)
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := hc.get(ctx, "/helix/streams", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}

// GetGame fetches game/category metadata for box art enrichment.
func (hc *HelixClient) GetGame(ctx context.Context, gameID string) (*Game, error) {
	if gameID == "" {
		return nil, fmt.Errorf("game id empty")
	}
	q := url.Values{}
	q.Set("id", gameID)
	var body struct {
		Data []Game `json:"data"`
	}
	if err := hc.get(ctx, "/helix/games", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("game %q: %w", gameID, ErrNotFound)
	}
	return &body.Data[0], nil
}

// GetClips lists clips created for a broadcaster since the given time.
func (hc *HelixClient) GetClips(ctx context.Context, broadcasterID string, since time.Time, first int) ([]Clip, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcaster id empty")
	}
	if first <= 0 {
		first = 5
	}
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("started_at", since.UTC().Format(time.RFC3339))
	q.Set("first", fmt.Sprintf("%d", first))
	var body struct {
		Data []Clip `json:"data"`
	}
	if err := hc.get(ctx, "/helix/clips", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}
