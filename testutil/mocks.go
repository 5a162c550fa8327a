package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server. Handlers are keyed
// by URL path; unknown paths get a 404.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *MockTwitchServer) jsonHandler(path string, body map[string]any) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
	}
}

// MockUserResponse adds a handler for the /helix/users endpoint.
func (m *MockTwitchServer) MockUserResponse(userID, login, displayName, profileImageURL string) {
	m.jsonHandler("/helix/users", map[string]any{
		"data": []map[string]string{{
			"id":                userID,
			"login":             login,
			"display_name":      displayName,
			"profile_image_url": profileImageURL,
		}},
	})
}

// MockStreamsResponse adds a handler for the /helix/streams endpoint. Pass an
// empty slice for "offline".
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]any) {
	m.jsonHandler("/helix/streams", map[string]any{"data": streams})
}

// MockGamesResponse adds a handler for the /helix/games endpoint.
func (m *MockTwitchServer) MockGamesResponse(gameID, name, boxArtURL string) {
	m.jsonHandler("/helix/games", map[string]any{
		"data": []map[string]string{{
			"id":          gameID,
			"name":        name,
			"box_art_url": boxArtURL,
		}},
	})
}

// MockClipsResponse adds a handler for the /helix/clips endpoint.
func (m *MockTwitchServer) MockClipsResponse(clips []map[string]any) {
	m.jsonHandler("/helix/clips", map[string]any{"data": clips})
}

// MockErrorResponse makes a path answer with a fixed status code.
func (m *MockTwitchServer) MockErrorResponse(path string, status int) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint.
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.jsonHandler("/oauth2/token", map[string]any{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"token_type":   "bearer",
	})
}
