package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/onnwee/stream-herald/track"
	"github.com/onnwee/stream-herald/twitchapi"
)

// Handlers carries the dependencies the HTTP endpoints need.
type Handlers struct {
	db    *sql.DB // nil when running storeless (tests); health checks degrade
	store track.Store
	helix *twitchapi.HelixClient
}

func NewHandlers(db *sql.DB, store track.Store, helix *twitchapi.HelixClient) *Handlers {
	return &Handlers{db: db, store: store, helix: helix}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleHealthz responds to liveness probes by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes: the store must answer.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Tenants(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus reports tenant/watch counts for dashboards.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.store.Tenants(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, live := 0, 0
	for _, tc := range tenants {
		watches, err := h.store.ListAll(r.Context(), tc.Tenant)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		total += len(watches)
		for _, wch := range watches {
			if wch.IsLive {
				live++
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenants":      len(tenants),
		"watches":      total,
		"live_watches": live,
	})
}

// apiWatch is the JSON view of a StreamWatch.
type apiWatch struct {
	EntityID         string     `json:"entity_id"`
	Login            string     `json:"login"`
	DisplayName      string     `json:"display_name"`
	IsLive           bool       `json:"is_live"`
	Title            string     `json:"title,omitempty"`
	GameName         string     `json:"game_name,omitempty"`
	Viewers          int        `json:"viewers,omitempty"`
	PeakViewers      int        `json:"peak_viewers,omitempty"`
	AvgViewers       int        `json:"avg_viewers,omitempty"`
	SessionStartedAt *time.Time `json:"session_started_at,omitempty"`
	AnnounceText     string     `json:"announce_text,omitempty"`
}

func watchView(w *track.StreamWatch) apiWatch {
	v := apiWatch{
		EntityID:     w.EntityID,
		Login:        w.Login,
		DisplayName:  w.DisplayName,
		IsLive:       w.IsLive,
		Title:        w.Title,
		GameName:     w.GameName,
		Viewers:      w.LastViewerCount,
		PeakViewers:  w.Stats.PeakViewers,
		AvgViewers:   w.Stats.Average(),
		AnnounceText: w.AnnounceText,
	}
	if !w.SessionStartedAt.IsZero() {
		t := w.SessionStartedAt
		v.SessionStartedAt = &t
	}
	return v
}

// HandleWatchAdd registers a broadcaster for a tenant. The login is resolved
// to its Twitch user id before the zeroed record is created.
func (h *Handlers) HandleWatchAdd(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	var body struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Login == "" {
		writeErr(w, http.StatusBadRequest, "body must be {\"login\": \"...\"}")
		return
	}
	user, err := h.helix.GetUserByLogin(r.Context(), body.Login)
	if err != nil {
		if errors.Is(err, twitchapi.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "twitch user not found: "+body.Login)
			return
		}
		writeErr(w, http.StatusBadGateway, "twitch lookup failed: "+err.Error())
		return
	}
	if _, err := h.store.Get(r.Context(), tenant, user.ID); err == nil {
		writeErr(w, http.StatusConflict, "already registered: "+user.Login)
		return
	} else if !errors.Is(err, track.ErrNotFound) {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	watch := &track.StreamWatch{
		Tenant:      tenant,
		EntityID:    user.ID,
		Login:       user.Login,
		DisplayName: user.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.Put(r.Context(), watch); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, watchView(watch))
}

// HandleWatchList lists a tenant's registered broadcasters.
func (h *Handlers) HandleWatchList(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	watches, err := h.store.ListAll(r.Context(), tenant)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]apiWatch, 0, len(watches))
	for i := range watches {
		out = append(out, watchView(&watches[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"watches": out})
}

// HandleWatchRemove unregisters a broadcaster by login.
func (h *Handlers) HandleWatchRemove(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	login := r.PathValue("login")
	watch, err := h.store.GetByLogin(r.Context(), tenant, login)
	if err != nil {
		if errors.Is(err, track.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not registered: "+login)
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.Delete(r.Context(), tenant, watch.EntityID); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAnnounceSet sets the custom go-live announce text for a watch.
func (h *Handlers) HandleAnnounceSet(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	login := r.PathValue("login")
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "body must be {\"text\": \"...\"}")
		return
	}
	if utf8.RuneCountInString(body.Text) > track.AnnounceTextMaxLen {
		writeErr(w, http.StatusUnprocessableEntity, "announce text too long")
		return
	}
	watch, err := h.store.GetByLogin(r.Context(), tenant, login)
	if err != nil {
		if errors.Is(err, track.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not registered: "+login)
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.SetAnnounceText(r.Context(), tenant, watch.EntityID, body.Text); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiTenantConfig is the JSON view of TenantConfig.
type apiTenantConfig struct {
	LiveChannelID     string `json:"live_channel_id"`
	ClipsChannelID    string `json:"clips_channel_id"`
	ChatAnnounceLogin string `json:"chat_announce_login"`
}

// HandleTenantConfigGet returns a tenant's delivery configuration.
func (h *Handlers) HandleTenantConfigGet(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	tc, err := h.store.GetTenant(r.Context(), tenant)
	if err != nil {
		if errors.Is(err, track.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "tenant not configured: "+tenant)
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiTenantConfig{
		LiveChannelID:     tc.LiveChannelID,
		ClipsChannelID:    tc.ClipsChannelID,
		ChatAnnounceLogin: tc.ChatAnnounceLogin,
	})
}

// HandleTenantConfigPut sets a tenant's delivery configuration. Empty fields
// disable the corresponding destination without disabling tracking.
func (h *Handlers) HandleTenantConfigPut(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	var body apiTenantConfig
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	tc := &track.TenantConfig{
		Tenant:            tenant,
		LiveChannelID:     body.LiveChannelID,
		ClipsChannelID:    body.ClipsChannelID,
		ChatAnnounceLogin: body.ChatAnnounceLogin,
	}
	if err := h.store.PutTenant(r.Context(), tc); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
