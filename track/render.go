package track

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/stream-herald/twitchapi"
)

// Embed accent colors (Twitch purple for live, grey for ended).
const (
	colorLive  = 0x9146FF
	colorEnded = 0x95A5A6
)

// PayloadField is one name/value pair on a rendered payload (used for clip
// listings).
type PayloadField struct {
	Name  string
	Value string
}

// Payload is a fully rendered outbound message, sink-agnostic. Sinks map it
// onto their own message shape (Discord embed, IRC line).
type Payload struct {
	Title        string
	Body         string
	URL          string
	ImageURL     string // large image (box art, stream preview)
	ThumbnailURL string // small corner image (profile avatar)
	Mention      string // message content outside the embed, e.g. "@everyone"
	Fields       []PayloadField
	Footer       string
	Timestamp    time.Time
	Color        int
}

// Enricher provides the best-effort auxiliary lookups the renderer uses for
// visual enrichment. Failures degrade to omitted elements, never errors.
type Enricher interface {
	GetUserByID(ctx context.Context, id string) (*twitchapi.User, error)
	GetGame(ctx context.Context, gameID string) (*twitchapi.Game, error)
	GetClips(ctx context.Context, broadcasterID string, since time.Time, first int) ([]twitchapi.Clip, error)
}

// Renderer converts StreamWatch state into outbound payloads. Rendering is a
// full deterministic re-derivation from the record on every call; it never
// patches a previously sent body, so repeated renders of the same state are
// byte-identical and edits are order-independent.
type Renderer struct {
	API Enricher
	// Quiet suppresses the announcement mention on go-live messages.
	Quiet bool
}

// RenderLive renders the single message representing a live session. The same
// function serves creates and updates; only the record state matters.
func (r *Renderer) RenderLive(ctx context.Context, w *StreamWatch) Payload {
	game := w.GameName
	if game == "" {
		game = "No Game"
	}
	lead := "**" + orDefault(w.Title, "No Title") + "**"
	if w.AnnounceText != "" {
		lead = w.AnnounceText
	}
	p := Payload{
		Title: fmt.Sprintf("%s is live on Twitch!", w.DisplayName),
		Body: lead + "\n\n" +
			fmt.Sprintf("🎮 Playing: **%s**\n", game) +
			fmt.Sprintf("👥 Current Viewers: **%d**", w.LastViewerCount),
		URL:   w.WatchURL(),
		Color: colorLive,
	}
	if !r.Quiet {
		p.Mention = "@everyone"
	}
	if g := r.lookupGame(ctx, w.GameID); g != nil && g.BoxArtURL != "" {
		p.ImageURL = sizedImageURL(g.BoxArtURL, "285", "380")
	}
	if u := r.lookupUser(ctx, w.EntityID); u != nil && u.ProfileImageURL != "" {
		p.ThumbnailURL = u.ProfileImageURL
	}
	return p
}

// RenderSummary renders the end-of-session summary from the figures captured
// before the offline reset.
func (r *Renderer) RenderSummary(ctx context.Context, w *StreamWatch, sum *SessionSummary) Payload {
	var lines []string
	lines = append(lines, "**Stream Summary**", "")
	if sum.Duration > 0 {
		lines = append(lines, fmt.Sprintf("Stream Duration: **%s**", formatDuration(sum.Duration)))
	}
	lines = append(lines,
		fmt.Sprintf("Peak Viewers: **%d**", sum.PeakViewers),
		fmt.Sprintf("Average Viewers: **%d**", sum.AvgViewers),
		fmt.Sprintf("Last Game: **%s**", orDefault(sum.LastGameName, "N/A")),
		"",
		"Thanks for watching! 👋",
	)
	p := Payload{
		Title:  fmt.Sprintf("📺 %s has ended their stream", w.DisplayName),
		Body:   strings.Join(lines, "\n"),
		URL:    w.WatchURL(),
		Footer: "Stream Ended",
		Color:  colorEnded,
	}
	if !sum.StartedAt.IsZero() {
		p.Timestamp = sum.StartedAt.Add(sum.Duration)
	}
	if sum.ThumbnailURL != "" {
		// Cache-bust with the session start so Discord doesn't serve a stale
		// preview; keyed to the session, not the wall clock, to stay
		// deterministic.
		p.ImageURL = fmt.Sprintf("%s?t=%d", sizedImageURL(sum.ThumbnailURL, "1280", "720"), sum.StartedAt.Unix())
	} else if g := r.lookupGame(ctx, sum.LastGameID); g != nil && g.BoxArtURL != "" {
		p.ImageURL = sizedImageURL(g.BoxArtURL, "285", "380")
	}
	if u := r.lookupUser(ctx, w.EntityID); u != nil && u.ProfileImageURL != "" {
		p.ThumbnailURL = u.ProfileImageURL
	}
	return p
}

// RenderClips renders the best-effort post-stream clips follow-up. The second
// return is false when there is nothing to send (no clips, or lookup failed).
func (r *Renderer) RenderClips(ctx context.Context, w *StreamWatch, since time.Time) (Payload, bool) {
	if r.API == nil || since.IsZero() {
		return Payload{}, false
	}
	clips, err := r.API.GetClips(ctx, w.EntityID, since, 5)
	if err != nil {
		slog.Debug("clips lookup failed", slog.String("entity", w.EntityID), slog.Any("err", err))
		return Payload{}, false
	}
	if len(clips) == 0 {
		return Payload{}, false
	}
	p := Payload{
		Title: fmt.Sprintf("📎 Clips from %s's stream", w.DisplayName),
		Body:  "Here are the clips created during the stream:",
		Color: colorLive,
	}
	for _, c := range clips {
		p.Fields = append(p.Fields, PayloadField{
			Name: fmt.Sprintf("👀 %s", orDefault(c.Title, "Untitled Clip")),
			Value: fmt.Sprintf("Created by: %s\nViews: %d\n[Watch Clip](%s)",
				orDefault(c.CreatorName, "Unknown"), c.ViewCount, c.URL),
		})
	}
	return p, true
}

// RenderAnnounceLine renders the one-line go-live announce for chat sinks.
func (r *Renderer) RenderAnnounceLine(w *StreamWatch) string {
	if w.AnnounceText != "" {
		return fmt.Sprintf("%s - %s", w.AnnounceText, w.WatchURL())
	}
	return fmt.Sprintf("%s is live: %s - %s", w.DisplayName, orDefault(w.Title, "No Title"), w.WatchURL())
}

func (r *Renderer) lookupGame(ctx context.Context, gameID string) *twitchapi.Game {
	if r.API == nil || gameID == "" {
		return nil
	}
	g, err := r.API.GetGame(ctx, gameID)
	if err != nil {
		slog.Debug("game lookup failed", slog.String("game_id", gameID), slog.Any("err", err))
		return nil
	}
	return g
}

func (r *Renderer) lookupUser(ctx context.Context, id string) *twitchapi.User {
	if r.API == nil || id == "" {
		return nil
	}
	u, err := r.API.GetUserByID(ctx, id)
	if err != nil {
		slog.Debug("profile lookup failed", slog.String("user_id", id), slog.Any("err", err))
		return nil
	}
	return u
}

// sizedImageURL fills Twitch's {width}/{height} URL template.
func sizedImageURL(tmpl, width, height string) string {
	return strings.NewReplacer("{width}", width, "{height}", height).Replace(tmpl)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
