// Package track implements the stream-state tracking core: the per-broadcaster
// record and state machine, viewer statistics, notification rendering, and the
// poll scheduler that drives them.
package track

import (
	"errors"
	"time"
)

// AnnounceTextMaxLen bounds the operator-supplied go-live message override.
const AnnounceTextMaxLen = 140

// ErrNotFound is returned by Store lookups for unknown (tenant, entity) keys.
var ErrNotFound = errors.New("track: not found")

// ErrMessageGone is returned by a Sink when the target of an edit no longer
// exists. It is a miss, not a failure: the poller drops the stale ref and a
// later tick re-creates the message.
var ErrMessageGone = errors.New("track: message gone")

// MessageRef identifies a previously dispatched message for later edits.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Stats accumulates viewer counts across one live session.
type Stats struct {
	PeakViewers  int `json:"peak_viewers"`
	TotalViewers int `json:"total_viewers"`
	SampleCount  int `json:"sample_count"`
}

// Observe merges one viewer-count sample into the running stats.
func (s *Stats) Observe(viewers int) {
	if viewers > s.PeakViewers {
		s.PeakViewers = viewers
	}
	s.TotalViewers += viewers
	s.SampleCount++
}

// Average returns the mean viewer count, rounded half-up. Zero samples yield
// zero, never a division error.
func (s Stats) Average() int {
	if s.SampleCount == 0 {
		return 0
	}
	return (s.TotalViewers + s.SampleCount/2) / s.SampleCount
}

// StreamWatch is the per-(tenant, broadcaster) tracking record. Identity
// fields are immutable after registration; everything else is mutated only by
// the transition engine during polling, except AnnounceText which the command
// surface owns.
type StreamWatch struct {
	Tenant      string
	EntityID    string // Twitch user id
	Login       string
	DisplayName string

	IsLive           bool
	SessionID        string // upstream stream id; empty while offline
	GameID           string
	GameName         string
	Title            string
	SessionStartedAt time.Time // UTC; zero while offline
	ThumbnailURL     string
	LastViewerCount  int // most recent sample, for rendering; not a statistic

	// Notification is the single outbound message representing the current
	// live session; nil until a create succeeds, always nil while offline.
	Notification *MessageRef

	Stats Stats

	AnnounceText string // optional go-live body override, <= AnnounceTextMaxLen runes

	CreatedAt time.Time
	UpdatedAt time.Time
}

// resetOffline clears every live-session field. Identity and AnnounceText
// survive; they are not session state.
func (w *StreamWatch) resetOffline() {
	w.IsLive = false
	w.SessionID = ""
	w.SessionStartedAt = time.Time{}
	w.Notification = nil
	w.Stats = Stats{}
	w.LastViewerCount = 0
}

// WatchURL is the broadcaster's public stream URL.
func (w *StreamWatch) WatchURL() string {
	return "https://twitch.tv/" + w.Login
}

// TenantConfig holds per-tenant delivery destinations. Any destination may be
// empty: a missing LiveChannelID disables dispatch for the tenant without
// disabling status tracking.
type TenantConfig struct {
	Tenant            string
	LiveChannelID     string // Discord channel for go-live / update / end messages
	ClipsChannelID    string // Discord channel for post-stream clip summaries
	ChatAnnounceLogin string // Twitch chat channel for the optional IRC announce
}

// SessionSummary carries the end-of-session figures computed just before the
// live fields are reset.
type SessionSummary struct {
	StartedAt    time.Time
	Duration     time.Duration
	PeakViewers  int
	AvgViewers   int
	LastGameID   string
	LastGameName string
	ThumbnailURL string
}

// IntentKind enumerates the outbound message action warranted by a transition.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentCreate
	IntentUpdate
	IntentFinalize
)

func (k IntentKind) String() string {
	switch k {
	case IntentCreate:
		return "create"
	case IntentUpdate:
		return "update"
	case IntentFinalize:
		return "finalize"
	default:
		return "none"
	}
}

// ChangedFields records which message-visible fields moved on an Update.
// The renderer re-derives the whole payload regardless; these exist for
// logging and for callers that want to skip no-op edits.
type ChangedFields struct {
	Title   bool
	Game    bool
	Viewers bool
}

// Any reports whether at least one field changed.
func (c ChangedFields) Any() bool { return c.Title || c.Game || c.Viewers }

// Intent is the transition engine's output describing what outbound action is
// warranted. Summary is set only for IntentFinalize.
type Intent struct {
	Kind    IntentKind
	Changed ChangedFields
	Summary *SessionSummary
}
