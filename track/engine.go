package track

import (
	"time"

	"github.com/onnwee/stream-herald/twitchapi"
)

// Transition classifies what one snapshot did to a StreamWatch.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionWentLive
	TransitionWentOffline
	TransitionDiscontinuity
	TransitionUpdate
)

func (t Transition) String() string {
	switch t {
	case TransitionWentLive:
		return "went_live"
	case TransitionWentOffline:
		return "went_offline"
	case TransitionDiscontinuity:
		return "discontinuity"
	case TransitionUpdate:
		return "update"
	default:
		return "none"
	}
}

// Advance applies one status snapshot to a StreamWatch and returns the
// transition that occurred plus the outbound message intent it warrants.
// A nil snapshot means the broadcaster is offline upstream.
//
// Advance mutates w but never dispatches or persists; the poller owns both.
// In particular w.Notification is only ever cleared here (at the offline
// reset) and never set: it is assigned by the poller after a send succeeds,
// so a failed dispatch leaves the record retry-able without a duplicate
// "went live".
func Advance(w *StreamWatch, snap *twitchapi.Stream, now time.Time) (Transition, Intent) {
	now = now.UTC()
	w.UpdatedAt = now

	switch {
	case !w.IsLive && snap == nil:
		return TransitionNone, Intent{Kind: IntentNone}

	case !w.IsLive && snap != nil:
		w.IsLive = true
		w.SessionID = snap.ID
		w.SessionStartedAt = now
		w.Stats = Stats{}
		applySnapshot(w, snap)
		return TransitionWentLive, Intent{Kind: IntentCreate}

	case w.IsLive && snap == nil:
		sum := &SessionSummary{
			StartedAt:    w.SessionStartedAt,
			PeakViewers:  w.Stats.PeakViewers,
			AvgViewers:   w.Stats.Average(),
			LastGameID:   w.GameID,
			LastGameName: w.GameName,
			ThumbnailURL: w.ThumbnailURL,
		}
		if !w.SessionStartedAt.IsZero() {
			sum.Duration = now.Sub(w.SessionStartedAt)
		}
		w.resetOffline()
		return TransitionWentOffline, Intent{Kind: IntentFinalize, Summary: sum}

	case snap.ID != w.SessionID:
		// The upstream session was cut and restarted while we observed "live"
		// both sides of the gap. The session continues from the viewer's point
		// of view: stats and the start time are retained, only the upstream id
		// and in-stream metadata move.
		changed := diffSnapshot(w, snap)
		w.SessionID = snap.ID
		applySnapshot(w, snap)
		if w.Notification == nil {
			return TransitionDiscontinuity, Intent{Kind: IntentCreate}
		}
		return TransitionDiscontinuity, Intent{Kind: IntentUpdate, Changed: changed}

	default:
		changed := diffSnapshot(w, snap)
		applySnapshot(w, snap)
		if w.Notification == nil {
			// A previous create failed to dispatch; retry it rather than
			// editing a message that was never sent.
			return TransitionUpdate, Intent{Kind: IntentCreate}
		}
		return TransitionUpdate, Intent{Kind: IntentUpdate, Changed: changed}
	}
}

// applySnapshot copies in-stream metadata from the snapshot and merges the
// viewer sample into the session stats.
func applySnapshot(w *StreamWatch, snap *twitchapi.Stream) {
	w.GameID = snap.GameID
	w.GameName = snap.GameName
	w.Title = snap.Title
	if snap.ThumbnailURL != "" {
		w.ThumbnailURL = snap.ThumbnailURL
	}
	w.LastViewerCount = snap.ViewerCount
	w.Stats.Observe(snap.ViewerCount)
}

func diffSnapshot(w *StreamWatch, snap *twitchapi.Stream) ChangedFields {
	return ChangedFields{
		Title:   snap.Title != w.Title,
		Game:    snap.GameID != w.GameID,
		Viewers: snap.ViewerCount != w.LastViewerCount,
	}
}
