package twitchapi

import (
	"errors"
	"net/http"
)

// Sentinel error kinds callers branch on. Helix responses are wrapped with one of
// these so the poller can distinguish "retry next tick" from "refresh the token"
// from "the thing is gone".
var (
	// ErrAuth marks 401/403 responses; the cached app token is stale or the
	// client credentials are wrong.
	ErrAuth = errors.New("twitch: unauthorized")
	// ErrNotFound marks 404 responses (user, game, or clip vanished upstream).
	ErrNotFound = errors.New("twitch: not found")
	// ErrTransient marks rate limiting and 5xx responses; safe to retry on the
	// next tick without any state change.
	ErrTransient = errors.New("twitch: transient upstream error")
)

// classifyStatus maps a non-200 Helix status code to a sentinel error kind,
// or nil for codes with no special handling (e.g. 400).
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return ErrTransient
	default:
		return nil
	}
}
