package dispatch

import (
	"context"
	"log/slog"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// ChatAnnouncer posts one-line go-live announcements into Twitch chat over
// IRC. It satisfies track.Announcer. IRC has no edits; the announcer is only
// used for the initial go-live line.
type ChatAnnouncer struct {
	client *twitch.Client

	mu     sync.Mutex
	joined map[string]bool
}

// NewChatAnnouncer builds an announcer from bot credentials. The oauth token
// must be a user token with chat scopes; the Helix app token will not work
// for IRC.
func NewChatAnnouncer(username, oauthToken string) *ChatAnnouncer {
	return &ChatAnnouncer{
		client: twitch.NewClient(username, oauthToken),
		joined: make(map[string]bool),
	}
}

// Run connects to Twitch IRC and blocks until ctx is cancelled.
func (a *ChatAnnouncer) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := a.client.Disconnect(); err != nil {
			slog.Debug("twitch chat disconnect", slog.Any("err", err))
		}
		close(done)
	}()
	if err := a.client.Connect(); err != nil && ctx.Err() == nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	<-done
}

// Announce posts text into the given channel's chat.
func (a *ChatAnnouncer) Announce(_ context.Context, channel, text string) error {
	a.mu.Lock()
	if !a.joined[channel] {
		a.client.Join(channel)
		a.joined[channel] = true
	}
	a.mu.Unlock()
	a.client.Say(channel, text)
	return nil
}
