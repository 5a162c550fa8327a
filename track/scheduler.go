package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/stream-herald/telemetry"
	"github.com/onnwee/stream-herald/twitchapi"
)

// StreamAPI is the status fetcher: nil stream means offline upstream.
type StreamAPI interface {
	GetStream(ctx context.Context, userID string) (*twitchapi.Stream, error)
}

// TokenGetter supplies a valid bearer token, refreshing lazily.
type TokenGetter interface {
	Get(ctx context.Context) (string, error)
}

// Sink delivers rendered payloads. Edit returns ErrMessageGone when the
// target no longer exists.
type Sink interface {
	Send(ctx context.Context, channelID string, p Payload) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, p Payload) error
}

// Announcer posts a plain-text go-live line into a chat channel. Optional.
type Announcer interface {
	Announce(ctx context.Context, channel, text string) error
}

// Poller drives the whole pipeline once per interval: for every tenant, for
// every watched broadcaster, sequentially fetch → advance → render → dispatch
// → persist. Ticks never overlap; the loop only rearms after a tick fully
// completes, so an overrun delays the next tick rather than racing it.
type Poller struct {
	Store     Store
	API       StreamAPI
	Tokens    TokenGetter
	Renderer  *Renderer
	Sink      Sink
	Announcer Announcer // optional Twitch chat announce
	Interval  time.Duration

	// Now is a test hook; defaults to time.Now.
	Now func() time.Time
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes ticks until ctx is cancelled. The in-flight entity finishes
// before exit; no further ticks are scheduled.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("stream poller starting", slog.Duration("interval", interval))
	// Kick an immediate tick so we don't wait a full interval after boot.
	if err := p.Tick(ctx); err != nil {
		slog.Warn("poll tick", slog.Any("err", err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("stream poller stopped")
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				slog.Warn("poll tick", slog.Any("err", err))
			}
		}
	}
}

// Tick polls every watched broadcaster of every tenant once. A single
// entity's failure is isolated; a missing token skips the whole tick
// (fail-fast, retried next period).
func (p *Poller) Tick(ctx context.Context) error {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "track", "poll.tick")
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx)
	start := p.now()
	telemetry.IncTick()

	if _, err := p.Tokens.Get(ctx); err != nil {
		telemetry.IncTickSkipped()
		return fmt.Errorf("tick skipped, no token: %w", err)
	}

	tenants, err := p.Store.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	live := 0
	for _, tc := range tenants {
		watches, err := p.Store.ListAll(ctx, tc.Tenant)
		if err != nil {
			log.Warn("list watches", slog.String("tenant", tc.Tenant), slog.Any("err", err))
			continue
		}
		for i := range watches {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w := watches[i]
			if err := p.pollOne(ctx, tc, &w); err != nil {
				telemetry.IncPollError()
				log.Warn("poll entity",
					slog.String("tenant", tc.Tenant),
					slog.String("entity", w.EntityID),
					slog.String("login", w.Login),
					slog.Any("err", err))
			}
			if w.IsLive {
				live++
			}
		}
	}
	telemetry.SetLiveWatches(live)
	telemetry.ObserveTickDuration(p.now().Sub(start))
	return nil
}

// pollOne runs the fetch → advance → render → dispatch → persist pipeline for
// one broadcaster. The record is persisted exactly once, after dispatch, so a
// delivery failure still lands the new upstream truth, with the notification
// ref left alone for a later retry.
func (p *Poller) pollOne(ctx context.Context, tc TenantConfig, w *StreamWatch) error {
	ctx, span := telemetry.StartSpan(ctx, "track", "poll.entity")
	defer span.End()

	snap, err := p.API.GetStream(ctx, w.EntityID)
	if err != nil {
		if errors.Is(err, twitchapi.ErrNotFound) {
			// A vanished upstream entity reads as offline, not as a failure.
			snap = nil
		} else {
			return err
		}
	}

	tr, intent := Advance(w, snap, p.now())
	if tr == TransitionNone {
		return nil
	}
	telemetry.IncTransition(tr.String())
	log := telemetry.LoggerWithCorr(ctx)

	// A tenant without a live destination keeps status tracking but sends
	// nothing.
	if tc.LiveChannelID != "" {
		p.dispatch(ctx, tc, w, tr, intent, log)
	}

	if err := p.Store.Put(ctx, w); err != nil {
		// The in-memory mutation dies with this call; the next tick re-reads
		// the stored record and re-derives the transition.
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (p *Poller) dispatch(ctx context.Context, tc TenantConfig, w *StreamWatch, tr Transition, intent Intent, log *slog.Logger) {
	switch intent.Kind {
	case IntentCreate:
		payload := p.Renderer.RenderLive(ctx, w)
		ref, err := p.Sink.Send(ctx, tc.LiveChannelID, payload)
		if err != nil {
			telemetry.IncDispatchFailure("create")
			log.Warn("send live notification", slog.String("login", w.Login), slog.Any("err", err))
		} else if ref.MessageID != "" {
			w.Notification = &ref
			log.Info("sent live notification", slog.String("login", w.Login), slog.String("message", ref.MessageID))
		}
		if tr == TransitionWentLive && p.Announcer != nil && tc.ChatAnnounceLogin != "" {
			if err := p.Announcer.Announce(ctx, tc.ChatAnnounceLogin, p.Renderer.RenderAnnounceLine(w)); err != nil {
				log.Warn("chat announce", slog.String("login", w.Login), slog.Any("err", err))
			}
		}

	case IntentUpdate:
		if w.Notification == nil || !intent.Changed.Any() {
			return
		}
		payload := p.Renderer.RenderLive(ctx, w)
		err := p.Sink.Edit(ctx, *w.Notification, payload)
		switch {
		case errors.Is(err, ErrMessageGone):
			// Someone deleted the live message; drop the stale ref and let
			// the next tick re-create it.
			w.Notification = nil
			log.Info("live message gone, will recreate", slog.String("login", w.Login))
		case err != nil:
			telemetry.IncDispatchFailure("update")
			log.Warn("edit live notification", slog.String("login", w.Login), slog.Any("err", err))
		}

	case IntentFinalize:
		payload := p.Renderer.RenderSummary(ctx, w, intent.Summary)
		if _, err := p.Sink.Send(ctx, tc.LiveChannelID, payload); err != nil {
			telemetry.IncDispatchFailure("finalize")
			log.Warn("send stream summary", slog.String("login", w.Login), slog.Any("err", err))
		}
		if tc.ClipsChannelID != "" {
			if clips, ok := p.Renderer.RenderClips(ctx, w, intent.Summary.StartedAt); ok {
				if _, err := p.Sink.Send(ctx, tc.ClipsChannelID, clips); err != nil {
					log.Warn("send clips summary", slog.String("login", w.Login), slog.Any("err", err))
				}
			}
		}
	}
}
