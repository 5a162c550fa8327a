package dispatch

import (
	"context"

	"github.com/onnwee/stream-herald/track"
)

// NopSink swallows payloads. Used when no Discord token is configured so
// status tracking keeps running without dispatch.
type NopSink struct{}

func (NopSink) Send(context.Context, string, track.Payload) (track.MessageRef, error) {
	return track.MessageRef{}, nil
}

func (NopSink) Edit(context.Context, track.MessageRef, track.Payload) error {
	return nil
}
