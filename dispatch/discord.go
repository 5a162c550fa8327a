// Package dispatch contains the outbound delivery sinks: Discord messages
// (create and edit) and the optional Twitch chat announcer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/stream-herald/track"
)

// DiscordSink delivers payloads as Discord embeds over the REST API. It
// satisfies track.Sink.
type DiscordSink struct {
	session *discordgo.Session
}

// NewDiscordSink builds a sink from a bot token. Only REST calls are used;
// no gateway connection is opened.
func NewDiscordSink(botToken string) (*DiscordSink, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordSink{session: s}, nil
}

func (d *DiscordSink) Send(ctx context.Context, channelID string, p track.Payload) (track.MessageRef, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: p.Mention,
		Embeds:  []*discordgo.MessageEmbed{embedFromPayload(p)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return track.MessageRef{}, fmt.Errorf("send discord message: %w", err)
	}
	return track.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (d *DiscordSink) Edit(ctx context.Context, ref track.MessageRef, p track.Payload) error {
	content := p.Mention
	embeds := []*discordgo.MessageEmbed{embedFromPayload(p)}
	_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: ref.ChannelID,
		ID:      ref.MessageID,
		Content: &content,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		var rest *discordgo.RESTError
		if errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMessage {
			return track.ErrMessageGone
		}
		return fmt.Errorf("edit discord message: %w", err)
	}
	return nil
}

// embedFromPayload maps the sink-agnostic payload onto a Discord embed.
func embedFromPayload(p track.Payload) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       p.Title,
		Description: p.Body,
		URL:         p.URL,
		Color:       p.Color,
	}
	if p.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	if p.ThumbnailURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: p.ThumbnailURL}
	}
	if p.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: p.Footer}
	}
	if !p.Timestamp.IsZero() {
		e.Timestamp = p.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range p.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	return e
}
