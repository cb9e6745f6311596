package discord

import (
	"context"
	"errors"
	"time"

	lifecycleservice "community-bot-backend/internal/features/lifecycle/service"

	"github.com/bwmarrin/discordgo"
)

const maxButtonsPerRow = 5

// Publisher implements the lifecycle publisher on top of a discordgo
// session. Every call is bounded by the configured timeout.
type Publisher struct {
	session *discordgo.Session
	timeout time.Duration
}

func NewPublisher(session *discordgo.Session, timeout time.Duration) *Publisher {
	return &Publisher{session: session, timeout: timeout}
}

func (p *Publisher) Publish(ctx context.Context, channelID string, a lifecycleservice.Announcement) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(a)},
		Components: buildComponents(a.Buttons),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *Publisher) Edit(ctx context.Context, channelID, messageID string, a lifecycleservice.Announcement) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	embeds := []*discordgo.MessageEmbed{buildEmbed(a)}
	components := buildComponents(a.Buttons)
	edit := &discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &components,
	}
	_, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Message != nil &&
			restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
			return lifecycleservice.ErrMessageNotFound
		}
		return err
	}
	return nil
}

func buildEmbed(a lifecycleservice.Announcement) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       a.Title,
		Description: a.Description,
		Color:       a.Color,
	}
	for _, f := range a.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if a.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: a.Footer}
	}
	return embed
}

func buildComponents(buttons []lifecycleservice.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}

	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += maxButtonsPerRow {
		end := start + maxButtonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			btn := discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: b.CustomID,
				Disabled: b.Disabled,
			}
			if b.Emoji != "" {
				btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
			}
			row.Components = append(row.Components, btn)
		}
		rows = append(rows, row)
	}
	return rows
}
