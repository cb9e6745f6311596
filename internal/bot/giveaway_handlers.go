package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	giveawaymodels "community-bot-backend/internal/features/giveaway/models"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleGiveawayCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "start":
		b.handleGiveawayStart(ctx, s, i, opts)
	case "end":
		if err := b.giveaways.End(ctx, opts["id"].StringValue(), interactionUserID(i)); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.replyEphemeral(s, i, "Giveaway ended.")
	case "reroll":
		result, err := b.giveaways.Reroll(ctx, opts["id"].StringValue())
		if err != nil {
			b.replyError(s, i, err)
			return
		}
		b.replyEphemeral(s, i, fmt.Sprintf("Rerolled, %d winner(s) drawn.", len(result.WinnerIDs)))
	case "info":
		snap, err := b.giveaways.Summary(ctx, opts["id"].StringValue())
		if err != nil {
			b.replyError(s, i, err)
			return
		}
		status := "active"
		if snap.Ended {
			status = "ended"
		}
		b.replyEphemeral(s, i, fmt.Sprintf("Status: %s, entries: %d", status, snap.Contributions))
	}
}

func (b *Bot) handleGiveawayStart(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	duration, err := time.ParseDuration(opts["duration"].StringValue())
	if err != nil {
		b.replyEphemeral(s, i, "Invalid duration, use values like 30m or 1h30m.")
		return
	}

	payload := giveawaymodels.Payload{
		Prize:        opts["prize"].StringValue(),
		WinnersCount: int(opts["winners"].IntValue()),
	}
	if o, ok := opts["title"]; ok {
		payload.Title = o.StringValue()
	}
	if payload.Title == "" {
		payload.Title = "Giveaway: " + payload.Prize
	}
	if o, ok := opts["description"]; ok {
		payload.Description = o.StringValue()
	}

	g, err := b.giveaways.Create(ctx, interactionUserID(i), i.ChannelID, payload, duration)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	b.replyEphemeral(s, i, fmt.Sprintf("Giveaway started, id `%s`.", g.ID))
}

func (b *Bot) handleGiveawayJoin(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	err := b.giveaways.Join(ctx, id, interactionUserID(i))
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	b.replyEphemeral(s, i, "You're in! 🎉")
}

// handleVote routes a poll vote button press.
func (b *Bot) handleVote(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, kind, id, rawOption string) {
	option := -1
	if _, err := fmt.Sscanf(strings.TrimSpace(rawOption), "%d", &option); err != nil {
		return
	}
	if err := b.polls.Vote(ctx, kind, id, interactionUserID(i), option); err != nil {
		b.replyError(s, i, err)
		return
	}
	b.replyEphemeral(s, i, "Vote recorded.")
}
