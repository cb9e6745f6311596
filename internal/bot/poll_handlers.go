package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	pollmodels "community-bot-backend/internal/features/poll/models"
	pollservice "community-bot-backend/internal/features/poll/service"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handlePollCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "create":
		b.handlePollCreate(ctx, s, i, opts)
	case "close":
		if err := b.polls.Close(ctx, pollKind(opts), opts["id"].StringValue(), interactionUserID(i)); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.replyEphemeral(s, i, "Poll closed.")
	case "results":
		result, err := b.polls.Result(ctx, pollKind(opts), opts["id"].StringValue())
		if err != nil {
			b.replyError(s, i, err)
			return
		}
		b.replyEphemeral(s, i, formatTally(result))
	}
}

func pollKind(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	if o, ok := opts["live"]; ok && o.BoolValue() {
		return pollservice.KindLive
	}
	return pollservice.KindScheduled
}

func (b *Bot) handlePollCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	var options []string
	for _, o := range strings.Split(opts["options"].StringValue(), ";") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			options = append(options, trimmed)
		}
	}

	payload := pollmodels.Payload{
		Question: opts["question"].StringValue(),
		Options:  options,
	}

	var duration *time.Duration
	if o, ok := opts["duration"]; ok {
		d, err := time.ParseDuration(o.StringValue())
		if err != nil {
			b.replyEphemeral(s, i, "Invalid duration, use values like 30m or 2h.")
			return
		}
		duration = &d
	}

	p, err := b.polls.Create(ctx, interactionUserID(i), i.ChannelID, payload, duration)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	b.replyEphemeral(s, i, fmt.Sprintf("Poll created, id `%s`.", p.ID))
}

func formatTally(result pollmodels.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d votes.", result.TotalVotes)
	if len(result.WinningOptions) == 1 {
		fmt.Fprintf(&b, " Winning option: #%d.", result.WinningOptions[0]+1)
	} else if len(result.WinningOptions) > 1 {
		nums := make([]string, len(result.WinningOptions))
		for i, w := range result.WinningOptions {
			nums[i] = fmt.Sprintf("#%d", w+1)
		}
		fmt.Fprintf(&b, " Tie between options %s.", strings.Join(nums, ", "))
	}
	return b.String()
}
