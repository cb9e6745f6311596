package bot

import (
	"context"
	"strings"
	"time"

	apperrors "community-bot-backend/internal/common/errors"
	"community-bot-backend/internal/common/logger"
	giveawayservice "community-bot-backend/internal/features/giveaway/service"
	pollservice "community-bot-backend/internal/features/poll/service"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const handlerTimeout = 10 * time.Second

// Bot routes slash commands and button presses to the lifecycle services.
// It is deliberately thin: every path ends in one of the four manager
// operations (create, contribute, end now, reroll) or a read.
type Bot struct {
	session   *discordgo.Session
	giveaways *giveawayservice.Service
	polls     *pollservice.Service
	guildID   string
	logger    zerolog.Logger

	registered []*discordgo.ApplicationCommand
}

func New(session *discordgo.Session, giveaways *giveawayservice.Service, polls *pollservice.Service, guildID string) *Bot {
	b := &Bot{
		session:   session,
		giveaways: giveaways,
		polls:     polls,
		guildID:   guildID,
		logger:    logger.With("bot"),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteractionCreate)
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return b
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info().Str("username", r.User.Username).Msg("Connected to Discord gateway")
}

// RegisterCommands creates the slash commands, scoped to one guild when
// configured, globally otherwise.
func (b *Bot) RegisterCommands() error {
	for _, cmd := range commandDefinitions() {
		created, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, cmd)
		if err != nil {
			return err
		}
		b.registered = append(b.registered, created)
	}
	b.logger.Info().Int("commands", len(b.registered)).Msg("Slash commands registered")
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "giveaway":
			b.handleGiveawayCommand(ctx, s, i, data)
		case "poll":
			b.handlePollCommand(ctx, s, i, data)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	}
}

// handleComponent routes button presses by custom id:
// "giveaway:join:<id>" and "<kind>:vote:<id>:<option>".
func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	parts := strings.Split(i.MessageComponentData().CustomID, ":")
	if len(parts) < 3 {
		return
	}
	switch {
	case parts[0] == "giveaway" && parts[1] == "join":
		b.handleGiveawayJoin(ctx, s, i, parts[2])
	case parts[1] == "vote" && len(parts) == 4:
		b.handleVote(ctx, s, i, parts[0], parts[2], parts[3])
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to respond to interaction")
	}
}

// replyError surfaces validation errors to the user and hides
// infrastructure errors behind a generic message.
func (b *Bot) replyError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsValidation() {
		b.replyEphemeral(s, i, appErr.Message)
		return
	}
	b.logger.Error().Err(err).Msg("Command failed")
	b.replyEphemeral(s, i, "Something went wrong, please try again later.")
}

// optionMap indexes subcommand options by name.
func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}
