package bot

import "github.com/bwmarrin/discordgo"

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "giveaway",
			Description: "Run giveaways in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "start",
					Description: "Start a new giveaway",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "prize", Description: "What the winners get", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "duration", Description: "How long it runs, e.g. 1h30m", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "winners", Description: "Number of winners", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
						{Name: "title", Description: "Announcement title", Type: discordgo.ApplicationCommandOptionString},
						{Name: "description", Description: "Announcement text", Type: discordgo.ApplicationCommandOptionString},
					},
				},
				{
					Name:        "end",
					Description: "End a giveaway now",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "id", Description: "Giveaway id", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Name:        "reroll",
					Description: "Redraw the winners of an ended giveaway",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "id", Description: "Giveaway id", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
				{
					Name:        "info",
					Description: "Show the status of a giveaway",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "id", Description: "Giveaway id", Type: discordgo.ApplicationCommandOptionString, Required: true},
					},
				},
			},
		},
		{
			Name:        "poll",
			Description: "Run polls in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "create",
					Description: "Create a poll",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "question", Description: "The question to ask", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "options", Description: "Answer options, separated by semicolons", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "duration", Description: "How long it runs, e.g. 2h; omit for a live poll", Type: discordgo.ApplicationCommandOptionString},
					},
				},
				{
					Name:        "close",
					Description: "Close a poll now",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "id", Description: "Poll id", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "live", Description: "Whether this is a live poll", Type: discordgo.ApplicationCommandOptionBoolean},
					},
				},
				{
					Name:        "results",
					Description: "Show the tally of a closed poll",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Name: "id", Description: "Poll id", Type: discordgo.ApplicationCommandOptionString, Required: true},
						{Name: "live", Description: "Whether this is a live poll", Type: discordgo.ApplicationCommandOptionBoolean},
					},
				},
			},
		},
	}
}
