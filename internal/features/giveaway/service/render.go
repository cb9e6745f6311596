package service

import (
	"fmt"
	"strings"

	"community-bot-backend/internal/features/giveaway/models"
	lifecycle "community-bot-backend/internal/features/lifecycle/models"
	lifecycleservice "community-bot-backend/internal/features/lifecycle/service"
)

const (
	colorActive = 0x5865F2
	colorEnded  = 0xED4245
)

// JoinButtonID builds the custom id for the entry button.
func JoinButtonID(id string) string {
	return "giveaway:join:" + id
}

type renderer struct{}

func (renderer) RenderOpen(e *lifecycle.Entity[models.Payload], contributions int) lifecycleservice.Announcement {
	a := lifecycleservice.Announcement{
		Title:       "🎉 " + e.Payload.Title,
		Description: e.Payload.Description,
		Color:       colorActive,
		Fields: []lifecycleservice.AnnouncementField{
			{Name: "Prize", Value: e.Payload.Prize, Inline: true},
			{Name: "Winners", Value: fmt.Sprintf("%d", e.Payload.WinnersCount), Inline: true},
		},
		Buttons: []lifecycleservice.Button{
			{Label: "Enter", CustomID: JoinButtonID(e.ID), Emoji: "🎉"},
		},
	}
	if e.ExpiresAt != nil {
		a.Fields = append(a.Fields, lifecycleservice.AnnouncementField{
			Name:   "Ends",
			Value:  fmt.Sprintf("<t:%d:R>", e.ExpiresAt.Unix()),
			Inline: true,
		})
	}
	a.Footer = fmt.Sprintf("Hosted by %s", mention(e.OwnerID))
	return a
}

func (renderer) RenderResult(e *lifecycle.Entity[models.Payload], result models.Result, contributions int) lifecycleservice.Announcement {
	return lifecycleservice.Announcement{
		Title:       "🎉 " + e.Payload.Title + " — ended",
		Description: winnersLine(result.WinnerIDs, e.Payload.Prize),
		Color:       colorEnded,
		Footer:      fmt.Sprintf("%d entries", contributions),
	}
}

func (renderer) RenderReroll(e *lifecycle.Entity[models.Payload], result models.Result) lifecycleservice.Announcement {
	return lifecycleservice.Announcement{
		Title:       "🎲 Reroll — " + e.Payload.Title,
		Description: winnersLine(result.WinnerIDs, e.Payload.Prize),
		Color:       colorEnded,
	}
}

func winnersLine(winnerIDs []string, prize string) string {
	if len(winnerIDs) == 0 {
		return "No valid entries, no winner could be drawn."
	}
	mentions := make([]string, len(winnerIDs))
	for i, id := range winnerIDs {
		mentions[i] = mention(id)
	}
	return fmt.Sprintf("Congratulations %s! You won **%s**.", strings.Join(mentions, ", "), prize)
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
