package service

import (
	"fmt"
	"strings"

	lifecycle "community-bot-backend/internal/features/lifecycle/models"
	lifecycleservice "community-bot-backend/internal/features/lifecycle/service"
	"community-bot-backend/internal/features/poll/models"
)

const (
	colorOpen   = 0x57F287
	colorClosed = 0x99AAB5
)

var optionEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// VoteButtonID builds the custom id for an option button. kind
// distinguishes scheduled from live polls so the dispatcher can route the
// press to the right manager.
func VoteButtonID(kind, id string, option int) string {
	return fmt.Sprintf("%s:vote:%s:%d", kind, id, option)
}

type renderer struct {
	kind string
}

func (r renderer) RenderOpen(e *lifecycle.Entity[models.Payload], contributions int) lifecycleservice.Announcement {
	var b strings.Builder
	for i, opt := range e.Payload.Options {
		fmt.Fprintf(&b, "%s %s\n", optionEmojis[i], opt)
	}

	a := lifecycleservice.Announcement{
		Title:       "📊 " + e.Payload.Question,
		Description: b.String(),
		Color:       colorOpen,
	}
	for i := range e.Payload.Options {
		a.Buttons = append(a.Buttons, lifecycleservice.Button{
			Emoji:    optionEmojis[i],
			CustomID: VoteButtonID(r.kind, e.ID, i),
		})
	}
	if e.ExpiresAt != nil {
		a.Footer = fmt.Sprintf("Closes <t:%d:R>", e.ExpiresAt.Unix())
	} else {
		a.Footer = "Open until closed by the author"
	}
	return a
}

func (r renderer) RenderResult(e *lifecycle.Entity[models.Payload], result models.Result, contributions int) lifecycleservice.Announcement {
	var b strings.Builder
	for i, opt := range e.Payload.Options {
		count := 0
		if i < len(result.Counts) {
			count = result.Counts[i]
		}
		marker := ""
		for _, w := range result.WinningOptions {
			if w == i {
				marker = " 🏆"
				break
			}
		}
		fmt.Fprintf(&b, "%s %s — **%d**%s\n", optionEmojis[i], opt, count, marker)
	}

	title := "📊 " + e.Payload.Question + " — closed"
	desc := b.String()
	if len(result.WinningOptions) > 1 {
		desc += "\nIt's a tie."
	}
	return lifecycleservice.Announcement{
		Title:       title,
		Description: desc,
		Color:       colorClosed,
		Footer:      fmt.Sprintf("%d votes", result.TotalVotes),
	}
}

func (r renderer) RenderReroll(e *lifecycle.Entity[models.Payload], result models.Result) lifecycleservice.Announcement {
	// Polls are deterministic tallies; a recount renders like a result.
	return r.RenderResult(e, result, result.TotalVotes)
}
