package service

import (
	"context"
	"errors"
	"time"

	"community-bot-backend/internal/features/lifecycle/models"
)

// ErrMessageNotFound is returned by Edit when the original announcement
// message no longer exists; the manager falls back to a standalone message.
var ErrMessageNotFound = errors.New("announcement message not found")

// Announcement is the abstract chat content the engine publishes. The
// discord platform package maps it onto an embed with button components.
type Announcement struct {
	Title       string
	Description string
	Fields      []AnnouncementField
	Footer      string
	Color       int
	Buttons     []Button
}

type AnnouncementField struct {
	Name   string
	Value  string
	Inline bool
}

type Button struct {
	Label    string
	CustomID string
	Emoji    string
	Disabled bool
}

// Publisher is the outbound chat capability the engine depends on. Calls
// must be bounded by a timeout and are treated as fallible.
type Publisher interface {
	Publish(ctx context.Context, channelID string, a Announcement) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, a Announcement) error
}

// Renderer builds the announcements for one entity kind.
type Renderer[P, R any] interface {
	RenderOpen(e *models.Entity[P], contributions int) Announcement
	RenderResult(e *models.Entity[P], result R, contributions int) Announcement
	RenderReroll(e *models.Entity[P], result R) Announcement
}

// ComputeFunc turns the contribution set into the kind-specific result:
// winner selection for giveaways, vote tally for polls.
type ComputeFunc[P, R any] func(e *models.Entity[P], contribs []models.Contribution) (R, error)

// Snapshot is the denormalized view served to status commands.
type Snapshot struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	OwnerID       string     `json:"owner_id"`
	ChannelID     string     `json:"channel_id"`
	Active        bool       `json:"active"`
	Ended         bool       `json:"ended"`
	Contributions int        `json:"contributions"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}
