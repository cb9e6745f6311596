package models

import (
	"errors"
	"time"
)

var (
	ErrEntityEnded    = errors.New("entity has already ended")
	ErrEntityExpired  = errors.New("entity has expired")
	ErrEntityInactive = errors.New("entity is not active")
)

// ContributionPolicy controls what happens when a user contributes twice.
type ContributionPolicy int

const (
	// SingleContribution rejects a second contribution from the same user.
	SingleContribution ContributionPolicy = iota
	// ReplaceContribution overwrites the previous contribution (revote).
	ReplaceContribution
)

// Entity is the generic timed record shared by giveaways and polls. Exactly
// one of {active, ended} holds after creation; ExpiresAt is immutable once
// set, nil means the entity never auto-expires and must be ended manually.
type Entity[P any] struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	ChannelID string     `json:"channel_id"`
	MessageID string     `json:"message_id,omitempty"`
	Payload   P          `json:"payload"`
	Active    bool       `json:"active"`
	Ended     bool       `json:"ended"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// HasExpired reports whether the natural end time has passed.
func (e *Entity[P]) HasExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// AcceptsContributions reports whether the entity can still take entries or
// votes at the given instant.
func (e *Entity[P]) AcceptsContributions(now time.Time) error {
	if e.Ended {
		return ErrEntityEnded
	}
	if !e.Active {
		return ErrEntityInactive
	}
	if e.HasExpired(now) {
		return ErrEntityExpired
	}
	return nil
}

// Clone returns a shallow copy safe to hand outside the cache.
func (e *Entity[P]) Clone() *Entity[P] {
	cp := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		cp.ExpiresAt = &t
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

// Contribution is a single participant entry or vote. Giveaway entries leave
// Option at zero; polls store the chosen option index.
type Contribution struct {
	UserID string    `json:"user_id"`
	Option int       `json:"option"`
	At     time.Time `json:"at"`
}
