package models

import (
	"errors"
	"time"

	lifecycle "community-bot-backend/internal/features/lifecycle/models"
	"community-bot-backend/internal/utils/random"
)

var (
	ErrInvalidWinnersCount = errors.New("winners count must be greater than 0")
	ErrEmptyPrize          = errors.New("prize must not be empty")
)

// Payload holds the giveaway-specific data of a timed entity.
type Payload struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Prize        string `json:"prize"`
	WinnersCount int    `json:"winners_count"`
}

func (p Payload) Validate() error {
	if p.WinnersCount < 1 {
		return ErrInvalidWinnersCount
	}
	if p.Prize == "" {
		return ErrEmptyPrize
	}
	return nil
}

// Result is the drawn winner set. Rerolls overwrite it without touching the
// entity's ended state.
type Result struct {
	WinnerIDs []string  `json:"winner_ids"`
	DrawnAt   time.Time `json:"drawn_at"`
}

// SelectWinners draws the winner set from the participant set: uniform
// without replacement, min(N, k) winners, no duplicates.
func SelectWinners(participants []string, count int) ([]string, error) {
	seen := make(map[string]struct{}, len(participants))
	unique := make([]string, 0, len(participants))
	for _, id := range participants {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return random.Sample(unique, count)
}

// ComputeResult is the lifecycle compute strategy for giveaways.
func ComputeResult(e *lifecycle.Entity[Payload], contribs []lifecycle.Contribution) (Result, error) {
	participants := make([]string, 0, len(contribs))
	for _, c := range contribs {
		participants = append(participants, c.UserID)
	}
	winners, err := SelectWinners(participants, e.Payload.WinnersCount)
	if err != nil {
		return Result{}, err
	}
	return Result{WinnerIDs: winners, DrawnAt: time.Now()}, nil
}
