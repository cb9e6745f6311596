package models

import (
	"errors"
	"fmt"

	lifecycle "community-bot-backend/internal/features/lifecycle/models"
)

const MaxOptions = 10

var (
	ErrTooFewOptions  = errors.New("poll needs at least two options")
	ErrTooManyOptions = fmt.Errorf("poll supports at most %d options", MaxOptions)
	ErrEmptyQuestion  = errors.New("question must not be empty")
	ErrInvalidOption  = errors.New("option index out of range")
)

// Payload holds the poll-specific data of a timed entity, shared by
// scheduled and live polls.
type Payload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (p Payload) Validate() error {
	if p.Question == "" {
		return ErrEmptyQuestion
	}
	if len(p.Options) < 2 {
		return ErrTooFewOptions
	}
	if len(p.Options) > MaxOptions {
		return ErrTooManyOptions
	}
	return nil
}

// ValidOption reports whether the option index exists.
func (p Payload) ValidOption(option int) bool {
	return option >= 0 && option < len(p.Options)
}

// Result is the tally. Ties produce several winning options, never an
// arbitrary single pick.
type Result struct {
	Counts         []int `json:"counts"`
	WinningOptions []int `json:"winning_options"`
	TotalVotes     int   `json:"total_votes"`
}

// Tally counts votes per option and determines the co-winner set.
func Tally(options []string, contribs []lifecycle.Contribution) Result {
	counts := make([]int, len(options))
	total := 0
	for _, c := range contribs {
		if c.Option < 0 || c.Option >= len(counts) {
			continue
		}
		counts[c.Option]++
		total++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}

	var winners []int
	if max > 0 {
		for i, n := range counts {
			if n == max {
				winners = append(winners, i)
			}
		}
	}

	return Result{Counts: counts, WinningOptions: winners, TotalVotes: total}
}

// ComputeResult is the lifecycle compute strategy for polls.
func ComputeResult(e *lifecycle.Entity[Payload], contribs []lifecycle.Contribution) (Result, error) {
	return Tally(e.Payload.Options, contribs), nil
}
