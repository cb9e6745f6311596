package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	lifecycle "community-bot-backend/internal/features/lifecycle/models"
)

func TestPayloadValidate(t *testing.T) {
	valid := Payload{Question: "Lunch?", Options: []string{"Pizza", "Sushi"}}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, Payload{Options: []string{"A", "B"}}.Validate(), ErrEmptyQuestion)
	assert.ErrorIs(t, Payload{Question: "q", Options: []string{"A"}}.Validate(), ErrTooFewOptions)

	many := make([]string, MaxOptions+1)
	for i := range many {
		many[i] = "opt"
	}
	assert.ErrorIs(t, Payload{Question: "q", Options: many}.Validate(), ErrTooManyOptions)
}

func TestValidOption(t *testing.T) {
	p := Payload{Question: "q", Options: []string{"A", "B", "C"}}
	assert.True(t, p.ValidOption(0))
	assert.True(t, p.ValidOption(2))
	assert.False(t, p.ValidOption(-1))
	assert.False(t, p.ValidOption(3))
}

func TestTallyCountsAndWinner(t *testing.T) {
	result := Tally([]string{"A", "B", "C"}, []lifecycle.Contribution{
		{UserID: "alice", Option: 0},
		{UserID: "bob", Option: 1},
		{UserID: "carol", Option: 1},
	})

	assert.Equal(t, []int{1, 2, 0}, result.Counts)
	assert.Equal(t, []int{1}, result.WinningOptions)
	assert.Equal(t, 3, result.TotalVotes)
}

func TestTallyReportsCoWinnersOnTie(t *testing.T) {
	result := Tally([]string{"A", "B"}, []lifecycle.Contribution{
		{UserID: "alice", Option: 0},
		{UserID: "bob", Option: 1},
	})

	assert.Equal(t, []int{1, 1}, result.Counts)
	assert.Equal(t, []int{0, 1}, result.WinningOptions)
	assert.Equal(t, 2, result.TotalVotes)
}

func TestTallyIgnoresOutOfRangeVotes(t *testing.T) {
	result := Tally([]string{"A", "B"}, []lifecycle.Contribution{
		{UserID: "alice", Option: 0},
		{UserID: "mallory", Option: 7},
	})

	assert.Equal(t, []int{1, 0}, result.Counts)
	assert.Equal(t, 1, result.TotalVotes)
}

func TestTallyNoVotes(t *testing.T) {
	result := Tally([]string{"A", "B"}, nil)

	assert.Equal(t, []int{0, 0}, result.Counts)
	assert.Empty(t, result.WinningOptions)
	assert.Equal(t, 0, result.TotalVotes)
}
