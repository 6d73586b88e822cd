package services

import (
	"strings"
	"testing"
	"time"

	"questLogAPI/internal/types/challenge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *challenge.CreateChallengeInput {
	max := 10
	return &challenge.CreateChallengeInput{
		Title:       "Summer Backlog Burn",
		Description: "Finish five games from your backlog before autumn.",
		Type:        challenge.TypeCompetitive,
		StartDate:   time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		EndDate:     time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		MaxParticipants: &max,
		Goals: []challenge.GoalInput{
			{Type: challenge.GoalCompleteGames, Target: 5},
		},
		Rewards: []challenge.RewardInput{
			{Type: challenge.RewardBadge, Name: "Backlog Slayer", Description: "Awarded for finishing the backlog burn."},
		},
		Rules: []challenge.RuleInput{
			{Text: "Only games started after the challenge begins count."},
		},
	}
}

func TestValidateChallengeAcceptsValidInput(t *testing.T) {
	result := ValidateChallenge(validInput(), time.Now())
	require.True(t, result.Valid(), "expected valid input, got errors: %v", result.Errors)
	assert.False(t, result.StartDate.IsZero())
	assert.True(t, result.EndDate.After(result.StartDate))
}

func TestValidateChallengeCompetitiveRequiresMaxParticipants(t *testing.T) {
	input := validInput()
	input.MaxParticipants = nil

	result := ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())
	assert.Equal(t, "maxParticipants", result.Errors[0].Field)

	// The identical definition as collaborative is fine.
	input.Type = challenge.TypeCollaborative
	result = ValidateChallenge(input, time.Now())
	assert.True(t, result.Valid(), "collaborative without maxParticipants should pass: %v", result.Errors)
}

func TestValidateChallengeTitleRules(t *testing.T) {
	cases := []struct {
		name  string
		title string
		ok    bool
	}{
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 101), false},
		{"bad characters", "Speedrun!!", false},
		{"hyphen and underscore ok", "co-op_marathon 2026", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			input.Title = tc.title
			result := ValidateChallenge(input, time.Now())
			assert.Equal(t, tc.ok, result.Valid(), "errors: %v", result.Errors)
		})
	}
}

func TestValidateChallengeDateRules(t *testing.T) {
	input := validInput()
	input.StartDate = time.Now().Add(-time.Hour).Format(time.RFC3339)
	result := ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	input.EndDate = input.StartDate
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	input.StartDate = "next tuesday"
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())
	assert.Equal(t, "startDate", result.Errors[0].Field)
}

func TestValidateChallengeCollectionBounds(t *testing.T) {
	input := validInput()
	input.Goals = nil
	result := ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	for i := 0; i < 6; i++ {
		input.Goals = append(input.Goals, challenge.GoalInput{Type: challenge.GoalCompleteGames, Target: 1})
	}
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	input.Goals[0].Target = 0
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	input.Goals[0].Target = 1000001
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	input.Rules = []challenge.RuleInput{{Text: "shrt"}}
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())

	input = validInput()
	input.Rewards[0].Name = "ab"
	result = ValidateChallenge(input, time.Now())
	require.False(t, result.Valid())
}

func TestValidationResultFirstMessage(t *testing.T) {
	result := &ValidationResult{}
	assert.Equal(t, "", result.FirstMessage())

	result.add("title", "must be 3-100 characters")
	assert.Equal(t, "title: must be 3-100 characters", result.FirstMessage())
}
