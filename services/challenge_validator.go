package services

import (
	"fmt"
	"regexp"
	"time"

	"questLogAPI/internal/types/challenge"
)

// Limits for challenge definitions. Mirrors what the client-side schema
// enforces so a bad payload never reaches the store.
const (
	titleMinLen       = 3
	titleMaxLen       = 100
	descriptionMinLen = 10
	descriptionMaxLen = 1000
	goalsMax          = 5
	goalTargetMax     = 1000000
	goalDescMinLen    = 5
	goalDescMaxLen    = 200
	rewardsMax        = 5
	rewardNameMinLen  = 3
	rewardNameMaxLen  = 50
	rewardDescMinLen  = 10
	rewardDescMaxLen  = 200
	rulesMax          = 10
	ruleMinLen        = 5
	ruleMaxLen        = 200
	maxParticipantCap = 100
)

var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// FieldError points at the offending field so callers can render inline
// feedback.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the typed outcome of ValidateChallenge. It never
// panics or returns a Go error; callers check Valid().
type ValidationResult struct {
	Errors []FieldError `json:"errors,omitempty"`

	// StartDate and EndDate carry the parsed datetimes on success so the
	// service does not parse twice.
	StartDate time.Time `json:"-"`
	EndDate   time.Time `json:"-"`
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// FirstMessage summarizes the result for a single-line error response.
func (r *ValidationResult) FirstMessage() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Errors[0].Field, r.Errors[0].Message)
}

// ValidateChallenge checks a challenge definition against the creation
// rules. Pure and side-effect free.
func ValidateChallenge(input *challenge.CreateChallengeInput, now time.Time) *ValidationResult {
	result := &ValidationResult{}

	if len(input.Title) < titleMinLen || len(input.Title) > titleMaxLen {
		result.add("title", fmt.Sprintf("must be %d-%d characters", titleMinLen, titleMaxLen))
	} else if !titlePattern.MatchString(input.Title) {
		result.add("title", "may only contain letters, digits, spaces, hyphens and underscores")
	}

	if len(input.Description) < descriptionMinLen || len(input.Description) > descriptionMaxLen {
		result.add("description", fmt.Sprintf("must be %d-%d characters", descriptionMinLen, descriptionMaxLen))
	}

	switch input.Type {
	case challenge.TypeCompetitive, challenge.TypeCollaborative:
	default:
		result.add("type", "must be 'competitive' or 'collaborative'")
	}

	startDate, err := time.Parse(time.RFC3339, input.StartDate)
	if err != nil {
		result.add("startDate", "must be an ISO 8601 datetime")
	}
	endDate, err := time.Parse(time.RFC3339, input.EndDate)
	if err != nil {
		result.add("endDate", "must be an ISO 8601 datetime")
	}
	if !startDate.IsZero() && !endDate.IsZero() {
		if !startDate.After(now) {
			result.add("startDate", "must be in the future")
		}
		if !endDate.After(startDate) {
			result.add("endDate", "must be after startDate")
		}
	}
	result.StartDate = startDate
	result.EndDate = endDate

	if len(input.Goals) < 1 || len(input.Goals) > goalsMax {
		result.add("goals", fmt.Sprintf("must have 1-%d entries", goalsMax))
	}
	for i, goal := range input.Goals {
		if goal.Target < 1 || goal.Target > goalTargetMax {
			result.add(fmt.Sprintf("goals[%d].target", i), fmt.Sprintf("must be a positive number up to %d", goalTargetMax))
		}
		if goal.Description != nil {
			if len(*goal.Description) < goalDescMinLen || len(*goal.Description) > goalDescMaxLen {
				result.add(fmt.Sprintf("goals[%d].description", i), fmt.Sprintf("must be %d-%d characters", goalDescMinLen, goalDescMaxLen))
			}
		}
	}

	if len(input.Rewards) < 1 || len(input.Rewards) > rewardsMax {
		result.add("rewards", fmt.Sprintf("must have 1-%d entries", rewardsMax))
	}
	for i, reward := range input.Rewards {
		if len(reward.Name) < rewardNameMinLen || len(reward.Name) > rewardNameMaxLen {
			result.add(fmt.Sprintf("rewards[%d].name", i), fmt.Sprintf("must be %d-%d characters", rewardNameMinLen, rewardNameMaxLen))
		}
		if len(reward.Description) < rewardDescMinLen || len(reward.Description) > rewardDescMaxLen {
			result.add(fmt.Sprintf("rewards[%d].description", i), fmt.Sprintf("must be %d-%d characters", rewardDescMinLen, rewardDescMaxLen))
		}
		switch reward.Type {
		case challenge.RewardBadge, challenge.RewardPoints, challenge.RewardTitle:
		default:
			result.add(fmt.Sprintf("rewards[%d].type", i), "must be 'badge', 'points' or 'title'")
		}
	}

	if len(input.Rules) < 1 || len(input.Rules) > rulesMax {
		result.add("rules", fmt.Sprintf("must have 1-%d entries", rulesMax))
	}
	for i, rule := range input.Rules {
		if len(rule.Text) < ruleMinLen || len(rule.Text) > ruleMaxLen {
			result.add(fmt.Sprintf("rules[%d]", i), fmt.Sprintf("must be %d-%d characters", ruleMinLen, ruleMaxLen))
		}
	}

	if input.Type == challenge.TypeCompetitive {
		if input.MaxParticipants == nil {
			result.add("maxParticipants", "required for competitive challenges")
		} else if *input.MaxParticipants < 1 || *input.MaxParticipants > maxParticipantCap {
			result.add("maxParticipants", fmt.Sprintf("must be 1-%d", maxParticipantCap))
		}
	} else if input.MaxParticipants != nil && *input.MaxParticipants < 1 {
		result.add("maxParticipants", "must be positive when set")
	}

	if input.MinParticipants < 0 {
		result.add("minParticipants", "must not be negative")
	}

	return result
}
