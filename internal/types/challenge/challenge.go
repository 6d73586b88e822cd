package challenge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ChallengeType string

const (
	TypeCompetitive   ChallengeType = "competitive"
	TypeCollaborative ChallengeType = "collaborative"
)

type ChallengeStatus string

const (
	StatusUpcoming  ChallengeStatus = "upcoming"
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
)

type GoalType string

const (
	GoalCompleteGames GoalType = "complete_games"
	GoalPlayHours     GoalType = "play_hours"
	GoalEarnScore     GoalType = "earn_score"
)

type RewardType string

const (
	RewardBadge  RewardType = "badge"
	RewardPoints RewardType = "points"
	RewardTitle  RewardType = "title"
)

type Challenge struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description" db:"description"`
	Type             ChallengeType   `json:"type" db:"type"`
	Status           ChallengeStatus `json:"status" db:"status"`
	StartDate        time.Time       `json:"start_date" db:"start_date"`
	EndDate          time.Time       `json:"end_date" db:"end_date"`
	MinParticipants  int             `json:"min_participants" db:"min_participants"`
	MaxParticipants  *int            `json:"max_participants,omitempty" db:"max_participants"`
	ParticipantCount int             `json:"participant_count" db:"participant_count"`
	CreatorID        uuid.UUID       `json:"creator_id" db:"creator_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus derives the lifecycle phase from the challenge dates.
// The stored status column is a snapshot from creation time; gating checks
// use this derived value so no scheduled job is needed to flip rows.
func (c *Challenge) EffectiveStatus(now time.Time) ChallengeStatus {
	if now.Before(c.StartDate) {
		return StatusUpcoming
	}
	if now.Before(c.EndDate) {
		return StatusActive
	}
	return StatusCompleted
}

type Goal struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Type        GoalType  `json:"type" db:"type"`
	Target      int       `json:"target" db:"target"`
	Description *string   `json:"description,omitempty" db:"description"`
}

// ProgressIncrement is the percentage one completed unit of this goal is
// worth, so target units of work land on exactly 100.
func (g *Goal) ProgressIncrement() int {
	if g.Target <= 0 {
		return 0
	}
	return int(float64(100)/float64(g.Target) + 0.5)
}

type Reward struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ChallengeID uuid.UUID  `json:"challenge_id" db:"challenge_id"`
	Type        RewardType `json:"type" db:"type"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	BadgeID     *uuid.UUID `json:"badge_id,omitempty" db:"badge_id"`
	Points      *int       `json:"points,omitempty" db:"points"`
}

type Badge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IconURL     string    `json:"icon_url" db:"icon_url"`
}

type Rule struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Text        string    `json:"text" db:"text"`
}

type Participant struct {
	ChallengeID uuid.UUID  `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	TeamID      *uuid.UUID `json:"team_id,omitempty" db:"team_id"`
	Progress    int        `json:"progress" db:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	JoinedAt    time.Time  `json:"joined_at" db:"joined_at"`
}

// ClaimedReward prevents double-claiming: one row per (participant, reward).
type ClaimedReward struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	RewardID    uuid.UUID `json:"reward_id" db:"reward_id"`
	ClaimedAt   time.Time `json:"claimed_at" db:"claimed_at"`
}

// ChallengeDetail is the aggregate returned by GetChallenge.
type ChallengeDetail struct {
	Challenge Challenge `json:"challenge"`
	Goals     []*Goal   `json:"goals"`
	Rewards   []*Reward `json:"rewards"`
	Rules     []string  `json:"rules"`
}

type GoalInput struct {
	Type        GoalType `json:"type"`
	Target      int      `json:"target"`
	Description *string  `json:"description,omitempty"`
}

type RewardInput struct {
	Type        RewardType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Points      *int       `json:"points,omitempty"`
	BadgeIcon   string     `json:"badgeIcon,omitempty"`
}

// RuleInput accepts either a bare JSON string or a {"rule": "..."} object;
// both normalize to the Text field.
type RuleInput struct {
	Text string
}

func (r *RuleInput) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Text)
	}
	var obj struct {
		Rule string `json:"rule"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Text = obj.Rule
	return nil
}

func (r RuleInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Text)
}

type CreateChallengeInput struct {
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Type            ChallengeType `json:"type"`
	StartDate       string        `json:"startDate"`
	EndDate         string        `json:"endDate"`
	MinParticipants int           `json:"minParticipants"`
	MaxParticipants *int          `json:"maxParticipants,omitempty"`
	Goals           []GoalInput   `json:"goals"`
	Rewards         []RewardInput `json:"rewards"`
	Rules           []RuleInput   `json:"rules"`
}

type SetProgressInput struct {
	Progress int `json:"progress"`
}

type AddProgressInput struct {
	GoalID string `json:"goalId"`
	Steps  int    `json:"steps"`
}
