package activity

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityFriendRequest      ActivityType = "friend_request"
	ActivityFriendAccepted     ActivityType = "friend_accepted"
	ActivityChallengeJoined    ActivityType = "challenge_joined"
	ActivityChallengeCompleted ActivityType = "challenge_completed"
	ActivityRewardClaimed      ActivityType = "reward_claimed"
)

// Activity is one feed entry. UserID is who sees it, ActorID is who caused
// it (nil for self-generated entries like completing a challenge).
type Activity struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty" db:"actor_id"`
	Type      ActivityType   `json:"type" db:"type"`
	Message   string         `json:"message" db:"message"`
	Data      map[string]any `json:"data,omitempty" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type FeedResponse struct {
	Activities []*Activity `json:"activities"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalCount int         `json:"total_count"`
}
