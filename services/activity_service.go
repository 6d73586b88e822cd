package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"questLogAPI/internal/apperr"
	"questLogAPI/internal/types/activity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushProvider delivers a push notification for an activity entry.
// Satisfied by internal/push.FCMService.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]any) error
}

// ActivityService is the fire-and-forget sink for domain events. Record
// never propagates failures to callers: a lost feed entry must not abort a
// friendship or challenge transition.
type ActivityService struct {
	db           *pgxpool.Pool
	pushProvider PushProvider
}

func NewActivityService(db *pgxpool.Pool) *ActivityService {
	return &ActivityService{db: db}
}

func (s *ActivityService) SetPushProvider(p PushProvider) {
	s.pushProvider = p
}

// Record inserts a feed entry for userID. Errors are logged and swallowed.
func (s *ActivityService) Record(ctx context.Context, userID uuid.UUID, actorID *uuid.UUID, actType activity.ActivityType, message string, data map[string]any) {
	dataJSON, _ := json.Marshal(data)

	query := `
	INSERT INTO activities (id, user_id, actor_id, type, message, data, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := s.db.Exec(ctx, query, uuid.New(), userID, actorID, actType, message, dataJSON)
	if err != nil {
		log.Printf("Activity: failed to record %s for user %s: %v", actType, userID, err)
		return
	}

	if s.pushProvider != nil {
		go s.dispatchPush(userID, string(actType), message, data)
	}
}

func (s *ActivityService) dispatchPush(userID uuid.UUID, title, body string, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Activity: failed to load device tokens for %s: %v", userID, err)
		return
	}

	if err := s.pushProvider.SendPush(ctx, tokens, title, body, data); err != nil {
		log.Printf("Activity: push dispatch failed for %s: %v", userID, err)
	}
}

func (s *ActivityService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *ActivityService) RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	query := `
	INSERT INTO device_tokens (user_id, token, added_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (user_id, token) DO UPDATE SET last_used = NOW()
	`
	_, err := s.db.Exec(ctx, query, userID, token)
	if err != nil {
		return apperr.Persistence(err, "failed to register device")
	}
	return nil
}

// Feed returns the user's activity entries, newest first.
func (s *ActivityService) Feed(ctx context.Context, userID uuid.UUID, page, pageSize int) (*activity.FeedResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := `
	SELECT id, user_id, actor_id, type, message, data, created_at
	FROM activities
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch activity feed")
	}
	defer rows.Close()

	var activities []*activity.Activity
	for rows.Next() {
		a := &activity.Activity{}
		var dataStr string
		err := rows.Scan(&a.ID, &a.UserID, &a.ActorID, &a.Type, &a.Message, &dataStr, &a.CreatedAt)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to scan activity")
		}
		json.Unmarshal([]byte(dataStr), &a.Data)
		activities = append(activities, a)
	}

	if err = rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "error iterating rows")
	}

	if activities == nil {
		activities = []*activity.Activity{}
	}

	var totalCount int
	s.db.QueryRow(ctx, `SELECT COUNT(*) FROM activities WHERE user_id = $1`, userID).Scan(&totalCount)

	return &activity.FeedResponse{
		Activities: activities,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
	}, nil
}

// friendRequestMessage and friends keep feed wording in one place.
func friendRequestMessage(username string) string {
	return fmt.Sprintf("%s sent you a friend request", username)
}

func friendAcceptedMessage(username string) string {
	return fmt.Sprintf("%s accepted your friend request", username)
}

func challengeCompletedMessage(title string) string {
	return fmt.Sprintf("You completed the challenge \"%s\"", title)
}

func rewardClaimedMessage(rewardName string) string {
	return fmt.Sprintf("You claimed the reward \"%s\"", rewardName)
}
