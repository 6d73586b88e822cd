package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questLogAPI/internal/apperr"
	"questLogAPI/internal/cache"
	"questLogAPI/internal/types/activity"
	"questLogAPI/internal/types/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChallengeService owns the challenge aggregate and participant progress.
// Multi-row writes (create/delete aggregate, join/leave with the
// denormalized counter) run in a transaction; progress updates are single
// guarded statements.
type ChallengeService struct {
	db       *pgxpool.Pool
	users    *UserService
	activity *ActivityService
	cache    *cache.Cache
}

func NewChallengeService(db *pgxpool.Pool, users *UserService, activitySvc *ActivityService, c *cache.Cache) *ChallengeService {
	return &ChallengeService{
		db:       db,
		users:    users,
		activity: activitySvc,
		cache:    c,
	}
}

// CreateChallenge validates the definition and writes the challenge with
// its goals, rewards and rules atomically.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, input *challenge.CreateChallengeInput) (*challenge.ChallengeDetail, error) {
	creatorID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	result := ValidateChallenge(input, time.Now())
	if !result.Valid() {
		return nil, apperr.Validation(result.FirstMessage())
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	ch := challenge.Challenge{
		ID:              uuid.New(),
		Title:           input.Title,
		Description:     input.Description,
		Type:            input.Type,
		Status:          challenge.StatusUpcoming,
		StartDate:       result.StartDate,
		EndDate:         result.EndDate,
		MinParticipants: input.MinParticipants,
		MaxParticipants: input.MaxParticipants,
		CreatorID:       creatorID,
	}

	query := `
	INSERT INTO challenges (id, title, description, type, status, start_date, end_date,
		min_participants, max_participants, participant_count, creator_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, NOW(), NOW())
	RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		ch.ID, ch.Title, ch.Description, ch.Type, ch.Status, ch.StartDate, ch.EndDate,
		ch.MinParticipants, ch.MaxParticipants, ch.CreatorID,
	).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to create challenge")
	}

	detail := &challenge.ChallengeDetail{Challenge: ch}

	for _, goalInput := range input.Goals {
		goal := &challenge.Goal{
			ID:          uuid.New(),
			ChallengeID: ch.ID,
			Type:        goalInput.Type,
			Target:      goalInput.Target,
			Description: goalInput.Description,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_goals (id, challenge_id, type, target, description)
			VALUES ($1, $2, $3, $4, $5)
		`, goal.ID, goal.ChallengeID, goal.Type, goal.Target, goal.Description)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to create challenge goal")
		}
		detail.Goals = append(detail.Goals, goal)
	}

	for _, rewardInput := range input.Rewards {
		reward := &challenge.Reward{
			ID:          uuid.New(),
			ChallengeID: ch.ID,
			Type:        rewardInput.Type,
			Name:        rewardInput.Name,
			Description: rewardInput.Description,
			Points:      rewardInput.Points,
		}

		if rewardInput.Type == challenge.RewardBadge {
			badgeID := uuid.New()
			_, err = tx.Exec(ctx, `
				INSERT INTO badges (id, name, description, icon_url)
				VALUES ($1, $2, $3, $4)
			`, badgeID, rewardInput.Name, rewardInput.Description, rewardInput.BadgeIcon)
			if err != nil {
				return nil, apperr.Persistence(err, "failed to create badge")
			}
			reward.BadgeID = &badgeID
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_rewards (id, challenge_id, type, name, description, badge_id, points)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, reward.ID, reward.ChallengeID, reward.Type, reward.Name, reward.Description, reward.BadgeID, reward.Points)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to create challenge reward")
		}
		detail.Rewards = append(detail.Rewards, reward)
	}

	for _, ruleInput := range input.Rules {
		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_rules (id, challenge_id, text)
			VALUES ($1, $2, $3)
		`, uuid.New(), ch.ID, ruleInput.Text)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to create challenge rule")
		}
		detail.Rules = append(detail.Rules, ruleInput.Text)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, apperr.Persistence(err, "failed to commit challenge")
	}

	s.cache.Invalidate(cache.AggregateChallenges, creatorID.String())
	return detail, nil
}

// DeleteChallenge removes the challenge and all owned rows. Creator only.
func (s *ChallengeService) DeleteChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	var creatorID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT creator_id FROM challenges WHERE id = $1`, challengeID).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("challenge not found")
		}
		return apperr.Persistence(err, "failed to look up challenge")
	}
	if creatorID != userID {
		return apperr.Forbidden("only the creator can delete this challenge")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Persistence(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"claimed_rewards", "challenge_participants", "challenge_rules", "challenge_rewards", "challenge_goals"} {
		if _, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE challenge_id = $1`, table), challengeID); err != nil {
			return apperr.Persistence(err, "failed to delete challenge data")
		}
	}
	if _, err = tx.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, challengeID); err != nil {
		return apperr.Persistence(err, "failed to delete challenge")
	}

	if err = tx.Commit(ctx); err != nil {
		return apperr.Persistence(err, "failed to commit delete")
	}

	s.cache.Invalidate(cache.AggregateChallenges, userID.String())
	return nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.ChallengeDetail, error) {
	ch, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	detail := &challenge.ChallengeDetail{Challenge: *ch}

	rows, err := s.db.Query(ctx, `
		SELECT id, challenge_id, type, target, description
		FROM challenge_goals WHERE challenge_id = $1
	`, challengeID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch goals")
	}
	defer rows.Close()
	for rows.Next() {
		g := &challenge.Goal{}
		if err := rows.Scan(&g.ID, &g.ChallengeID, &g.Type, &g.Target, &g.Description); err != nil {
			return nil, apperr.Persistence(err, "failed to scan goal")
		}
		detail.Goals = append(detail.Goals, g)
	}
	rows.Close()

	rows, err = s.db.Query(ctx, `
		SELECT id, challenge_id, type, name, description, badge_id, points
		FROM challenge_rewards WHERE challenge_id = $1
	`, challengeID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch rewards")
	}
	defer rows.Close()
	for rows.Next() {
		r := &challenge.Reward{}
		if err := rows.Scan(&r.ID, &r.ChallengeID, &r.Type, &r.Name, &r.Description, &r.BadgeID, &r.Points); err != nil {
			return nil, apperr.Persistence(err, "failed to scan reward")
		}
		detail.Rewards = append(detail.Rewards, r)
	}
	rows.Close()

	rows, err = s.db.Query(ctx, `SELECT text FROM challenge_rules WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch rules")
	}
	defer rows.Close()
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, apperr.Persistence(err, "failed to scan rule")
		}
		detail.Rules = append(detail.Rules, text)
	}

	return detail, nil
}

// ListChallenges returns the newest challenges with their derived status.
func (s *ChallengeService) ListChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, description, type, status, start_date, end_date,
			min_participants, max_participants, participant_count, creator_id, created_at, updated_at
		FROM challenges
		ORDER BY created_at DESC
		LIMIT 50
	`)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch challenges")
	}
	defer rows.Close()

	return scanChallenges(rows)
}

// ListJoinedChallenges returns the caller's challenges with their
// participant progress, served through the challenges cache aggregate.
func (s *ChallengeService) ListJoinedChallenges(ctx context.Context, clerkID string) ([]*challenge.Challenge, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(userID.String(), cache.AggregateChallenges); ok {
		if challenges, ok := cached.([]*challenge.Challenge); ok {
			return challenges, nil
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.title, c.description, c.type, c.status, c.start_date, c.end_date,
			c.min_participants, c.max_participants, c.participant_count, c.creator_id, c.created_at, c.updated_at
		FROM challenges c
		INNER JOIN challenge_participants cp ON cp.challenge_id = c.id
		WHERE cp.user_id = $1
		ORDER BY cp.joined_at DESC
	`, userID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch joined challenges")
	}
	defer rows.Close()

	challenges, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}

	s.cache.Set(userID.String(), cache.AggregateChallenges, challenges)
	return challenges, nil
}

// JoinChallenge adds the caller as a participant. The counter increment is
// guarded on max_participants headroom, so a full competitive challenge
// rejects the join even under concurrent attempts.
func (s *ChallengeService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	ch, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return err
	}

	if status := ch.EffectiveStatus(time.Now()); status == challenge.StatusCompleted {
		return apperr.Forbidden("challenge has already ended")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Persistence(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var alreadyJoined bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2)
	`, challengeID, userID).Scan(&alreadyJoined)
	if err != nil {
		return apperr.Persistence(err, "failed to check participation")
	}
	if alreadyJoined {
		return apperr.Conflict("already joined this challenge")
	}

	result, err := tx.Exec(ctx, `
		UPDATE challenges
		SET participant_count = participant_count + 1, updated_at = NOW()
		WHERE id = $1 AND (max_participants IS NULL OR participant_count < max_participants)
	`, challengeID)
	if err != nil {
		return apperr.Persistence(err, "failed to update participant count")
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("challenge is full")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO challenge_participants (challenge_id, user_id, progress, joined_at)
		VALUES ($1, $2, 0, NOW())
	`, challengeID, userID)
	if err != nil {
		return apperr.Persistence(err, "failed to join challenge")
	}

	if err = tx.Commit(ctx); err != nil {
		return apperr.Persistence(err, "failed to commit join")
	}

	s.cache.Invalidate(cache.AggregateChallenges, userID.String())
	s.activity.Record(ctx, userID, nil, activity.ActivityChallengeJoined,
		fmt.Sprintf("You joined the challenge \"%s\"", ch.Title),
		map[string]any{"challenge_id": challengeID.String()})
	return nil
}

// LeaveChallenge removes the caller's participant record and decrements
// the counter in one transaction.
func (s *ChallengeService) LeaveChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperr.Persistence(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		DELETE FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID)
	if err != nil {
		return apperr.Persistence(err, "failed to leave challenge")
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("not a participant of this challenge")
	}

	_, err = tx.Exec(ctx, `
		UPDATE challenges
		SET participant_count = GREATEST(participant_count - 1, 0), updated_at = NOW()
		WHERE id = $1
	`, challengeID)
	if err != nil {
		return apperr.Persistence(err, "failed to update participant count")
	}

	if err = tx.Commit(ctx); err != nil {
		return apperr.Persistence(err, "failed to commit leave")
	}

	s.cache.Invalidate(cache.AggregateChallenges, userID.String())
	return nil
}

// SetProgress is the canonical progress primitive. One statement returns
// both the new and the prior value so the 100% completion edge is detected
// without a separate read.
func (s *ChallengeService) SetProgress(ctx context.Context, clerkID string, challengeID uuid.UUID, newProgress int) (*challenge.Participant, error) {
	if newProgress < 0 || newProgress > 100 {
		return nil, apperr.Validation("progress must be between 0 and 100")
	}

	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	WITH prev AS (
		SELECT progress FROM challenge_participants
		WHERE challenge_id = $1 AND user_id = $2
	)
	UPDATE challenge_participants cp
	SET progress = $3,
		completed_at = CASE WHEN $3 = 100 AND cp.completed_at IS NULL THEN NOW() ELSE cp.completed_at END
	WHERE cp.challenge_id = $1 AND cp.user_id = $2
	RETURNING cp.challenge_id, cp.user_id, cp.team_id, cp.progress, cp.completed_at, cp.joined_at,
		(SELECT progress FROM prev)
	`

	p := &challenge.Participant{}
	var prevProgress int
	err = s.db.QueryRow(ctx, query, challengeID, userID, newProgress).Scan(
		&p.ChallengeID, &p.UserID, &p.TeamID, &p.Progress, &p.CompletedAt, &p.JoinedAt, &prevProgress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("not a participant of this challenge")
		}
		return nil, apperr.Persistence(err, "failed to update progress")
	}

	s.cache.Invalidate(cache.AggregateChallenges, userID.String())

	if prevProgress < 100 && newProgress == 100 {
		s.emitCompletion(ctx, userID, challengeID)
	}

	return p, nil
}

// AddGoalProgress advances progress by whole goal steps. It reads the
// current value, clamps, and issues a compare-and-set update conditioned
// on the value it read; an interleaved writer surfaces as Conflict.
func (s *ChallengeService) AddGoalProgress(ctx context.Context, clerkID string, challengeID, goalID uuid.UUID, steps int) (*challenge.Participant, error) {
	if steps == 0 {
		return nil, apperr.Validation("steps must not be zero")
	}

	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	goal := &challenge.Goal{}
	err = s.db.QueryRow(ctx, `
		SELECT id, challenge_id, type, target, description
		FROM challenge_goals WHERE id = $1 AND challenge_id = $2
	`, goalID, challengeID).Scan(&goal.ID, &goal.ChallengeID, &goal.Type, &goal.Target, &goal.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("goal not found for this challenge")
		}
		return nil, apperr.Persistence(err, "failed to look up goal")
	}

	var current int
	err = s.db.QueryRow(ctx, `
		SELECT progress FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("not a participant of this challenge")
		}
		return nil, apperr.Persistence(err, "failed to read progress")
	}

	newProgress := current + goal.ProgressIncrement()*steps
	if newProgress < 0 {
		newProgress = 0
	}
	if newProgress > 100 {
		newProgress = 100
	}

	query := `
	UPDATE challenge_participants cp
	SET progress = $3,
		completed_at = CASE WHEN $3 = 100 AND cp.completed_at IS NULL THEN NOW() ELSE cp.completed_at END
	WHERE cp.challenge_id = $1 AND cp.user_id = $2 AND cp.progress = $4
	RETURNING cp.challenge_id, cp.user_id, cp.team_id, cp.progress, cp.completed_at, cp.joined_at
	`

	p := &challenge.Participant{}
	err = s.db.QueryRow(ctx, query, challengeID, userID, newProgress, current).Scan(
		&p.ChallengeID, &p.UserID, &p.TeamID, &p.Progress, &p.CompletedAt, &p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("progress was updated concurrently, retry")
		}
		return nil, apperr.Persistence(err, "failed to update progress")
	}

	s.cache.Invalidate(cache.AggregateChallenges, userID.String())

	if current < 100 && newProgress == 100 {
		s.emitCompletion(ctx, userID, challengeID)
	}

	return p, nil
}

// ClaimReward converts a completed participant's entitlement into an
// issued reward. Claiming is explicit and idempotence is enforced by the
// claimed_rewards uniqueness, not by a read-then-write.
func (s *ChallengeService) ClaimReward(ctx context.Context, clerkID string, challengeID, rewardID uuid.UUID) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	var rewardName string
	err = s.db.QueryRow(ctx, `
		SELECT name FROM challenge_rewards WHERE id = $1 AND challenge_id = $2
	`, rewardID, challengeID).Scan(&rewardName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("reward not found for this challenge")
		}
		return apperr.Persistence(err, "failed to look up reward")
	}

	var progress int
	err = s.db.QueryRow(ctx, `
		SELECT progress FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID).Scan(&progress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("not a participant of this challenge")
		}
		return apperr.Persistence(err, "failed to read progress")
	}
	if progress < 100 {
		return apperr.Forbidden("challenge not completed yet")
	}

	result, err := s.db.Exec(ctx, `
		INSERT INTO claimed_rewards (id, challenge_id, user_id, reward_id, claimed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, reward_id) DO NOTHING
	`, uuid.New(), challengeID, userID, rewardID)
	if err != nil {
		return apperr.Persistence(err, "failed to claim reward")
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("reward already claimed")
	}

	s.activity.Record(ctx, userID, nil, activity.ActivityRewardClaimed,
		rewardClaimedMessage(rewardName), map[string]any{
			"challenge_id": challengeID.String(),
			"reward_id":    rewardID.String(),
		})
	return nil
}

func (s *ChallengeService) emitCompletion(ctx context.Context, userID, challengeID uuid.UUID) {
	var title string
	if err := s.db.QueryRow(ctx, `SELECT title FROM challenges WHERE id = $1`, challengeID).Scan(&title); err != nil {
		title = "challenge"
	}
	s.activity.Record(ctx, userID, nil, activity.ActivityChallengeCompleted,
		challengeCompletedMessage(title), map[string]any{"challenge_id": challengeID.String()})
}

func (s *ChallengeService) loadChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	ch := &challenge.Challenge{}
	err := s.db.QueryRow(ctx, `
		SELECT id, title, description, type, status, start_date, end_date,
			min_participants, max_participants, participant_count, creator_id, created_at, updated_at
		FROM challenges WHERE id = $1
	`, challengeID).Scan(
		&ch.ID, &ch.Title, &ch.Description, &ch.Type, &ch.Status, &ch.StartDate, &ch.EndDate,
		&ch.MinParticipants, &ch.MaxParticipants, &ch.ParticipantCount, &ch.CreatorID, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("challenge not found")
		}
		return nil, apperr.Persistence(err, "failed to get challenge")
	}
	ch.Status = ch.EffectiveStatus(time.Now())
	return ch, nil
}

func scanChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	now := time.Now()
	var challenges []*challenge.Challenge
	for rows.Next() {
		ch := &challenge.Challenge{}
		err := rows.Scan(
			&ch.ID, &ch.Title, &ch.Description, &ch.Type, &ch.Status, &ch.StartDate, &ch.EndDate,
			&ch.MinParticipants, &ch.MaxParticipants, &ch.ParticipantCount, &ch.CreatorID, &ch.CreatedAt, &ch.UpdatedAt,
		)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to scan challenge")
		}
		ch.Status = ch.EffectiveStatus(now)
		challenges = append(challenges, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "error iterating rows")
	}

	if challenges == nil {
		challenges = []*challenge.Challenge{}
	}
	return challenges, nil
}
