package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"questLogAPI/internal/apperr"
	"questLogAPI/internal/cache"
	"questLogAPI/internal/types/challenge"
	"questLogAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against a real database. Set DATABASE_URL (a .env
// file works too) to enable them; they are skipped otherwise.

func testServices(t *testing.T) (*UserService, *FriendshipService, *ChallengeService) {
	t.Helper()

	_ = godotenv.Load("../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	c := cache.New(time.Minute)
	users := NewUserService(pool)
	activities := NewActivityService(pool)
	friendships := NewFriendshipService(pool, users, activities, c)
	challenges := NewChallengeService(pool, users, activities, c)
	return users, friendships, challenges
}

func createTestUser(t *testing.T, users *UserService, tag string) *user.User {
	t.Helper()

	suffix := uuid.New().String()[:8]
	u, err := users.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:   fmt.Sprintf("test_clerk_%s_%s", tag, suffix),
		Email:     fmt.Sprintf("%s_%s@test.local", tag, suffix),
		Username:  fmt.Sprintf("%s_%s", tag, suffix),
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := users.DeleteUserByClerkID(context.Background(), u.ClerkID); err != nil {
			t.Logf("cleanup user %s: %v", u.ClerkID, err)
		}
	})
	return u
}

func TestFriendRequestLifecycle(t *testing.T) {
	users, friendships, _ := testServices(t)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	// Sending to yourself is rejected before touching the table.
	err := friendships.SendRequest(ctx, alice.ClerkID, alice.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Unknown recipient.
	err = friendships.SendRequest(ctx, alice.ClerkID, uuid.New().String())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, friendships.SendRequest(ctx, alice.ClerkID, bob.ID))

	// A second request while one is pending conflicts, in either direction.
	err = friendships.SendRequest(ctx, alice.ClerkID, bob.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	err = friendships.SendRequest(ctx, bob.ClerkID, alice.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	pending, err := friendships.ListPendingRequests(ctx, bob.ClerkID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.ID, pending[0].RequesterID.String())

	// The requester cannot accept their own request.
	err = friendships.AcceptRequest(ctx, alice.ClerkID, bob.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, friendships.AcceptRequest(ctx, bob.ClerkID, alice.ID))

	// Accepting twice fails, the row is no longer pending.
	err = friendships.AcceptRequest(ctx, bob.ClerkID, alice.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	friendsOfAlice, err := friendships.ListFriends(ctx, alice.ClerkID)
	require.NoError(t, err)
	require.Len(t, friendsOfAlice, 1)
	assert.Equal(t, bob.ID, friendsOfAlice[0].ID)

	friendsOfBob, err := friendships.ListFriends(ctx, bob.ClerkID)
	require.NoError(t, err)
	require.Len(t, friendsOfBob, 1)
	assert.Equal(t, alice.ID, friendsOfBob[0].ID)

	// Accepted pair blocks new requests too.
	err = friendships.SendRequest(ctx, bob.ClerkID, alice.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestFriendRequestDeclineAndCancel(t *testing.T) {
	users, friendships, _ := testServices(t)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	require.NoError(t, friendships.SendRequest(ctx, alice.ClerkID, bob.ID))
	require.NoError(t, friendships.DeclineRequest(ctx, bob.ClerkID, alice.ID))

	friends, err := friendships.ListFriends(ctx, alice.ClerkID)
	require.NoError(t, err)
	assert.Empty(t, friends)

	// Declined rows do not block a fresh request.
	require.NoError(t, friendships.SendRequest(ctx, alice.ClerkID, bob.ID))

	// The requester withdraws it.
	require.NoError(t, friendships.CancelRequest(ctx, alice.ClerkID, bob.ID))

	pending, err := friendships.ListPendingRequests(ctx, bob.ClerkID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestChallengeLifecycle(t *testing.T) {
	users, _, challenges := testServices(t)
	ctx := context.Background()

	creator := createTestUser(t, users, "creator")
	player := createTestUser(t, users, "player")

	max := 2
	detail, err := challenges.CreateChallenge(ctx, creator.ClerkID, &challenge.CreateChallengeInput{
		Title:           "Integration Gauntlet",
		Description:     "Clear five story missions before the window closes.",
		Type:            challenge.TypeCompetitive,
		StartDate:       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		EndDate:         time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		MaxParticipants: &max,
		Goals: []challenge.GoalInput{
			{Type: challenge.GoalCompleteGames, Target: 5},
		},
		Rewards: []challenge.RewardInput{
			{Type: challenge.RewardBadge, Name: "Gauntlet Badge", Description: "Cleared the integration gauntlet."},
		},
		Rules: []challenge.RuleInput{
			{Text: "Co-op completions do not count."},
		},
	})
	require.NoError(t, err)
	challengeID := detail.Challenge.ID
	require.Len(t, detail.Goals, 1)
	require.Len(t, detail.Rewards, 1)

	t.Cleanup(func() {
		if err := challenges.DeleteChallenge(context.Background(), creator.ClerkID, challengeID); err != nil {
			t.Logf("cleanup challenge %s: %v", challengeID, err)
		}
	})

	require.NoError(t, challenges.JoinChallenge(ctx, player.ClerkID, challengeID))

	// Joining twice conflicts.
	err = challenges.JoinChallenge(ctx, player.ClerkID, challengeID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	joined, err := challenges.ListJoinedChallenges(ctx, player.ClerkID)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, challengeID, joined[0].ID)

	// Claiming before finishing is forbidden.
	rewardID := detail.Rewards[0].ID
	err = challenges.ClaimReward(ctx, player.ClerkID, challengeID, rewardID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// Goal target is 5, so 5 increments land on exactly 100.
	goalID := detail.Goals[0].ID
	var p *challenge.Participant
	for i := 0; i < 5; i++ {
		p, err = challenges.AddGoalProgress(ctx, player.ClerkID, challengeID, goalID, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, p.Progress)
	assert.NotNil(t, p.CompletedAt)

	require.NoError(t, challenges.ClaimReward(ctx, player.ClerkID, challengeID, rewardID))

	// Double claim conflicts.
	err = challenges.ClaimReward(ctx, player.ClerkID, challengeID, rewardID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Only the creator can delete.
	err = challenges.DeleteChallenge(ctx, player.ClerkID, challengeID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestChallengeProgressBounds(t *testing.T) {
	users, _, challenges := testServices(t)
	ctx := context.Background()

	creator := createTestUser(t, users, "creator")

	detail, err := challenges.CreateChallenge(ctx, creator.ClerkID, &challenge.CreateChallengeInput{
		Title:       "Progress Bounds",
		Description: "Internal checks for progress clamping behavior.",
		Type:        challenge.TypeCollaborative,
		StartDate:   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		EndDate:     time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		Goals: []challenge.GoalInput{
			{Type: challenge.GoalPlayHours, Target: 3},
		},
		Rewards: []challenge.RewardInput{
			{Type: challenge.RewardPoints, Name: "Hour Hoarder", Description: "Logged the required play hours."},
		},
		Rules: []challenge.RuleInput{
			{Text: "Idle time does not count as play time."},
		},
	})
	require.NoError(t, err)
	challengeID := detail.Challenge.ID

	t.Cleanup(func() {
		if err := challenges.DeleteChallenge(context.Background(), creator.ClerkID, challengeID); err != nil {
			t.Logf("cleanup challenge %s: %v", challengeID, err)
		}
	})

	require.NoError(t, challenges.JoinChallenge(ctx, creator.ClerkID, challengeID))

	_, err = challenges.SetProgress(ctx, creator.ClerkID, challengeID, 101)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = challenges.SetProgress(ctx, creator.ClerkID, challengeID, -1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	p, err := challenges.SetProgress(ctx, creator.ClerkID, challengeID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, p.Progress)
	assert.Nil(t, p.CompletedAt)

	// Progress can go down, it is a set not an increment.
	p, err = challenges.SetProgress(ctx, creator.ClerkID, challengeID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Progress)

	// Increments past 100 clamp at 100. Target 3 gives 33 per step.
	for i := 0; i < 4; i++ {
		p, err = challenges.AddGoalProgress(ctx, creator.ClerkID, challengeID, detail.Goals[0].ID, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, p.Progress)

	require.NoError(t, challenges.LeaveChallenge(ctx, creator.ClerkID, challengeID))
	err = challenges.LeaveChallenge(ctx, creator.ClerkID, challengeID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
