package services

import (
	"context"
	"errors"
	"log"

	"questLogAPI/internal/apperr"
	"questLogAPI/internal/cache"
	"questLogAPI/internal/types/activity"
	"questLogAPI/internal/types/friendship"
	"questLogAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FriendshipService enforces the friend-request state machine:
// none -> pending -> accepted | declined. Cancel deletes a pending record.
// All resolving transitions are single guarded statements conditioned on
// status = 'pending', so two concurrent resolvers can never both win.
type FriendshipService struct {
	db       *pgxpool.Pool
	users    *UserService
	activity *ActivityService
	cache    *cache.Cache
}

func NewFriendshipService(db *pgxpool.Pool, users *UserService, activitySvc *ActivityService, c *cache.Cache) *FriendshipService {
	return &FriendshipService{
		db:       db,
		users:    users,
		activity: activitySvc,
		cache:    c,
	}
}

// SendRequest creates a pending record from the caller to targetUserID.
// Fails with Conflict when an active (pending or accepted) record already
// exists between the pair in either direction.
func (s *FriendshipService) SendRequest(ctx context.Context, clerkID string, targetUserID string) error {
	requesterID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	recipientID, err := uuid.Parse(targetUserID)
	if err != nil {
		return apperr.Validation("invalid user id")
	}

	if requesterID == recipientID {
		return apperr.Validation("cannot send a friend request to yourself")
	}

	var recipientExists bool
	err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, recipientID).Scan(&recipientExists)
	if err != nil {
		return apperr.Persistence(err, "failed to look up recipient")
	}
	if !recipientExists {
		return apperr.NotFound("recipient not found")
	}

	// A declined record does not block a new request, so the uniqueness
	// check covers active statuses only.
	var activeExists bool
	existsQuery := `
	SELECT EXISTS(
		SELECT 1 FROM friendships
		WHERE ((requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1))
		AND status IN ('pending', 'accepted')
	)
	`
	err = s.db.QueryRow(ctx, existsQuery, requesterID, recipientID).Scan(&activeExists)
	if err != nil {
		return apperr.Persistence(err, "failed to check existing friendship")
	}
	if activeExists {
		return apperr.Conflict("friend request already pending or accepted")
	}

	query := `
	INSERT INTO friendships (id, requester_id, recipient_id, status, created_at, updated_at)
	VALUES ($1, $2, $3, 'pending', NOW(), NOW())
	`
	_, err = s.db.Exec(ctx, query, uuid.New(), requesterID, recipientID)
	if err != nil {
		return apperr.Persistence(err, "failed to create friend request")
	}

	s.invalidate(requesterID, recipientID)

	requesterName := s.usernameOf(ctx, requesterID)
	s.activity.Record(ctx, recipientID, &requesterID, activity.ActivityFriendRequest,
		friendRequestMessage(requesterName), map[string]any{"requester_id": requesterID.String()})

	return nil
}

// CancelRequest deletes a pending request the caller sent. The delete is
// guarded on both the requester and the pending status; a request that was
// already resolved cannot be cancelled.
func (s *FriendshipService) CancelRequest(ctx context.Context, clerkID string, targetUserID string) error {
	requesterID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	recipientID, err := uuid.Parse(targetUserID)
	if err != nil {
		return apperr.Validation("invalid user id")
	}

	// Reject wrong-caller with Forbidden before the guarded delete so the
	// recipient of a request gets a clear error instead of NotFound.
	var storedRequesterID uuid.UUID
	err = s.db.QueryRow(ctx, `
		SELECT requester_id FROM friendships
		WHERE ((requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1))
		AND status = 'pending'
	`, requesterID, recipientID).Scan(&storedRequesterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("no pending friend request")
		}
		return apperr.Persistence(err, "failed to look up friend request")
	}
	if storedRequesterID != requesterID {
		return apperr.Forbidden("not your request to cancel")
	}

	query := `
	DELETE FROM friendships
	WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending'
	`
	result, err := s.db.Exec(ctx, query, requesterID, recipientID)
	if err != nil {
		return apperr.Persistence(err, "failed to cancel friend request")
	}
	if result.RowsAffected() == 0 {
		// Lost the race against an accept/decline.
		return apperr.NotFound("no pending friend request")
	}

	s.invalidate(requesterID, recipientID)
	return nil
}

// AcceptRequest resolves a pending request addressed to the caller.
func (s *FriendshipService) AcceptRequest(ctx context.Context, clerkID string, requesterUserID string) error {
	return s.resolveRequest(ctx, clerkID, requesterUserID, friendship.FriendshipAccepted)
}

// DeclineRequest resolves a pending request addressed to the caller.
func (s *FriendshipService) DeclineRequest(ctx context.Context, clerkID string, requesterUserID string) error {
	return s.resolveRequest(ctx, clerkID, requesterUserID, friendship.FriendshipDeclined)
}

func (s *FriendshipService) resolveRequest(ctx context.Context, clerkID string, requesterUserID string, status friendship.FriendshipStatus) error {
	recipientID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	requesterID, err := uuid.Parse(requesterUserID)
	if err != nil {
		return apperr.Validation("invalid user id")
	}

	// The caller must be the stored recipient. A requester trying to
	// accept their own request finds no row matching recipient_id = caller
	// but does find the reversed pending row, which distinguishes
	// Forbidden from NotFound.
	query := `
	UPDATE friendships
	SET status = $3, updated_at = NOW()
	WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending'
	`
	result, err := s.db.Exec(ctx, query, requesterID, recipientID, status)
	if err != nil {
		return apperr.Persistence(err, "failed to update friend request")
	}

	if result.RowsAffected() == 0 {
		var reversed bool
		s.db.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM friendships
				WHERE requester_id = $2 AND recipient_id = $1 AND status = 'pending'
			)
		`, requesterID, recipientID).Scan(&reversed)
		if reversed {
			return apperr.Forbidden("only the recipient can resolve this request")
		}
		return apperr.NotFound("no pending friend request")
	}

	s.invalidate(requesterID, recipientID)

	if status == friendship.FriendshipAccepted {
		recipientName := s.usernameOf(ctx, recipientID)
		s.activity.Record(ctx, requesterID, &recipientID, activity.ActivityFriendAccepted,
			friendAcceptedMessage(recipientName), map[string]any{"recipient_id": recipientID.String()})
	}

	return nil
}

// ListFriends returns all users with an accepted record with the caller,
// in either direction. Reads go through the friends cache aggregate.
func (s *FriendshipService) ListFriends(ctx context.Context, clerkID string) ([]*user.User, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(userID.String(), cache.AggregateFriends); ok {
		if friends, ok := cached.([]*user.User); ok {
			return friends, nil
		}
	}

	query := `
	SELECT DISTINCT
		u.id,
		u.clerk_id,
		u.email,
		u.username,
		u.first_name,
		u.last_name,
		u.image_url,
		u.email_verified,
		u.created_at,
		u.updated_at
	FROM users u
	INNER JOIN friendships f ON (
		(f.requester_id = u.id AND f.recipient_id = $1)
		OR
		(f.recipient_id = u.id AND f.requester_id = $1)
	)
	WHERE f.status = 'accepted'
	ORDER BY u.username
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch friends")
	}
	defer rows.Close()

	var friends []*user.User
	for rows.Next() {
		u := &user.User{}
		err := rows.Scan(
			&u.ID,
			&u.ClerkID,
			&u.Email,
			&u.Username,
			&u.FirstName,
			&u.LastName,
			&u.ImageURL,
			&u.EmailVerified,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to scan friend")
		}
		friends = append(friends, u)
	}

	if err = rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "error iterating rows")
	}

	if friends == nil {
		friends = []*user.User{}
	}

	s.cache.Set(userID.String(), cache.AggregateFriends, friends)
	return friends, nil
}

// ListPendingRequests returns incoming pending requests with requester
// display info for the inbox view.
func (s *FriendshipService) ListPendingRequests(ctx context.Context, clerkID string) ([]*friendship.PendingRequest, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT f.id, f.requester_id, u.username, u.image_url, f.created_at
	FROM friendships f
	INNER JOIN users u ON u.id = f.requester_id
	WHERE f.recipient_id = $1 AND f.status = 'pending'
	ORDER BY f.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to fetch pending requests")
	}
	defer rows.Close()

	var requests []*friendship.PendingRequest
	for rows.Next() {
		req := &friendship.PendingRequest{}
		err := rows.Scan(&req.ID, &req.RequesterID, &req.RequesterUsername, &req.RequesterImageURL, &req.CreatedAt)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to scan pending request")
		}
		requests = append(requests, req)
	}

	if err = rows.Err(); err != nil {
		return nil, apperr.Persistence(err, "error iterating rows")
	}

	if requests == nil {
		requests = []*friendship.PendingRequest{}
	}

	return requests, nil
}

func (s *FriendshipService) invalidate(a, b uuid.UUID) {
	s.cache.Invalidate(cache.AggregateFriends, a.String(), b.String())
}

func (s *FriendshipService) usernameOf(ctx context.Context, userID uuid.UUID) string {
	var username string
	err := s.db.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if err != nil {
		log.Printf("Friendship: failed to load username for %s: %v", userID, err)
		return "Someone"
	}
	return username
}
