package friendship

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipDeclined FriendshipStatus = "declined"
)

// Friendship is a directed request record. RequesterID sent the request,
// RecipientID is the only party allowed to accept or decline it. At most
// one pending or accepted record may exist per pair, in either direction.
type Friendship struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	RequesterID uuid.UUID        `json:"requester_id" db:"requester_id"`
	RecipientID uuid.UUID        `json:"recipient_id" db:"recipient_id"`
	Status      FriendshipStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

type FriendRequestInput struct {
	UserID string `json:"userId" validate:"required"`
}

// PendingRequest is an incoming request decorated with requester info for
// the requests inbox.
type PendingRequest struct {
	ID                uuid.UUID `json:"id"`
	RequesterID       uuid.UUID `json:"requester_id"`
	RequesterUsername string    `json:"requester_username"`
	RequesterImageURL string    `json:"requester_image_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
