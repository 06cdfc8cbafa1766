package invite

import (
	"errors"
	"time"
)

// Status is the invitation lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Invitation links a challenger to a challenged player. GameID is set
// exactly once, on acceptance, and never changes afterwards.
type Invitation struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Status    Status    `json:"status"`
	GameID    string    `json:"game_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidArgs    = errors.New("invalid invitation arguments")
	ErrInviteGone     = errors.New("invitation not found or expired")
	ErrInviteResolved = errors.New("invitation already answered")
)
