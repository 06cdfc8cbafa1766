package live

import "errors"

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameNotActive   = errors.New("game not active")
	ErrNotAParticipant = errors.New("not a participant")
	ErrNotYourTurn     = errors.New("not your turn")

	// ErrArchiveUnavailable wraps a failed durable write; the move in
	// flight is not committed and must not be broadcast.
	ErrArchiveUnavailable = errors.New("archive unavailable")
)
