// Package livedto carries the JSON frames exchanged over the game and lobby
// sockets. Field names are contract-significant; frames are flat objects,
// not envelope+payload.
package livedto

// EventType tags a frame. Inbound frames outside the inbound set are
// protocol errors.
type EventType string

const (
	// inbound
	EventMove              EventType = "move"
	EventResign            EventType = "resign"
	EventChallenge         EventType = "challenge"
	EventChallengeResponse EventType = "challenge_response"

	// outbound
	EventConnectionEstablished EventType = "connection_established"
	EventError                 EventType = "error"
	EventUserOnline            EventType = "user_online"
	EventUserOffline           EventType = "user_offline"
)

// Frame is the wire shape for every frame in both directions. Unused fields
// are omitted; Accepted is a pointer so "absent" and "false" stay distinct.
type Frame struct {
	Type EventType `json:"type"`

	Message  string `json:"message,omitempty"`
	Username string `json:"username,omitempty"`

	Player string `json:"player,omitempty"`
	Move   string `json:"move,omitempty"`
	GameID string `json:"game_id,omitempty"`

	Challenger string `json:"challenger,omitempty"`
	Challenged string `json:"challenged,omitempty"`
	Accepted   *bool  `json:"accepted,omitempty"`

	// Reload tells receivers to re-fetch authoritative game state instead
	// of trusting embedded fields.
	Reload bool   `json:"reload,omitempty"`
	Status string `json:"status,omitempty"`
	Result string `json:"result,omitempty"`
}

// Bool is a convenience for building Accepted values.
func Bool(v bool) *bool { return &v }
