package live

import (
	"time"

	"github.com/castlane/chesslive/internal/rules"
)

// Status is the game lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Result is the game outcome. ResultInProgress is only valid while the game
// is not finished.
type Result string

const (
	ResultWhiteWin   Result = "white_win"
	ResultBlackWin   Result = "black_win"
	ResultDraw       Result = "draw"
	ResultInProgress Result = "in_progress"
)

// Game is the authoritative live document for one match. Move history in SAN
// and UCI is carried on the document so the position can be rebuilt by
// replay; FEN is maintained for presentation and turn display.
type Game struct {
	ID        string    `json:"id"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Status    Status    `json:"status"`
	Result    Result    `json:"result"`
	FEN       string    `json:"fen"`
	MoveCount int       `json:"move_count"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParticipant reports whether user plays in this game.
func (g *Game) IsParticipant(user string) bool {
	return user != "" && (g.White == user || g.Black == user)
}

// ColorOf returns the side user plays, or "" for non-participants.
func (g *Game) ColorOf(user string) rules.Color {
	switch {
	case user != "" && g.White == user:
		return rules.White
	case user != "" && g.Black == user:
		return rules.Black
	default:
		return ""
	}
}

// MoveRecord is one committed move as handed to the archive collaborator.
type MoveRecord struct {
	GameID   string    `json:"game_id"`
	Player   string    `json:"player"`
	Number   int       `json:"move_number"`
	SAN      string    `json:"san"`
	UCI      string    `json:"uci"`
	FENAfter string    `json:"fen_after_move"`
	PlayedAt time.Time `json:"played_at"`
}
