package rules

import (
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ErrIllegalMove covers unparseable, ambiguous, and illegal notation alike:
// in every case the position is left untouched.
var ErrIllegalMove = errors.New("illegal move")

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Replay rebuilds a game from the standard starting position by applying the
// stored UCI moves in order. The stored FEN is presentation state only;
// re-applying it on top of the move list would double-apply moves.
func Replay(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range movesUCI {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, errors.New("corrupt move list: " + mv)
		}
	}
	return game, nil
}

// Push validates notation against the side to move and applies it. SAN is the
// contract notation; bare UCI is accepted as a convenience. Returns the SAN
// and UCI encodings of the applied move. On ErrIllegalMove the game is
// unchanged.
func Push(game *nchess.Game, notation string) (san, uci string, err error) {
	raw := strings.TrimSpace(notation)
	if raw == "" {
		return "", "", ErrIllegalMove
	}
	pos := game.Position()

	if mv, derr := (nchess.UCINotation{}).Decode(pos, strings.ToLower(raw)); derr == nil {
		if err := game.Move(mv, nil); err != nil {
			return "", "", ErrIllegalMove
		}
		return nchess.AlgebraicNotation{}.Encode(pos, mv), mv.String(), nil
	}

	if err := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
		return "", "", ErrIllegalMove
	}
	moves := game.Moves()
	mv := moves[len(moves)-1]
	return nchess.AlgebraicNotation{}.Encode(pos, mv), mv.String(), nil
}

// SideToMove reports whose turn it is in the given game.
func SideToMove(game *nchess.Game) Color {
	if game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// Verdict is the terminal classification of a position.
type Verdict struct {
	Over   bool
	Winner Color  // set only for decisive results
	Draw   bool   // stalemate, insufficient material, repetition, fifty-move
	Method string // lowercase library method name, for logs
}

// Evaluate inspects the game for a terminal result. Decisive outcomes are
// checkmates; everything else the library reports as over is a draw.
func Evaluate(game *nchess.Game) Verdict {
	out := game.Outcome()
	if out == nchess.NoOutcome {
		return Verdict{}
	}
	v := Verdict{Over: true, Method: strings.ToLower(game.Method().String())}
	switch out {
	case nchess.WhiteWon:
		v.Winner = White
	case nchess.BlackWon:
		v.Winner = Black
	default:
		v.Draw = true
	}
	return v
}
