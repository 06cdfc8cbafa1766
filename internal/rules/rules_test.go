package rules

import (
	"errors"
	"testing"
)

func TestPushAcceptsSANAndUCI(t *testing.T) {
	game, err := Replay(nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	san, uci, err := Push(game, "e4")
	if err != nil {
		t.Fatalf("Push SAN: %v", err)
	}
	if san != "e4" || uci != "e2e4" {
		t.Fatalf("unexpected encodings: san=%q uci=%q", san, uci)
	}
	if SideToMove(game) != Black {
		t.Fatalf("expected black to move after e4")
	}

	san, uci, err = Push(game, "e7e5")
	if err != nil {
		t.Fatalf("Push UCI: %v", err)
	}
	if san != "e5" || uci != "e7e5" {
		t.Fatalf("unexpected encodings: san=%q uci=%q", san, uci)
	}
}

func TestPushIllegalLeavesGameUntouched(t *testing.T) {
	game, _ := Replay(nil)
	before := game.FEN()

	for _, notation := range []string{"", "   ", "e5", "Ke2", "zz9", "e2e5"} {
		if _, _, err := Push(game, notation); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Push(%q): expected ErrIllegalMove, got %v", notation, err)
		}
	}
	if game.FEN() != before {
		t.Fatalf("illegal input mutated position: %q -> %q", before, game.FEN())
	}
}

func TestReplayRejectsCorruptMoves(t *testing.T) {
	if _, err := Replay([]string{"e2e4", "bogus"}); err == nil {
		t.Fatalf("expected error for corrupt move list")
	}
}

func TestEvaluateCheckmate(t *testing.T) {
	game, err := Replay(nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, mv := range []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"} {
		if _, _, err := Push(game, mv); err != nil {
			t.Fatalf("Push(%q): %v", mv, err)
		}
	}
	v := Evaluate(game)
	if !v.Over || v.Draw || v.Winner != White {
		t.Fatalf("expected white checkmate verdict, got %+v", v)
	}
	if v.Method != "checkmate" {
		t.Fatalf("expected checkmate method, got %q", v.Method)
	}
}

func TestEvaluateStalemateIsDraw(t *testing.T) {
	game, err := Replay(nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	// Loyd's ten-move stalemate.
	moves := []string{
		"e3", "a5", "Qh5", "Ra6", "Qxa5", "h5", "Qxc7", "Rah6",
		"h4", "f6", "Qxd7+", "Kf7", "Qxb7", "Qd3", "Qxb8", "Qh7",
		"Qxc8", "Kg6", "Qe6",
	}
	for _, mv := range moves {
		if _, _, err := Push(game, mv); err != nil {
			t.Fatalf("Push(%q): %v", mv, err)
		}
	}
	v := Evaluate(game)
	if !v.Over || !v.Draw || v.Winner != "" {
		t.Fatalf("expected draw verdict, got %+v", v)
	}
}

func TestEvaluateOngoing(t *testing.T) {
	game, _ := Replay([]string{"e2e4"})
	if v := Evaluate(game); v.Over {
		t.Fatalf("fresh game reported over: %+v", v)
	}
}
