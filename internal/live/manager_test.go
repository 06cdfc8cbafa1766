package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/castlane/chesslive/internal/rules"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(NewStore(rdb, time.Hour))
}

type stubArchive struct {
	mu      sync.Mutex
	moves   []*MoveRecord
	results map[string]Result
	failing bool
}

func newStubArchive() *stubArchive {
	return &stubArchive{results: make(map[string]Result)}
}

func (s *stubArchive) SaveMove(_ context.Context, rec *MoveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("connection refused")
	}
	s.moves = append(s.moves, rec)
	return nil
}

func (s *stubArchive) SetGameResult(_ context.Context, gameID string, _ Status, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("connection refused")
	}
	s.results[gameID] = result
	return nil
}

func TestCreateGameStartsActive(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	g, err := m.CreateGame(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if g.Status != StatusActive || g.Result != ResultInProgress {
		t.Fatalf("unexpected initial state: %s %s", g.Status, g.Result)
	}
	if g.FEN != rules.StartingFEN {
		t.Fatalf("expected starting position, got %q", g.FEN)
	}
	if g.MoveCount != 0 {
		t.Fatalf("expected move_count 0, got %d", g.MoveCount)
	}

	loaded, err := m.Load(ctx, g.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.White != "alice" || loaded.Black != "bob" {
		t.Fatalf("participants not persisted: %+v", loaded)
	}
}

func TestCreateGameRejectsBadParticipants(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.CreateGame(ctx, "alice", "alice"); err == nil {
		t.Fatalf("expected error for self-play")
	}
	if _, err := m.CreateGame(ctx, "", "bob"); err == nil {
		t.Fatalf("expected error for empty participant")
	}
}

// The full lobby scenario: accept, white e4, black tries an impossible e4,
// black resigns.
func TestSubmitMoveResignScenario(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	g, err := m.CreateGame(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	g1, rec, verdict, err := m.SubmitMove(ctx, g.ID, "alice", "e4")
	if err != nil {
		t.Fatalf("SubmitMove e4: %v", err)
	}
	if rec.Number != 1 || rec.SAN != "e4" {
		t.Fatalf("unexpected move record: %+v", rec)
	}
	if verdict.Over {
		t.Fatalf("e4 should not end the game")
	}
	if got := g1.ColorOf("bob"); got != rules.Black {
		t.Fatalf("ColorOf bob = %q", got)
	}

	_, _, _, err = m.SubmitMove(ctx, g.ID, "bob", "e4")
	if !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	unchanged, _ := m.Load(ctx, g.ID)
	if unchanged.MoveCount != 1 || unchanged.FEN != g1.FEN {
		t.Fatalf("illegal move mutated state: %+v", unchanged)
	}

	g2, err := m.Resign(ctx, g.ID, "bob")
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if g2.Status != StatusFinished || g2.Result != ResultWhiteWin {
		t.Fatalf("expected white_win on black resignation, got %s %s", g2.Status, g2.Result)
	}

	if _, err := m.Resign(ctx, g.ID, "alice"); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
	if _, _, _, err := m.SubmitMove(ctx, g.ID, "alice", "d4"); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
}

func TestSubmitMoveTurnAndParticipantChecks(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	g, _ := m.CreateGame(ctx, "alice", "bob")

	if _, _, _, err := m.SubmitMove(ctx, g.ID, "bob", "e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, _, _, err := m.SubmitMove(ctx, g.ID, "mallory", "e4"); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}
	if _, _, _, err := m.SubmitMove(ctx, "no-such-game", "alice", "e4"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}

	loaded, _ := m.Load(ctx, g.ID)
	if loaded.MoveCount != 0 || loaded.FEN != rules.StartingFEN {
		t.Fatalf("rejected submissions mutated state: %+v", loaded)
	}
}

func TestMoveNumbersContiguous(t *testing.T) {
	m := newTestManager(t)
	arch := newStubArchive()
	m.AttachArchive(arch)
	ctx := context.Background()
	g, _ := m.CreateGame(ctx, "alice", "bob")

	moves := []struct{ actor, san string }{
		{"alice", "e4"}, {"bob", "e5"},
		{"alice", "Nf3"}, {"bob", "Nc6"},
		{"alice", "Bb5"}, {"bob", "a6"},
	}
	for i, mv := range moves {
		_, rec, _, err := m.SubmitMove(ctx, g.ID, mv.actor, mv.san)
		if err != nil {
			t.Fatalf("move %d (%s): %v", i+1, mv.san, err)
		}
		if rec.Number != i+1 {
			t.Fatalf("move %d got number %d", i+1, rec.Number)
		}
	}

	loaded, _ := m.Load(ctx, g.ID)
	if loaded.MoveCount != len(moves) {
		t.Fatalf("move_count %d, want %d", loaded.MoveCount, len(moves))
	}
	if len(arch.moves) != len(moves) {
		t.Fatalf("archived %d moves, want %d", len(arch.moves), len(moves))
	}
	for i, rec := range arch.moves {
		if rec.Number != i+1 {
			t.Fatalf("archive number %d at index %d", rec.Number, i)
		}
	}
}

func TestCheckmateFinishesAtomically(t *testing.T) {
	m := newTestManager(t)
	arch := newStubArchive()
	m.AttachArchive(arch)
	ctx := context.Background()
	g, _ := m.CreateGame(ctx, "alice", "bob")

	seq := []struct{ actor, san string }{
		{"alice", "e4"}, {"bob", "e5"},
		{"alice", "Qh5"}, {"bob", "Nc6"},
		{"alice", "Bc4"}, {"bob", "Nf6"},
	}
	for _, mv := range seq {
		if _, _, _, err := m.SubmitMove(ctx, g.ID, mv.actor, mv.san); err != nil {
			t.Fatalf("%s: %v", mv.san, err)
		}
	}

	final, rec, verdict, err := m.SubmitMove(ctx, g.ID, "alice", "Qxf7#")
	if err != nil {
		t.Fatalf("mating move: %v", err)
	}
	if !verdict.Over || verdict.Winner != rules.White {
		t.Fatalf("expected white checkmate verdict, got %+v", verdict)
	}
	// the mover's color wins, in the same call that applied the move
	if final.Status != StatusFinished || final.Result != ResultWhiteWin {
		t.Fatalf("expected finished/white_win, got %s %s", final.Status, final.Result)
	}
	if rec.Number != 7 {
		t.Fatalf("mating move number %d, want 7", rec.Number)
	}

	loaded, _ := m.Load(ctx, g.ID)
	if loaded.Status != StatusFinished || loaded.Result != ResultWhiteWin {
		t.Fatalf("persisted state not terminal: %+v", loaded)
	}
	if arch.results[g.ID] != ResultWhiteWin {
		t.Fatalf("result not archived: %v", arch.results)
	}
}

func TestConcurrentSubmissionsOnlyOneCommits(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	g, _ := m.CreateGame(ctx, "alice", "bob")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, san := range []string{"e4", "d4"} {
		wg.Add(1)
		go func(i int, san string) {
			defer wg.Done()
			_, _, _, errs[i] = m.SubmitMove(ctx, g.ID, "alice", san)
		}(i, san)
	}
	wg.Wait()

	var committed, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrNotYourTurn), errors.Is(err, ErrGameNotActive):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if committed != 1 || rejected != 1 {
		t.Fatalf("committed=%d rejected=%d, want exactly one of each", committed, rejected)
	}

	loaded, _ := m.Load(ctx, g.ID)
	if loaded.MoveCount != 1 {
		t.Fatalf("move_count %d after concurrent submissions", loaded.MoveCount)
	}
}

func TestArchiveFailureBlocksCommit(t *testing.T) {
	m := newTestManager(t)
	arch := newStubArchive()
	arch.failing = true
	m.AttachArchive(arch)
	ctx := context.Background()
	g, _ := m.CreateGame(ctx, "alice", "bob")

	_, _, _, err := m.SubmitMove(ctx, g.ID, "alice", "e4")
	if !errors.Is(err, ErrArchiveUnavailable) {
		t.Fatalf("expected ErrArchiveUnavailable, got %v", err)
	}

	loaded, _ := m.Load(ctx, g.ID)
	if loaded.MoveCount != 0 || loaded.FEN != rules.StartingFEN {
		t.Fatalf("move committed despite archive failure: %+v", loaded)
	}

	arch.failing = false
	if _, rec, _, err := m.SubmitMove(ctx, g.ID, "alice", "e4"); err != nil || rec.Number != 1 {
		t.Fatalf("retry after recovery failed: rec=%+v err=%v", rec, err)
	}
}

func TestResignAssignsOpponentWin(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	g, _ := m.CreateGame(ctx, "alice", "bob")
	res, err := m.Resign(ctx, g.ID, "alice")
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if res.Result != ResultBlackWin {
		t.Fatalf("white resigned, expected black_win, got %s", res.Result)
	}

	if _, err := m.Resign(ctx, g.ID, "bob"); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
	if _, err := m.Resign(ctx, g.ID, "mallory"); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}
}

func TestTerminalGameReleasesLock(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	g, _ := m.CreateGame(ctx, "alice", "bob")
	if _, err := m.Resign(ctx, g.ID, "alice"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if _, held := m.locks.Load(g.ID); held {
		t.Fatal("finished game still holds a lock entry")
	}

	// a late submission must still be rejected, and must not leave a new entry
	if _, _, _, err := m.SubmitMove(ctx, g.ID, "bob", "e4"); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
	if _, held := m.locks.Load(g.ID); held {
		t.Fatal("rejected late submission re-registered a lock entry")
	}

	if _, _, _, err := m.SubmitMove(ctx, "absent", "alice", "e4"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
	if _, held := m.locks.Load("absent"); held {
		t.Fatal("unknown game left a lock entry")
	}
}
