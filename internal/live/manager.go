package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/castlane/chesslive/internal/obslog"
	"github.com/castlane/chesslive/internal/rules"
)

// MoveArchive is the durable persistence collaborator. SaveMove must succeed
// before a move counts as committed; SetGameResult records terminal results.
type MoveArchive interface {
	SaveMove(ctx context.Context, rec *MoveRecord) error
	SetGameResult(ctx context.Context, gameID string, status Status, result Result) error
}

// Manager owns game state transitions. Mutation of a single game is
// serialized by an in-process lock keyed by game id, held across the whole
// load-validate-apply-persist sequence so two near-simultaneous submissions
// can never both pass the turn check.
type Manager struct {
	store   *Store
	archive MoveArchive
	locks   sync.Map // game id -> *sync.Mutex
}

func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// AttachArchive wires the durable move archive. Without one, moves are kept
// on the live document only (development mode).
func (m *Manager) AttachArchive(a MoveArchive) {
	m.archive = a
}

func (m *Manager) lockFor(gameID string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(gameID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// dropLock forgets a game's mutex once the document can no longer be
// mutated. A late caller gets a fresh mutex and only ever observes the
// terminal (or absent) document, so the map stays bounded by active games.
func (m *Manager) dropLock(gameID string) {
	m.locks.Delete(gameID)
}

// CreateGame starts an active game at the standard initial position. The
// caller is the invitation-acceptance path: the sender of the accepted
// invitation plays white.
func (m *Manager) CreateGame(ctx context.Context, white, black string) (*Game, error) {
	if white == "" || black == "" || white == black {
		return nil, fmt.Errorf("invalid participants %q vs %q", white, black)
	}
	now := time.Now()
	g := &Game{
		ID:        uuid.NewString(),
		White:     white,
		Black:     black,
		Status:    StatusActive,
		Result:    ResultInProgress,
		FEN:       rules.StartingFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_create",
		zap.String("game_id", g.ID),
		zap.String("white", g.White),
		zap.String("black", g.Black),
	)
	return g, nil
}

// Load returns the current game document.
func (m *Manager) Load(ctx context.Context, gameID string) (*Game, error) {
	return m.store.Load(ctx, gameID)
}

// SubmitMove validates and commits one move. Check order: participant,
// game active, turn, legality. The returned verdict is non-zero when the
// move ended the game; status and result are already final on the returned
// document in that case.
func (m *Manager) SubmitMove(ctx context.Context, gameID, actor, notation string) (*Game, *MoveRecord, rules.Verdict, error) {
	mu := m.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	g, err := m.store.Load(ctx, gameID)
	if err != nil {
		if errors.Is(err, ErrGameNotFound) {
			m.dropLock(gameID)
		}
		return nil, nil, rules.Verdict{}, err
	}
	if !g.IsParticipant(actor) {
		return nil, nil, rules.Verdict{}, ErrNotAParticipant
	}
	if g.Status != StatusActive {
		m.dropLock(gameID)
		return nil, nil, rules.Verdict{}, ErrGameNotActive
	}

	game, err := rules.Replay(g.MovesUCI)
	if err != nil {
		return nil, nil, rules.Verdict{}, err
	}
	if rules.SideToMove(game) != g.ColorOf(actor) {
		return nil, nil, rules.Verdict{}, ErrNotYourTurn
	}

	san, uci, err := rules.Push(game, notation)
	if err != nil {
		return nil, nil, rules.Verdict{}, err
	}

	rec := &MoveRecord{
		GameID:   g.ID,
		Player:   actor,
		Number:   g.MoveCount + 1,
		SAN:      san,
		UCI:      uci,
		FENAfter: game.FEN(),
		PlayedAt: time.Now(),
	}
	if m.archive != nil {
		if aerr := m.archive.SaveMove(ctx, rec); aerr != nil {
			return nil, nil, rules.Verdict{}, fmt.Errorf("%w: %v", ErrArchiveUnavailable, aerr)
		}
	}

	g.MovesSAN = append(g.MovesSAN, san)
	g.MovesUCI = append(g.MovesUCI, uci)
	g.FEN = rec.FENAfter
	g.MoveCount = rec.Number
	g.UpdatedAt = rec.PlayedAt

	verdict := rules.Evaluate(game)
	if verdict.Over {
		g.Status = StatusFinished
		if verdict.Draw {
			g.Result = ResultDraw
		} else if verdict.Winner == rules.White {
			g.Result = ResultWhiteWin
		} else {
			g.Result = ResultBlackWin
		}
	}

	if err := m.store.Save(ctx, g); err != nil {
		return nil, nil, rules.Verdict{}, err
	}

	obslog.L().Info("game_move",
		zap.String("game_id", g.ID),
		zap.String("player", actor),
		zap.Int("move_number", rec.Number),
		zap.String("san", san),
		zap.String("status", string(g.Status)),
	)
	if verdict.Over {
		m.recordResult(ctx, g, verdict.Method)
		m.dropLock(gameID)
	}
	return g, rec, verdict, nil
}

// Resign ends an active game in favor of the opponent.
func (m *Manager) Resign(ctx context.Context, gameID, actor string) (*Game, error) {
	mu := m.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	g, err := m.store.Load(ctx, gameID)
	if err != nil {
		if errors.Is(err, ErrGameNotFound) {
			m.dropLock(gameID)
		}
		return nil, err
	}
	if !g.IsParticipant(actor) {
		return nil, ErrNotAParticipant
	}
	if g.Status != StatusActive {
		m.dropLock(gameID)
		return nil, ErrGameNotActive
	}

	g.Status = StatusFinished
	if g.ColorOf(actor) == rules.White {
		g.Result = ResultBlackWin
	} else {
		g.Result = ResultWhiteWin
	}
	g.UpdatedAt = time.Now()

	if err := m.store.Save(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_resign",
		zap.String("game_id", g.ID),
		zap.String("resigner", actor),
		zap.String("result", string(g.Result)),
	)
	m.recordResult(ctx, g, "resignation")
	m.dropLock(gameID)
	return g, nil
}

// recordResult forwards a terminal result to the archive. Best effort: the
// live document already carries the result, so a failed write is logged
// rather than surfaced to players.
func (m *Manager) recordResult(ctx context.Context, g *Game, method string) {
	if m.archive == nil {
		return
	}
	if err := m.archive.SetGameResult(ctx, g.ID, g.Status, g.Result); err != nil {
		obslog.L().Error("game_result_persist_error",
			zap.String("game_id", g.ID),
			zap.String("method", method),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("game_result_persist",
		zap.String("game_id", g.ID),
		zap.String("result", string(g.Result)),
		zap.String("method", method),
	)
}
