package invite

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/castlane/chesslive/internal/live"
	"github.com/castlane/chesslive/internal/obslog"
)

const defaultInviteTTL = time.Hour

// Manager keeps invitations in Redis and turns an accepted invitation into
// an active game. Answering an invitation is serialized per invitation id so
// a double accept cannot create two games.
type Manager struct {
	rdb   *redis.Client
	games *live.Manager
	ttl   time.Duration
	locks sync.Map // invitation id -> *sync.Mutex
}

func NewManager(rdb *redis.Client, games *live.Manager, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	return &Manager{rdb: rdb, games: games, ttl: ttl}
}

func inviteKey(id string) string { return "live:invite:" + id }

func (m *Manager) lockFor(id string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// dropLock forgets the mutex of an invitation that can no longer change
// state. Late answers get a fresh mutex and fail on the resolved (or absent)
// record, so the map stays bounded by pending invitations.
func (m *Manager) dropLock(id string) {
	m.locks.Delete(id)
}

// Create records a pending invitation from sender to recipient.
func (m *Manager) Create(ctx context.Context, sender, recipient string) (*Invitation, error) {
	if sender == "" || recipient == "" || sender == recipient {
		return nil, ErrInvalidArgs
	}
	now := time.Now()
	inv := &Invitation{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.save(ctx, inv); err != nil {
		return nil, err
	}
	obslog.L().Info("invite_create",
		zap.String("invite_id", inv.ID),
		zap.String("sender", sender),
		zap.String("recipient", recipient),
	)
	return inv, nil
}

// Accept resolves a pending invitation and creates the game: the sender
// plays white, the recipient black. The game link is set exactly once.
func (m *Manager) Accept(ctx context.Context, id string) (*Invitation, *live.Game, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	inv, err := m.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInviteGone) {
			m.dropLock(id)
		}
		return nil, nil, err
	}
	if inv.Status != StatusPending {
		m.dropLock(id)
		return nil, nil, ErrInviteResolved
	}

	g, err := m.games.CreateGame(ctx, inv.Sender, inv.Recipient)
	if err != nil {
		return nil, nil, err
	}
	inv.Status = StatusAccepted
	inv.GameID = g.ID
	inv.UpdatedAt = time.Now()
	if err := m.save(ctx, inv); err != nil {
		return nil, nil, err
	}
	obslog.L().Info("invite_accept",
		zap.String("invite_id", inv.ID),
		zap.String("game_id", g.ID),
	)
	m.dropLock(id)
	return inv, g, nil
}

// Decline resolves a pending invitation without creating a game.
func (m *Manager) Decline(ctx context.Context, id string) (*Invitation, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	inv, err := m.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInviteGone) {
			m.dropLock(id)
		}
		return nil, err
	}
	if inv.Status != StatusPending {
		m.dropLock(id)
		return nil, ErrInviteResolved
	}
	inv.Status = StatusDeclined
	inv.UpdatedAt = time.Now()
	if err := m.save(ctx, inv); err != nil {
		return nil, err
	}
	obslog.L().Info("invite_decline", zap.String("invite_id", inv.ID))
	m.dropLock(id)
	return inv, nil
}

// Load returns the invitation, or ErrInviteGone.
func (m *Manager) Load(ctx context.Context, id string) (*Invitation, error) {
	return m.load(ctx, id)
}

func (m *Manager) save(ctx context.Context, inv *Invitation) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, inviteKey(inv.ID), raw, m.ttl).Err()
}

func (m *Manager) load(ctx context.Context, id string) (*Invitation, error) {
	if id == "" {
		return nil, ErrInviteGone
	}
	raw, err := m.rdb.Get(ctx, inviteKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInviteGone
	}
	if err != nil {
		return nil, err
	}
	var inv Invitation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
