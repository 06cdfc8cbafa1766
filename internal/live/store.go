package live

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultGameTTL = 24 * time.Hour

// Store keeps live game documents in Redis as JSON blobs. Documents for
// unfinished games expire after the TTL; finished games live on in the
// archive only.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultGameTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func gameKey(id string) string { return "live:game:" + id }

func (s *Store) Save(ctx context.Context, g *Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, gameKey(g.ID), raw, s.ttl).Err()
}

// Load returns the game document, or ErrGameNotFound when the key is absent.
func (s *Store) Load(ctx context.Context, id string) (*Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
