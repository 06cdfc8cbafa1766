// Package identity resolves connection tokens to usernames. Token issuance
// belongs to the external auth system; this side only reads.
package identity

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Resolver maps a connect-time token to an identity. An empty identity means
// anonymous; anonymous connections may watch but carry no presence.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// RedisResolver reads session tokens the auth system stores under
// live:token:<token>.
type RedisResolver struct {
	rdb *redis.Client
}

func NewRedisResolver(rdb *redis.Client) *RedisResolver {
	return &RedisResolver{rdb: rdb}
}

func tokenKey(token string) string { return "live:token:" + token }

func (r *RedisResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	username, err := r.rdb.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		// unknown token degrades to anonymous rather than refusing the socket
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return username, nil
}

// Static is a fixed token table, used in tests and local development.
type Static map[string]string

func (s Static) Resolve(_ context.Context, token string) (string, error) {
	return s[token], nil
}
