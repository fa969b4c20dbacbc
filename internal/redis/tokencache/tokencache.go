package tokencache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Key is the redis hash holding room name -> token.
const Key = "collab:room_tokens"

// RedisMirror keeps a copy of the token map in a redis hash so that tokens
// survive a restart even before the durable store has been read.
type RedisMirror struct {
	rdc *redis.Client
}

func NewRedisMirror(rdc *redis.Client) *RedisMirror { return &RedisMirror{rdc: rdc} }

// Get returns ("", false, nil) when the room has no mirrored token.
func (m *RedisMirror) Get(ctx context.Context, room string) (string, bool, error) {
	tok, err := m.rdc.HGet(ctx, Key, room).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tok, tok != "", nil
}

func (m *RedisMirror) Set(ctx context.Context, room, token string) error {
	return m.rdc.HSet(ctx, Key, room, token).Err()
}

// SetAll mirrors a whole token map in one round trip.
func (m *RedisMirror) SetAll(ctx context.Context, tokens map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}
	vals := make([]any, 0, len(tokens)*2)
	for room, tok := range tokens {
		vals = append(vals, room, tok)
	}
	return m.rdc.HSet(ctx, Key, vals...).Err()
}
