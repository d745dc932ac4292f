package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "schedbot:cursor:"

// RedisStore keeps continuation cursors in Redis so show-more follow-ups
// survive a bot restart. TTL handles expiry, GETDEL handles single use.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = CursorTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Save(ctx context.Context, id string, cur Cursor) error {
	b, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	return r.rdb.Set(ctx, redisKeyPrefix+id, b, r.ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, id string) (Cursor, error) {
	b, err := r.rdb.GetDel(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cursor{}, ErrExpired
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("take cursor: %w", err)
	}
	var cur Cursor
	if err := json.Unmarshal(b, &cur); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return cur, nil
}
