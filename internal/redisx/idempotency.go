package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/redis/go-redis/v9"
)

// pendingOrder marks a reserved key whose join has not finished.
const pendingOrder = "pending"

// IdempotencyStore maps a client Idempotency-Key to the order it created.
type IdempotencyStore struct {
	Redis *redis.Client
}

var _ groupbuy.IdempotencyStore = (*IdempotencyStore)(nil)

// Reserve claims the key with SETNX. The claim expires after TTLIdemPending
// so a crashed api does not lock the key for a day.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	return s.Redis.SetNX(ctx, fmt.Sprintf(KeyIdemJoin, key), pendingOrder, TTLIdemPending).Result()
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Redis.Get(ctx, fmt.Sprintf(KeyIdemJoin, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == pendingOrder {
		return "", true, nil
	}
	return v, false, nil
}

// Remember binds the reserved key to its order for TTLIdempotency.
func (s *IdempotencyStore) Remember(ctx context.Context, key, orderID string) error {
	return s.Redis.Set(ctx, fmt.Sprintf(KeyIdemJoin, key), orderID, TTLIdempotency).Err()
}

// Release drops a reservation after a failed join.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(KeyIdemJoin, key)).Err()
}
