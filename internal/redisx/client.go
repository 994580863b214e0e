package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// MarkSeen records an event id for a consumer. It returns false when the id
// was already recorded, so the caller can skip the duplicate.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, id string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Result()
}

// Forget drops a dedup marker so a failed event can be retried.
func Forget(ctx context.Context, rdb *redis.Client, service, id string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}

// Deduper binds MarkSeen/Forget to one consumer name.
type Deduper struct {
	Redis   *redis.Client
	Service string
}

func (d *Deduper) MarkSeen(ctx context.Context, id string) (bool, error) {
	return MarkSeen(ctx, d.Redis, d.Service, id)
}

func (d *Deduper) Forget(ctx context.Context, id string) error {
	return Forget(ctx, d.Redis, d.Service, id)
}
