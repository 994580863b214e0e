package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedRepository is a read-through product cache in front of another
// repository. Every product write, join included, evicts the entries it
// touched, so cached counters never outlive the change that made them stale.
// Redis failures fall back to the inner repository.
//
// Each cache key has a generation counter bumped on eviction. A fill only
// lands if the generation it read before loading is still current, so a slow
// reader cannot put back a value that a concurrent write already evicted.
type CachedRepository struct {
	groupbuy.Repository
	Redis *redis.Client
	TTL   time.Duration
	Log   *zap.Logger
}

var _ groupbuy.Repository = (*CachedRepository)(nil)

func (c *CachedRepository) ttl() time.Duration {
	if c.TTL <= 0 {
		return TTLProduct
	}
	return c.TTL
}

func (c *CachedRepository) warn(msg string, err error) {
	if c.Log != nil {
		c.Log.Warn(msg, zap.Error(err))
	}
}

func (c *CachedRepository) GetProduct(ctx context.Context, id string) (groupbuy.Product, error) {
	key := fmt.Sprintf(KeyProduct, id)
	if b, err := c.Redis.Get(ctx, key).Bytes(); err == nil {
		var p groupbuy.Product
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
	}

	gen := c.generation(ctx, key)
	p, err := c.Repository.GetProduct(ctx, id)
	if err != nil {
		return groupbuy.Product{}, err
	}
	c.store(ctx, key, gen, p)
	return p, nil
}

func (c *CachedRepository) ListProducts(ctx context.Context) ([]groupbuy.Product, error) {
	if b, err := c.Redis.Get(ctx, KeyProductList).Bytes(); err == nil {
		var ps []groupbuy.Product
		if err := json.Unmarshal(b, &ps); err == nil {
			return ps, nil
		}
	}

	gen := c.generation(ctx, KeyProductList)
	ps, err := c.Repository.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, KeyProductList, gen, ps)
	return ps, nil
}

func (c *CachedRepository) CreateProduct(ctx context.Context, p groupbuy.Product) error {
	if err := c.Repository.CreateProduct(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

func (c *CachedRepository) UpdateProduct(ctx context.Context, id string, fn func(*groupbuy.Product) error) (groupbuy.Product, error) {
	p, err := c.Repository.UpdateProduct(ctx, id, fn)
	if err != nil {
		return groupbuy.Product{}, err
	}
	c.evict(ctx, id)
	return p, nil
}

func (c *CachedRepository) DeleteProduct(ctx context.Context, id string) error {
	if err := c.Repository.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *CachedRepository) Join(ctx context.Context, productID string, req groupbuy.JoinRequest) (groupbuy.Product, groupbuy.Order, error) {
	p, o, err := c.Repository.Join(ctx, productID, req)
	if err != nil {
		return p, o, err
	}
	c.evict(ctx, productID)
	return p, o, nil
}

// generation returns the current counter of key, "" when never evicted.
func (c *CachedRepository) generation(ctx context.Context, key string) string {
	gen, err := c.Redis.Get(ctx, fmt.Sprintf(KeyCacheGen, key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.warn("cache generation", err)
	}
	return gen
}

// store caches v under key unless key was evicted after gen was read.
func (c *CachedRepository) store(ctx context.Context, key, gen string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	genKey := fmt.Sprintf(KeyCacheGen, key)
	err = c.Redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, c.ttl())
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
	default:
		c.warn("cache set", err)
	}
}

var errStaleFill = errors.New("cache key evicted during fill")

func (c *CachedRepository) evict(ctx context.Context, id string) {
	productKey := fmt.Sprintf(KeyProduct, id)
	_, err := c.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range []string{productKey, KeyProductList} {
			genKey := fmt.Sprintf(KeyCacheGen, k)
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, TTLCacheGen)
		}
		pipe.Del(ctx, productKey, KeyProductList)
		return nil
	})
	if err != nil {
		c.warn("cache evict", err)
	}
}
