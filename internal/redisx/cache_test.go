package redisx

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := New(addr)
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedRepository_JoinEvictsProduct(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	inner := groupbuy.NewMemoryRepository()
	repo := &CachedRepository{Repository: inner, Redis: rdb}

	p := groupbuy.Product{ID: uuid.NewString(), Name: "Rice", Price: decimal.NewFromInt(450), GroupSize: 3}
	require.NoError(t, repo.CreateProduct(ctx, p))
	t.Cleanup(func() { rdb.Del(ctx, fmt.Sprintf(KeyProduct, p.ID), KeyProductList) })

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentOrders)

	cached, err := Exists(ctx, rdb, fmt.Sprintf(KeyProduct, p.ID))
	require.NoError(t, err)
	assert.True(t, cached)

	_, _, err = repo.Join(ctx, p.ID, groupbuy.JoinRequest{Quantity: 1})
	require.NoError(t, err)

	got, err = repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentOrders)
}

func TestCachedRepository_FillLosesToConcurrentEvict(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	inner := groupbuy.NewMemoryRepository()
	repo := &CachedRepository{Repository: inner, Redis: rdb}

	p := groupbuy.Product{ID: uuid.NewString(), Name: "Rice", Price: decimal.NewFromInt(450), GroupSize: 3}
	require.NoError(t, inner.CreateProduct(ctx, p))
	key := fmt.Sprintf(KeyProduct, p.ID)
	t.Cleanup(func() {
		rdb.Del(ctx, key, KeyProductList, fmt.Sprintf(KeyCacheGen, key), fmt.Sprintf(KeyCacheGen, KeyProductList))
	})

	// a reader loads the product, then a join evicts before the reader stores it
	gen := repo.generation(ctx, key)
	stale, err := inner.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, _, err = repo.Join(ctx, p.ID, groupbuy.JoinRequest{Quantity: 1})
	require.NoError(t, err)
	repo.store(ctx, key, gen, stale)

	cached, err := Exists(ctx, rdb, key)
	require.NoError(t, err)
	assert.False(t, cached, "stale fill must be dropped")

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentOrders)
}

func TestIdempotencyStore(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	store := &IdempotencyStore{Redis: rdb}
	key := uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, fmt.Sprintf(KeyIdemJoin, key)) })

	id, pending, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.False(t, pending)

	ok, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must lose")

	id, pending, err = store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.True(t, pending)

	require.NoError(t, store.Remember(ctx, key, "order-1"))
	id, pending, err = store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)
	assert.False(t, pending)

	require.NoError(t, store.Release(ctx, key))
	ok, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkSeen(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { _ = Forget(ctx, rdb, "test", id) })

	first, err := MarkSeen(ctx, rdb, "test", id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := MarkSeen(ctx, rdb, "test", id)
	require.NoError(t, err)
	assert.False(t, again)
}
