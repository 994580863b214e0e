package redisx

import "time"

const (
	// Idempotency join: idem:join:{idempotency_key} -> order_id | "pending"
	KeyIdemJoin = "idem:join:%s"

	// Cache product: product:{product_id} -> JSON product
	KeyProduct = "product:%s"

	// Cache listing semua product
	KeyProductList = "products:all"

	// Generasi cache: gen:{cache_key} -> counter, naik setiap evict
	KeyCacheGen = "gen:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = time.Minute
	TTLProduct     = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCacheGen    = 24 * time.Hour
)
