package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		maxConns = 8
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	price          NUMERIC(14,2) NOT NULL CHECK (price > 0),
	image          TEXT NOT NULL DEFAULT '',
	group_size     INT NOT NULL CHECK (group_size >= 2),
	current_orders INT NOT NULL DEFAULT 0 CHECK (current_orders >= 0),
	deadline       TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (current_orders <= group_size)
);

CREATE TABLE IF NOT EXISTS group_orders (
	id          TEXT PRIMARY KEY,
	product_id  TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	vendor_id   TEXT NOT NULL DEFAULT '',
	quantity    INT NOT NULL CHECK (quantity >= 1),
	total_price NUMERIC NOT NULL,
	status      TEXT NOT NULL DEFAULT 'waiting',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS group_orders_product_idx ON group_orders(product_id);
CREATE INDEX IF NOT EXISTS group_orders_vendor_idx ON group_orders(vendor_id);
`

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
