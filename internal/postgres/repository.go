package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository stores products and group orders in Postgres.
type Repository struct{ DB *pgxpool.Pool }

var _ groupbuy.Repository = (*Repository)(nil)

const productCols = `id, name, price::text, image, group_size, current_orders, deadline, created_at, updated_at`

const orderCols = `id, product_id, vendor_id, quantity, total_price::text, status, created_at, updated_at`

func scanProduct(row pgx.Row) (groupbuy.Product, error) {
	var (
		p     groupbuy.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Image, &p.GroupSize, &p.CurrentOrders, &p.Deadline, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return groupbuy.Product{}, groupbuy.ErrProductNotFound
		}
		return groupbuy.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return groupbuy.Product{}, fmt.Errorf("decode price of %s: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}

func scanOrder(row pgx.Row) (groupbuy.Order, error) {
	var (
		o      groupbuy.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.VendorID, &o.Quantity, &total, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return groupbuy.Order{}, groupbuy.ErrOrderNotFound
		}
		return groupbuy.Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return groupbuy.Order{}, fmt.Errorf("decode total of %s: %w", o.ID, err)
	}
	o.TotalPrice = d
	o.Status = groupbuy.OrderStatus(status)
	return o, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p groupbuy.Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, price, image, group_size, current_orders, deadline, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Price.String(), p.Image, p.GroupSize, p.CurrentOrders, p.Deadline, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *Repository) GetProduct(ctx context.Context, id string) (groupbuy.Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

func (r *Repository) ListProducts(ctx context.Context) ([]groupbuy.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []groupbuy.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProduct: lock row (FOR UPDATE) -> apply fn -> write back.
func (r *Repository) UpdateProduct(ctx context.Context, id string, fn func(*groupbuy.Product) error) (groupbuy.Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return groupbuy.Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return groupbuy.Product{}, err
	}
	if err := fn(&p); err != nil {
		return groupbuy.Product{}, err
	}

	p, err = scanProduct(tx.QueryRow(ctx, `
		UPDATE products
		SET name=$2, price=$3::numeric, image=$4, group_size=$5, deadline=$6, updated_at=now()
		WHERE id=$1
		RETURNING `+productCols,
		id, p.Name, p.Price.String(), p.Image, p.GroupSize, p.Deadline,
	))
	if err != nil {
		return groupbuy.Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return groupbuy.Product{}, err
	}
	return p, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return groupbuy.ErrProductNotFound
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (groupbuy.Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM group_orders WHERE id=$1`, id))
}

func (r *Repository) ListOrders(ctx context.Context, f groupbuy.OrderFilter) ([]groupbuy.Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM group_orders
		WHERE ($1 = '' OR vendor_id = $1) AND ($2 = '' OR product_id = $2)
		ORDER BY created_at, id`, f.VendorID, f.ProductID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []groupbuy.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
