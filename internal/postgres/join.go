package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Join: lock product (FOR UPDATE) -> cek kapasitas -> increment -> catat order.
// Concurrent joins on the same product queue on the row lock, so only one
// of them can take the last slot.
func (r *Repository) Join(ctx context.Context, productID string, req groupbuy.JoinRequest) (groupbuy.Product, groupbuy.Order, error) {
	if req.Quantity < 1 {
		return groupbuy.Product{}, groupbuy.Order{}, groupbuy.ErrInvalidQuantity
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return groupbuy.Product{}, groupbuy.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, productID))
	if err != nil {
		return groupbuy.Product{}, groupbuy.Order{}, err
	}
	if p.CurrentOrders >= p.GroupSize {
		return groupbuy.Product{}, groupbuy.Order{}, groupbuy.ErrGroupCompleted
	}

	p, err = scanProduct(tx.QueryRow(ctx, `
		UPDATE products SET current_orders = current_orders + 1, updated_at = now()
		WHERE id=$1 AND current_orders < group_size
		RETURNING `+productCols, productID))
	if err != nil {
		return groupbuy.Product{}, groupbuy.Order{}, fmt.Errorf("increment %s: %w", productID, err)
	}

	total := groupbuy.ComputeTotal(p.Price, req.Quantity)
	o, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO group_orders(id, product_id, vendor_id, quantity, total_price, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING `+orderCols,
		uuid.NewString(), productID, req.VendorID, req.Quantity, total.String(), string(groupbuy.OrderWaiting),
	))
	if err != nil {
		return groupbuy.Product{}, groupbuy.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return groupbuy.Product{}, groupbuy.Order{}, err
	}
	return p, o, nil
}

func (r *Repository) ConfirmOrders(ctx context.Context, productID string) (int, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE group_orders SET status=$2, updated_at=now()
		WHERE product_id=$1 AND status=$3`,
		productID, string(groupbuy.OrderConfirmed), string(groupbuy.OrderWaiting))
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *Repository) SetOrderStatus(ctx context.Context, id string, to groupbuy.OrderStatus) (groupbuy.Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return groupbuy.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM group_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return groupbuy.Order{}, err
	}
	if !groupbuy.CanTransition(o.Status, to) {
		return groupbuy.Order{}, fmt.Errorf("%w: %s -> %s", groupbuy.ErrInvalidTransition, o.Status, to)
	}

	o, err = scanOrder(tx.QueryRow(ctx, `
		UPDATE group_orders SET status=$2, updated_at=now() WHERE id=$1
		RETURNING `+orderCols, id, string(to)))
	if err != nil {
		return groupbuy.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return groupbuy.Order{}, err
	}
	return o, nil
}
