package groupbuy

import "context"

// Repository is the storage contract for products and their orders.
//
// Join must be atomic with respect to other joins on the same product: the
// capacity check, the increment of CurrentOrders and the insert of the order
// either all happen or none do, and at most GroupSize joins ever succeed.
type Repository interface {
	CreateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// UpdateProduct loads the product under lock, applies fn and persists the
	// result. An error from fn aborts the update and is returned as is.
	UpdateProduct(ctx context.Context, id string, fn func(*Product) error) (Product, error)
	DeleteProduct(ctx context.Context, id string) error

	Join(ctx context.Context, productID string, req JoinRequest) (Product, Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	// ConfirmOrders moves every waiting order of the product to confirmed and
	// returns how many rows changed.
	ConfirmOrders(ctx context.Context, productID string) (int, error)
	SetOrderStatus(ctx context.Context, id string, to OrderStatus) (Order, error)
}

type OrderFilter struct {
	VendorID  string
	ProductID string
}

func (f OrderFilter) Match(o Order) bool {
	if f.VendorID != "" && o.VendorID != f.VendorID {
		return false
	}
	if f.ProductID != "" && o.ProductID != f.ProductID {
		return false
	}
	return true
}

// IdempotencyStore binds a client-supplied key to the order it created.
// A key is first claimed with Reserve, then either bound with Remember or
// freed with Release.
type IdempotencyStore interface {
	// Reserve claims key for a new join. It returns false when the key is
	// already claimed or bound.
	Reserve(ctx context.Context, key string) (bool, error)
	// Lookup returns the order bound to key. pending is true while a claim
	// exists whose join has not finished; both are zero for an unknown key.
	Lookup(ctx context.Context, key string) (orderID string, pending bool, err error)
	Remember(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// Emitter delivers an envelope to the named topic.
type Emitter interface {
	Emit(ctx context.Context, topic string, env Envelope) error
}
