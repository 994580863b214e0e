package groupbuy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. A single mutex
// serializes every mutation, which is what makes Join safe at the capacity
// boundary.
type MemoryRepository struct {
	mu       sync.Mutex
	products map[string]*Product
	orders   map[string]*Order
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[string]*Product),
		orders:   make(map[string]*Order),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) CreateProduct(_ context.Context, p Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	cp := p
	r.products[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetProduct(_ context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (r *MemoryRepository) ListProducts(_ context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) UpdateProduct(_ context.Context, id string, fn func(*Product) error) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	next := *p
	if err := fn(&next); err != nil {
		return Product{}, err
	}
	next.ID = p.ID
	next.UpdatedAt = r.now()
	*p = next
	return next, nil
}

func (r *MemoryRepository) DeleteProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(r.products, id)
	for oid, o := range r.orders {
		if o.ProductID == id {
			delete(r.orders, oid)
		}
	}
	return nil
}

func (r *MemoryRepository) Join(_ context.Context, productID string, req JoinRequest) (Product, Order, error) {
	if req.Quantity < 1 {
		return Product{}, Order{}, ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return Product{}, Order{}, ErrProductNotFound
	}
	if p.CurrentOrders >= p.GroupSize {
		return Product{}, Order{}, ErrGroupCompleted
	}

	now := r.now()
	p.CurrentOrders++
	p.UpdatedAt = now

	o := &Order{
		ID:         uuid.NewString(),
		ProductID:  productID,
		VendorID:   req.VendorID,
		Quantity:   req.Quantity,
		TotalPrice: ComputeTotal(p.Price, req.Quantity),
		Status:     OrderWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.orders[o.ID] = o
	return *p, *o, nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return *o, nil
}

func (r *MemoryRepository) ListOrders(_ context.Context, f OrderFilter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Order, 0)
	for _, o := range r.orders {
		if f.Match(*o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) ConfirmOrders(_ context.Context, productID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := 0
	for _, o := range r.orders {
		if o.ProductID == productID && o.Status == OrderWaiting {
			o.Status = OrderConfirmed
			o.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) SetOrderStatus(_ context.Context, id string, to OrderStatus) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if !CanTransition(o.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = r.now()
	return *o, nil
}
