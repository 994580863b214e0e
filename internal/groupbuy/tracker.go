package groupbuy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker owns the group-order rules: admission of joins against capacity,
// status derivation and product administration. Every change to
// CurrentOrders goes through Repo.Join.
type Tracker struct {
	Repo        Repository
	Events      Emitter          // optional
	Idempotency IdempotencyStore // optional
	Log         *zap.Logger
	ServiceName string
	Now         func() time.Time
}

func (t *Tracker) log() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

func (t *Tracker) CreateProduct(ctx context.Context, in ProductInput) (ProductView, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return ProductView{}, err
	}

	now := t.now()
	p := Product{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Price:     in.Price,
		Image:     in.Image,
		GroupSize: in.GroupSize,
		Deadline:  in.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Repo.CreateProduct(ctx, p); err != nil {
		return ProductView{}, fmt.Errorf("create product: %w", err)
	}

	t.log().Info("product created", zap.String("product_id", p.ID), zap.Int("group_size", p.GroupSize))
	t.emit(ctx, EventProductCreated, p.ID, productPayload(p))
	return ViewOf(p), nil
}

// UpdateProduct replaces the editable fields. A group size below the number
// of orders already joined is rejected.
func (t *Tracker) UpdateProduct(ctx context.Context, id string, in ProductInput) (ProductView, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return ProductView{}, err
	}

	var wasCompleted bool
	p, err := t.Repo.UpdateProduct(ctx, id, func(p *Product) error {
		if in.GroupSize < p.CurrentOrders {
			return invalid("group_size", fmt.Sprintf("cannot be below current orders (%d)", p.CurrentOrders))
		}
		wasCompleted = p.Status() == ProductCompleted
		p.Name = in.Name
		p.Price = in.Price
		p.Image = in.Image
		p.GroupSize = in.GroupSize
		p.Deadline = in.Deadline
		return nil
	})
	if err != nil {
		return ProductView{}, fmt.Errorf("update product %s: %w", id, err)
	}

	t.log().Info("product updated", zap.String("product_id", p.ID))
	t.emit(ctx, EventProductUpdated, p.ID, productPayload(p))
	if !wasCompleted && p.Status() == ProductCompleted {
		t.emitCompleted(ctx, p)
	}
	return ViewOf(p), nil
}

func (t *Tracker) DeleteProduct(ctx context.Context, id string) error {
	if err := t.Repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	t.log().Info("product deleted", zap.String("product_id", id))
	t.emit(ctx, EventProductDeleted, id, ProductDeletedPayload{ProductID: id})
	return nil
}

func (t *Tracker) GetProduct(ctx context.Context, id string) (ProductView, error) {
	p, err := t.Repo.GetProduct(ctx, id)
	if err != nil {
		return ProductView{}, err
	}
	return ViewOf(p), nil
}

func (t *Tracker) ListProducts(ctx context.Context) ([]ProductView, error) {
	ps, err := t.Repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return ViewsOf(ps), nil
}

// Quote prices a prospective join without touching the group.
func (t *Tracker) Quote(ctx context.Context, productID string, quantity int) (Quote, error) {
	if quantity < 1 {
		return Quote{}, ErrInvalidQuantity
	}
	p, err := t.Repo.GetProduct(ctx, productID)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ProductID: p.ID,
		UnitPrice: p.Price,
		Quantity:  quantity,
		Total:     ComputeTotal(p.Price, quantity),
	}, nil
}

// Join admits one vendor order into the product's group. Each join takes one
// slot regardless of quantity. A completed group rejects with
// ErrGroupCompleted, which also matches ErrCapacityExceeded.
//
// With an idempotency key the join runs at most once per key: concurrent
// requests carrying the same key wait for the first one and replay its order.
func (t *Tracker) Join(ctx context.Context, productID string, req JoinRequest) (JoinResult, error) {
	if req.Quantity < 1 {
		return JoinResult{}, ErrInvalidQuantity
	}

	res, state, err := t.claim(ctx, productID, req.IdempotencyKey)
	if err != nil {
		return JoinResult{}, err
	}
	if state == claimReplayed {
		return res, nil
	}

	p, o, err := t.Repo.Join(ctx, productID, req)
	if err != nil {
		if state == claimOwned {
			if rerr := t.Idempotency.Release(context.WithoutCancel(ctx), req.IdempotencyKey); rerr != nil {
				t.log().Warn("release idempotency key", zap.Error(rerr))
			}
		}
		if errors.Is(err, ErrCapacityExceeded) {
			t.log().Info("join rejected", zap.String("product_id", productID), zap.Error(err))
		}
		return JoinResult{}, err
	}

	if state == claimOwned {
		if err := t.Idempotency.Remember(context.WithoutCancel(ctx), req.IdempotencyKey, o.ID); err != nil {
			t.log().Warn("remember idempotency key", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	t.log().Info("order joined",
		zap.String("product_id", p.ID),
		zap.String("order_id", o.ID),
		zap.Int("current_orders", p.CurrentOrders),
		zap.Int("group_size", p.GroupSize),
	)
	t.emit(ctx, EventOrderJoined, p.ID, OrderJoinedPayload{
		OrderID:       o.ID,
		ProductID:     p.ID,
		VendorID:      o.VendorID,
		Quantity:      o.Quantity,
		TotalPrice:    o.TotalPrice,
		CurrentOrders: p.CurrentOrders,
		GroupSize:     p.GroupSize,
	})
	if p.Status() == ProductCompleted {
		t.emitCompleted(ctx, p)
	}
	return JoinResult{Order: o, Product: ViewOf(p)}, nil
}

type claimState int

const (
	claimSkipped  claimState = iota // no key, no store, or store unavailable
	claimOwned                      // this call reserved the key
	claimReplayed                   // the key already produced an order
)

var (
	idempotencyPoll = 10 * time.Millisecond
	idempotencyWait = 5 * time.Second
)

// claim reserves key for this join, or waits for the join that holds it and
// replays its order. An unreachable store degrades to a plain join.
func (t *Tracker) claim(ctx context.Context, productID, key string) (JoinResult, claimState, error) {
	if key == "" || t.Idempotency == nil {
		return JoinResult{}, claimSkipped, nil
	}

	deadline := time.NewTimer(idempotencyWait)
	defer deadline.Stop()
	for {
		ok, err := t.Idempotency.Reserve(ctx, key)
		if err != nil {
			t.log().Warn("idempotency reserve", zap.Error(err))
			return JoinResult{}, claimSkipped, nil
		}
		if ok {
			return JoinResult{}, claimOwned, nil
		}

		orderID, pending, err := t.Idempotency.Lookup(ctx, key)
		if err != nil {
			t.log().Warn("idempotency lookup", zap.Error(err))
			return JoinResult{}, claimSkipped, nil
		}
		if orderID != "" {
			res, err := t.replay(ctx, productID, orderID)
			return res, claimReplayed, err
		}
		if !pending {
			// released by a failed join; try to take it over
			continue
		}

		select {
		case <-ctx.Done():
			return JoinResult{}, claimSkipped, ctx.Err()
		case <-deadline.C:
			return JoinResult{}, claimSkipped, ErrIdempotencyInFlight
		case <-time.After(idempotencyPoll):
		}
	}
}

// replay returns the result of the earlier join that produced orderID. The
// order must belong to productID.
func (t *Tracker) replay(ctx context.Context, productID, orderID string) (JoinResult, error) {
	o, err := t.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("replay order %s: %w", orderID, err)
	}
	if o.ProductID != productID {
		return JoinResult{}, ErrIdempotencyKeyReused
	}
	p, err := t.Repo.GetProduct(ctx, o.ProductID)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Order: o, Product: ViewOf(p), Idempotent: true}, nil
}

func (t *Tracker) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	orders, err := t.Repo.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ConfirmGroup confirms the waiting orders of a completed group. Calling it
// again is harmless.
func (t *Tracker) ConfirmGroup(ctx context.Context, productID string) (int, error) {
	p, err := t.Repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if p.Status() != ProductCompleted {
		return 0, fmt.Errorf("confirm group %s: %w", productID, ErrInvalidTransition)
	}
	n, err := t.Repo.ConfirmOrders(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("confirm group %s: %w", productID, err)
	}
	t.log().Info("group confirmed", zap.String("product_id", productID), zap.Int("orders", n))
	return n, nil
}

func (t *Tracker) MarkDelivered(ctx context.Context, orderID string) (Order, error) {
	o, err := t.Repo.SetOrderStatus(ctx, orderID, OrderDelivered)
	if err != nil {
		return Order{}, err
	}
	t.log().Info("order delivered", zap.String("order_id", o.ID))
	return o, nil
}

func (t *Tracker) emitCompleted(ctx context.Context, p Product) {
	t.log().Info("group completed", zap.String("product_id", p.ID), zap.Int("group_size", p.GroupSize))
	t.emit(ctx, EventGroupCompleted, p.ID, GroupCompletedPayload{
		ProductID:   p.ID,
		GroupSize:   p.GroupSize,
		CompletedAt: t.now(),
	})
}

// emit is best effort: a failed publish is logged and never fails the
// operation that already committed.
func (t *Tracker) emit(ctx context.Context, eventType, productID string, payload any) {
	if t.Events == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.log().Error("encode event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EnvelopeVersion,
		OccurredAt:    t.now(),
		Producer:      t.ServiceName,
		TraceID:       TraceID(ctx),
		CorrelationID: productID,
		Payload:       raw,
	}
	if err := t.Events.Emit(ctx, TopicFor(eventType), env); err != nil {
		t.log().Warn("emit event", zap.String("event_type", eventType), zap.Error(err))
	}
}

type traceKey struct{}

func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
