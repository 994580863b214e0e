package groupbuy

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultImage = "/api/placeholder/300/200"

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	GroupSize     int             `json:"group_size"`
	CurrentOrders int             `json:"current_orders"`
	Deadline      string          `json:"deadline,omitempty"` // informational only
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Product) Status() ProductStatus { return DerivedStatus(p.CurrentOrders, p.GroupSize) }

func (p Product) SlotsLeft() int { return p.GroupSize - p.CurrentOrders }

func (p Product) ProgressPercent() int {
	if p.GroupSize <= 0 {
		return 0
	}
	return p.CurrentOrders * 100 / p.GroupSize
}

// ProductView is the read model handed to clients; status and progress are
// computed at construction time from the stored counters.
type ProductView struct {
	Product
	Status          ProductStatus `json:"status"`
	SlotsLeft       int           `json:"slots_left"`
	ProgressPercent int           `json:"progress_percent"`
}

func ViewOf(p Product) ProductView {
	return ProductView{
		Product:         p,
		Status:          p.Status(),
		SlotsLeft:       p.SlotsLeft(),
		ProgressPercent: p.ProgressPercent(),
	}
}

func ViewsOf(ps []Product) []ProductView {
	out := make([]ProductView, 0, len(ps))
	for _, p := range ps {
		out = append(out, ViewOf(p))
	}
	return out
}

type Order struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	VendorID   string          `json:"vendor_id,omitempty"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"` // lihat status.go
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProductInput carries the admin-editable fields. Create and update both
// replace every field wholesale.
type ProductInput struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	GroupSize int             `json:"group_size"`
	Deadline  string          `json:"deadline"`
}

type JoinRequest struct {
	VendorID       string `json:"vendor_id"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"-"`
}

type JoinResult struct {
	Order      Order       `json:"order"`
	Product    ProductView `json:"product"`
	Idempotent bool        `json:"idempotent"`
}

type Quote struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}
