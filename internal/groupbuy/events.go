package groupbuy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventProductCreated = "ProductCreated"
	EventProductUpdated = "ProductUpdated"
	EventProductDeleted = "ProductDeleted"
	EventOrderJoined    = "OrderJoined"
	EventGroupCompleted = "GroupCompleted"
)

const EnvelopeVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "groupbuy-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // product_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload per event ----

type ProductPayload struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	GroupSize     int             `json:"group_size"`
	CurrentOrders int             `json:"current_orders"`
	Status        ProductStatus   `json:"status"`
}

type ProductDeletedPayload struct {
	ProductID string `json:"product_id"`
}

type OrderJoinedPayload struct {
	OrderID       string          `json:"order_id"`
	ProductID     string          `json:"product_id"`
	VendorID      string          `json:"vendor_id,omitempty"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	CurrentOrders int             `json:"current_orders"`
	GroupSize     int             `json:"group_size"`
}

type GroupCompletedPayload struct {
	ProductID   string    `json:"product_id"`
	GroupSize   int       `json:"group_size"`
	CompletedAt time.Time `json:"completed_at"`
}

func productPayload(p Product) ProductPayload {
	return ProductPayload{
		ProductID:     p.ID,
		Name:          p.Name,
		Price:         p.Price,
		GroupSize:     p.GroupSize,
		CurrentOrders: p.CurrentOrders,
		Status:        p.Status(),
	}
}
