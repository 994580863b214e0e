package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type JoinOrderReq struct {
	VendorID string `json:"vendor_id"`
	Quantity *int   `json:"quantity"` // default 1 kalau kosong
}

type OrdersHandler struct {
	Tracker *groupbuy.Tracker
	Admin   func(http.Handler) http.Handler
	Log     *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/products/{id}/orders", h.joinOrder)
	r.Get("/orders", h.listOrders)

	r.Group(func(r chi.Router) {
		r.Use(h.Admin)
		r.Post("/orders/{id}/deliver", h.deliverOrder)
	})
}

func (h *OrdersHandler) joinOrder(w http.ResponseWriter, r *http.Request) {
	var req JoinOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Tracker.Join(ctx, chi.URLParam(r, "id"), groupbuy.JoinRequest{
		VendorID:       req.VendorID,
		Quantity:       qty,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	code := http.StatusCreated
	if res.Idempotent {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	orders, err := h.Tracker.ListOrders(ctx, groupbuy.OrderFilter{
		VendorID:  q.Get("vendor_id"),
		ProductID: q.Get("product_id"),
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Tracker.MarkDelivered(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
