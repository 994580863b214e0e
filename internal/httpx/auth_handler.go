package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-groupbuy/internal/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthHandler struct {
	Auth *auth.Service
	Log  *zap.Logger
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/admin/login", h.login)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeErrorCode(w, http.StatusBadRequest, "validation_failed", "missing fields")
		return
	}

	// r.Context() is cancelled when the client goes away
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if ctx.Err() == nil {
			h.Log.Info("admin login rejected", zap.String("email", req.Email))
		}
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
