package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-groupbuy/internal/auth"
	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case groupbuy.IsValidation(err):
		writeErrorCode(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, groupbuy.ErrProductNotFound), errors.Is(err, groupbuy.ErrOrderNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, groupbuy.ErrCapacityExceeded):
		writeErrorCode(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, groupbuy.ErrIdempotencyKeyReused), errors.Is(err, groupbuy.ErrIdempotencyInFlight):
		writeErrorCode(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, groupbuy.ErrInvalidTransition):
		writeErrorCode(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorCode(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorCode(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("request failed", zap.Error(err))
		writeErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
