package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-groupbuy/internal/auth"
	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(log *zap.Logger) *chi.Mux {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer, traceID)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Mount registers every API route on r.
func Mount(r chi.Router, tracker *groupbuy.Tracker, authSvc *auth.Service, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	admin := auth.RequireAdmin(authSvc)
	(&AuthHandler{Auth: authSvc, Log: log}).Register(r)
	(&ProductsHandler{Tracker: tracker, Admin: admin, Log: log}).Register(r)
	(&OrdersHandler{Tracker: tracker, Admin: admin, Log: log}).Register(r)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// traceID carries the request id (or a caller-supplied X-Request-Id) into
// emitted events.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		next.ServeHTTP(w, r.WithContext(groupbuy.WithTraceID(r.Context(), id)))
	})
}
