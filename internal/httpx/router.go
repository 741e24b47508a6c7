package httpx

import (
	"context"
	"net/http"
	"time"

	"clarte-be/internal/logger"
	"clarte-be/internal/metrics"
	"clarte-be/internal/middleware"
	"clarte-be/internal/order"
	"clarte-be/internal/payment"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Orders    order.Service
	Payments  payment.Service
	Webhook   http.Handler
	Limiter   *middleware.Limiter
	Metrics   *metrics.Registry
	JWTSecret []byte
	// Health reports backing store availability. Nil means always healthy.
	Health  func(ctx context.Context) error
	Timeout time.Duration
}

func NewRouter(d Deps) *chi.Mux {
	orders := NewOrdersHandler(d.Orders)
	payments := NewPaymentsHandler(d.Payments)

	r := chi.NewRouter()
	r.Use(chimw.RealIP, logger.RequestIDMiddleware)
	r.Use(middleware.AuthMiddleware(d.JWTSecret))
	r.Use(middleware.LoggingMiddleware, chimw.Recoverer)
	if d.Timeout > 0 {
		r.Use(chimw.Timeout(d.Timeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r.Context()); err != nil {
				logger.FromCtx(r.Context()).Warn("health check failed", zap.Error(err))
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "UNAVAILABLE"})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}

		r.Post("/orders", orders.Create)
		r.With(middleware.RequireUser).Get("/orders", orders.List)
		r.Get("/orders/{reference}", orders.Get)
		r.With(middleware.RequireUser).Post("/orders/{reference}/cancel", orders.Cancel)
		r.With(middleware.RequireAdmin).Patch("/admin/orders/{reference}/status", orders.UpdateStatus)
		r.With(middleware.RequireAdmin).Get("/admin/metrics", func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]any{"counters": d.Metrics.Snapshot()})
		})

		r.Post("/payments/preference", payments.CreatePreference)
		r.Post("/payments/card", payments.ChargeCard)
		if d.Webhook != nil {
			r.Method(http.MethodPost, "/payments/webhook", d.Webhook)
		}
	})

	return r
}
