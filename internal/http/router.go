package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig carries everything the HTTP surface needs. History and Health
// are optional.
type RouterConfig struct {
	Registry       *service.Registry
	Products       ProductLookup
	Orders         OrderSource
	Stats          StatsSource
	History        CheckoutHistory
	Health         func(ctx context.Context) error
	Log            *zap.Logger
	RequestTimeout time.Duration
	MaxRequestBody int64
}

func NewRouter(cfg RouterConfig) chi.Router {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	sessionHandler := NewSessionHandler(cfg.Registry)
	cartHandler := NewCartHandler(cfg.Products, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Registry, cfg.History, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)
	statsHandler := NewStatsHandler(cfg.Stats, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(log))
	if cfg.MaxRequestBody > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBody))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(cfg.Health))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", sessionHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Registry))

			r.Delete("/session", sessionHandler.Logout)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/reconcile", cartHandler.Reconcile)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
				r.Put("/items/{product_id}/buffer", cartHandler.UpdateBuffer)
				r.Post("/items/{product_id}/commit", cartHandler.CommitBuffer)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Begin)
				r.Get("/", checkoutHandler.Get)
				r.Put("/", checkoutHandler.UpdateDraft)
				r.Delete("/", checkoutHandler.Abandon)
				r.Post("/submit", checkoutHandler.Submit)
				r.Post("/payment", checkoutHandler.Pay)
				r.Get("/history", checkoutHandler.History)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{order_id}", ordersHandler.GetOrder)
			})

			r.Get("/sellers/{seller_id}/stats", statsHandler.SellerStats)
		})
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			body["marketplace"] = "up"
			if err := ping(ctx); err != nil {
				body["marketplace"] = "down"
			}
		}
		respondJSON(w, r, http.StatusOK, body)
	}
}
