package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Limiter            *RateLimiter
	// Ready backs GET /health; nil means always healthy.
	Ready func(ctx context.Context) error
}

func NewRouter(h *CartHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				respondError(w, r, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		respondData(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Post("/add", h.AddItem)
		r.Get("/get/{userId}", h.GetCart)
		r.Put("/update-cart", h.UpdateItem)
		r.Delete("/{userId}", h.ClearCart)
		r.Delete("/{userId}/{productId}", h.RemoveItem)
		r.Delete("/{userId}/{productId}/{colorId}", h.RemoveItem)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return otelhttp.NewHandler(r, "cart-service")
}
