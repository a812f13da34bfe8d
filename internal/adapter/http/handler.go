package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flash-sale/internal/core/port"
)

// Handler contains dependencies and routes. It is an inbound adapter for
// HTTP. It holds a SaleUseCase to execute business logic and a logger
// for structured logging. Routes are registered on a chi.Router for
// convenient method handling.
type Handler struct {
	svc    port.SaleUseCase
	logger *slog.Logger
	router chi.Router
}

// NewHandler creates a handler with all routes configured. The purchase
// endpoint is rate-limited per client so a single source cannot flood
// the reservation store; the store itself remains the oversell gate.
func NewHandler(svc port.SaleUseCase, logger *slog.Logger) *Handler {
	h := &Handler{svc: svc, logger: logger}
	r := chi.NewRouter()

	limiter := newLimiterStore(defaultPurchaseRPS, defaultPurchaseBurst)

	r.Get("/health", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/flash-sale", func(r chi.Router) {
			r.Post("/", h.handleCreateSale)
			r.Get("/status", h.handleStatus)
			r.With(rateLimit(limiter)).Post("/purchase", h.handlePurchase)
			r.Get("/purchase/{userIdentifier}", h.handleCheckPurchase)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Get("/flash-sales", h.handleListSales)
			r.Post("/reset", h.handleResetAll)
		})
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// writeJSON encodes v as the response body with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// encoding should rarely fail; log and move on
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}
