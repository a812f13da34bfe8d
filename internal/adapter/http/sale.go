package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flash-sale/internal/core/domain"
	"flash-sale/internal/core/port"
)

// handleCreateSale creates the flash sale. The request body is validated
// before any store access; validation messages are surfaced verbatim.
// Returns 201 on success, 400 on invalid input and 409 when a sale
// already exists.
func (h *Handler) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid JSON"})
		return
	}
	if err := req.validate(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	sale, err := h.svc.CreateSale(r.Context(), req.ProductName, req.TotalStock, req.StartTime, req.EndTime)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		case errors.Is(err, port.ErrSaleExists):
			h.writeJSON(w, http.StatusConflict, errorResponse{Message: "A flash sale already exists"})
		default:
			h.logger.Error("create sale error", slog.Any("error", err))
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, struct {
		Success bool           `json:"success"`
		Data    statusResponse `json:"data"`
	}{
		Success: true,
		Data: statusResponse{
			ID:             sale.ID,
			ProductName:    sale.ProductName,
			Status:         string(domain.ResolveStatus(time.Now(), sale.StartTime, sale.EndTime, sale.RemainingStock)),
			RemainingStock: sale.RemainingStock,
			TotalStock:     sale.TotalStock,
			StartTime:      sale.StartTime,
			EndTime:        sale.EndTime,
		},
	})
}

// handleStatus returns the sale's resolved status with real-time stock.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.GetStatus(r.Context())
	if err != nil {
		if errors.Is(err, port.ErrSaleNotFound) {
			h.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Flash sale not found"})
			return
		}
		h.logger.Error("status error", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{
		ID:             status.ID,
		ProductName:    status.ProductName,
		Status:         string(status.Status),
		RemainingStock: status.RemainingStock,
		TotalStock:     status.TotalStock,
		StartTime:      status.StartTime,
		EndTime:        status.EndTime,
	})
}

// handlePurchase runs a purchase attempt. Business rejections (not
// started, ended, sold out, already purchased) are returned with HTTP
// 200 and success=false; they are not transport errors. Only system
// faults produce 5xx.
func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid JSON"})
		return
	}
	if err := req.validate(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	result, err := h.svc.AttemptPurchase(r.Context(), req.UserIdentifier)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		case errors.Is(err, port.ErrSaleNotFound):
			h.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Flash sale not found"})
		default:
			h.logger.Error("purchase error", slog.Any("error", err))
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		}
		return
	}

	status := http.StatusOK
	if result.Outcome == port.OutcomeSystemError {
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, status, purchaseResponse{
		Success:    result.Success,
		Message:    result.Message,
		PurchaseID: result.PurchaseID,
	})
}

// handleCheckPurchase reports whether the buyer already purchased.
func (h *Handler) handleCheckPurchase(w http.ResponseWriter, r *http.Request) {
	userIdentifier := chi.URLParam(r, "userIdentifier")
	check, err := h.svc.CheckPurchase(r.Context(), userIdentifier)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrInvalidInput):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		case errors.Is(err, port.ErrSaleNotFound):
			h.writeJSON(w, http.StatusNotFound, errorResponse{Message: "Flash sale not found"})
		default:
			h.logger.Error("check purchase error", slog.Any("error", err))
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		}
		return
	}
	var at *time.Time
	if check.PurchaseTime != nil {
		t := *check.PurchaseTime
		at = &t
	}
	h.writeJSON(w, http.StatusOK, checkPurchaseResponse{
		HasPurchased: check.HasPurchased,
		PurchaseTime: at,
	})
}
