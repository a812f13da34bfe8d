package httpadapter

import (
	"log/slog"
	"net/http"
	"time"

	"flash-sale/internal/core/domain"
)

type adminSale struct {
	ID             string    `json:"id"`
	ProductName    string    `json:"productName"`
	TotalStock     int64     `json:"totalStock"`
	RemainingStock int64     `json:"remainingStock"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	CreatedAt      time.Time `json:"createdAt"`
}

type adminListResponse struct {
	Success bool `json:"success"`
	Data    struct {
		FlashSales      []adminSale `json:"flashSales"`
		TotalFlashSales int64       `json:"totalFlashSales"`
		TotalPurchases  int64       `json:"totalPurchases"`
	} `json:"data"`
}

// handleListSales returns all sales with aggregate purchase counts.
func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.ListSales(r.Context())
	if err != nil {
		h.logger.Error("list sales error", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		return
	}
	resp := adminListResponse{Success: true}
	resp.Data.FlashSales = toAdminSales(overview.Sales)
	resp.Data.TotalFlashSales = overview.TotalSales
	resp.Data.TotalPurchases = overview.TotalPurchases
	h.writeJSON(w, http.StatusOK, resp)
}

// handleResetAll clears the ledger and flushes the reservation store.
func (h *Handler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ResetAll(r.Context())
	if err != nil {
		h.logger.Error("reset error", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to reset all data"})
		return
	}
	h.writeJSON(w, http.StatusOK, resetResponse{
		Success:           true,
		FlashSalesDeleted: result.FlashSalesDeleted,
		PurchasesDeleted:  result.PurchasesDeleted,
	})
}

func toAdminSales(sales []domain.FlashSale) []adminSale {
	out := make([]adminSale, 0, len(sales))
	for _, s := range sales {
		out = append(out, adminSale{
			ID:             s.ID,
			ProductName:    s.ProductName,
			TotalStock:     s.TotalStock,
			RemainingStock: s.RemainingStock,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			CreatedAt:      s.CreatedAt,
		})
	}
	return out
}
