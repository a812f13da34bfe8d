package httpadapter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// maxIdentifierLen bounds user identifiers; anything longer is rejected
// before reaching the stores.
const maxIdentifierLen = 255

// createSaleRequest is the body of POST /api/v1/flash-sale.
type createSaleRequest struct {
	ProductName string    `json:"productName"`
	TotalStock  int64     `json:"totalStock"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// validate checks required fields, stock positivity and time ordering.
// The returned message is surfaced verbatim to the caller.
func (r createSaleRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.ProductName) == "" {
		missing = append(missing, "productName")
	}
	if r.TotalStock == 0 {
		missing = append(missing, "totalStock")
	}
	if r.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if r.EndTime.IsZero() {
		missing = append(missing, "endTime")
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if r.TotalStock < 0 {
		return errors.New("Total stock must be a positive number")
	}
	if !r.StartTime.Before(r.EndTime) {
		return errors.New("Start time must be before end time")
	}
	return nil
}

// purchaseRequest is the body of POST /api/v1/flash-sale/purchase.
type purchaseRequest struct {
	UserIdentifier string `json:"userIdentifier"`
}

func (r purchaseRequest) validate() error {
	id := strings.TrimSpace(r.UserIdentifier)
	if id == "" {
		return errors.New("User identifier is required")
	}
	if len(id) > maxIdentifierLen {
		return errors.New("User identifier is too long")
	}
	return nil
}

// errorResponse is the envelope for all non-success replies.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// purchaseResponse is returned for every purchase attempt, including
// business rejections, with HTTP 200.
type purchaseResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	PurchaseID string `json:"purchaseId,omitempty"`
}

// statusResponse is the body of GET /api/v1/flash-sale/status.
type statusResponse struct {
	ID             string    `json:"id"`
	ProductName    string    `json:"productName"`
	Status         string    `json:"status"`
	RemainingStock int64     `json:"remainingStock"`
	TotalStock     int64     `json:"totalStock"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
}

// checkPurchaseResponse is the body of GET /api/v1/flash-sale/purchase/{userIdentifier}.
type checkPurchaseResponse struct {
	HasPurchased bool       `json:"hasPurchased"`
	PurchaseTime *time.Time `json:"purchaseTime"`
}

// resetResponse is the body of POST /api/v1/admin/reset.
type resetResponse struct {
	Success           bool  `json:"success"`
	FlashSalesDeleted int64 `json:"flashSalesDeleted"`
	PurchasesDeleted  int64 `json:"purchasesDeleted"`
}
