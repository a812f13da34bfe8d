package port

import (
	"context"
	"errors"
	"time"

	"flash-sale/internal/core/domain"
)

// ErrInvalidInput marks input errors rejected before any store access.
// The specific reason is wrapped around it and surfaced verbatim to the
// caller.
var ErrInvalidInput = errors.New("invalid input")

// PurchaseOutcome classifies the result of a purchase attempt. Business
// rejections (not started, ended, sold out, already purchased) are
// ordinary outcomes, not errors.
type PurchaseOutcome int

const (
	OutcomeNotStarted PurchaseOutcome = iota
	OutcomeEnded
	OutcomeAlreadyPurchased
	OutcomeSoldOut
	OutcomeSuccess
	OutcomeSystemError
)

// PurchaseResult is returned by AttemptPurchase for every non-transport
// outcome. Success is true only for OutcomeSuccess, in which case
// PurchaseID carries the new purchase record's id.
type PurchaseResult struct {
	Outcome    PurchaseOutcome
	Success    bool
	Message    string
	PurchaseID string
}

// SaleStatus is the externally visible state of the sale, combining the
// durable record with the real-time reservation stock.
type SaleStatus struct {
	ID             string
	ProductName    string
	Status         domain.Status
	RemainingStock int64
	TotalStock     int64
	StartTime      time.Time
	EndTime        time.Time
}

// PurchaseCheck reports whether a buyer holds a confirmed purchase.
// PurchaseTime is nil when HasPurchased is false.
type PurchaseCheck struct {
	HasPurchased bool
	PurchaseTime *time.Time
}

// SaleOverview aggregates administrative statistics about sales and
// purchases.
type SaleOverview struct {
	Sales          []domain.FlashSale
	TotalSales     int64
	TotalPurchases int64
}

// ResetResult reports what an administrative reset removed.
type ResetResult struct {
	FlashSalesDeleted int64
	PurchasesDeleted  int64
}

// SaleUseCase defines the business operations of the flash-sale service.
// This interface is the primary port into the application domain; the
// HTTP adapter consumes it and tests substitute it with fakes.
type SaleUseCase interface {
	// CreateSale creates the single flash sale and initializes the
	// reservation store counter. It returns ErrSaleExists when a sale
	// already exists.
	CreateSale(ctx context.Context, productName string, totalStock int64, startTime, endTime time.Time) (*domain.FlashSale, error)

	// GetStatus returns the sale's resolved status with real-time stock.
	// It returns ErrSaleNotFound when no sale exists.
	GetStatus(ctx context.Context) (*SaleStatus, error)

	// AttemptPurchase runs the two-layer purchase protocol for the buyer:
	// reservation claim first, durable confirmation second, compensating
	// the reservation on durable failure. Business rejections are
	// returned as results, never as errors; the error return is reserved
	// for ErrSaleNotFound and invalid input.
	AttemptPurchase(ctx context.Context, userIdentifier string) (*PurchaseResult, error)

	// CheckPurchase reports whether the buyer already purchased in the
	// current sale. It returns ErrSaleNotFound when no sale exists.
	CheckPurchase(ctx context.Context, userIdentifier string) (*PurchaseCheck, error)

	// ListSales returns administrative sale statistics.
	ListSales(ctx context.Context) (*SaleOverview, error)

	// ResetAll deletes the sale and all purchases and flushes the
	// reservation store.
	ResetAll(ctx context.Context) (*ResetResult, error)
}
