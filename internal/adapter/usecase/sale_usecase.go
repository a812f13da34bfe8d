package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"flash-sale/internal/core/domain"
	"flash-sale/internal/core/port"
)

const (
	// defaultConfirmTimeout bounds the durable confirmation (conditional
	// decrement + purchase insert). A timeout is treated as a
	// durable-layer failure and triggers compensation, never as
	// ambiguous success.
	defaultConfirmTimeout = 5 * time.Second
	// defaultCompensateTimeout bounds the compensating unclaim and its
	// diagnostic reads.
	defaultCompensateTimeout = 5 * time.Second
)

// User-facing outcome messages.
const (
	msgNotStarted       = "Sale has not started yet"
	msgEnded            = "Sale has ended"
	msgAlreadyPurchased = "You have already purchased this item"
	msgSoldOut          = "Item sold out"
	msgSuccess          = "Purchase successful!"
	msgSystemError      = "Something went wrong, please try again"
)

// SaleUseCase coordinates the two-layer purchase protocol over the
// injected stores. It holds no mutable state of its own; all shared state
// lives in the reservation store and the durable ledger.
type SaleUseCase struct {
	repo         port.SaleRepository
	reservations port.ReservationStore
	logger       *slog.Logger

	confirmTimeout    time.Duration
	compensateTimeout time.Duration
}

// NewSaleUseCase creates a new usecase with the provided stores. Store
// lifecycles (connect/disconnect) are managed by the host process.
func NewSaleUseCase(repo port.SaleRepository, reservations port.ReservationStore, logger *slog.Logger) *SaleUseCase {
	return &SaleUseCase{
		repo:              repo,
		reservations:      reservations,
		logger:            logger,
		confirmTimeout:    defaultConfirmTimeout,
		compensateTimeout: defaultCompensateTimeout,
	}
}

// CreateSale validates input, persists the sale and initializes the
// reservation counter. Exactly one sale may exist at a time; the ledger
// enforces this and ErrSaleExists is returned otherwise.
func (u *SaleUseCase) CreateSale(ctx context.Context, productName string, totalStock int64, startTime, endTime time.Time) (*domain.FlashSale, error) {
	if strings.TrimSpace(productName) == "" {
		return nil, fmt.Errorf("%w: product name is required", port.ErrInvalidInput)
	}
	if totalStock <= 0 {
		return nil, fmt.Errorf("%w: total stock must be a positive number", port.ErrInvalidInput)
	}
	if !startTime.Before(endTime) {
		return nil, fmt.Errorf("%w: start time must be before end time", port.ErrInvalidInput)
	}

	now := time.Now().UTC()
	sale := &domain.FlashSale{
		ID:             uuid.NewString(),
		ProductName:    strings.TrimSpace(productName),
		TotalStock:     totalStock,
		RemainingStock: totalStock,
		StartTime:      startTime,
		EndTime:        endTime,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.repo.CreateSale(ctx, sale); err != nil {
		return nil, err
	}
	if err := u.reservations.InitStock(ctx, sale.ID, totalStock); err != nil {
		// The durable record exists but the fast layer does not; every
		// claim would report sold out until an operator re-initializes
		// the counter or resets the sale.
		u.logger.Error("reservation stock init failed after sale creation",
			slog.String("sale_id", sale.ID),
			slog.Int64("total_stock", totalStock),
			slog.Any("error", err))
		return nil, err
	}
	return sale, nil
}

// GetStatus resolves the sale's visible state against the current time
// and the real-time reservation stock. When the reservation store is
// unreachable the durable stock count is used instead.
func (u *SaleUseCase) GetStatus(ctx context.Context) (*port.SaleStatus, error) {
	sale, err := u.repo.GetSale(ctx)
	if err != nil {
		return nil, err
	}
	remaining, err := u.reservations.Stock(ctx, sale.ID)
	if err != nil {
		u.logger.Warn("reservation stock read failed, using ledger stock",
			slog.String("sale_id", sale.ID), slog.Any("error", err))
		remaining = sale.RemainingStock
	}
	return &port.SaleStatus{
		ID:             sale.ID,
		ProductName:    sale.ProductName,
		Status:         domain.ResolveStatus(time.Now(), sale.StartTime, sale.EndTime, remaining),
		RemainingStock: remaining,
		TotalStock:     sale.TotalStock,
		StartTime:      sale.StartTime,
		EndTime:        sale.EndTime,
	}, nil
}

// AttemptPurchase executes the purchase protocol: gate on the sale
// window, claim a unit in the reservation store, confirm against the
// durable ledger, and compensate the claim if the confirmation fails.
// The durable uniqueness constraint, not the reservation store, is the
// final arbiter of one purchase per buyer.
func (u *SaleUseCase) AttemptPurchase(ctx context.Context, userIdentifier string) (*port.PurchaseResult, error) {
	userIdentifier = strings.TrimSpace(userIdentifier)
	if userIdentifier == "" {
		return nil, fmt.Errorf("%w: user identifier is required", port.ErrInvalidInput)
	}

	sale, err := u.repo.GetSale(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch domain.ResolveStatus(now, sale.StartTime, sale.EndTime, 1) {
	case domain.StatusUpcoming:
		return &port.PurchaseResult{Outcome: port.OutcomeNotStarted, Message: msgNotStarted}, nil
	case domain.StatusEnded:
		return &port.PurchaseResult{Outcome: port.OutcomeEnded, Message: msgEnded}, nil
	}
	// The sold-out case is left to the claim below, which performs the
	// equivalent stock check atomically.

	claim, err := u.reservations.Claim(ctx, sale.ID, userIdentifier, now)
	if err != nil {
		// Nothing was claimed; the attempt is safe to retry.
		u.logger.Error("reservation claim failed",
			slog.String("sale_id", sale.ID),
			slog.String("user", userIdentifier),
			slog.Any("error", err))
		return &port.PurchaseResult{Outcome: port.OutcomeSystemError, Message: msgSystemError}, nil
	}
	switch claim {
	case port.ClaimAlreadyClaimed:
		return &port.PurchaseResult{Outcome: port.OutcomeAlreadyPurchased, Message: msgAlreadyPurchased}, nil
	case port.ClaimSoldOut:
		return &port.PurchaseResult{Outcome: port.OutcomeSoldOut, Message: msgSoldOut}, nil
	}

	// The claim succeeded; from here the attempt must run to completion
	// (confirmed or compensated) regardless of caller cancellation, or
	// the fast layer would be left permanently inconsistent.
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.confirmTimeout)
	defer cancel()

	purchase := &domain.Purchase{
		ID:             uuid.NewString(),
		FlashSaleID:    sale.ID,
		UserIdentifier: userIdentifier,
		PurchasedAt:    time.Now().UTC(),
	}
	if err := u.repo.ConfirmPurchase(confirmCtx, purchase); err != nil {
		return u.compensate(confirmCtx, sale, userIdentifier, err), nil
	}

	return &port.PurchaseResult{
		Outcome:    port.OutcomeSuccess,
		Success:    true,
		Message:    msgSuccess,
		PurchaseID: purchase.ID,
	}, nil
}

// compensate reverses the reservation claim after a failed durable
// confirmation and maps the failure to the most specific business
// outcome. A buyer who loses the uniqueness race is told they already
// purchased even though their own claim was rejected; the durable layer
// is the tie-breaker.
func (u *SaleUseCase) compensate(ctx context.Context, sale *domain.FlashSale, userIdentifier string, cause error) *port.PurchaseResult {
	// The incoming context may already be expired: a confirm timeout is
	// one of the failure modes compensated here. The unclaim and the
	// diagnostic reads get their own bounded context so compensation can
	// still reach the reservation store.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.compensateTimeout)
	defer cancel()

	if err := u.reservations.Unclaim(ctx, sale.ID, userIdentifier); err != nil {
		// Fatal consistency fault: the fast layer believes a unit is
		// sold that the ledger does not reflect. Manual reconciliation
		// is required.
		ledgerStock := int64(-1)
		if s, gerr := u.repo.GetSale(ctx); gerr == nil {
			ledgerStock = s.RemainingStock
		}
		fastStock, _ := u.reservations.Stock(ctx, sale.ID)
		u.logger.Error("FATAL: reservation compensation failed, stores diverged",
			slog.String("sale_id", sale.ID),
			slog.String("user", userIdentifier),
			slog.Int64("ledger_stock", ledgerStock),
			slog.Int64("reservation_stock", fastStock),
			slog.Time("at", time.Now().UTC()),
			slog.Any("unclaim_error", err),
			slog.Any("cause", cause))
		return &port.PurchaseResult{Outcome: port.OutcomeSystemError, Message: msgSystemError}
	}

	switch {
	case errors.Is(cause, port.ErrAlreadyPurchased):
		return &port.PurchaseResult{Outcome: port.OutcomeAlreadyPurchased, Message: msgAlreadyPurchased}
	case errors.Is(cause, port.ErrOutOfStock):
		return &port.PurchaseResult{Outcome: port.OutcomeSoldOut, Message: msgSoldOut}
	default:
		u.logger.Error("durable purchase confirmation failed",
			slog.String("sale_id", sale.ID),
			slog.String("user", userIdentifier),
			slog.Any("error", cause))
		return &port.PurchaseResult{Outcome: port.OutcomeSystemError, Message: msgSystemError}
	}
}

// CheckPurchase reports whether the buyer holds a confirmed purchase in
// the current sale, reading only the durable ledger.
func (u *SaleUseCase) CheckPurchase(ctx context.Context, userIdentifier string) (*port.PurchaseCheck, error) {
	userIdentifier = strings.TrimSpace(userIdentifier)
	if userIdentifier == "" {
		return nil, fmt.Errorf("%w: user identifier is required", port.ErrInvalidInput)
	}
	sale, err := u.repo.GetSale(ctx)
	if err != nil {
		return nil, err
	}
	purchase, err := u.repo.FindPurchase(ctx, sale.ID, userIdentifier)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return &port.PurchaseCheck{}, nil
	}
	t := purchase.PurchasedAt
	return &port.PurchaseCheck{HasPurchased: true, PurchaseTime: &t}, nil
}

// ListSales returns administrative statistics over all sales.
func (u *SaleUseCase) ListSales(ctx context.Context) (*port.SaleOverview, error) {
	sales, err := u.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	purchases, err := u.repo.CountPurchases(ctx)
	if err != nil {
		return nil, err
	}
	return &port.SaleOverview{
		Sales:          sales,
		TotalSales:     int64(len(sales)),
		TotalPurchases: purchases,
	}, nil
}

// ResetAll clears the ledger and flushes the reservation store.
func (u *SaleUseCase) ResetAll(ctx context.Context) (*port.ResetResult, error) {
	salesDeleted, purchasesDeleted, err := u.repo.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := u.reservations.Reset(ctx); err != nil {
		u.logger.Error("reservation store reset failed after ledger reset", slog.Any("error", err))
		return nil, err
	}
	return &port.ResetResult{FlashSalesDeleted: salesDeleted, PurchasesDeleted: purchasesDeleted}, nil
}
