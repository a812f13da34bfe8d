package port

import (
	"context"
	"errors"

	"flash-sale/internal/core/domain"
)

var (
	// ErrSaleNotFound is returned when no flash sale exists.
	ErrSaleNotFound = errors.New("flash sale not found")
	// ErrSaleExists is returned when creating a sale while one already exists.
	ErrSaleExists = errors.New("flash sale already exists")
	// ErrOutOfStock is returned when the conditional stock decrement
	// matches no row, i.e. the durable stock guard failed.
	ErrOutOfStock = errors.New("out of stock")
	// ErrAlreadyPurchased is returned when the purchase insert violates
	// the (flash_sale_id, user_identifier) uniqueness constraint.
	ErrAlreadyPurchased = errors.New("already purchased")
)

// SaleRepository is the durable ledger: the authoritative, persistent
// store of the sale and its purchase records. It is an outbound port in
// hexagonal architecture. Implementations must be concurrency-safe and
// confirm purchases atomically (conditional decrement + insert in one
// transaction) so durable stock and purchase records never diverge.
type SaleRepository interface {
	// CreateSale persists a new flash sale. It returns ErrSaleExists when
	// a sale already exists anywhere in the system.
	CreateSale(ctx context.Context, sale *domain.FlashSale) error
	// GetSale returns the single flash sale, or ErrSaleNotFound.
	GetSale(ctx context.Context) (*domain.FlashSale, error)
	// ListSales returns all sales, newest first. Normally zero or one;
	// more than one only ever appears transiently around resets.
	ListSales(ctx context.Context) ([]domain.FlashSale, error)

	// ConfirmPurchase performs the durable side of a purchase in a single
	// transaction: a version-guarded conditional decrement of
	// remaining_stock (failing with ErrOutOfStock when no row matches)
	// followed by the purchase insert (failing with ErrAlreadyPurchased
	// on a uniqueness violation). On any failure the transaction rolls
	// back, so the decrement never outlives a failed insert.
	ConfirmPurchase(ctx context.Context, purchase *domain.Purchase) error

	// FindPurchase returns the buyer's purchase for the given sale, or
	// nil when none exists.
	FindPurchase(ctx context.Context, saleID, userIdentifier string) (*domain.Purchase, error)
	// CountPurchases returns the total number of purchase records.
	CountPurchases(ctx context.Context) (int64, error)

	// DeleteAll removes every sale and purchase record and reports how
	// many of each were deleted.
	DeleteAll(ctx context.Context) (salesDeleted, purchasesDeleted int64, err error)
}
