package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flash-sale/internal/core/domain"
	"flash-sale/internal/core/port"
)

const uniqueViolation = "23505"

// SaleRepository implements port.SaleRepository using pgxpool for
// PostgreSQL. It is the durable ledger: the authoritative store of the
// sale's stock count and purchase records.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a new repository instance.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// CreateSale inserts the flash sale. A unique index over a constant
// expression enforces the one-sale-at-a-time rule at the database level,
// so concurrent creates cannot both succeed.
func (r *SaleRepository) CreateSale(ctx context.Context, sale *domain.FlashSale) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO flash_sales
    (id, product_name, total_stock, remaining_stock, version, start_time, end_time, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sale.ID, sale.ProductName, sale.TotalStock, sale.RemainingStock, sale.Version,
		sale.StartTime, sale.EndTime, sale.CreatedAt, sale.UpdatedAt)
	if isUniqueViolation(err) {
		return port.ErrSaleExists
	}
	return err
}

// GetSale returns the single flash sale.
func (r *SaleRepository) GetSale(ctx context.Context) (*domain.FlashSale, error) {
	var s domain.FlashSale
	err := r.pool.QueryRow(ctx, `SELECT id, product_name, total_stock, remaining_stock, version, start_time, end_time, created_at, updated_at
FROM flash_sales ORDER BY created_at DESC LIMIT 1`).
		Scan(&s.ID, &s.ProductName, &s.TotalStock, &s.RemainingStock, &s.Version, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSales returns all sales, newest first.
func (r *SaleRepository) ListSales(ctx context.Context) ([]domain.FlashSale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_name, total_stock, remaining_stock, version, start_time, end_time, created_at, updated_at
FROM flash_sales ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FlashSale, error) {
		var s domain.FlashSale
		err := row.Scan(&s.ID, &s.ProductName, &s.TotalStock, &s.RemainingStock, &s.Version, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt)
		return s, err
	})
}

// ConfirmPurchase decrements the sale's stock and inserts the purchase
// record in a single transaction. The decrement is guarded by
// remaining_stock >= 1 and bumps the version counter; when no row
// matches, the stock is exhausted and ErrOutOfStock is returned. A
// uniqueness violation on the insert yields ErrAlreadyPurchased. The
// transaction rolls back on any failure, so the decrement never outlives
// a failed insert.
func (r *SaleRepository) ConfirmPurchase(ctx context.Context, purchase *domain.Purchase) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE flash_sales
SET remaining_stock = remaining_stock - 1, version = version + 1, updated_at = $2
WHERE id = $1 AND remaining_stock >= 1`, purchase.FlashSaleID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = port.ErrOutOfStock
		return err
	}

	_, err = tx.Exec(ctx, `INSERT INTO purchases (id, flash_sale_id, user_identifier, purchased_at)
VALUES ($1,$2,$3,$4)`, purchase.ID, purchase.FlashSaleID, purchase.UserIdentifier, purchase.PurchasedAt)
	if isUniqueViolation(err) {
		err = port.ErrAlreadyPurchased
	}
	return err
}

// FindPurchase returns the buyer's purchase for the sale, or nil.
func (r *SaleRepository) FindPurchase(ctx context.Context, saleID, userIdentifier string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := r.pool.QueryRow(ctx, `SELECT id, flash_sale_id, user_identifier, purchased_at
FROM purchases WHERE flash_sale_id = $1 AND user_identifier = $2`, saleID, userIdentifier).
		Scan(&p.ID, &p.FlashSaleID, &p.UserIdentifier, &p.PurchasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPurchases returns the total number of purchase records.
func (r *SaleRepository) CountPurchases(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM purchases`).Scan(&n)
	return n, err
}

// DeleteAll removes every purchase and sale record. Purchases go first
// to satisfy the foreign key.
func (r *SaleRepository) DeleteAll(ctx context.Context) (salesDeleted, purchasesDeleted int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM purchases`)
	if err != nil {
		return 0, 0, err
	}
	purchasesDeleted = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM flash_sales`)
	if err != nil {
		return 0, 0, err
	}
	salesDeleted = tag.RowsAffected()
	return salesDeleted, purchasesDeleted, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
