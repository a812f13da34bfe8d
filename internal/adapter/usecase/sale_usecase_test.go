package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-sale/internal/core/domain"
	"flash-sale/internal/core/port"
)

// fakeReservationStore is an in-memory substitute for the Redis store.
// Claim and Unclaim mirror the Lua scripts' contract exactly, serialized
// under one mutex.
type fakeReservationStore struct {
	mu     sync.Mutex
	stock  map[string]int64
	claims map[string]map[string]time.Time

	claimErr   error
	unclaimErr error
	stockErr   error
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{
		stock:  make(map[string]int64),
		claims: make(map[string]map[string]time.Time),
	}
}

func (f *fakeReservationStore) InitStock(_ context.Context, saleID string, totalStock int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[saleID] = totalStock
	f.claims[saleID] = make(map[string]time.Time)
	return nil
}

func (f *fakeReservationStore) Claim(_ context.Context, saleID, user string, at time.Time) (port.ClaimResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return 0, f.claimErr
	}
	if _, ok := f.claims[saleID][user]; ok {
		return port.ClaimAlreadyClaimed, nil
	}
	if f.stock[saleID] <= 0 {
		return port.ClaimSoldOut, nil
	}
	f.stock[saleID]--
	if f.claims[saleID] == nil {
		f.claims[saleID] = make(map[string]time.Time)
	}
	f.claims[saleID][user] = at
	return port.Claimed, nil
}

func (f *fakeReservationStore) Unclaim(ctx context.Context, saleID, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unclaimErr != nil {
		return f.unclaimErr
	}
	f.stock[saleID]++
	delete(f.claims[saleID], user)
	return nil
}

func (f *fakeReservationStore) Stock(ctx context.Context, saleID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stockErr != nil {
		return 0, f.stockErr
	}
	return f.stock[saleID], nil
}

func (f *fakeReservationStore) Reset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock = make(map[string]int64)
	f.claims = make(map[string]map[string]time.Time)
	return nil
}

func (f *fakeReservationStore) stockOf(saleID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[saleID]
}

func (f *fakeReservationStore) claimants(saleID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.claims[saleID])
}

// fakeSaleRepository is an in-memory durable ledger with the same
// guard semantics as the SQL adapter: a conditional stock decrement and
// a uniqueness check, both inside one critical section.
type fakeSaleRepository struct {
	mu        sync.Mutex
	sale      *domain.FlashSale
	purchases map[string]domain.Purchase

	confirmErr error
	// confirmBlocks makes ConfirmPurchase hang until its context
	// expires, simulating a durable layer that stops answering.
	confirmBlocks bool
}

func newFakeSaleRepository() *fakeSaleRepository {
	return &fakeSaleRepository{purchases: make(map[string]domain.Purchase)}
}

func (f *fakeSaleRepository) CreateSale(_ context.Context, sale *domain.FlashSale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sale != nil {
		return port.ErrSaleExists
	}
	s := *sale
	f.sale = &s
	return nil
}

func (f *fakeSaleRepository) GetSale(_ context.Context) (*domain.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sale == nil {
		return nil, port.ErrSaleNotFound
	}
	s := *f.sale
	return &s, nil
}

func (f *fakeSaleRepository) ListSales(_ context.Context) ([]domain.FlashSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sale == nil {
		return nil, nil
	}
	return []domain.FlashSale{*f.sale}, nil
}

func (f *fakeSaleRepository) ConfirmPurchase(ctx context.Context, p *domain.Purchase) error {
	if f.confirmBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	if f.sale == nil || f.sale.RemainingStock < 1 {
		return port.ErrOutOfStock
	}
	if _, ok := f.purchases[p.UserIdentifier]; ok {
		return port.ErrAlreadyPurchased
	}
	f.sale.RemainingStock--
	f.sale.Version++
	f.purchases[p.UserIdentifier] = *p
	return nil
}

func (f *fakeSaleRepository) FindPurchase(_ context.Context, _, user string) (*domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.purchases[user]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeSaleRepository) CountPurchases(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.purchases)), nil
}

func (f *fakeSaleRepository) DeleteAll(_ context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sales int64
	if f.sale != nil {
		sales = 1
	}
	purchases := int64(len(f.purchases))
	f.sale = nil
	f.purchases = make(map[string]domain.Purchase)
	return sales, purchases, nil
}

func (f *fakeSaleRepository) remainingStock() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sale.RemainingStock
}

func newTestUseCase(t *testing.T) (*SaleUseCase, *fakeSaleRepository, *fakeReservationStore) {
	t.Helper()
	repo := newFakeSaleRepository()
	res := newFakeReservationStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSaleUseCase(repo, res, logger), repo, res
}

func createActiveSale(t *testing.T, u *SaleUseCase, stock int64) *domain.FlashSale {
	t.Helper()
	sale, err := u.CreateSale(context.Background(),
		"Limited Edition Sneaker", stock,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	return sale
}

func TestCreateSaleValidation(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	ctx := context.Background()
	now := time.Now()

	_, err := u.CreateSale(ctx, "", 10, now, now.Add(time.Hour))
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	_, err = u.CreateSale(ctx, "Sneaker", 0, now, now.Add(time.Hour))
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	_, err = u.CreateSale(ctx, "Sneaker", -5, now, now.Add(time.Hour))
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	_, err = u.CreateSale(ctx, "Sneaker", 10, now.Add(time.Hour), now)
	assert.ErrorIs(t, err, port.ErrInvalidInput)

	_, err = u.CreateSale(ctx, "Sneaker", 10, now, now)
	assert.ErrorIs(t, err, port.ErrInvalidInput)
}

func TestCreateSaleSingleton(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	createActiveSale(t, u, 10)

	_, err := u.CreateSale(context.Background(), "Another",
		5, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, port.ErrSaleExists)
}

func TestCreateSaleInitializesReservation(t *testing.T) {
	u, _, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 25)
	assert.Equal(t, int64(25), res.stockOf(sale.ID))
	assert.Equal(t, 0, res.claimants(sale.ID))
}

func TestAttemptPurchaseNoSale(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	_, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, port.ErrSaleNotFound)
}

func TestAttemptPurchaseBeforeStart(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	_, err := u.CreateSale(context.Background(), "Sneaker", 10,
		time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeNotStarted, result.Outcome)
	assert.False(t, result.Success)
}

func TestAttemptPurchaseAfterEnd(t *testing.T) {
	u, _, res := newTestUseCase(t)
	_, err := u.CreateSale(context.Background(), "Sneaker", 10,
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeEnded, result.Outcome)
	assert.False(t, result.Success)

	// The window gate rejects before any claim is made.
	sale, _ := u.repo.GetSale(context.Background())
	assert.Equal(t, 0, res.claimants(sale.ID))
}

func TestAttemptPurchaseSuccess(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 10)

	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSuccess, result.Outcome)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.PurchaseID)

	assert.Equal(t, int64(9), res.stockOf(sale.ID))
	assert.Equal(t, int64(9), repo.remainingStock())
	assert.Equal(t, 1, res.claimants(sale.ID))
}

// Same buyer twice sequentially: the second attempt is rejected by the
// reservation layer and the stock is decremented exactly once.
func TestAttemptPurchaseSameBuyerTwice(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 10)

	first, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSuccess, first.Outcome)

	second, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeAlreadyPurchased, second.Outcome)
	assert.False(t, second.Success)

	assert.Equal(t, int64(9), res.stockOf(sale.ID))
	assert.Equal(t, int64(9), repo.remainingStock())
}

// Ten concurrent buyers race for five units: exactly five succeed,
// exactly five are told sold out, and both layers end at zero.
func TestAttemptPurchaseConcurrentOversellGuard(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)

	buyers := []string{"b0", "b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8", "b9"}
	results := make([]*port.PurchaseResult, len(buyers))
	errs := make([]error, len(buyers))

	var wg sync.WaitGroup
	wg.Add(len(buyers))
	for i, b := range buyers {
		go func(i int, buyer string) {
			defer wg.Done()
			results[i], errs[i] = u.AttemptPurchase(context.Background(), buyer)
		}(i, b)
	}
	wg.Wait()

	var successes, soldOut int
	for i, r := range results {
		require.NoError(t, errs[i])
		switch r.Outcome {
		case port.OutcomeSuccess:
			successes++
		case port.OutcomeSoldOut:
			soldOut++
		default:
			t.Fatalf("unexpected outcome %v", r.Outcome)
		}
	}
	assert.Equal(t, 5, successes)
	assert.Equal(t, 5, soldOut)
	assert.Equal(t, int64(0), res.stockOf(sale.ID))
	assert.Equal(t, int64(0), repo.remainingStock())

	status, err := u.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSoldOut, status.Status)
}

func TestAttemptPurchaseSoldOut(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	createActiveSale(t, u, 1)

	first, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, port.OutcomeSuccess, first.Outcome)

	second, err := u.AttemptPurchase(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSoldOut, second.Outcome)
	assert.False(t, second.Success)
}

// A durable-layer uniqueness violation after a successful claim must
// compensate the reservation store and downgrade the outcome to
// already-purchased; the loser of the race never sees success.
func TestAttemptPurchaseDurableUniquenessCompensates(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)

	repo.confirmErr = port.ErrAlreadyPurchased
	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeAlreadyPurchased, result.Outcome)
	assert.False(t, result.Success)

	// Compensation restored the pre-claim reservation state.
	assert.Equal(t, int64(5), res.stockOf(sale.ID))
	assert.Equal(t, 0, res.claimants(sale.ID))
}

func TestAttemptPurchaseDurableStockGuardCompensates(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)

	repo.confirmErr = port.ErrOutOfStock
	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSoldOut, result.Outcome)

	assert.Equal(t, int64(5), res.stockOf(sale.ID))
	assert.Equal(t, 0, res.claimants(sale.ID))
}

func TestAttemptPurchaseDurableFaultCompensates(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)

	repo.confirmErr = errors.New("connection reset")
	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSystemError, result.Outcome)
	assert.False(t, result.Success)

	assert.Equal(t, int64(5), res.stockOf(sale.ID))
	assert.Equal(t, 0, res.claimants(sale.ID))
}

// A confirm that only fails once its own deadline fires must still be
// compensated: the unclaim runs on a fresh bounded context, not the
// expired confirm context, and restores the pre-claim reservation state.
func TestAttemptPurchaseConfirmTimeoutCompensates(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)

	u.confirmTimeout = 50 * time.Millisecond
	repo.confirmBlocks = true

	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSystemError, result.Outcome)
	assert.False(t, result.Success)

	assert.Equal(t, int64(5), res.stockOf(sale.ID))
	assert.Equal(t, 0, res.claimants(sale.ID))

	n, err := repo.CountPurchases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// When the compensating unclaim itself fails, the stores have diverged.
// The caller still gets an error result; the request never hangs and
// never reports success.
func TestAttemptPurchaseCompensationFailure(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	createActiveSale(t, u, 5)

	repo.confirmErr = errors.New("connection reset")
	res.unclaimErr = errors.New("broken pipe")

	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSystemError, result.Outcome)
	assert.False(t, result.Success)
}

func TestAttemptPurchaseClaimFault(t *testing.T) {
	u, repo, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)

	res.claimErr = errors.New("connection refused")
	result, err := u.AttemptPurchase(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, port.OutcomeSystemError, result.Outcome)

	// Nothing was claimed and nothing was confirmed.
	n, _ := repo.CountPurchases(context.Background())
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 0, res.claimants(sale.ID))
}

func TestCheckPurchase(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	createActiveSale(t, u, 5)
	ctx := context.Background()

	check, err := u.CheckPurchase(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, check.HasPurchased)
	assert.Nil(t, check.PurchaseTime)

	result, err := u.AttemptPurchase(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, port.OutcomeSuccess, result.Outcome)

	check, err = u.CheckPurchase(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, check.HasPurchased)
	require.NotNil(t, check.PurchaseTime)
	assert.False(t, check.PurchaseTime.IsZero())

	// Repeated checks report the same answer.
	again, err := u.CheckPurchase(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, again.HasPurchased)
}

func TestGetStatusFallsBackToLedgerStock(t *testing.T) {
	u, _, res := newTestUseCase(t)
	createActiveSale(t, u, 7)

	res.stockErr = errors.New("connection refused")
	status, err := u.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), status.RemainingStock)
	assert.Equal(t, domain.StatusActive, status.Status)
}

func TestResetAll(t *testing.T) {
	u, _, res := newTestUseCase(t)
	sale := createActiveSale(t, u, 5)
	ctx := context.Background()

	result, err := u.AttemptPurchase(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, port.OutcomeSuccess, result.Outcome)

	reset, err := u.ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset.FlashSalesDeleted)
	assert.Equal(t, int64(1), reset.PurchasesDeleted)
	assert.Equal(t, int64(0), res.stockOf(sale.ID))

	_, err = u.GetStatus(ctx)
	assert.ErrorIs(t, err, port.ErrSaleNotFound)
}

func TestListSales(t *testing.T) {
	u, _, _ := newTestUseCase(t)
	createActiveSale(t, u, 5)
	ctx := context.Background()

	_, err := u.AttemptPurchase(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = u.AttemptPurchase(ctx, "bob@example.com")
	require.NoError(t, err)

	overview, err := u.ListSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), overview.TotalSales)
	assert.Equal(t, int64(2), overview.TotalPurchases)
	require.Len(t, overview.Sales, 1)
	assert.Equal(t, "Limited Edition Sneaker", overview.Sales[0].ProductName)
}
