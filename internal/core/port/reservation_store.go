package port

import (
	"context"
	"time"
)

// ClaimResult is the outcome of the reservation store's atomic claim.
type ClaimResult int

const (
	// ClaimAlreadyClaimed means the buyer already holds a claim; no state
	// was changed.
	ClaimAlreadyClaimed ClaimResult = iota
	// ClaimSoldOut means the counter was exhausted; no state was changed.
	ClaimSoldOut
	// Claimed means the counter was decremented and the buyer recorded.
	Claimed
)

// ReservationStore is the fast, atomic accelerator layer that absorbs
// concurrent purchase demand before it reaches the durable ledger. It is
// a cache, not the source of truth: its key-space is initialized at sale
// creation and reset alongside the ledger.
//
// Claim and Unclaim must execute with single-operation atomicity relative
// to all concurrent callers — no interleaving of the check-then-act
// sequence may be observable.
type ReservationStore interface {
	// InitStock initializes the sale's counter to totalStock with an
	// empty claimant set.
	InitStock(ctx context.Context, saleID string, totalStock int64) error
	// Claim atomically checks membership and stock, then decrements the
	// counter and records the claimant with the given time.
	Claim(ctx context.Context, saleID, userIdentifier string, at time.Time) (ClaimResult, error)
	// Unclaim reverses a claim: it increments the counter and removes the
	// claimant record, unconditionally. It is invoked at most once per
	// failed durable confirmation.
	Unclaim(ctx context.Context, saleID, userIdentifier string) error
	// Stock returns the current counter value for the sale.
	Stock(ctx context.Context, saleID string) (int64, error)
	// Reset flushes the reservation key-space entirely.
	Reset(ctx context.Context) error
}
