package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"flash-sale/internal/core/port"
)

// claimScript is the atomic compound claim: membership check, stock
// check, decrement and claimant record execute as one Redis script, so
// no interleaving of the check-then-act sequence is observable by
// concurrent callers.
//
// KEYS[1] stock counter, KEYS[2] claimant hash.
// ARGV[1] user identifier, ARGV[2] claim timestamp (unix ms).
// Returns -1 already claimed, 0 sold out, 1 claimed.
var claimScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
    return -1
end
local stock = redis.call('GET', KEYS[1])
if not stock or tonumber(stock) <= 0 then
    return 0
end
redis.call('DECR', KEYS[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// unclaimScript compensates a claim after a failed durable confirmation:
// it restores the counter and removes the claimant, unconditionally.
var unclaimScript = redis.NewScript(`
redis.call('INCR', KEYS[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return 1
`)

// ReservationStore implements port.ReservationStore on Redis. Per sale it
// keeps a stock counter and a claimant hash; both are a cache over the
// durable ledger, reset alongside it.
type ReservationStore struct {
	rdb *redis.Client
}

// NewReservationStore returns a store backed by the given client. The
// client's lifecycle is owned by the caller.
func NewReservationStore(rdb *redis.Client) *ReservationStore {
	return &ReservationStore{rdb: rdb}
}

func stockKey(saleID string) string {
	return fmt.Sprintf("flash_sale:%s:stock", saleID)
}

func claimsKey(saleID string) string {
	return fmt.Sprintf("flash_sale:%s:claims", saleID)
}

// InitStock sets the sale's counter to totalStock. The claimant hash is
// created lazily by the first claim.
func (s *ReservationStore) InitStock(ctx context.Context, saleID string, totalStock int64) error {
	return s.rdb.Set(ctx, stockKey(saleID), totalStock, 0).Err()
}

// Claim executes the atomic claim script for the buyer.
func (s *ReservationStore) Claim(ctx context.Context, saleID, userIdentifier string, at time.Time) (port.ClaimResult, error) {
	keys := []string{stockKey(saleID), claimsKey(saleID)}
	res, err := claimScript.Run(ctx, s.rdb, keys, userIdentifier, strconv.FormatInt(at.UnixMilli(), 10)).Int()
	if err != nil {
		return 0, err
	}
	switch res {
	case -1:
		return port.ClaimAlreadyClaimed, nil
	case 0:
		return port.ClaimSoldOut, nil
	default:
		return port.Claimed, nil
	}
}

// Unclaim executes the compensation script for the buyer.
func (s *ReservationStore) Unclaim(ctx context.Context, saleID, userIdentifier string) error {
	keys := []string{stockKey(saleID), claimsKey(saleID)}
	return unclaimScript.Run(ctx, s.rdb, keys, userIdentifier).Err()
}

// Stock returns the current counter value. A missing key reads as zero,
// matching a sale whose counter was never initialized or already flushed.
func (s *ReservationStore) Stock(ctx context.Context, saleID string) (int64, error) {
	val, err := s.rdb.Get(ctx, stockKey(saleID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// Reset flushes the reservation key-space entirely.
func (s *ReservationStore) Reset(ctx context.Context) error {
	return s.rdb.FlushDB(ctx).Err()
}
