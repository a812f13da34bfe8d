package domain

import "time"

// FlashSale represents one timed, fixed-stock sale event. The business
// rule allows exactly one sale to exist system-wide at a time.
// TotalStock and the time window are immutable after creation;
// RemainingStock only moves through confirmed or compensated purchases.
type FlashSale struct {
	ID             string
	ProductName    string
	TotalStock     int64
	RemainingStock int64
	// Version is the optimistic-concurrency token guarding stock
	// decrements in the durable store.
	Version   int64
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
