package domain

import "time"

// Status is the externally visible state of a flash sale, derived from
// the clock and the remaining stock on every query. It is never stored.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
	StatusSoldOut  Status = "sold_out"
)

// ResolveStatus derives the sale status from the current time, the sale
// window and the remaining stock. The start boundary is inclusive and the
// end boundary is exclusive: now == startTime is inside the window,
// now == endTime is already ended. Time takes precedence over stock, so a
// sale that sold out before its end time reports ended once the window
// has passed.
func ResolveStatus(now, startTime, endTime time.Time, remainingStock int64) Status {
	if now.Before(startTime) {
		return StatusUpcoming
	}
	if !now.Before(endTime) {
		return StatusEnded
	}
	if remainingStock > 0 {
		return StatusActive
	}
	return StatusSoldOut
}
