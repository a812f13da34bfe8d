package domain

import "time"

// Purchase is a record of a buyer securing one unit in a flash sale.
// The pair (FlashSaleID, UserIdentifier) is unique in the durable store;
// that constraint is the final backstop against double-selling to the
// same buyer.
type Purchase struct {
	ID             string
	FlashSaleID    string
	UserIdentifier string
	PurchasedAt    time.Time
}
