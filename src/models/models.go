package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenLot represents a remaining unmatched purchase lot in a symbol's
// FIFO queue.
type OpenLot struct {
	Symbol   string          `json:"symbol"`
	BuyTime  time.Time       `json:"buy_time"`
	Quantity decimal.Decimal `json:"quantity"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	Broker   string          `json:"broker"`
	HashId   string          `json:"hash_id,omitempty"`
}

// Empty reports whether the lot has been fully consumed.
func (l OpenLot) Empty() bool {
	return !l.Quantity.IsPositive()
}
