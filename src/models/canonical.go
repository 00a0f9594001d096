package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Transaction is the unified, intermediate representation of a broker fill.
// Each broker adapter populates it from one CSV row; the position matcher
// is its only consumer. Quantity is always positive, Side carries direction.
type Transaction struct {
	Symbol     string          `json:"symbol"`
	Timestamp  time.Time       `json:"timestamp"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Side       Side            `json:"side"`
	Commission decimal.Decimal `json:"commission"`
	Broker     string          `json:"broker"`
	RawText    string          `json:"raw_text,omitempty"`
	HashId     string          `json:"hash_id,omitempty"`
}
