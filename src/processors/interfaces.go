package processors

import (
	"github.com/username/tradeledger/src/models"
)

// Enricher decorates parsed transactions before matching.
type Enricher interface {
	Process(txs []models.Transaction) []models.Transaction
}

// Matcher turns transactions into round-trip trades.
type Matcher interface {
	Match(txs []models.Transaction, brokerName string, nextTradeNumber int) []models.Trade
}

var (
	_ Enricher = (*TransactionProcessor)(nil)
	_ Matcher  = (*PositionMatcher)(nil)
)
