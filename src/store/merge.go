// Package store persists the trade index and merges new trades into it.
package store

import (
	"strings"

	"github.com/username/tradeledger/src/models"
	"github.com/username/tradeledger/src/utils"
)

// DedupKey identifies a trade for merging: the entry day and ticker. Two
// distinct same-day round trips in one ticker share a key, so the second
// one is treated as already present.
func DedupKey(t models.Trade) string {
	return utils.DatePart(t.EntryDate) + "|" + strings.ToUpper(strings.TrimSpace(t.Ticker))
}

// Merge appends incoming trades whose key is not already in existing and
// renumbers them from max(existing)+1. Keys are checked against existing
// only, never against earlier members of incoming. Neither input is
// modified.
func Merge(existing, incoming []models.Trade) ([]models.Trade, int) {
	keys := make(map[string]bool, len(existing))
	merged := make([]models.Trade, 0, len(existing)+len(incoming))
	for _, t := range existing {
		keys[DedupKey(t)] = true
		merged = append(merged, t.Clone())
	}

	next := models.NextTradeNumber(existing)
	added := 0
	for _, t := range incoming {
		if keys[DedupKey(t)] {
			continue
		}
		accepted := t.Clone()
		accepted.TradeNumber = next
		next++
		merged = append(merged, accepted)
		added++
	}
	return merged, added
}
